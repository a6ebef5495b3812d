package collector

import "time"

// Options configures one transport session.
type Options struct {
	UserAgent      string
	Headers        map[string]string
	ProxyURL       string
	RequestTimeout time.Duration
}

// Response is a fetched page, including non-2xx ones.
type Response struct {
	StatusCode int
	Body       []byte
}

// CollyCrawler is a single-owner HTTP session with its own cookie jar and connection pool.
type CollyCrawler interface {
	Get(url string, userAgent string) (*Response, error)
	SetCookies(url string, cookies map[string]string) error
	Cookies(url string) map[string]string
}
