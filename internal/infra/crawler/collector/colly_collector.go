package collector

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"

	"github.com/gocolly/colly/v2"
)

const (
	responseKey  = "response"
	maxBodyBytes = 20 << 20
)

// DefaultHeaders mimic a desktop browser navigating to a listing page.
var DefaultHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language":           "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7",
	"Cache-Control":             "no-cache",
	"Pragma":                    "no-cache",
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "none",
	"Upgrade-Insecure-Requests": "1",
}

type collyCrawler struct {
	colly   *colly.Collector
	options Options
}

// InitCollyCrawler builds a fresh session: new jar, new transport, redirects not followed
// so a 302 to the captcha page is visible to the caller.
func InitCollyCrawler(options Options) (CollyCrawler, error) {
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
		colly.ParseHTTPErrorResponse(),
		colly.MaxBodySize(maxBodyBytes),
	)
	if options.RequestTimeout > 0 {
		c.SetRequestTimeout(options.RequestTimeout)
	}
	c.SetRedirectHandler(func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	})
	if options.ProxyURL != "" {
		if err := c.SetProxy(options.ProxyURL); err != nil {
			return nil, fmt.Errorf("设置代理失败: %w", err)
		}
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("创建cookie jar失败: %w", err)
	}
	c.SetCookieJar(jar)

	c.OnResponse(func(r *colly.Response) {
		r.Ctx.Put(responseKey, &Response{StatusCode: r.StatusCode, Body: r.Body})
	})
	return &collyCrawler{colly: c, options: options}, nil
}

func (cc *collyCrawler) Get(url string, userAgent string) (*Response, error) {
	hdr := http.Header{}
	for k, v := range DefaultHeaders {
		hdr.Set(k, v)
	}
	for k, v := range cc.options.Headers {
		hdr.Set(k, v)
	}
	if userAgent == "" {
		userAgent = cc.options.UserAgent
	}
	if userAgent != "" {
		hdr.Set("User-Agent", userAgent)
	}

	ctx := colly.NewContext()
	if err := cc.colly.Request(http.MethodGet, url, nil, ctx, hdr); err != nil {
		return nil, fmt.Errorf("访问URL失败: %w", err)
	}
	resp, ok := ctx.GetAny(responseKey).(*Response)
	if !ok {
		return nil, fmt.Errorf("访问URL失败: no response for %s", url)
	}
	return resp, nil
}

func (cc *collyCrawler) SetCookies(url string, cookies map[string]string) error {
	if len(cookies) == 0 {
		return nil
	}
	list := make([]*http.Cookie, 0, len(cookies))
	for name, value := range cookies {
		list = append(list, &http.Cookie{Name: name, Value: value, Path: "/"})
	}
	return cc.colly.SetCookies(url, list)
}

func (cc *collyCrawler) Cookies(url string) map[string]string {
	out := make(map[string]string)
	for _, c := range cc.colly.Cookies(url) {
		out[c.Name] = c.Value
	}
	return out
}
