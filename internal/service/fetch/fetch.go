package fetch

import (
	"context"
	"errors"
	"time"

	"github.com/LouYuanbo1/listingwatch/internal/infra/crawler/chrome"
	"github.com/LouYuanbo1/listingwatch/internal/infra/crawler/collector"
	"github.com/LouYuanbo1/listingwatch/internal/infra/crawler/types"
	"github.com/LouYuanbo1/listingwatch/internal/infra/persistence/cookiestore"
	"github.com/LouYuanbo1/listingwatch/internal/infra/proxy"
	"github.com/LouYuanbo1/listingwatch/internal/logger"
	"github.com/LouYuanbo1/listingwatch/internal/metrics"
)

var (
	// ErrRetriesExhausted is the soft failure of Fetch: callers pause and move on.
	ErrRetriesExhausted = errors.New("所有请求尝试均失败")

	ErrServer           = errors.New("服务器错误")
	ErrRateLimited      = errors.New("请求过多")
	ErrBlocked          = errors.New("请求被封禁")
	ErrUnexpectedStatus = errors.New("意外的状态码")
)

// remintFromAttempt: a 429 triggers a cookie re-mint only once the retry that
// follows it would be this attempt number or later.
const remintFromAttempt = 3

// Client is the resilient page fetcher. It is not safe for concurrent use.
type Client interface {
	// Fetch returns the page body, ErrRetriesExhausted after retries failed
	// attempts, or the context error when cancelled between attempts.
	Fetch(ctx context.Context, url string, retries int) ([]byte, error)
	Stats() Stats
}

// Stats are the request counters of one run.
type Stats struct {
	Success int
	Failure int
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SessionFactory opens a new transport session; collector.InitCollyCrawler by default.
type SessionFactory func(options collector.Options) (collector.CollyCrawler, error)

type Options struct {
	Backoff        time.Duration
	MintAttempts   int
	MintDelay      time.Duration
	UserAgent      string
	RequestTimeout time.Duration
	// Proxy is nil for direct connections.
	Proxy *types.Proxy
}

type Deps struct {
	Minter     chrome.CookieMinter
	Rotator    proxy.IPRotator
	Store      cookiestore.Store
	NewSession SessionFactory
	Sleep      Sleeper
	Metrics    *metrics.Metrics
	Log        logger.Logger
}

// SleepContext is the production Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
