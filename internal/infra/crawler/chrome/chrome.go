package chrome

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/LouYuanbo1/listingwatch/internal/infra/crawler/types"
)

// ErrEmptyCookies is returned when the browser session ended without cookies.
var ErrEmptyCookies = errors.New("浏览器未返回cookies")

// CookieMinter obtains a fresh marketplace session through a real browser.
type CookieMinter interface {
	Mint(ctx context.Context, proxy *types.Proxy) (types.Session, error)
}

type Options struct {
	Bin       string
	Headless  bool
	NoSandbox bool
	TargetURL string
	// WaitAfter lets the anti-bot scripts settle before cookies are read.
	WaitAfter time.Duration
	Timeout   time.Duration
}

// InitCookieMinter picks the browser engine: "rod" (default) or "chromedp".
func InitCookieMinter(engine string, opts Options) (CookieMinter, error) {
	switch engine {
	case "", "rod":
		return InitRodMinter(opts), nil
	case "chromedp":
		return InitChromedpMinter(opts), nil
	default:
		return nil, fmt.Errorf("未知浏览器引擎: %q", engine)
	}
}

type proxyEndpoint struct {
	server   string
	username string
	password string
}

// splitProxy separates credentials from the proxy address, since browsers take
// them through an auth challenge rather than in the --proxy-server flag.
func splitProxy(proxy *types.Proxy) (*proxyEndpoint, error) {
	if proxy == nil || proxy.URL == "" {
		return nil, nil
	}
	u, err := url.Parse(proxy.URL)
	if err != nil {
		return nil, fmt.Errorf("解析代理地址失败: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("代理地址缺少主机: %q", proxy.URL)
	}
	ep := &proxyEndpoint{server: u.Scheme + "://" + u.Host}
	if u.User != nil {
		ep.username = u.User.Username()
		ep.password, _ = u.User.Password()
	}
	return ep, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
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

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
