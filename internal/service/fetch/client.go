package fetch

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"time"

	"github.com/LouYuanbo1/listingwatch/internal/infra/crawler/chrome"
	"github.com/LouYuanbo1/listingwatch/internal/infra/crawler/collector"
	"github.com/LouYuanbo1/listingwatch/internal/infra/crawler/types"
	"github.com/LouYuanbo1/listingwatch/internal/logger"
	"github.com/LouYuanbo1/listingwatch/internal/metrics"
)

type fetchClient struct {
	opts Options
	deps Deps
	log  logger.Logger

	// session and transport are owned by the single goroutine calling Fetch.
	session   types.Session
	transport collector.CollyCrawler
	stats     Stats
}

// InitFetchClient loads the persisted cookies and opens the first transport session.
func InitFetchClient(opts Options, deps Deps) (Client, error) {
	if opts.MintAttempts <= 0 {
		opts.MintAttempts = 1
	}
	if deps.NewSession == nil {
		deps.NewSession = collector.InitCollyCrawler
	}
	if deps.Sleep == nil {
		deps.Sleep = SleepContext
	}
	if deps.Log == nil {
		deps.Log = logger.NewNop()
	}
	c := &fetchClient{
		opts:    opts,
		deps:    deps,
		log:     deps.Log,
		session: types.Session{Cookies: map[string]string{}, UserAgent: opts.UserAgent},
	}
	if deps.Store != nil {
		cookies, err := deps.Store.Load()
		if err != nil {
			c.log.Warn("加载cookies失败, 使用空会话", logger.Error(err))
		} else {
			c.session.Cookies = cookies
		}
	}
	transport, err := c.newTransport()
	if err != nil {
		return nil, err
	}
	c.transport = transport
	return c, nil
}

func (c *fetchClient) Stats() Stats { return c.stats }

func (c *fetchClient) Fetch(ctx context.Context, url string, retries int) ([]byte, error) {
	if retries <= 0 {
		retries = 1
	}
	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		body, err := c.try(ctx, url, attempt)
		if err == nil {
			return body, nil
		}
		lastErr = err
		c.log.Debug("请求尝试失败", logger.Int("attempt", attempt), logger.Error(err))
		if attempt < retries {
			delay := c.opts.Backoff * time.Duration(attempt)
			c.log.Debug("等待重试", logger.Duration("delay", delay))
			if err := c.deps.Sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.log.Info("所有请求尝试均失败", logger.String("url", url), logger.Int("retries", retries))
	c.deps.Metrics.ObserveFetch(metrics.OutcomeExhausted)
	return nil, fmt.Errorf("%w: %s: %w", ErrRetriesExhausted, url, lastErr)
}

// try issues one request and applies the state transition for its status.
func (c *fetchClient) try(ctx context.Context, url string, attempt int) ([]byte, error) {
	if c.transport == nil {
		transport, err := c.newTransport()
		if err != nil {
			c.deps.Metrics.ObserveFetch(metrics.OutcomeNetwork)
			return nil, err
		}
		c.transport = transport
	}
	if err := c.transport.SetCookies(url, c.session.Cookies); err != nil {
		c.log.Warn("设置cookies失败", logger.Error(err))
	}

	resp, err := c.transport.Get(url, c.session.UserAgent)
	if err != nil {
		c.deps.Metrics.ObserveFetch(metrics.OutcomeNetwork)
		return nil, err
	}
	c.log.Debug("请求尝试", logger.Int("attempt", attempt), logger.Int("status", resp.StatusCode))

	switch code := resp.StatusCode; {
	case code >= http.StatusInternalServerError:
		c.deps.Metrics.ObserveFetch(metrics.OutcomeServerError)
		return nil, fmt.Errorf("%w: %d", ErrServer, code)

	case code == http.StatusTooManyRequests:
		c.deps.Metrics.ObserveFetch(metrics.OutcomeRateLimited)
		c.stats.Failure++
		c.resetTransport()
		c.rotateIP(ctx)
		if attempt+1 >= remintFromAttempt {
			c.remint(ctx)
		}
		return nil, fmt.Errorf("%w: %d", ErrRateLimited, code)

	case code == http.StatusForbidden || code == http.StatusFound:
		c.deps.Metrics.ObserveFetch(metrics.OutcomeBlocked)
		c.remint(ctx)
		return nil, fmt.Errorf("%w: %d", ErrBlocked, code)

	case code >= 200 && code < 300:
		c.deps.Metrics.ObserveFetch(metrics.OutcomeSuccess)
		c.persistCookies(url)
		c.stats.Success++
		return resp.Body, nil

	default:
		c.deps.Metrics.ObserveFetch(metrics.OutcomeUnexpected)
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, code)
	}
}

func (c *fetchClient) newTransport() (collector.CollyCrawler, error) {
	options := collector.Options{
		UserAgent:      c.opts.UserAgent,
		RequestTimeout: c.opts.RequestTimeout,
	}
	if c.opts.Proxy != nil {
		options.ProxyURL = c.opts.Proxy.URL
	}
	transport, err := c.deps.NewSession(options)
	if err != nil {
		return nil, fmt.Errorf("创建HTTP会话失败: %w", err)
	}
	return transport, nil
}

// resetTransport drops the connection pool and jar; session cookies are
// re-applied on the next attempt.
func (c *fetchClient) resetTransport() {
	transport, err := c.newTransport()
	if err != nil {
		c.log.Error("重建HTTP会话失败", logger.Error(err))
		c.transport = nil
		return
	}
	c.transport = transport
}

func (c *fetchClient) rotateIP(ctx context.Context) {
	if c.deps.Rotator == nil {
		return
	}
	endpoint := ""
	if c.opts.Proxy != nil {
		endpoint = c.opts.Proxy.ChangeIPURL
	}
	c.deps.Rotator.Rotate(ctx, endpoint)
}

// remint replaces the session with one from the browser. When every attempt
// fails the current session is kept as is.
func (c *fetchClient) remint(ctx context.Context) bool {
	if c.deps.Minter == nil {
		c.log.Warn("未配置浏览器, 跳过更新cookies")
		return false
	}
	for i := 1; i <= c.opts.MintAttempts; i++ {
		if ctx.Err() != nil {
			return false
		}
		session, err := c.deps.Minter.Mint(ctx, c.opts.Proxy)
		if err == nil && len(session.Cookies) == 0 {
			err = chrome.ErrEmptyCookies
		}
		c.deps.Metrics.ObserveMint(err == nil)
		if err == nil {
			c.session = session.Clone()
			c.resetTransport()
			c.log.Info("cookies已更新", logger.Int("attempt", i), logger.Int("cookies", len(session.Cookies)))
			return true
		}
		c.log.Warn("更新cookies失败", logger.Int("attempt", i), logger.Error(err))
		if i < c.opts.MintAttempts {
			if err := c.deps.Sleep(ctx, c.opts.MintDelay*time.Duration(i)); err != nil {
				return false
			}
		}
	}
	c.log.Error("所有更新cookies尝试均失败", logger.Int("attempts", c.opts.MintAttempts))
	return false
}

func (c *fetchClient) persistCookies(url string) {
	if c.session.Cookies == nil {
		c.session.Cookies = map[string]string{}
	}
	maps.Copy(c.session.Cookies, c.transport.Cookies(url))
	if c.deps.Store == nil {
		return
	}
	if err := c.deps.Store.Save(c.session.Cookies); err != nil {
		c.log.Warn("保存cookies失败", logger.Error(err))
	}
}
