package chrome

import (
	"context"
	"fmt"

	"github.com/LouYuanbo1/listingwatch/internal/infra/crawler/types"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

type chromedpMinter struct {
	opts Options
}

func InitChromedpMinter(opts Options) CookieMinter {
	return &chromedpMinter{opts: opts}
}

func (cm *chromedpMinter) Mint(ctx context.Context, proxy *types.Proxy) (types.Session, error) {
	ctx, cancel := withTimeout(ctx, cm.opts.Timeout)
	defer cancel()

	ep, err := splitProxy(proxy)
	if err != nil {
		return types.Session{}, err
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cm.opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("no-sandbox", cm.opts.NoSandbox),
	)
	if cm.opts.Bin != "" {
		opts = append(opts, chromedp.ExecPath(cm.opts.Bin))
	}
	if ep != nil {
		opts = append(opts, chromedp.ProxyServer(ep.server))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	pageCtx, cancelPage := chromedp.NewContext(allocCtx)
	defer cancelPage()

	var actions []chromedp.Action
	if ep != nil && ep.username != "" {
		listenProxyAuth(pageCtx, ep)
		actions = append(actions, fetch.Enable().WithHandleAuthRequests(true))
	}

	var (
		userAgent string
		cookies   []*network.Cookie
	)
	actions = append(actions,
		network.Enable(),
		chromedp.Navigate(cm.opts.TargetURL),
		chromedp.Sleep(cm.opts.WaitAfter),
		chromedp.Evaluate(`navigator.userAgent`, &userAgent),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = network.GetCookies().Do(ctx)
			return err
		}),
	)
	if err := chromedp.Run(pageCtx, actions...); err != nil {
		return types.Session{}, fmt.Errorf("浏览器自动化执行失败: %w", err)
	}
	if len(cookies) == 0 {
		return types.Session{}, ErrEmptyCookies
	}

	session := types.Session{Cookies: make(map[string]string, len(cookies)), UserAgent: userAgent}
	for _, c := range cookies {
		session.Cookies[c.Name] = c.Value
	}
	return session, nil
}

// listenProxyAuth answers proxy auth challenges; with fetch enabled every paused
// request also has to be continued explicitly.
func listenProxyAuth(pageCtx context.Context, ep *proxyEndpoint) {
	chromedp.ListenTarget(pageCtx, func(ev any) {
		switch ev := ev.(type) {
		case *fetch.EventAuthRequired:
			go func() {
				_ = chromedp.Run(pageCtx, fetch.ContinueWithAuth(ev.RequestID, &fetch.AuthChallengeResponse{
					Response: fetch.AuthChallengeResponseResponseProvideCredentials,
					Username: ep.username,
					Password: ep.password,
				}))
			}()
		case *fetch.EventRequestPaused:
			go func() {
				_ = chromedp.Run(pageCtx, fetch.ContinueRequest(ev.RequestID))
			}()
		}
	})
}
