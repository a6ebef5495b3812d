package chrome

import (
	"context"
	"fmt"

	"github.com/LouYuanbo1/listingwatch/internal/infra/crawler/types"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
)

type rodMinter struct {
	opts Options
}

func InitRodMinter(opts Options) CookieMinter {
	return &rodMinter{opts: opts}
}

func (rm *rodMinter) Mint(ctx context.Context, proxy *types.Proxy) (types.Session, error) {
	ctx, cancel := withTimeout(ctx, rm.opts.Timeout)
	defer cancel()

	ep, err := splitProxy(proxy)
	if err != nil {
		return types.Session{}, err
	}

	l := launcher.New().
		Context(ctx).
		Headless(rm.opts.Headless).
		NoSandbox(rm.opts.NoSandbox).
		Set("disable-blink-features", "AutomationControlled")
	if rm.opts.Bin != "" {
		l = l.Bin(rm.opts.Bin)
	}
	if ep != nil {
		l = l.Proxy(ep.server)
	}
	defer l.Cleanup()

	controlURL, err := l.Launch()
	if err != nil {
		return types.Session{}, fmt.Errorf("启动浏览器失败: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return types.Session{}, fmt.Errorf("连接浏览器失败: %w", err)
	}
	defer browser.Close()

	if ep != nil && ep.username != "" {
		wait := browser.HandleAuth(ep.username, ep.password)
		go func() { _ = wait() }()
	}

	page, err := stealth.Page(browser)
	if err != nil {
		return types.Session{}, fmt.Errorf("获取页面失败: %w", err)
	}
	if err := page.Navigate(rm.opts.TargetURL); err != nil {
		return types.Session{}, fmt.Errorf("导航失败: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return types.Session{}, fmt.Errorf("等待页面加载失败: %w", err)
	}
	if err := sleepCtx(ctx, rm.opts.WaitAfter); err != nil {
		return types.Session{}, err
	}

	ua, err := page.Eval(`() => navigator.userAgent`)
	if err != nil {
		return types.Session{}, fmt.Errorf("读取user-agent失败: %w", err)
	}
	cookies, err := page.Cookies(nil)
	if err != nil {
		return types.Session{}, fmt.Errorf("读取cookies失败: %w", err)
	}
	if len(cookies) == 0 {
		return types.Session{}, ErrEmptyCookies
	}

	session := types.Session{Cookies: make(map[string]string, len(cookies)), UserAgent: ua.Value.Str()}
	for _, c := range cookies {
		session.Cookies[c.Name] = c.Value
	}
	return session, nil
}
