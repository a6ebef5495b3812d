package proxy

import (
	"context"
	"net/http"
	"time"

	"github.com/LouYuanbo1/listingwatch/internal/infra/crawler/collector"
	"github.com/LouYuanbo1/listingwatch/internal/logger"
)

// IPRotator asks the proxy provider for a new exit IP.
type IPRotator interface {
	// Rotate reports whether the provider confirmed the change. Failures are
	// logged and never returned: the caller keeps retrying either way.
	Rotate(ctx context.Context, endpoint string) bool
}

type httpRotator struct {
	timeout time.Duration
	log     logger.Logger
}

func InitIPRotator(timeout time.Duration, log logger.Logger) IPRotator {
	if log == nil {
		log = logger.NewNop()
	}
	return &httpRotator{timeout: timeout, log: log}
}

func (r *httpRotator) Rotate(ctx context.Context, endpoint string) bool {
	if endpoint == "" {
		r.log.Info("未配置更换IP地址, 跳过")
		return false
	}
	if err := ctx.Err(); err != nil {
		return false
	}
	// The rotation call goes out directly, never through the proxy being rotated.
	cc, err := collector.InitCollyCrawler(collector.Options{RequestTimeout: r.timeout})
	if err != nil {
		r.log.Error("创建更换IP会话失败", logger.Error(err))
		return false
	}
	resp, err := cc.Get(endpoint, "")
	if err != nil {
		r.log.Error("更换IP失败", logger.Error(err))
		return false
	}
	if resp.StatusCode != http.StatusOK {
		r.log.Warn("更换IP失败", logger.Int("status", resp.StatusCode))
		return false
	}
	r.log.Info("IP已更换")
	return true
}
