package main

import (
	"context"
	"fmt"

	"github.com/LouYuanbo1/listingwatch/internal/config"
	"github.com/LouYuanbo1/listingwatch/internal/domain/model"
	"github.com/LouYuanbo1/listingwatch/internal/infra/crawler/chrome"
	"github.com/LouYuanbo1/listingwatch/internal/infra/crawler/types"
	"github.com/LouYuanbo1/listingwatch/internal/infra/notify"
	"github.com/LouYuanbo1/listingwatch/internal/infra/persistence/cookiestore"
	"github.com/LouYuanbo1/listingwatch/internal/infra/persistence/dedup"
	"github.com/LouYuanbo1/listingwatch/internal/infra/persistence/es"
	"github.com/LouYuanbo1/listingwatch/internal/infra/persistence/xlsx"
	"github.com/LouYuanbo1/listingwatch/internal/infra/proxy"
	"github.com/LouYuanbo1/listingwatch/internal/logger"
	"github.com/LouYuanbo1/listingwatch/internal/metrics"
	"github.com/LouYuanbo1/listingwatch/internal/service/extract"
	"github.com/LouYuanbo1/listingwatch/internal/service/fetch"
	"github.com/LouYuanbo1/listingwatch/internal/service/filter"
	"github.com/LouYuanbo1/listingwatch/internal/service/pipeline"
	"github.com/LouYuanbo1/listingwatch/internal/service/supervisor"
)

// newRunner builds a fresh pipeline for every pass, like a restart would.
func newRunner(cfg *config.Config, log logger.Logger, m *metrics.Metrics, cancel context.CancelFunc) supervisor.RunFunc {
	return func(ctx context.Context) error {
		gate, err := dedup.InitGate(ctx, cfg.Storage)
		if err != nil {
			return fmt.Errorf("初始化去重存储失败: %w", err)
		}
		defer gate.Close()

		client, err := newFetchClient(cfg, log, m)
		if err != nil {
			return err
		}

		var esSink pipeline.ExportSink
		if cfg.Export.Elasticsearch {
			esClient, err := es.InitTypedEsClient[*model.ItemDoc](cfg.Elasticsearch, log.With(logger.String("component", "es")))
			if err != nil {
				return err
			}
			esSink = es.NewItemSink(esClient, cfg.Parser.BaseURL)
		}

		var (
			notifiers []pipeline.Notifier
			announcer pipeline.ExportNotifier
		)
		if cfg.NotifyEnabled() {
			tg := notify.NewTelegram(notify.TelegramOptions{
				Token:     cfg.Telegram.Token,
				ChatID:    cfg.Telegram.ChatID,
				BaseURL:   cfg.Parser.BaseURL,
				SkipItems: cfg.Parser.OneTimeStart,
			}, log.With(logger.String("component", "telegram")))
			notifiers = append(notifiers, tg)
			announcer = tg
		}

		driverLog := log.With(logger.String("component", "driver"))
		driver := pipeline.NewDriver(pipeline.DriverOptions{
			MaxPages:          cfg.Parser.Count,
			Retries:           cfg.Parser.MaxCountOfRetry,
			PauseBetweenPages: cfg.Parser.PauseBetweenLinks,
			ParseViews:        cfg.Parser.ParseViews,
			Collect:           cfg.Export.SaveXLSX || cfg.Export.Elasticsearch,
			BaseURL:           cfg.Parser.BaseURL,
			Filter:            cfg.Filter,
		}, pipeline.DriverDeps{
			Fetch:     client,
			Extract:   extract.InitExtractor(log.With(logger.String("component", "extract"))),
			Chain:     filter.NewChain(log.With(logger.String("component", "filter"))),
			Dedup:     gate,
			Processor: pipeline.NewProcessor(gate, driverLog, notifiers...),
			Metrics:   m,
			Log:       driverLog,
		})

		orch := pipeline.NewOrchestrator(pipeline.OrchestratorOptions{
			URLs:           cfg.Parser.URLs,
			OneFilePerLink: cfg.Export.OneFileForLink,
			OneShot:        cfg.Parser.OneTimeStart,
		}, pipeline.OrchestratorDeps{
			Driver:   driver,
			Fetch:    client,
			RunSink:  runSink(cfg, esSink),
			LinkSink: linkSinks(cfg, esSink),
			Notifier: announcer,
			Cancel:   cancel,
			Metrics:  m,
			Log:      log.With(logger.String("component", "orchestrator")),
		})
		orch.Run(ctx)
		return nil
	}
}

func newFetchClient(cfg *config.Config, log logger.Logger, m *metrics.Metrics) (fetch.Client, error) {
	minter, err := chrome.InitCookieMinter(cfg.Browser.Engine, chrome.Options{
		Bin:       cfg.Browser.Bin,
		Headless:  cfg.Browser.Headless,
		NoSandbox: cfg.Browser.NoSandbox,
		TargetURL: cfg.Browser.TargetURL,
		WaitAfter: cfg.Browser.WaitAfter,
		Timeout:   cfg.Browser.Timeout,
	})
	if err != nil {
		return nil, err
	}
	fetchLog := log.With(logger.String("component", "fetch"))
	return fetch.InitFetchClient(fetch.Options{
		Backoff:        cfg.Parser.Backoff,
		MintAttempts:   cfg.Browser.MintAttempts,
		MintDelay:      cfg.Browser.MintDelay,
		UserAgent:      cfg.Colly.UserAgent,
		RequestTimeout: cfg.Colly.RequestTimeout,
		Proxy:          proxyFromConfig(cfg),
	}, fetch.Deps{
		Minter:  minter,
		Rotator: proxy.InitIPRotator(cfg.Colly.RequestTimeout, fetchLog),
		Store:   cookiestore.InitFileStore(cfg.Storage.CookiesFile),
		Metrics: m,
		Log:     fetchLog,
	})
}

func proxyFromConfig(cfg *config.Config) *types.Proxy {
	if !cfg.UseProxy() {
		return nil
	}
	return &types.Proxy{URL: cfg.ProxyURL(), ChangeIPURL: cfg.Proxy.ProxyChangeURL}
}

func runSink(cfg *config.Config, esSink pipeline.ExportSink) pipeline.ExportSink {
	var sinks pipeline.MultiSink
	if cfg.Export.SaveXLSX {
		sinks = append(sinks, xlsx.NewSink(xlsx.RunFileName(cfg.Export.ResultDir, cfg.Filter.KeysWordWhiteList), cfg.Parser.BaseURL))
	}
	if esSink != nil {
		sinks = append(sinks, esSink)
	}
	if len(sinks) == 0 {
		return nil
	}
	return sinks
}

func linkSinks(cfg *config.Config, esSink pipeline.ExportSink) func(int) (pipeline.ExportSink, error) {
	return func(index int) (pipeline.ExportSink, error) {
		var sinks pipeline.MultiSink
		if cfg.Export.SaveXLSX {
			sinks = append(sinks, xlsx.NewSink(xlsx.LinkFileName(cfg.Export.ResultDir, index), cfg.Parser.BaseURL))
		}
		if esSink != nil {
			sinks = append(sinks, esSink)
		}
		if len(sinks) == 0 {
			return nil, nil
		}
		return sinks, nil
	}
}
