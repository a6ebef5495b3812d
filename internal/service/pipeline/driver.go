package pipeline

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/LouYuanbo1/listingwatch/internal/config"
	"github.com/LouYuanbo1/listingwatch/internal/domain/model"
	"github.com/LouYuanbo1/listingwatch/internal/logger"
	"github.com/LouYuanbo1/listingwatch/internal/metrics"
	"github.com/LouYuanbo1/listingwatch/internal/service/extract"
	"github.com/LouYuanbo1/listingwatch/internal/service/fetch"
	"github.com/LouYuanbo1/listingwatch/internal/service/filter"
)

type DriverOptions struct {
	MaxPages          int
	Retries           int
	PauseBetweenPages time.Duration
	ParseViews        bool
	// Collect keeps the surviving records for export.
	Collect bool
	BaseURL string
	Filter  config.Filter
}

type DriverDeps struct {
	Fetch     fetch.Client
	Extract   extract.Extractor
	Chain     *filter.Chain
	Dedup     DedupGate
	Processor *Processor
	Sleep     fetch.Sleeper
	// Jitter is the pause after each detail-page fetch.
	Jitter  func() time.Duration
	Metrics *metrics.Metrics
	Log     logger.Logger
}

// Driver walks one listing URL page by page.
type Driver struct {
	opts DriverOptions
	deps DriverDeps
	log  logger.Logger
}

func NewDriver(opts DriverOptions, deps DriverDeps) *Driver {
	if deps.Sleep == nil {
		deps.Sleep = fetch.SleepContext
	}
	if deps.Jitter == nil {
		deps.Jitter = viewJitter
	}
	if deps.Log == nil {
		deps.Log = logger.NewNop()
	}
	if deps.Chain == nil {
		deps.Chain = filter.NewChain(deps.Log)
	}
	if deps.Processor == nil {
		deps.Processor = NewProcessor(deps.Dedup, deps.Log)
	}
	return &Driver{opts: opts, deps: deps, log: deps.Log}
}

func viewJitter() time.Duration {
	return 100*time.Millisecond + rand.N(800*time.Millisecond)
}

// Run returns the records collected from url. A failed fetch still uses up one
// page of the budget and the same page is requested again on the next round.
func (d *Driver) Run(ctx context.Context, url string) []model.Item {
	var collected []model.Item
	current := url
	log := d.log.With(logger.String("url", url))

	for page := 0; page < d.opts.MaxPages; page++ {
		if ctx.Err() != nil {
			break
		}

		body, err := d.deps.Fetch.Fetch(ctx, current, d.opts.Retries)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				break
			}
			log.Warn("获取页面失败, 稍后重试", logger.String("page_url", current), logger.Duration("pause", d.opts.PauseBetweenPages))
			if d.deps.Sleep(ctx, d.opts.PauseBetweenPages) != nil {
				break
			}
			continue
		}

		items := d.deps.Extract.ExtractRecords(body)
		if len(items) == 0 {
			log.Info("商品已全部获取, 结束该链接")
			break
		}
		d.deps.Metrics.AddRecords(metrics.StageExtracted, len(items))

		survivors := d.processBatch(ctx, items)
		if d.opts.Collect {
			collected = append(collected, survivors...)
		}

		next, err := NextPageURL(current)
		if err != nil {
			log.Error("生成下一页链接失败", logger.Error(err))
			break
		}
		current = next

		log.Info("翻页暂停", logger.Duration("pause", d.opts.PauseBetweenPages))
		if d.deps.Sleep(ctx, d.opts.PauseBetweenPages) != nil {
			break
		}
	}
	return collected
}

// processBatch runs filter → views → side effects and returns the survivors.
func (d *Driver) processBatch(ctx context.Context, items []model.Item) []model.Item {
	env := &filter.Env{Cfg: d.opts.Filter, IsViewed: d.isViewed}
	survivors := d.deps.Chain.Apply(ctx, items, env)
	if d.opts.ParseViews {
		survivors = d.enrichViews(ctx, survivors)
	}
	if len(survivors) == 0 {
		return nil
	}
	d.deps.Metrics.AddRecords(metrics.StageFiltered, len(survivors))
	d.deps.Processor.Process(ctx, survivors)
	return survivors
}

func (d *Driver) isViewed(ctx context.Context, it *model.Item) (bool, error) {
	if d.deps.Dedup == nil {
		return false, nil
	}
	return d.deps.Dedup.Exists(ctx, it.ID, it.Price())
}

func (d *Driver) enrichViews(ctx context.Context, items []model.Item) []model.Item {
	if len(items) == 0 {
		return items
	}
	d.log.Info("开始获取浏览量", logger.Int("count", len(items)))
	for i := range items {
		if ctx.Err() != nil {
			break
		}
		detail := items[i].DetailURL(d.opts.BaseURL)
		body, err := d.deps.Fetch.Fetch(ctx, detail, d.opts.Retries)
		if err != nil {
			d.log.Warn("获取浏览量失败", logger.String("url", detail), logger.Error(err))
			continue
		}
		items[i].TotalViews, items[i].TodayViews = d.deps.Extract.ExtractViewCounts(body)
		if d.deps.Sleep(ctx, d.deps.Jitter()) != nil {
			break
		}
	}
	return items
}
