package pipeline

import (
	"context"

	"github.com/LouYuanbo1/listingwatch/internal/logger"
	"github.com/LouYuanbo1/listingwatch/internal/metrics"
	"github.com/LouYuanbo1/listingwatch/internal/service/fetch"
)

const CompletionMessage = "解析完成, 所有链接均已处理"

type OrchestratorOptions struct {
	URLs []string
	// OneFilePerLink exports each URL's records to its own sink.
	OneFilePerLink bool
	OneShot        bool
}

type OrchestratorDeps struct {
	Driver *Driver
	Fetch  fetch.Client
	// RunSink receives every URL's records when OneFilePerLink is off.
	RunSink ExportSink
	// LinkSink opens the sink for the URL at index when OneFilePerLink is on.
	LinkSink func(index int) (ExportSink, error)
	Notifier ExportNotifier
	// Cancel is raised after a one-shot run so the outer loop stops.
	Cancel  context.CancelFunc
	Metrics *metrics.Metrics
	Log     logger.Logger
}

// ExportNotifier is the part of Notifier the orchestrator needs.
type ExportNotifier interface {
	Announce(ctx context.Context, msg string) error
}

type Report struct {
	fetch.Stats
	Exported int
}

type Orchestrator struct {
	opts OrchestratorOptions
	deps OrchestratorDeps
	log  logger.Logger
}

func NewOrchestrator(opts OrchestratorOptions, deps OrchestratorDeps) *Orchestrator {
	if deps.Log == nil {
		deps.Log = logger.NewNop()
	}
	return &Orchestrator{opts: opts, deps: deps, log: deps.Log}
}

func (o *Orchestrator) Run(ctx context.Context) Report {
	var report Report
	for i, url := range o.opts.URLs {
		if ctx.Err() != nil {
			o.log.Info("收到停止信号, 结束运行")
			break
		}
		sink := o.sinkFor(i)

		collected := o.deps.Driver.Run(ctx, url)
		if len(collected) == 0 {
			o.log.Info("没有需要保存的数据", logger.String("url", url))
			continue
		}
		if sink == nil {
			continue
		}
		o.log.Info("保存数据", logger.Int("count", len(collected)))
		if err := sink.Append(ctx, collected); err != nil {
			o.log.Error("保存数据失败", logger.String("url", url), logger.Error(err))
			continue
		}
		report.Exported += len(collected)
		o.deps.Metrics.AddRecords(metrics.StageExported, len(collected))
	}

	if o.deps.Fetch != nil {
		report.Stats = o.deps.Fetch.Stats()
	}
	o.log.Info("运行结束",
		logger.Int("good_requests", report.Success),
		logger.Int("bad_requests", report.Failure),
		logger.Int("exported", report.Exported))

	if o.opts.OneShot {
		if o.deps.Notifier != nil {
			if err := o.deps.Notifier.Announce(ctx, CompletionMessage); err != nil {
				o.log.Error("发送完成通知失败", logger.Error(err))
			}
		}
		if o.deps.Cancel != nil {
			o.deps.Cancel()
		}
	}
	return report
}

func (o *Orchestrator) sinkFor(index int) ExportSink {
	if !o.opts.OneFilePerLink {
		return o.deps.RunSink
	}
	if o.deps.LinkSink == nil {
		return nil
	}
	sink, err := o.deps.LinkSink(index)
	if err != nil {
		o.log.Error("创建导出目标失败", logger.Int("link", index+1), logger.Error(err))
		return nil
	}
	return sink
}
