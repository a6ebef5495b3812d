package pipeline

import (
	"context"

	"github.com/LouYuanbo1/listingwatch/internal/domain/model"
	"github.com/LouYuanbo1/listingwatch/internal/logger"
)

// DedupGate remembers which (id, price) pairs were already delivered.
type DedupGate interface {
	Exists(ctx context.Context, id model.ItemID, price int) (bool, error)
	Mark(ctx context.Context, items []model.Item) error
}

type Notifier interface {
	Notify(ctx context.Context, items []model.Item) error
	// Announce sends a free-form message such as the one-shot completion notice.
	Announce(ctx context.Context, msg string) error
}

type ExportSink interface {
	Append(ctx context.Context, items []model.Item) error
}

// Processor applies the side effects of a filtered batch: mark as seen, then notify.
// Failures are logged and never stop the run.
type Processor struct {
	dedup     DedupGate
	notifiers []Notifier
	log       logger.Logger
}

func NewProcessor(dedup DedupGate, log logger.Logger, notifiers ...Notifier) *Processor {
	if log == nil {
		log = logger.NewNop()
	}
	return &Processor{dedup: dedup, notifiers: notifiers, log: log}
}

func (p *Processor) Process(ctx context.Context, items []model.Item) {
	if len(items) == 0 {
		return
	}
	if p.dedup != nil {
		if err := p.dedup.Mark(ctx, items); err != nil {
			p.log.Error("标记已查看失败", logger.Int("count", len(items)), logger.Error(err))
		}
	}
	for _, n := range p.notifiers {
		if err := n.Notify(ctx, items); err != nil {
			p.log.Error("发送通知失败", logger.Error(err))
		}
	}
}

// MultiSink appends to every sink in order and reports the first error.
type MultiSink []ExportSink

func (m MultiSink) Append(ctx context.Context, items []model.Item) error {
	var first error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Append(ctx, items); err != nil && first == nil {
			first = err
		}
	}
	return first
}
