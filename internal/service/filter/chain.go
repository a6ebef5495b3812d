package filter

import (
	"context"
	"fmt"
	"time"

	"github.com/LouYuanbo1/listingwatch/internal/config"
	"github.com/LouYuanbo1/listingwatch/internal/domain/model"
	"github.com/LouYuanbo1/listingwatch/internal/logger"
)

// Env is the read-only input shared by every filter of one batch.
type Env struct {
	Cfg      config.Filter
	IsViewed func(ctx context.Context, item *model.Item) (bool, error)
	Now      func() time.Time
}

func (e *Env) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

// Func returns the surviving records in input order. It must not
// modify the input slice.
type Func func(ctx context.Context, items []model.Item, env *Env) ([]model.Item, error)

type Filter struct {
	Name  string
	Apply Func
}

// Chain applies its filters in order and stops once nothing is left.
// A filter that errors or panics passes its input through unchanged.
type Chain struct {
	filters []Filter
	log     logger.Logger
}

// NewChain builds a chain over the given filters, or Default() when none are given.
func NewChain(log logger.Logger, filters ...Filter) *Chain {
	if log == nil {
		log = logger.NewNop()
	}
	if len(filters) == 0 {
		filters = Default()
	}
	return &Chain{filters: filters, log: log}
}

func (c *Chain) Apply(ctx context.Context, items []model.Item, env *Env) []model.Item {
	for _, f := range c.filters {
		items = c.applyOne(ctx, f, items, env)
		c.log.Info("过滤完成", logger.String("filter", f.Name), logger.Int("remaining", len(items)))
		if len(items) == 0 {
			break
		}
	}
	return items
}

func (c *Chain) applyOne(ctx context.Context, f Filter, items []model.Item, env *Env) (out []model.Item) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("过滤器异常, 跳过", logger.String("filter", f.Name), logger.Error(fmt.Errorf("panic: %v", r)))
			out = items
		}
	}()
	res, err := f.Apply(ctx, items, env)
	if err != nil {
		c.log.Warn("过滤器出错, 跳过", logger.String("filter", f.Name), logger.Error(err))
		return items
	}
	return res
}

// Names lists the filters in application order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.filters))
	for i, f := range c.filters {
		names[i] = f.Name
	}
	return names
}
