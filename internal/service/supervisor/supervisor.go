package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/LouYuanbo1/listingwatch/internal/logger"
	"github.com/LouYuanbo1/listingwatch/internal/service/fetch"
)

// RunFunc is one full pass over every configured URL.
type RunFunc func(ctx context.Context) error

type Options struct {
	OneShot      bool
	Pause        time.Duration
	RestartDelay time.Duration
}

// Supervisor repeats RunFunc until ctx is done. Errors and panics are logged
// and the pass is restarted after RestartDelay.
type Supervisor struct {
	opts  Options
	run   RunFunc
	sleep fetch.Sleeper
	log   logger.Logger
}

func New(opts Options, run RunFunc, log logger.Logger) *Supervisor {
	if log == nil {
		log = logger.NewNop()
	}
	return &Supervisor{opts: opts, run: run, sleep: fetch.SleepContext, log: log}
}

func (s *Supervisor) Run(ctx context.Context) error {
	for passes := 1; ; passes++ {
		if ctx.Err() != nil {
			return nil
		}
		if err := s.runOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Error("运行出错, 稍后重启", logger.Int("pass", passes), logger.Duration("delay", s.opts.RestartDelay), logger.Error(err))
			if s.sleep(ctx, s.opts.RestartDelay) != nil {
				return nil
			}
			continue
		}
		if s.opts.OneShot {
			s.log.Info("单次运行模式, 解析结束")
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
		s.log.Info("解析结束, 暂停", logger.Duration("pause", s.opts.Pause))
		if s.sleep(ctx, s.opts.Pause) != nil {
			return nil
		}
	}
}

func (s *Supervisor) runOnce(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.run(ctx)
}
