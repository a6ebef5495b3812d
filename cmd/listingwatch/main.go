package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/LouYuanbo1/listingwatch/internal/config"
	"github.com/LouYuanbo1/listingwatch/internal/logger"
	"github.com/LouYuanbo1/listingwatch/internal/metrics"
	"github.com/LouYuanbo1/listingwatch/internal/service/supervisor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var cfgFile string

func main() {
	root := &cobra.Command{
		Use:           "listingwatch",
		Short:         "Watch classifieds listings and forward new ones",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.toml or ./config/config.toml)")

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Parse all links in a loop, pausing between passes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return start(cmd.Context(), false)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "once",
		Short: "Parse all links once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return start(cmd.Context(), true)
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "错误:", err)
		os.Exit(1)
	}
}

func start(ctx context.Context, oneShot bool) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	if oneShot {
		cfg.Parser.OneTimeStart = true
	}

	if err := ensureLogDirs(cfg.Logger.OutputPaths); err != nil {
		return err
	}
	log, err := logger.New(logger.Config(cfg.Logger))
	if err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	defer func() { _ = log.Sync() }()
	log.Info("配置已加载", logger.Any("config", cfg.Masked()))

	m := metrics.New(prometheus.NewRegistry())

	// one-shot runs cancel this context once every link is done
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sup := supervisor.New(supervisor.Options{
		OneShot:      cfg.Parser.OneTimeStart,
		Pause:        cfg.Parser.PauseGeneral,
		RestartDelay: cfg.Parser.RestartDelay,
	}, newRunner(cfg, log, m, cancel), log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return sup.Run(gctx)
	})
	if cfg.Metrics.Addr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, cfg.Metrics.Addr, m, log)
		})
	}
	return g.Wait()
}

func serveMetrics(ctx context.Context, addr string, m *metrics.Metrics, log logger.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("指标服务已启动", logger.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("指标服务失败: %w", err)
	}
	return nil
}

func ensureLogDirs(paths []string) error {
	for _, p := range paths {
		if p == "stdout" || p == "stderr" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("创建日志目录失败: %w", err)
		}
	}
	return nil
}
