package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"oracleScope/internal/observability"
	"oracleScope/internal/storage"
	"oracleScope/internal/watcher"
)

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	p, err := a.oraclePool(ctx)
	if err != nil {
		return err
	}

	var (
		sink       storage.Storage
		checkpoint watcher.Checkpointer
	)
	if a.db != nil {
		sink = a.db
		checkpoint = watcher.NewDBCheckpoint(a.db, a.cfg.PoolNFT)
	} else {
		jsonl := storage.NewJsonlStorage(a.cfg.Out, a.cfg.OutMaxBytes)
		defer jsonl.Close()
		sink = jsonl
		checkpoint = watcher.NewFileCheckpoint(a.cfg.Checkpoint, a.cfg.Checkpoint != "")
	}

	once, _ := cmd.Flags().GetBool("once")
	metrics := observability.NewMetrics("")
	runner := watcher.NewRunner(watcher.RunConfig{
		Deployment: a.cfg.PoolNFT,
		Interval:   a.cfg.Interval,
		Once:       once,
	}, p, sink, checkpoint, metrics, a.logger)

	a.logger.Info("watch start",
		zap.String("node", a.cfg.NodeURL),
		zap.String("pool_nft", a.cfg.PoolNFT),
		zap.Duration("interval", a.cfg.Interval),
		zap.Bool("postgres", a.db != nil),
		zap.String("out", a.cfg.Out),
		zap.String("metrics_addr", a.cfg.MetricsAddr),
	)

	g, ctx := errgroup.WithContext(ctx)
	if a.cfg.MetricsAddr != "" && !once {
		server := &http.Server{
			Addr:              a.cfg.MetricsAddr,
			Handler:           metricsMux(metrics),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}
	g.Go(func() error {
		err := runner.Run(ctx)
		stop()
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	return g.Wait()
}

func metricsMux(metrics *observability.Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}
