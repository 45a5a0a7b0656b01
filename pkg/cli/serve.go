package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/catapult/pkg/cli/config"
	controller "github.com/m-mizutani/catapult/pkg/controller/http"
	queuectrl "github.com/m-mizutani/catapult/pkg/controller/queue"
	"github.com/m-mizutani/catapult/pkg/controller/sched"
	"github.com/m-mizutani/catapult/pkg/controller/watch"
	"github.com/m-mizutani/catapult/pkg/usecase"
	"github.com/m-mizutani/catapult/pkg/utils/metrics"
)

func cmdServe() *cli.Command {
	var (
		serverCfg config.Server
		queueCfg  config.Queue
		release   releaseConfig
	)

	flags := append(serverCfg.Flags(), queueCfg.Flags()...)
	flags = append(flags, release.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start the release API server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)

			logger.Info("Starting catapult server",
				slog.String("addr", serverCfg.Addr),
			)

			m, err := release.Manifest.Load()
			if err != nil {
				return err
			}

			store, err := release.Ledger.Build(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			registry := prometheus.NewRegistry()
			recorder := metrics.NewPrometheus(registry)

			git := release.Git.Client()

			opts, err := release.pipelineOptions(ctx, m, git, recorder, false)
			if err != nil {
				return err
			}
			pipeline := usecase.NewPipeline(store, opts...)

			// Without a queue, dispatched runs execute in a background
			// goroutine of this process.
			triggerOpts := []usecase.TriggerOption{
				usecase.WithTriggerRecorder(recorder),
			}
			if queueCfg.Enabled() {
				queueClient, err := queueCfg.Connect()
				if err != nil {
					return err
				}
				defer queueClient.Close()
				triggerOpts = append(triggerOpts, usecase.WithQueue(queueClient))

				consumer := queuectrl.NewConsumer(store, pipeline)
				if _, err := queueClient.Subscribe(consumer.Handler(ctx)); err != nil {
					return err
				}
				logger.Info("Consuming queued runs", slog.String("subject", queueCfg.Subject))
			}

			trigger := usecase.NewTrigger(git, store, pipeline, triggerOpts...)

			server, err := controller.NewServer(
				ctx,
				trigger,
				store,
				controller.WithAddr(serverCfg.Addr),
				controller.WithToken(serverCfg.Token),
				controller.WithMetrics(registry),
			)
			if err != nil {
				return goerr.Wrap(err, "failed to create HTTP server")
			}

			if m.Schedule != nil {
				scheduler, err := sched.NewScheduler(trigger, *m.Schedule)
				if err != nil {
					return err
				}
				if err := scheduler.Start(ctx); err != nil {
					return err
				}
				defer func() {
					if err := scheduler.Stop(ctx); err != nil {
						logger.Warn("Failed to stop scheduler", slog.Any("error", err))
					}
				}()
			}

			if release.Manifest.Watch {
				watcher, err := watch.NewWatcher(release.Manifest.WatchPath(), pipeline.SetManifest)
				if err != nil {
					return err
				}
				if err := watcher.Start(ctx); err != nil {
					return err
				}
				defer func() {
					if err := watcher.Stop(); err != nil {
						logger.Warn("Failed to stop manifest watcher", slog.Any("error", err))
					}
				}()
			}

			// Start server in goroutine
			go func() {
				logger.Info("HTTP server starting", slog.String("addr", serverCfg.Addr))
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("HTTP server error", slog.Any("error", err))
				}
			}()

			// Wait for interrupt signal
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			select {
			case <-ctx.Done():
				logger.Info("Context cancelled, shutting down...")
			case sig := <-sigChan:
				logger.Info("Signal received, shutting down...", slog.Any("signal", sig))
			}

			// Graceful shutdown. The timeout context is detached from ctx
			// so shutdown still gets its grace period after cancellation.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shutdown server gracefully")
			}

			logger.Info("Server shutdown complete")
			return nil
		},
	}
}
