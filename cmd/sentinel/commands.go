package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/seismic-sentinel/internal/adapter/http"
	"github.com/couchcryptid/seismic-sentinel/internal/config"
	"github.com/couchcryptid/seismic-sentinel/internal/pipeline"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sentinel",
		Short:         "Seismic anomaly monitor for the Kandilli Observatory bulletin",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newRunCmd(),
		newStepCmd("fetch", "Fetch the bulletin and persist the parsed dataset", (*pipeline.Pipeline).Collect),
		newStepCmd("analyze", "Analyze, report, and export the persisted dataset", (*pipeline.Pipeline).AnalyzeStored),
		newServeCmd(),
	)
	return root
}

type runFunc func(*pipeline.Pipeline, context.Context) (pipeline.Result, error)

func newRunCmd() *cobra.Command {
	cmd := newStepCmd("run", "Fetch, parse, analyze, and export once", (*pipeline.Pipeline).RunOnce)
	cmd.Long = "Run the full pipeline once: fetch the bulletin, persist it as CSV, " +
		"report magnitude anomalies, and write the JSON export."
	return cmd
}

func newStepCmd(use, short string, step runFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			a := newApp(cfg, cmd.OutOrStdout())
			defer func() {
				if err := a.Close(); err != nil {
					a.logger.Error("close exporters", "error", err)
				}
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			res, err := step(a.pipeline, ctx)
			if errors.Is(err, pipeline.ErrDatasetMissing) {
				return fmt.Errorf("no dataset at %s, run fetch first: %w", cfg.CSVPath, err)
			}
			if err != nil {
				return err
			}
			a.logger.Debug("command complete", "command", use, "run_id", res.RunID)
			return nil
		},
	}
}

func newServeCmd() *cobra.Command {
	var (
		addr     string
		interval string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the pipeline on an interval and serve the dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := applyServeFlags(cfg, addr, interval); err != nil {
				return err
			}

			a := newApp(cfg, cmd.OutOrStdout())
			defer func() {
				if err := a.Close(); err != nil {
					a.logger.Error("close exporters", "error", err)
				}
			}()

			return serve(cmd.Context(), a)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides HTTP_ADDR)")
	cmd.Flags().StringVar(&interval, "interval", "", "run interval (overrides RUN_INTERVAL)")
	return cmd
}

func serve(parent context.Context, a *app) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := httpadapter.NewServer(httpadapter.Options{
		Addr:        a.cfg.HTTPAddr,
		DatasetPath: a.cfg.JSONPath,
		FrontendDir: a.cfg.FrontendDir,
	}, a.pipeline, a.logger)
	sched := pipeline.NewScheduler(a.pipeline, a.cfg.RunInterval, nil, a.logger, a.metrics)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return sched.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	a.logger.Info("shutdown complete")
	return nil
}
