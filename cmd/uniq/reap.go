package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	uniq "github.com/dougcole/resque-uniq"
)

func newReapCmd() *cobra.Command {
	var (
		interval time.Duration
		listen   string
	)
	cmd := &cobra.Command{
		Use:   "reap",
		Short: "Clear stale locks, once or periodically",
		Long:  `Reap checks every held lock against one snapshot of the worker registry
and deletes those whose job is no longer running anywhere.

With an interval (--interval or workers.reap_interval) it keeps sweeping
until interrupted and can serve Prometheus metrics on --listen.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			e, err := openEnv(ctx, configPath(cmd), reg)
			if err != nil {
				return err
			}
			defer e.close()

			reaper, err := uniq.NewReaper(e.locker, uniq.WithReaperLogger(e.logger))
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("interval") {
				interval = e.cfg.ReapInterval()
			}
			if interval <= 0 {
				return sweepOnce(ctx, cmd, reaper)
			}

			if !cmd.Flags().Changed("listen") {
				listen = e.cfg.App.MetricsAddr
			}
			if listen != "" {
				srv := metricsServer(listen, reg)
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						e.logger.Error("metrics server failed", "addr", listen, "error", err)
					}
				}()
				defer shutdownMetrics(srv, 5*time.Second, e.logger)
				e.logger.Info("serving metrics", "addr", listen)
			}

			reaper.Run(ctx, interval)
			return nil
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "Sweep every interval until interrupted (0 = sweep once)")
	cmd.Flags().StringVar(&listen, "listen", "", "Serve /metrics on this address while sweeping")
	return cmd
}

func sweepOnce(ctx context.Context, cmd *cobra.Command, reaper *uniq.Reaper) error {
	cleared, err := reaper.Sweep(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, key := range cleared {
		fmt.Fprintf(out, "cleared %s\n", key)
	}
	fmt.Fprintf(out, "%d stale lock(s) cleared\n", len(cleared))
	return nil
}

// shutdownMetrics stops srv, logging any connection left open past timeout.
func shutdownMetrics(srv *http.Server, timeout time.Duration, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("metrics server shutdown failed", "addr", srv.Addr, "error", err)
	}
}

func metricsServer(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
