// ABOUTME: MCP serve command
// ABOUTME: Starts the MCP server and an optional Prometheus metrics endpoint

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/harper/locguard/internal/mcp"
	"github.com/harper/locguard/internal/metrics"
)

var mcpMetricsAddr string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server for AI agents",
	Long: `Start the MCP server on stdio.

With --metrics-addr, Prometheus metrics are served at /metrics.

Examples:
  locguard mcp
  locguard mcp --metrics-addr 127.0.0.1:9464`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		collector, err := metrics.NewCollector(prometheus.DefaultRegisterer)
		if err != nil {
			return err
		}

		src, err := configuredSource()
		if err != nil {
			return err
		}
		rt, err := buildService(src, collector)
		if err != nil {
			return err
		}
		defer rt.Close()

		if mcpMetricsAddr != "" {
			srv := &http.Server{
				Addr:              mcpMetricsAddr,
				Handler:           metricsMux(collector),
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				logger.Info("serving metrics", "addr", mcpMetricsAddr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("metrics server stopped", "error", err)
				}
			}()
			defer func() {
				shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
				defer done()
				_ = srv.Shutdown(shutdownCtx)
			}()
		}

		server, err := mcp.NewServer(rt.svc, logger)
		if err != nil {
			return err
		}
		return server.Serve(ctx)
	},
}

func metricsMux(c *metrics.Collector) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	return mux
}

func init() {
	mcpCmd.Flags().StringVar(&mcpMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	rootCmd.AddCommand(mcpCmd)
}
