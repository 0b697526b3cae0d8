package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/formtrack/internal/httpapi"
	"github.com/mesh-intelligence/formtrack/internal/metrics"
	"github.com/mesh-intelligence/formtrack/internal/tracker"
)

const shutdownTimeout = 10 * time.Second

func (a *app) serveCmd() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen == "" {
				listen = a.v.GetString(cfgKeyListenAddr)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, listen, nil)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default: listen_addr from config, :8080)")
	return cmd
}

// serve runs the HTTP API until ctx is done. When ready is non-nil it
// receives the bound address once the listener is open.
func (a *app) serve(ctx context.Context, addr string, ready chan<- string) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc, wb, err := a.openService(ctx, tracker.WithMetrics(metrics.New(reg)))
	if err != nil {
		return err
	}
	defer wb.Close()

	if err := svc.Warm(ctx); err != nil {
		a.logger.WarnContext(ctx, "cache warm-up failed", "error", err)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := httpapi.NewServer(addr, httpapi.NewRouter(httpapi.New(svc, a.logger), reg))

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ln)
	}()
	a.logger.InfoContext(ctx, "serving", "addr", ln.Addr().String(), "backend", a.cfg.Backend)
	if ready != nil {
		ready <- ln.Addr().String()
	}

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	a.logger.InfoContext(ctx, "server stopped")
	return nil
}
