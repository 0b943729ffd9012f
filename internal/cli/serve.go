package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/nitrate/internal/httpapi"
	"github.com/mesh-intelligence/nitrate/internal/metrics"
	"github.com/mesh-intelligence/nitrate/internal/rpc"
	"github.com/mesh-intelligence/nitrate/internal/tasks"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(e *env) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API, XML-RPC and metrics",
		Long: "Serve /api/ (JSON), /xmlrpc/ (XML-RPC), /metrics and /healthz. In queue\n" +
			"mode the task worker runs in the same process.",
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = e.config.GetString(cfgKeyHTTPAddr)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return e.serve(ctx, addr, nil)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: http.addr from config.yaml)")
	return cmd
}

// serve runs the HTTP server, and the worker in queue mode, until ctx is
// cancelled. ready, when not nil, receives the bound address.
func (e *env) serve(ctx context.Context, addr string, ready chan<- string) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	rt, err := e.open(m)
	if err != nil {
		return err
	}
	defer rt.Close()

	rpcServer := rpc.NewServer(rt.svc, rpc.Options{Logger: e.logger, Metrics: m, Version: Version})
	api := httpapi.New(rt.svc, httpapi.Options{
		Logger:   e.logger,
		Metrics:  m,
		Gatherer: reg,
		RPC:      rpcServer,
	})
	srv := &http.Server{
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return sysError{fmt.Errorf("listen on %s: %w", addr, err)}
	}
	e.logger.Info("serving", zap.String("addr", ln.Addr().String()), zap.String("async_mode", string(rt.dispatcher.Mode())))
	e.out.Success("serving on http://%s", ln.Addr())
	if ready != nil {
		ready <- ln.Addr().String()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return sysError{fmt.Errorf("http server: %w", err)}
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if rt.dispatcher.Mode() == tasks.ModeQueue {
		g.Go(func() error {
			return tasks.NewWorker(rt.dispatcher, 0).Run(gctx)
		})
	}
	return g.Wait()
}

func newWorkerCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run queued tasks from Redis",
		Long:  "Consume the task queue until interrupted. Requires async.mode: queue and redis.addr.",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := e.open(metrics.New(nil))
			if err != nil {
				return err
			}
			defer rt.Close()
			if rt.dispatcher.Mode() != tasks.ModeQueue {
				return usageError{fmt.Errorf("worker needs async.mode %q, have %q", tasks.ModeQueue, rt.dispatcher.Mode())}
			}
			e.out.Success("worker consuming %s", e.queueKey())
			if err := tasks.NewWorker(rt.dispatcher, 0).Run(ctx); err != nil {
				return sysError{err}
			}
			return nil
		},
	}
}
