package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	threadpool "github.com/Swind/go-thread-pool"
	"github.com/Swind/go-thread-pool/core"
	tpprom "github.com/Swind/go-thread-pool/observability/prometheus"
)

func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run synthetic load on a pool and expose Prometheus metrics",

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Value: ":9090",
				Usage: "Listen address for /metrics, /stats and /health",
			},
			&cli.IntFlag{
				Name:  "tasks",
				Value: 1000,
				Usage: "Number of synthetic tasks to start",
			},
			&cli.IntFlag{
				Name:  "threads",
				Usage: "Pool size (default: number of CPUs)",
			},
			&cli.DurationFlag{
				Name:  "linger",
				Usage: "Keep serving this long after the load finished (0: until interrupted)",
			},
		},

		Action: ServeAction,
	}
}

func ServeAction(c *cli.Context) error {
	if c.Int("tasks") < 0 {
		return cli.Exit("tasks must not be negative", 1)
	}

	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	zl, logger, err := newLogger(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer func() { _ = zl.Sync() }()

	addr := c.String("addr")
	if cfg.Server.Addr != "" && !c.IsSet("addr") {
		addr = cfg.Server.Addr
	}

	reg := prom.NewRegistry()
	exporter, err := tpprom.NewMetricsExporter("threadpool", reg, tpprom.ExporterOptions{})
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	poller, err := tpprom.NewSnapshotPoller(reg, time.Second)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}

	pool := threadpool.NewThreadPool(append(cfg.Pool.options(c, "serve"),
		threadpool.WithLogger(logger),
		threadpool.WithMetrics(exporter),
	)...)
	poller.AddPool(pool.ID(), pool)

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	poller.Start(ctx)
	defer poller.Stop()

	router := newRouter(reg, map[string]tpprom.PoolSnapshotProvider{pool.ID(): pool}, cfg.Server.AllowedOrigins)
	srv := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	zl.Info("serving", zap.String("addr", srv.Addr))

	generateLoad(pool, c.Int("tasks"))
	pool.Wait()
	zl.Info("load finished", zap.Any("stats", pool.Stats()))

	var linger <-chan time.Time
	if d := c.Duration("linger"); d > 0 {
		linger = time.After(d)
	}
	select {
	case <-ctx.Done():
	case <-linger:
	case err := <-serveErr:
		if err != nil {
			return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// generateLoad starts n tasks of random priority and cost; about one in
// twenty fails so the failure metrics have data.
func generateLoad(pool *threadpool.ThreadPool, n int) {
	for i := 0; i < n; i++ {
		prio := core.TaskPriority(rand.IntN(3))
		cost := time.Duration(rand.IntN(20)) * time.Millisecond
		fail := rand.IntN(20) == 0
		pool.StartWithPriority(threadpool.TaskFunc(func() error {
			time.Sleep(cost)
			if fail {
				return fmt.Errorf("synthetic failure of task %d", i)
			}
			return nil
		}), prio)
	}
}
