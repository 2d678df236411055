package main

import (
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/urfave/cli/v2"

	threadpool "github.com/Swind/go-thread-pool"
)

func DemoCommand() *cli.Command {
	return &cli.Command{
		Name:  "demo",
		Usage: "Start tasks with mixed priorities and print the order they finish in",

		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "threads",
				Aliases: []string{"t"},
				Value:   2,
				Usage:   "Pool size",
			},
			&cli.DurationFlag{
				Name:  "sleep",
				Value: 50 * time.Millisecond,
				Usage: "How long each task works before logging",
			},
			&cli.IntSliceFlag{
				Name:    "priorities",
				Aliases: []string{"p"},
				Value:   cli.NewIntSlice(1, 5, 3, 2, 4),
				Usage:   "Task priorities in submission order",
			},
		},

		Action: DemoAction,
	}
}

func DemoAction(c *cli.Context) error {
	if c.Int("threads") < 1 {
		return cli.Exit("threads must be at least 1", 1)
	}
	priorities := c.IntSlice("priorities")
	if err := validatePriorities(priorities); err != nil {
		return cli.Exit(err.Error(), 1)
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

	pool := threadpool.NewThreadPool(append(cfg.Pool.options(c, "demo"), threadpool.WithLogger(logger))...)

	order := runScenario(pool, priorities, c.Duration("sleep"), c.App.Writer)
	fmt.Fprintf(c.App.Writer, "execution order: %v\n", order)
	return nil
}

// validatePriorities rejects values that do not fit a TaskPriority.
func validatePriorities(priorities []int) error {
	for _, prio := range priorities {
		if prio < 0 {
			return fmt.Errorf("priority %d is negative", prio)
		}
		if uint64(prio) > math.MaxUint32 {
			return fmt.Errorf("priority %d exceeds %d", prio, uint32(math.MaxUint32))
		}
	}
	return nil
}

// runScenario starts one task per priority, each sleeping for work and then
// recording its priority, drains the pool and returns the recorded order.
func runScenario(pool *threadpool.ThreadPool, priorities []int, work time.Duration, out io.Writer) []int {
	var (
		mu    sync.Mutex
		order []int
	)
	started := time.Now()

	for _, prio := range priorities {
		pool.StartWithPriority(threadpool.TaskFunc(func() error {
			time.Sleep(work)
			mu.Lock()
			defer mu.Unlock()
			order = append(order, prio)
			fmt.Fprintf(out, "%6s  priority %d\n", time.Since(started).Round(time.Millisecond), prio)
			return nil
		}), threadpool.TaskPriority(prio))
	}
	pool.Wait()

	mu.Lock()
	defer mu.Unlock()
	return order
}
