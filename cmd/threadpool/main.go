// Command threadpool runs the priority scheduling demo and a metrics-serving
// load generator on top of the threadpool package.
package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/Swind/go-thread-pool/core"
)

func main() {
	app := &cli.App{
		Name:  "threadpool",
		Usage: "Exercise a prioritized thread pool",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Log worker lifecycle at debug level",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML file with pool and server settings",
				EnvVars: []string{"THREADPOOL_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			DemoCommand(),
			ServeCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger builds the zap logger shared by the commands. Every line
// carries a run_id so interleaved runs can be told apart.
func newLogger(c *cli.Context) (*zap.Logger, core.Logger, error) {
	var (
		zl  *zap.Logger
		err error
	)
	if c.Bool("verbose") {
		zl, err = zap.NewDevelopment()
	} else {
		zl, err = zap.NewProduction()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}
	zl = zl.With(zap.String("run_id", uuid.NewString()))
	return zl, core.NewZapLogger(zl), nil
}
