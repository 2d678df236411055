package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	threadpool "github.com/Swind/go-thread-pool"
)

// fileConfig is the optional YAML file passed with --config.
type fileConfig struct {
	Pool   poolConfig   `yaml:"pool"`
	Server serverConfig `yaml:"server"`
}

type poolConfig struct {
	ID            string        `yaml:"id"`
	MaxThreads    int           `yaml:"max_threads"`
	RetireTimeout time.Duration `yaml:"retire_timeout"`
	LockOSThread  bool          `yaml:"lock_os_thread"`
	CPUAffinity   bool          `yaml:"cpu_affinity"`
}

type serverConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// loadConfig reads path, expanding environment variables first. An empty
// path yields the zero config.
func loadConfig(path string) (*fileConfig, error) {
	cfg := &fileConfig{}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	data = []byte(os.ExpandEnv(string(data)))

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Pool.MaxThreads < 0 {
		return nil, fmt.Errorf("parse config %s: pool.max_threads must not be negative", path)
	}
	return cfg, nil
}

// options turns the pool section into constructor options. An explicit
// --threads flag wins over the file.
func (pc poolConfig) options(c *cli.Context, defaultID string) []threadpool.Option {
	id := pc.ID
	if id == "" {
		id = defaultID
	}
	threads := pc.MaxThreads
	if threads == 0 || c.IsSet("threads") {
		threads = c.Int("threads")
	}

	opts := []threadpool.Option{
		threadpool.WithID(id),
		threadpool.WithMaxThreads(threads),
		threadpool.WithLockOSThread(pc.LockOSThread),
		threadpool.WithCPUAffinity(pc.CPUAffinity),
	}
	if pc.RetireTimeout > 0 {
		opts = append(opts, threadpool.WithRetireTimeout(pc.RetireTimeout))
	}
	return opts
}
