package sidetable

import (
	"log/slog"
	"math/bits"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	defaultShards      = 16
	maxShards          = 1 << 16
	defaultBacklogSize = 64
)

// Config controls a Table. The zero value is usable; New normalizes it with
// Build.
type Config struct {
	// Shards is the number of independently locked partitions. It is rounded
	// up to a power of two. One shard gives a single table-wide lock.
	Shards int

	// ManualSweep disables the sweep that otherwise runs before every
	// Contains, Get and Set. Callers then invoke Sweep or Compact themselves.
	ManualSweep bool

	// SweepBatch bounds how many reclaim notices one sweep processes.
	// Zero processes all pending notices.
	SweepBatch int

	// BacklogSize is the initial capacity of the reclaim backlog.
	BacklogSize int

	// Logger receives debug and warning events. Defaults to slog.Default().
	Logger *slog.Logger
}

// NewConfig returns the default configuration.
func NewConfig() Config {
	return Config{
		Shards:      defaultShards,
		BacklogSize: defaultBacklogSize,
	}
}

// Build validates and normalizes the configuration.
func (c Config) Build() Config {
	if c.Shards < 1 {
		c.Shards = defaultShards
	}
	if c.Shards > maxShards {
		c.Shards = maxShards
	}
	if c.Shards&(c.Shards-1) != 0 {
		c.Shards = 1 << bits.Len(uint(c.Shards))
	}
	if c.SweepBatch < 0 {
		c.SweepBatch = 0
	}
	if c.BacklogSize <= 0 {
		c.BacklogSize = defaultBacklogSize
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// ConfigFromViper reads a Config from v. Recognized keys are shards,
// manual_sweep, sweep_batch, backlog_size and log_level (debug, info, warn,
// error). When log_level is set, the logger writes text to stderr at that
// level; otherwise slog.Default() is used.
func ConfigFromViper(v *viper.Viper) Config {
	v.SetDefault("shards", defaultShards)
	v.SetDefault("manual_sweep", false)
	v.SetDefault("sweep_batch", 0)
	v.SetDefault("backlog_size", defaultBacklogSize)

	cfg := Config{
		Shards:      v.GetInt("shards"),
		ManualSweep: v.GetBool("manual_sweep"),
		SweepBatch:  v.GetInt("sweep_batch"),
		BacklogSize: v.GetInt("backlog_size"),
	}
	if lvl := v.GetString("log_level"); lvl != "" {
		level := new(slog.LevelVar)
		switch strings.ToUpper(lvl) {
		case "DEBUG":
			level.Set(slog.LevelDebug)
		case "WARN":
			level.Set(slog.LevelWarn)
		case "ERROR":
			level.Set(slog.LevelError)
		default:
			level.Set(slog.LevelInfo)
		}
		cfg.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}
	return cfg.Build()
}
