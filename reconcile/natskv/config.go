package natskv

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/nucleate/types"
)

// Config configures a NATS KV reconciler.
type Config struct {
	// Bucket holds round payloads. Default "nucleate-rounds".
	Bucket string `yaml:"bucket"`

	// LivenessBucket holds rank leases and heartbeats. Default "nucleate-liveness".
	LivenessBucket string `yaml:"livenessBucket"`

	// Prefix namespaces one simulation run's keys. Default "run".
	Prefix string `yaml:"prefix"`

	// Partitions is the number of ranks taking part in every collective call.
	Partitions int `yaml:"partitions"`

	// Rank pins this partition's rank. Negative claims the lowest free rank.
	Rank int `yaml:"rank"`

	// RoundTimeout bounds one collective call. Default 30s.
	RoundTimeout time.Duration `yaml:"roundTimeout"`

	// HeartbeatInterval is the beat period; liveness entries expire after
	// three intervals. Default 1s.
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval"`

	// RoundTTL bounds how long round payloads stay in the bucket. Default 1h.
	RoundTTL time.Duration `yaml:"roundTTL"`

	// Storage selects file or memory storage for both buckets.
	Storage jetstream.StorageType `yaml:"-"`
}

// DefaultConfig returns a configuration for partitions claiming their rank.
func DefaultConfig(partitions int) Config {
	cfg := Config{Partitions: partitions, Rank: -1}
	SetDefaults(&cfg)

	return cfg
}

// SetDefaults fills zero-valued fields.
func SetDefaults(cfg *Config) {
	if cfg.Bucket == "" {
		cfg.Bucket = "nucleate-rounds"
	}
	if cfg.LivenessBucket == "" {
		cfg.LivenessBucket = "nucleate-liveness"
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "run"
	}
	if cfg.RoundTimeout <= 0 {
		cfg.RoundTimeout = 30 * time.Second
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = time.Second
	}
	if cfg.RoundTTL <= 0 {
		cfg.RoundTTL = time.Hour
	}
}

// Validate checks a defaulted configuration.
func (c *Config) Validate() error {
	if c.Partitions < 1 {
		return fmt.Errorf("%w: partitions must be at least 1, got %d", types.ErrInvalidConfig, c.Partitions)
	}
	if c.Rank >= c.Partitions {
		return fmt.Errorf("%w: rank %d outside %d partitions", types.ErrInvalidRank, c.Rank, c.Partitions)
	}
	if c.RoundTimeout < c.HeartbeatInterval {
		return fmt.Errorf("%w: roundTimeout (%v) shorter than heartbeatInterval (%v)",
			types.ErrInvalidConfig, c.RoundTimeout, c.HeartbeatInterval)
	}

	return nil
}

func (c *Config) livenessTTL() time.Duration {
	return 3 * c.HeartbeatInterval
}
