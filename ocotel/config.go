package ocotel

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/zoobzio/clockz"
)

const (
	DefaultInstrumentationName = "github.com/xoplog/ocbridge"
	DefaultPlaceholderCapacity = 10000
	DefaultPlaceholderTTL      = 10 * time.Minute
)

type Config struct {
	// InstrumentationName names the OTEL tracer that mirrored spans are
	// created with.
	InstrumentationName string

	// PlaceholderCapacity and PlaceholderTTL bound the cache of legacy
	// views of spans that were created through OTEL directly. Entries
	// expire after PlaceholderTTL without access.
	PlaceholderCapacity int
	PlaceholderTTL      time.Duration

	// Clock is used by the legacy Tracer that New builds.
	Clock clockz.Clock

	Logger zerolog.Logger
}

type ConfigModifier func(*Config)

func DefaultConfig() Config {
	return Config{
		InstrumentationName: DefaultInstrumentationName,
		PlaceholderCapacity: DefaultPlaceholderCapacity,
		PlaceholderTTL:      DefaultPlaceholderTTL,
		Clock:               clockz.RealClock,
		Logger:              zerolog.Nop(),
	}
}

func WithConfig(config Config) ConfigModifier {
	return func(c *Config) {
		*c = config
	}
}

func WithConfigChanges(mods ...ConfigModifier) ConfigModifier {
	return func(c *Config) {
		for _, mod := range mods {
			mod(c)
		}
	}
}

func WithLogger(log zerolog.Logger) ConfigModifier {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithClock(clock clockz.Clock) ConfigModifier {
	return func(c *Config) {
		c.Clock = clock
	}
}

func WithInstrumentationName(name string) ConfigModifier {
	return func(c *Config) {
		c.InstrumentationName = name
	}
}

func WithPlaceholderLimits(capacity int, ttl time.Duration) ConfigModifier {
	return func(c *Config) {
		c.PlaceholderCapacity = capacity
		c.PlaceholderTTL = ttl
	}
}

func (c Config) Validate() error {
	if c.PlaceholderCapacity <= 0 {
		return errors.Errorf("placeholder capacity must be positive, got %d", c.PlaceholderCapacity)
	}
	if c.PlaceholderTTL <= 0 {
		return errors.Errorf("placeholder ttl must be positive, got %s", c.PlaceholderTTL)
	}
	if c.Clock == nil {
		return errors.New("clock is required")
	}
	return nil
}
