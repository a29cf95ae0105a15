package main

import (
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// envPrefix is the prefix for environment overrides, e.g.
// OCBRIDGE_EXPORTER=otlp.
const envPrefix = "ocbridge"

type Config struct {
	ServiceName string `yaml:"service_name" envconfig:"SERVICE_NAME"`

	// Exporter is "stdout" or "otlp".
	Exporter string `yaml:"exporter" envconfig:"EXPORTER"`
	// Endpoint is the OTLP/gRPC collector address.
	Endpoint string `yaml:"endpoint" envconfig:"ENDPOINT"`

	LogLevel string `yaml:"log_level" envconfig:"LOG_LEVEL"`

	PlaceholderCapacity int           `yaml:"placeholder_capacity" envconfig:"PLACEHOLDER_CAPACITY"`
	PlaceholderTTL      time.Duration `yaml:"placeholder_ttl" envconfig:"PLACEHOLDER_TTL"`

	// Requests is how many sample requests the workload runs.
	Requests int `yaml:"requests" envconfig:"REQUESTS"`
}

func defaultConfig() Config {
	return Config{
		ServiceName:         "ocbridge-demo",
		Exporter:            "stdout",
		Endpoint:            "localhost:4317",
		LogLevel:            "info",
		PlaceholderCapacity: 10000,
		PlaceholderTTL:      10 * time.Minute,
		Requests:            3,
	}
}

// loadConfig starts from the defaults, applies the YAML file at path if
// path is not empty, and then applies environment overrides.
func loadConfig(path string) (Config, error) {
	config := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return config, errors.Wrap(err, "read config file")
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return config, errors.Wrapf(err, "parse config file %s", path)
		}
	}
	if err := envconfig.Process(envPrefix, &config); err != nil {
		return config, errors.Wrap(err, "environment overrides")
	}
	if err := config.validate(); err != nil {
		return config, err
	}
	return config, nil
}

func (c Config) validate() error {
	switch c.Exporter {
	case "stdout", "otlp":
	default:
		return errors.Errorf("unknown exporter %q, want stdout or otlp", c.Exporter)
	}
	if c.Exporter == "otlp" && c.Endpoint == "" {
		return errors.New("otlp exporter needs an endpoint")
	}
	if c.ServiceName == "" {
		return errors.New("service name is required")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "log level")
	}
	return nil
}

func (c Config) logger() zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().
		Timestamp().
		Str("service", c.ServiceName).
		Logger()
}
