// Package config loads the static node configuration. It is read once at
// startup and handed to the node as an immutable value; there is no mid-life
// reconfiguration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Node is the per-relay configuration file.
type Node struct {
	Listen    string   `yaml:"listen" validate:"required,hostname_port"`
	Neighbors []string `yaml:"neighbors" validate:"required,min=1,dive,hostname_port"`

	// Durations are configured in seconds to match radio-planning sheets.
	TransmissionDelayS float64 `yaml:"transmission_delay_s" validate:"gte=0"`
	RetryBackoffS      float64 `yaml:"retry_backoff_s" validate:"gte=0"`
	TimeoutS           float64 `yaml:"timeout_s" validate:"gt=0"`

	MaxRetries int `yaml:"max_retries" validate:"gte=1"`
	Workers    int `yaml:"workers" validate:"gte=1"`

	LogLevel      string `yaml:"log_level"`
	MetricsListen string `yaml:"metrics_listen"`
}

// Default returns the configuration used when a field is absent from the
// file. The budgets mirror the field-deployment defaults: 1s simulated
// transmission delay, 3 attempts per neighbor, 3s per-attempt timeout.
func Default() Node {
	return Node{
		Listen:             "0.0.0.0:5001",
		TransmissionDelayS: 1,
		RetryBackoffS:      0.5,
		TimeoutS:           3,
		MaxRetries:         3,
		Workers:            1,
		LogLevel:           "info",
	}
}

// Load reads and validates the YAML file at path, applying defaults for
// omitted fields.
func Load(path string) (Node, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the struct tags against the loaded values.
func (n Node) Validate() error {
	if err := validator.New().Struct(n); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// TransmissionDelay returns the simulated per-message delay.
func (n Node) TransmissionDelay() time.Duration {
	return time.Duration(n.TransmissionDelayS * float64(time.Second))
}

// RetryBackoff returns the pause between attempts on one neighbor.
func (n Node) RetryBackoff() time.Duration {
	return time.Duration(n.RetryBackoffS * float64(time.Second))
}

// Timeout returns the per-attempt connect/write/ack deadline.
func (n Node) Timeout() time.Duration {
	return time.Duration(n.TimeoutS * float64(time.Second))
}
