package headless

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds engine-wide settings. Per-task policies live on task.Config.
type Config struct {
	// Concurrency is the maximum number of task runs executing at once.
	Concurrency int `yaml:"concurrency" json:"concurrency"`

	// ShutdownTimeout is the maximum time Stop waits for active runs
	// before cancelling them.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// MaxPayloadDepth bounds payload nesting accepted at submission.
	// Values outside 1..payload.MaxDepth are clamped to payload.MaxDepth.
	MaxPayloadDepth int `yaml:"max_payload_depth" json:"max_payload_depth"`

	// DLQEnabled sends runs that exhaust their retries to the dead
	// letter queue.
	DLQEnabled bool `yaml:"dlq_enabled" json:"dlq_enabled"`

	// RetainRuns keeps finished run records in the store. When false they
	// are deleted once the final attempt completes.
	RetainRuns bool `yaml:"retain_runs" json:"retain_runs"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:     10,
		ShutdownTimeout: 30 * time.Second,
		MaxPayloadDepth: 64,
		DLQEnabled:      true,
		RetainRuns:      true,
	}
}

// LoadConfig reads a YAML file over DefaultConfig. Keys absent from the
// file keep their default values.
//
//	concurrency: 4
//	shutdown_timeout: 10s
//	dlq_enabled: false
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("headless: read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML bytes over DefaultConfig.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("headless: parse config: %w", err)
	}
	return cfg, nil
}
