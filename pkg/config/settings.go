package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root engine settings structure.
type Config struct {
	// Rules configures where rule sets come from and how updates are
	// observed.
	Rules RulesConfig `yaml:"rules"`

	// Audit configures the asynchronous audit recorder.
	Audit AuditConfig `yaml:"audit"`

	// Metrics configures Prometheus metric registration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// RulesConfig configures the rule set source.
type RulesConfig struct {
	// Path is the rule set file (YAML or JSON). Empty means the engine
	// is fed programmatically and no file source is created.
	Path string `yaml:"path"`

	// Watch enables hot reloading of the rule set file.
	// Default: true
	Watch *bool `yaml:"watch"`

	// DebounceInterval is the quiet period required after the last file
	// event before a reload fires.
	// Default: 100ms
	DebounceInterval time.Duration `yaml:"debounce_interval"`
}

// AuditConfig configures the audit recorder.
type AuditConfig struct {
	// BufferSize is the recorder queue depth. Records arriving while
	// the queue is full are dropped and counted.
	// Default: 1024
	BufferSize int `yaml:"buffer_size"`
}

// MetricsConfig configures metric registration.
type MetricsConfig struct {
	// Namespace prefixes every metric name.
	// Default: "palisade"
	Namespace string `yaml:"namespace"`
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills in defaults for unset fields.
func ApplyDefaults(cfg *Config) {
	if cfg.Rules.Watch == nil {
		watch := true
		cfg.Rules.Watch = &watch
	}
	if cfg.Rules.DebounceInterval == 0 {
		cfg.Rules.DebounceInterval = 100 * time.Millisecond
	}
	if cfg.Audit.BufferSize == 0 {
		cfg.Audit.BufferSize = 1024
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "palisade"
	}
}

// FieldError is a validation error for one configuration field.
type FieldError struct {
	// Field is the dotted path to the field (e.g., "audit.buffer_size").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every validation failure in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// Validate checks the configuration, returning a ValidationError listing
// every failed rule, or nil when the configuration is valid.
func Validate(cfg *Config) error {
	var errs []FieldError

	if cfg.Rules.DebounceInterval < 0 {
		errs = append(errs, FieldError{
			Field:   "rules.debounce_interval",
			Message: "must not be negative",
		})
	}
	if cfg.Audit.BufferSize < 0 {
		errs = append(errs, FieldError{
			Field:   "audit.buffer_size",
			Message: "must not be negative",
		})
	}
	if cfg.Metrics.Namespace != "" && !validMetricNamespace(cfg.Metrics.Namespace) {
		errs = append(errs, FieldError{
			Field:   "metrics.namespace",
			Message: fmt.Sprintf("%q is not a valid metric namespace", cfg.Metrics.Namespace),
		})
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

// validMetricNamespace accepts the Prometheus label charset.
func validMetricNamespace(ns string) bool {
	for i, r := range ns {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// LoadConfig reads settings from a YAML file, applies defaults and
// validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
