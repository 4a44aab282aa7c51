// Package config provides configuration management for the lexiroute server.
// It handles loading and parsing the YAML configuration file and provides
// structured access to server settings and the ordered endpoint list.
package config

import (
	"os"
	"strings"

	"github.com/lexiroute/lexiroute/internal/apperr"
	"gopkg.in/yaml.v3"
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Port is the TCP port the HTTP API listens on.
	Port int `yaml:"port" json:"port"`

	// RequestLog enables persisting one record per settled dispatch to the
	// usage store.
	RequestLog bool `yaml:"request-log" json:"request-log"`

	// UsageDB is the SQLite database path for the usage store. Empty selects
	// the default "lexiroute-usage.db" next to the working directory.
	UsageDB string `yaml:"usage-db,omitempty" json:"usage-db,omitempty"`

	// Logging configures log level and optional file rotation.
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Endpoints is the ordered list of translation endpoints. Order matters
	// only for display; routing is driven by weights and live stats.
	Endpoints []Endpoint `yaml:"endpoints" json:"endpoints"`
}

// LoggingConfig holds log output configuration.
type LoggingConfig struct {
	// Level is a logrus level name ("debug", "info", ...). Empty means info.
	Level string `yaml:"level,omitempty" json:"level,omitempty"`

	// File enables rotated file logging when non-empty.
	File string `yaml:"file,omitempty" json:"file,omitempty"`

	// MaxSizeMB is the rotation threshold for the log file. <=0 means 10.
	MaxSizeMB int `yaml:"max-size-mb,omitempty" json:"max-size-mb,omitempty"`

	// MaxBackups is how many rotated files to retain. <=0 means 3.
	MaxBackups int `yaml:"max-backups,omitempty" json:"max-backups,omitempty"`
}

// Endpoint describes one remote translation provider. The pool treats this
// as a read-only view; runtime state lives alongside it, never inside it.
type Endpoint struct {
	// ID uniquely identifies the endpoint and is the deterministic tie-break
	// in selection. Required.
	ID string `yaml:"id" json:"id"`

	// Name is the display name shown in telemetry. Defaults to ID.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// BaseURL is the provider's OpenAI-compatible API base, e.g.
	// "https://api.example.com/v1". Required for the built-in client.
	BaseURL string `yaml:"base-url" json:"base-url"`

	// APIKey authenticates against the provider. ${VAR} references are
	// expanded from the environment at load time.
	APIKey string `yaml:"api-key,omitempty" json:"-"`

	// Model is the model identifier sent with each request.
	Model string `yaml:"model,omitempty" json:"model,omitempty"`

	// Enabled gates whether the pool admits traffic to this endpoint.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Weight is the manual routing weight in [0,100]. Values outside the
	// range are clamped at load time.
	Weight int `yaml:"weight" json:"weight"`

	// MaxConcurrency caps parallel in-flight requests. An enabled endpoint
	// with a cap below 1 is treated as disabled.
	MaxConcurrency int `yaml:"max-concurrency" json:"max-concurrency"`

	// TimeoutSeconds is the per-call deadline for this endpoint. <=0 means 60.
	TimeoutSeconds int `yaml:"timeout-seconds,omitempty" json:"timeout-seconds,omitempty"`
}

// Timeout returns the per-call deadline in seconds, applying the default.
func (e *Endpoint) Timeout() int {
	if e.TimeoutSeconds <= 0 {
		return 60
	}
	return e.TimeoutSeconds
}

// DisplayName returns Name, falling back to ID.
func (e *Endpoint) DisplayName() string {
	if e.Name != "" {
		return e.Name
	}
	return e.ID
}

// LoadConfig reads, parses, and validates the YAML configuration file at the
// given path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

// ParseConfig parses and validates raw YAML configuration bytes.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, apperr.NewConfigError("parse config: %v", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	if c.Port == 0 {
		c.Port = 8318
	}
	seen := make(map[string]struct{}, len(c.Endpoints))
	for i := range c.Endpoints {
		ep := &c.Endpoints[i]
		ep.ID = strings.TrimSpace(ep.ID)
		if ep.ID == "" {
			return apperr.NewConfigError("endpoint %d: missing id", i)
		}
		if _, dup := seen[ep.ID]; dup {
			return apperr.NewConfigError("endpoint %q: duplicate id", ep.ID)
		}
		seen[ep.ID] = struct{}{}
		if ep.Enabled && ep.BaseURL == "" {
			return apperr.NewConfigError("endpoint %q: missing base-url", ep.ID)
		}
		if ep.Weight < 0 {
			ep.Weight = 0
		}
		if ep.Weight > 100 {
			ep.Weight = 100
		}
		ep.APIKey = os.Expand(ep.APIKey, func(key string) string {
			return os.Getenv(key)
		})
	}
	return nil
}

// EnabledEndpoints returns the endpoints eligible for routing: enabled with a
// usable concurrency cap.
func (c *Config) EnabledEndpoints() []Endpoint {
	out := make([]Endpoint, 0, len(c.Endpoints))
	for _, ep := range c.Endpoints {
		if ep.Enabled && ep.MaxConcurrency >= 1 {
			out = append(out, ep)
		}
	}
	return out
}
