package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lexiroute/lexiroute/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
port: 9100
request-log: true
logging:
  level: debug
endpoints:
  - id: openai-main
    name: OpenAI Main
    base-url: https://api.openai.com/v1
    api-key: ${TEST_OPENAI_KEY}
    model: gpt-4o-mini
    enabled: true
    weight: 70
    max-concurrency: 4
  - id: backup
    base-url: https://backup.example/v1
    enabled: true
    weight: 130
    max-concurrency: 2
    timeout-seconds: 30
  - id: dormant
    base-url: https://dormant.example/v1
    enabled: false
    weight: 50
    max-concurrency: 4
`

func TestParseConfig(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-secret")

	cfg, err := ParseConfig([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.True(t, cfg.RequestLog)
	assert.Equal(t, "debug", cfg.Logging.Level)
	require.Len(t, cfg.Endpoints, 3)

	main := cfg.Endpoints[0]
	assert.Equal(t, "openai-main", main.ID)
	assert.Equal(t, "OpenAI Main", main.DisplayName())
	assert.Equal(t, "sk-secret", main.APIKey, "${VAR} references expand from the environment")
	assert.Equal(t, 60, main.Timeout(), "timeout defaults to 60 seconds")

	backup := cfg.Endpoints[1]
	assert.Equal(t, 100, backup.Weight, "weights clamp into [0,100]")
	assert.Equal(t, 30, backup.Timeout())
	assert.Equal(t, "backup", backup.DisplayName(), "display name falls back to id")
}

func TestParseConfigDefaultPort(t *testing.T) {
	cfg, err := ParseConfig([]byte("endpoints: []"))
	require.NoError(t, err)
	assert.Equal(t, 8318, cfg.Port)
}

func TestParseConfigRejectsDuplicateIDs(t *testing.T) {
	_, err := ParseConfig([]byte(`
endpoints:
  - id: a
    base-url: https://a.example
    enabled: true
    max-concurrency: 1
  - id: a
    base-url: https://b.example
    enabled: true
    max-concurrency: 1
`))
	require.Error(t, err)
	var cfgErr *apperr.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestParseConfigRejectsMissingID(t *testing.T) {
	_, err := ParseConfig([]byte(`
endpoints:
  - base-url: https://a.example
    enabled: true
`))
	require.Error(t, err)
}

func TestParseConfigRejectsEnabledWithoutBaseURL(t *testing.T) {
	_, err := ParseConfig([]byte(`
endpoints:
  - id: a
    enabled: true
    max-concurrency: 1
`))
	require.Error(t, err)
}

func TestParseConfigRejectsMalformedYAML(t *testing.T) {
	_, err := ParseConfig([]byte("endpoints: [what"))
	require.Error(t, err)
	var cfgErr *apperr.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestEnabledEndpoints(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
endpoints:
  - id: live
    base-url: https://a.example
    enabled: true
    max-concurrency: 2
  - id: off
    base-url: https://b.example
    enabled: false
    max-concurrency: 2
  - id: zero-cap
    base-url: https://c.example
    enabled: true
    max-concurrency: 0
`))
	require.NoError(t, err)

	enabled := cfg.EnabledEndpoints()
	require.Len(t, enabled, 1, "disabled and zero-cap endpoints are excluded")
	assert.Equal(t, "live", enabled[0].ID)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Port)

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}
