package configs_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silbaram/elasticsearch-mcp-server/configs"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "esmcp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FileThenEnvOverride(t *testing.T) {
	assert := assert.New(t)
	path := writeConfig(t, `
elasticsearch:
  version: "7.17.22"
  hosts: ["http://es-a:9200", "http://es-b:9200"]
  auth:
    username: elastic
    password: changeme
  request_timeout: 15s
  startup_probe_timeout: 3s
  max_retries: 5
`)
	t.Setenv("ESMCP_CONFIG_FILE", path)
	t.Setenv("ESMCP_ELASTICSEARCH_HOSTS", "http://override:9200")
	t.Setenv("ESMCP_LOG_LEVEL", "debug")

	cfg, err := configs.Load()
	require.NoError(t, err)

	es := cfg.Elasticsearch
	assert.Equal("7.17.22", es.Version, "file value kept when env is unset")
	assert.Equal([]string{"http://override:9200"}, es.Hosts, "env overrides file")
	assert.Equal("elastic", es.Username)
	assert.Equal(15*time.Second, es.RequestTimeout)
	assert.Equal(3*time.Second, es.StartupProbeTimeout)
	assert.Equal(5, es.MaxRetries)
	assert.Equal(slog.LevelDebug, cfg.ParsedLogLevel())

	user, pass, ok := es.BasicAuth()
	assert.True(ok)
	assert.Equal("elastic", user)
	assert.Equal("changeme", pass)
}

func TestLoad_MissingDefaultFileUsesDefaults(t *testing.T) {
	assert := assert.New(t)
	t.Chdir(t.TempDir())

	cfg, err := configs.Load()
	require.NoError(t, err)

	es := cfg.Elasticsearch
	assert.Empty(es.Version, "resolver falls back to the compiled-in default")
	assert.Equal([]string{"http://localhost:9200"}, es.Hosts)
	assert.Equal(30*time.Second, es.RequestTimeout)
	assert.Equal(10*time.Second, es.StartupProbeTimeout)
	assert.Equal(3, es.MaxRetries)
	assert.Equal("stdio", cfg.Transport)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T)
	}{
		{
			name: "explicit file missing",
			setup: func(t *testing.T) {
				t.Setenv("ESMCP_CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
			},
		},
		{
			name: "malformed yaml",
			setup: func(t *testing.T) {
				t.Setenv("ESMCP_CONFIG_FILE", writeConfig(t, "elasticsearch: [unclosed"))
			},
		},
		{
			name: "host without scheme",
			setup: func(t *testing.T) {
				t.Setenv("ESMCP_CONFIG_FILE", writeConfig(t, "elasticsearch:\n  hosts: [\"es:9200\"]\n"))
			},
		},
		{
			name: "bad duration in env",
			setup: func(t *testing.T) {
				t.Setenv("ESMCP_CONFIG_FILE", writeConfig(t, "{}"))
				t.Setenv("ESMCP_ELASTICSEARCH_REQUEST_TIMEOUT", "soon")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup(t)
			_, err := configs.Load()
			assert.Error(t, err)
		})
	}
}

func TestElasticsearchConfig_BasicAuth(t *testing.T) {
	tests := []struct {
		name     string
		user     string
		pass     string
		wantAuth bool
	}{
		{name: "both set", user: "elastic", pass: "secret", wantAuth: true},
		{name: "empty sentinel user", user: "EMPTY", pass: "secret"},
		{name: "empty sentinel password", user: "elastic", pass: "EMPTY"},
		{name: "blank", user: "", pass: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := configs.ElasticsearchConfig{AuthConfig: configs.AuthConfig{Username: tt.user, Password: tt.pass}}
			_, _, ok := cfg.BasicAuth()
			assert.Equal(t, tt.wantAuth, ok)
		})
	}
}
