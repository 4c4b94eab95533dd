package configs

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// DefaultEngineVersion is the engine release targeted when elasticsearch.version is unset.
// Override at build time with -ldflags "-X github.com/silbaram/elasticsearch-mcp-server/configs.DefaultEngineVersion=7.17.0".
var DefaultEngineVersion = "8.18.1"

const (
	envPrefix           = "esmcp"
	defaultConfigFile   = "configs/esmcp.yaml"
	defaultHost         = "http://localhost:9200"
	defaultMaxRetries   = 3
	defaultReqTimeout   = 30 * time.Second
	defaultProbeTimeout = 10 * time.Second

	// noCredential is the sentinel some deployments use to mean "no basic auth".
	noCredential = "EMPTY"
)

// AuthConfig holds credentials for the engine. At most one scheme is used:
// API key wins over basic auth.
type AuthConfig struct {
	Username string `yaml:"username" envconfig:"USERNAME"`
	Password string `yaml:"password" envconfig:"PASSWORD"`
	APIKey   string `yaml:"api_key" envconfig:"API_KEY"`
	CloudID  string `yaml:"cloud_id" envconfig:"CLOUD_ID"`
}

// ElasticsearchConfig is the typed option group handed to the version resolver.
type ElasticsearchConfig struct {
	Version             string        `yaml:"version" envconfig:"VERSION"`
	Hosts               []string      `yaml:"hosts" envconfig:"HOSTS"`
	AuthConfig          `yaml:"auth"`
	RequestTimeout      time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
	StartupProbeTimeout time.Duration `yaml:"startup_probe_timeout" envconfig:"STARTUP_PROBE_TIMEOUT"`
	MaxRetries          int           `yaml:"max_retries" envconfig:"MAX_RETRIES"`
	InsecureSkipVerify  bool          `yaml:"insecure_skip_verify" envconfig:"INSECURE_SKIP_VERIFY"`
}

// BasicAuth returns the username and password to send, if any.
// Blank values and the literal "EMPTY" mean no basic auth.
func (c ElasticsearchConfig) BasicAuth() (username, password string, ok bool) {
	u, p := strings.TrimSpace(c.Username), strings.TrimSpace(c.Password)
	if u == "" || p == "" || u == noCredential || p == noCredential {
		return "", "", false
	}
	return u, p, true
}

// WithDefaults fills unset fields. A negative MaxRetries disables retries.
func (c ElasticsearchConfig) WithDefaults() ElasticsearchConfig {
	if len(c.Hosts) == 0 && c.CloudID == "" {
		c.Hosts = []string{defaultHost}
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultReqTimeout
	}
	if c.StartupProbeTimeout <= 0 {
		c.StartupProbeTimeout = defaultProbeTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = defaultMaxRetries
	}
	return c
}

// Validate reports configuration that can never produce a working adapter.
func (c ElasticsearchConfig) Validate() error {
	for _, h := range c.Hosts {
		if !strings.HasPrefix(h, "http://") && !strings.HasPrefix(h, "https://") {
			return fmt.Errorf("elasticsearch host %q must start with http:// or https://", h)
		}
	}
	if len(c.Hosts) == 0 && c.CloudID == "" {
		return errors.New("either elasticsearch.hosts or elasticsearch.auth.cloud_id is required")
	}
	return nil
}

// FileConfig defines the structure loaded from the YAML configuration file.
type FileConfig struct {
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
}

// Config holds the final application configuration, merged from file and environment variables.
// Fields are loaded from environment variables with the prefix "ESMCP_", overriding file settings.
type Config struct {
	ConfigFilePath string `envconfig:"CONFIG_FILE" default:"configs/esmcp.yaml"`

	Elasticsearch ElasticsearchConfig `envconfig:"ELASTICSEARCH"`

	Transport                string        `envconfig:"TRANSPORT" default:"stdio"`
	ListenAddr               string        `envconfig:"LISTEN_ADDR" default:":8080"`
	BaseURL                  string        `envconfig:"BASE_URL"`
	AdminAddr                string        `envconfig:"ADMIN_ADDR" default:":9090"`
	LogFile                  string        `envconfig:"LOG_FILE" default:"esmcp.log"`
	ShutdownTimeout          time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`
	ServerReadTimeout        time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"5s"`
	ServerWriteTimeout       time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"10s"`
	ServerIdleTimeout        time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"120s"`
	OtelExporterOtlpEndpoint string        `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OtelExporterOtlpInsecure bool          `envconfig:"OTEL_EXPORTER_OTLP_INSECURE" default:"true"`
	LogLevel                 string        `envconfig:"LOG_LEVEL" default:"info"`
}

// ParsedLogLevel returns the slog.Level based on the configured LogLevel string.
func (c *Config) ParsedLogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "info":
		fallthrough
	default:
		return slog.LevelInfo
	}
}

// Load loads configuration first from environment variables (to get the file path),
// then from the YAML file, and finally lets environment variables override file values.
// A missing file at the default path is not an error.
func Load() (*Config, error) {
	var initialCfg Config
	if err := envconfig.Process(envPrefix, &initialCfg); err != nil {
		return nil, fmt.Errorf("failed to process initial environment variables: %w", err)
	}

	fileCfg := FileConfig{}
	if initialCfg.ConfigFilePath != "" {
		yamlFile, err := os.ReadFile(initialCfg.ConfigFilePath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(yamlFile, &fileCfg); err != nil {
				return nil, fmt.Errorf("failed to unmarshal config file '%s': %w", initialCfg.ConfigFilePath, err)
			}
			slog.Debug("Loaded configuration from file.", "path", initialCfg.ConfigFilePath)
		case errors.Is(err, fs.ErrNotExist) && initialCfg.ConfigFilePath == defaultConfigFile:
			slog.Debug("Default config file not found, using env vars only.", "path", initialCfg.ConfigFilePath)
		default:
			return nil, fmt.Errorf("failed to read config file '%s': %w", initialCfg.ConfigFilePath, err)
		}
	}

	// File values first, then env again so env wins. The elasticsearch group
	// carries no default tags, otherwise the second pass would reset file values.
	finalCfg := initialCfg
	finalCfg.Elasticsearch = fileCfg.Elasticsearch
	if err := envconfig.Process(envPrefix, &finalCfg); err != nil {
		return nil, fmt.Errorf("failed to process overriding environment variables: %w", err)
	}

	finalCfg.Elasticsearch = finalCfg.Elasticsearch.WithDefaults()
	if err := finalCfg.Elasticsearch.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &finalCfg, nil
}
