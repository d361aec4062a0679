package configs

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// FileConfig defines the structure loaded from the YAML configuration file.
// Only non-secret settings belong here; credentials come from the
// environment.
type FileConfig struct {
	ListenAddr      string `yaml:"listen_addr,omitempty"`
	AdminAddr       string `yaml:"admin_addr,omitempty"`
	MCPServerURL    string `yaml:"mcp_server_url,omitempty"`
	ScopeDocURL     string `yaml:"scope_doc_url,omitempty"`
	GeminiModel     string `yaml:"gemini_model,omitempty"`
	ReplyEndpoint   string `yaml:"reply_endpoint,omitempty"`
	QuestionWorkers int    `yaml:"question_workers,omitempty"`
	QueueSize       int    `yaml:"queue_size,omitempty"`
}

// Config holds the final application configuration, merged from file and
// environment variables. Fields are loaded from environment variables with
// the prefix "ASKDOC_", overriding file settings.
type Config struct {
	// Config file path (loaded first from env).
	ConfigFilePath string `envconfig:"CONFIG_FILE" default:"configs/askdoc.yaml"`

	// Servers.
	ListenAddr string `envconfig:"LISTEN_ADDR" default:":8080"`
	AdminAddr  string `envconfig:"ADMIN_ADDR" default:":8081"`

	// Upstreams.
	MCPServerURL  string `envconfig:"MCP_SERVER_URL"`
	ScopeDocURL   string `envconfig:"SCOPE_DOC_URL"`
	ReplyEndpoint string `envconfig:"REPLY_ENDPOINT"`

	// Model.
	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`
	GeminiModel  string `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`

	// Chat platform credentials.
	ChannelSecret      string `envconfig:"CHANNEL_SECRET"`
	ChannelAccessToken string `envconfig:"CHANNEL_ACCESS_TOKEN"`

	// Dispatch.
	QuestionWorkers int `envconfig:"QUESTION_WORKERS" default:"1"`
	QueueSize       int `envconfig:"QUEUE_SIZE" default:"64"`

	// Timeouts.
	HTTPClientTimeout time.Duration `envconfig:"HTTP_CLIENT_TIMEOUT" default:"30s"`
	ShutdownTimeout   time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`

	// Observability.
	OtelExporterOtlpEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OtelExporterOtlpInsecure bool   `envconfig:"OTEL_EXPORTER_OTLP_INSECURE" default:"true"`
	LogLevel                 string `envconfig:"LOG_LEVEL" default:"info"`
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

// Validate reports settings without which the service cannot answer anything.
func (c *Config) Validate() error {
	var missing []string
	if c.MCPServerURL == "" {
		missing = append(missing, "ASKDOC_MCP_SERVER_URL")
	}
	if c.ReplyEndpoint == "" {
		missing = append(missing, "ASKDOC_REPLY_ENDPOINT")
	}
	if c.ChannelSecret == "" {
		missing = append(missing, "ASKDOC_CHANNEL_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Load loads configuration from environment variables (which also supplies
// the file path and the defaults), then fills in values from the YAML file.
// Precedence is env > file > default: a file value is applied only when the
// corresponding environment variable is not explicitly set.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("askdoc", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	fileCfg := FileConfig{}
	if cfg.ConfigFilePath != "" {
		yamlFile, err := os.ReadFile(cfg.ConfigFilePath)
		switch {
		case os.IsNotExist(err):
			// The default path is optional; a missing file just means
			// env-only configuration.
			slog.Info("No config file found, using defaults/env vars only.",
				slog.String("path", cfg.ConfigFilePath))
		case err != nil:
			return nil, fmt.Errorf("failed to read config file '%s': %w", cfg.ConfigFilePath, err)
		default:
			if err := yaml.Unmarshal(yamlFile, &fileCfg); err != nil {
				return nil, fmt.Errorf("failed to unmarshal config file '%s': %w", cfg.ConfigFilePath, err)
			}
			slog.Info("Loaded configuration from file.", slog.String("path", cfg.ConfigFilePath))
		}
	}

	applyFileConfig(&cfg, fileCfg)
	return &cfg, nil
}

func applyFileConfig(cfg *Config, file FileConfig) {
	if file.ListenAddr != "" && !envSet("ASKDOC_LISTEN_ADDR") {
		cfg.ListenAddr = file.ListenAddr
	}
	if file.AdminAddr != "" && !envSet("ASKDOC_ADMIN_ADDR") {
		cfg.AdminAddr = file.AdminAddr
	}
	if file.MCPServerURL != "" && !envSet("ASKDOC_MCP_SERVER_URL") {
		cfg.MCPServerURL = file.MCPServerURL
	}
	if file.ScopeDocURL != "" && !envSet("ASKDOC_SCOPE_DOC_URL") {
		cfg.ScopeDocURL = file.ScopeDocURL
	}
	if file.GeminiModel != "" && !envSet("ASKDOC_GEMINI_MODEL") {
		cfg.GeminiModel = file.GeminiModel
	}
	if file.ReplyEndpoint != "" && !envSet("ASKDOC_REPLY_ENDPOINT") {
		cfg.ReplyEndpoint = file.ReplyEndpoint
	}
	if file.QuestionWorkers > 0 && !envSet("ASKDOC_QUESTION_WORKERS") {
		cfg.QuestionWorkers = file.QuestionWorkers
	}
	if file.QueueSize > 0 && !envSet("ASKDOC_QUEUE_SIZE") {
		cfg.QueueSize = file.QueueSize
	}
}

func envSet(key string) bool {
	_, ok := os.LookupEnv(key)
	return ok
}
