// Package config provides adapter configuration loaded from environment
// variables, with an optional YAML file layered underneath. Env vars always
// win over file values so deployments can override a checked-in config.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Transport selects how the MCP server talks to its host.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config holds runtime configuration for the adapter.
type Config struct {
	// Slack — direct credential path.
	SlackBotToken string // SLACK_BOT_TOKEN
	SlackTeamID   string // SLACK_TEAM_ID

	// Nango credential broker — used when no direct token is configured.
	NangoBaseURL       string // NANGO_BASE_URL
	NangoSecretKey     string // NANGO_SECRET_KEY
	NangoConnectionID  string // NANGO_CONNECTION_ID
	NangoIntegrationID string // NANGO_INTEGRATION_ID

	// Server
	Transport string // SLACK_MCP_TRANSPORT — "stdio" (default) or "http"
	HTTPAddr  string // SLACK_MCP_HTTP_ADDR — default ":8080", http transport only

	// Audit — empty path disables the invocation audit trail.
	AuditDBPath string // SLACK_MCP_AUDIT_DB

	// Outbound HTTP call ceiling for Slack and Nango requests.
	HTTPTimeout time.Duration // SLACK_MCP_HTTP_TIMEOUT — default 30s
}

const (
	envKeySlackBotToken      = "SLACK_BOT_TOKEN"
	envKeySlackTeamID        = "SLACK_TEAM_ID"
	envKeyNangoBaseURL       = "NANGO_BASE_URL"
	envKeyNangoSecretKey     = "NANGO_SECRET_KEY"
	envKeyNangoConnectionID  = "NANGO_CONNECTION_ID"
	envKeyNangoIntegrationID = "NANGO_INTEGRATION_ID"
	envKeyTransport          = "SLACK_MCP_TRANSPORT"
	envKeyHTTPAddr           = "SLACK_MCP_HTTP_ADDR"
	envKeyAuditDBPath        = "SLACK_MCP_AUDIT_DB"
	envKeyHTTPTimeout        = "SLACK_MCP_HTTP_TIMEOUT"
	envKeyConfigFile         = "SLACK_MCP_CONFIG"
)

const defaultHTTPTimeout = 30 * time.Second

// fileConfig mirrors the optional YAML config file.
type fileConfig struct {
	Slack struct {
		BotToken string `yaml:"bot_token"`
		TeamID   string `yaml:"team_id"`
	} `yaml:"slack"`
	Nango struct {
		BaseURL       string `yaml:"base_url"`
		SecretKey     string `yaml:"secret_key"`
		ConnectionID  string `yaml:"connection_id"`
		IntegrationID string `yaml:"integration_id"`
	} `yaml:"nango"`
	Server struct {
		Transport string `yaml:"transport"`
		HTTPAddr  string `yaml:"http_addr"`
	} `yaml:"server"`
	Audit struct {
		DBPath string `yaml:"db_path"`
	} `yaml:"audit"`
	HTTPTimeout string `yaml:"http_timeout"`
}

// Load reads configuration from the environment, applying defaults and the
// optional YAML file named by SLACK_MCP_CONFIG for missing values.
func Load() (Config, error) {
	var file fileConfig
	if path := os.Getenv(envKeyConfigFile); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &file); err != nil {
			return Config{}, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}

	cfg := Config{
		SlackBotToken:      envOr(envKeySlackBotToken, file.Slack.BotToken),
		SlackTeamID:        envOr(envKeySlackTeamID, file.Slack.TeamID),
		NangoBaseURL:       envOr(envKeyNangoBaseURL, file.Nango.BaseURL),
		NangoSecretKey:     envOr(envKeyNangoSecretKey, file.Nango.SecretKey),
		NangoConnectionID:  envOr(envKeyNangoConnectionID, file.Nango.ConnectionID),
		NangoIntegrationID: envOr(envKeyNangoIntegrationID, file.Nango.IntegrationID),
		Transport:          envOr(envKeyTransport, firstNonEmpty(file.Server.Transport, TransportStdio)),
		HTTPAddr:           envOr(envKeyHTTPAddr, firstNonEmpty(file.Server.HTTPAddr, ":8080")),
		AuditDBPath:        envOr(envKeyAuditDBPath, file.Audit.DBPath),
		HTTPTimeout:        defaultHTTPTimeout,
	}

	timeoutRaw := envOr(envKeyHTTPTimeout, file.HTTPTimeout)
	if timeoutRaw != "" {
		d, err := parseTimeout(timeoutRaw)
		if err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", envKeyHTTPTimeout, err)
		}
		cfg.HTTPTimeout = d
	}

	return cfg, nil
}

// Validate checks that the configuration names at least one usable credential
// source and a known transport. Called once at start-up; failure is fatal.
func (c Config) Validate() error {
	if !c.HasDirectToken() && !c.HasBroker() {
		return fmt.Errorf("config: no credential source: set %s (and %s), or the %s/%s/%s/%s broker settings",
			envKeySlackBotToken, envKeySlackTeamID,
			envKeyNangoBaseURL, envKeyNangoSecretKey, envKeyNangoConnectionID, envKeyNangoIntegrationID)
	}
	if c.Transport != TransportStdio && c.Transport != TransportHTTP {
		return fmt.Errorf("config: unknown transport %q (want %q or %q)", c.Transport, TransportStdio, TransportHTTP)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("config: http timeout must be positive, got %s", c.HTTPTimeout)
	}
	return nil
}

// HasDirectToken reports whether a bot token is configured directly.
func (c Config) HasDirectToken() bool {
	return c.SlackBotToken != ""
}

// HasBroker reports whether all four Nango settings are present.
func (c Config) HasBroker() bool {
	return c.NangoBaseURL != "" && c.NangoSecretKey != "" &&
		c.NangoConnectionID != "" && c.NangoIntegrationID != ""
}

// parseTimeout accepts either a Go duration ("30s") or a bare number of seconds.
func parseTimeout(raw string) (time.Duration, error) {
	if d, err := time.ParseDuration(raw); err == nil {
		return d, nil
	}
	secs, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	return time.Duration(secs) * time.Second, nil
}

// envOr returns the value of the environment variable key, or fallback if not set.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
