// Package config loads and stores CLI configuration in the XDG config dir.
// Only non-secret settings are kept in the file; secrets come from the
// environment (optionally a .env file) or the OS keychain.
package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"askbank/cli/internal/xdg"

	"github.com/joho/godotenv"
)

// Config holds CLI settings.
type Config struct {
	LogLevel string         `json:"log_level"`
	DB       DBConfig       `json:"db"`
	LLM      LLMConfig      `json:"llm"`
	SQL      SQLConfig      `json:"sql"`
	Pipeline PipelineConfig `json:"pipeline"`
	Session  SessionConfig  `json:"session"`
	Server   ServerConfig   `json:"server"`
}

// DBConfig holds database connection settings.
type DBConfig struct {
	// DSN, when set, wins over the individual parts.
	DSN      string `json:"dsn,omitempty"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"-"`
	Database string `json:"database"`
	Charset  string `json:"charset"`
}

// LLMConfig holds chat model settings. The API key is never persisted.
type LLMConfig struct {
	APIKey         string `json:"-"`
	BaseURL        string `json:"base_url"`
	Model          string `json:"model"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Timeout returns the per-call timeout.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SQLConfig bounds query execution.
type SQLConfig struct {
	MaxRows        int `json:"max_rows"`
	TimeoutSeconds int `json:"timeout_seconds"`
}

// Timeout returns the per-statement timeout.
func (c SQLConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// PipelineConfig holds retry budgets for the SQL pipeline.
type PipelineConfig struct {
	MaxEmptyRetries   int `json:"max_empty_retries"`
	MaxErrorRetries   int `json:"max_error_retries"`
	ProviderBackoffMs int `json:"provider_backoff_ms"`
	SchemaTables      int `json:"schema_tables"`
}

// ProviderBackoff returns the fixed sleep applied after a transient provider error.
func (c PipelineConfig) ProviderBackoff() time.Duration {
	return time.Duration(c.ProviderBackoffMs) * time.Millisecond
}

// SessionConfig selects the session store backend.
type SessionConfig struct {
	// Store is "memory" or "badger".
	Store string `json:"store"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Addr returns host:port.
func (c ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		LogLevel: "info",
		DB: DBConfig{
			Host:     "localhost",
			Port:     3306,
			User:     "root",
			Database: "mysql2",
			Charset:  "utf8mb4",
		},
		LLM: LLMConfig{
			BaseURL:        "https://dashscope.aliyuncs.com/compatible-mode/v1",
			Model:          "qwen-plus",
			TimeoutSeconds: 60,
		},
		SQL: SQLConfig{
			MaxRows:        1000,
			TimeoutSeconds: 30,
		},
		Pipeline: PipelineConfig{
			MaxEmptyRetries:   2,
			MaxErrorRetries:   4,
			ProviderBackoffMs: 1000,
			SchemaTables:      10,
		},
		Session: SessionConfig{Store: "memory"},
		Server:  ServerConfig{Host: "0.0.0.0", Port: 8000},
	}
}

// path returns the path to the config file.
func path() (string, error) {
	dir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads configuration; missing file returns defaults. Environment
// variables (and a .env file in the working directory) override file values.
func Load() (Config, error) {
	c := Defaults()
	p, err := path()
	if err != nil {
		return c, err
	}
	data, err := os.ReadFile(p)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &c); err != nil {
			return c, err
		}
	case !errors.Is(err, os.ErrNotExist):
		return c, err
	}

	_ = godotenv.Load()
	applyEnv(&c)
	return c, nil
}

// Save writes configuration with 0600 permissions.
func Save(c Config) error {
	p, err := path()
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, b, 0o600)
}

func applyEnv(c *Config) {
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.LLM.APIKey = getEnv("OPENAI_API_KEY", c.LLM.APIKey)
	c.LLM.BaseURL = getEnv("OPENAI_BASE_URL", c.LLM.BaseURL)
	c.LLM.Model = getEnv("LLM_MODEL", c.LLM.Model)
	c.LLM.TimeoutSeconds = getEnvInt("LLM_TIMEOUT_SECONDS", c.LLM.TimeoutSeconds)

	c.DB.Host = getEnv("DB_HOST", c.DB.Host)
	c.DB.Port = getEnvInt("DB_PORT", c.DB.Port)
	c.DB.User = getEnv("DB_USER", c.DB.User)
	c.DB.Password = getEnv("DB_PASSWORD", c.DB.Password)
	c.DB.Database = getEnv("DB_NAME", c.DB.Database)
	c.DB.Charset = getEnv("DB_CHARSET", c.DB.Charset)
	c.DB.DSN = getEnv("DATABASE_URL", c.DB.DSN)
	c.DB.DSN = getEnv("ASKBANK_DSN", c.DB.DSN)

	c.SQL.MaxRows = getEnvInt("SQL_MAX_ROWS", c.SQL.MaxRows)
	c.SQL.TimeoutSeconds = getEnvInt("SQL_TIMEOUT_SECONDS", c.SQL.TimeoutSeconds)

	c.Pipeline.MaxEmptyRetries = getEnvInt("PIPELINE_MAX_EMPTY_RETRIES", c.Pipeline.MaxEmptyRetries)
	c.Pipeline.MaxErrorRetries = getEnvInt("PIPELINE_MAX_ERROR_RETRIES", c.Pipeline.MaxErrorRetries)
	c.Pipeline.ProviderBackoffMs = getEnvInt("PIPELINE_PROVIDER_BACKOFF_MS", c.Pipeline.ProviderBackoffMs)

	c.Session.Store = getEnv("SESSION_STORE", c.Session.Store)
	c.Server.Host = getEnv("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvInt("SERVER_PORT", c.Server.Port)
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return defaultValue
	}
	return n
}
