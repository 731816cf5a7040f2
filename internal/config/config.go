package config

import (
	"fmt"
	"os"
	"strings"
)

// Store backends.
const (
	BackendBigQuery = "bigquery"
	BackendPostgres = "postgres"
	BackendMySQL    = "mysql"
	BackendMemory   = "memory"
)

// Defaults applied when the environment leaves a field empty.
const (
	DefaultBackend   = BackendBigQuery
	DefaultDataset   = "optifi"
	DefaultPort      = "8787"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"
)

// Config is resolved once at startup. Each field has exactly one
// environment variable.
type Config struct {
	StoreBackend string // STORE_BACKEND
	BQProject    string // BQ_PROJECT
	BQDataset    string // BQ_DATASET
	DatabaseURL  string // DATABASE_URL

	GeminiAPIKey string // GEMINI_API_KEY
	GeminiModel  string // GEMINI_MODEL
	OracleURL    string // ORACLE_URL

	GCSBucket        string // GCS_BUCKET
	NotionToken      string // NOTION_TOKEN
	NotionDatabaseID string // NOTION_DATABASE_ID

	Port      string // PORT
	LogLevel  string // LOG_LEVEL
	LogFormat string // LOG_FORMAT
}

// MissingFieldError reports a setting a component needs but did not get.
type MissingFieldError struct {
	Field  string
	EnvVar string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("config: %s is required (set %s)", e.Field, e.EnvVar)
}

// FromEnv reads the process environment.
func FromEnv() Config {
	return Load(os.Getenv)
}

// Load builds a Config from getenv and applies defaults.
func Load(getenv func(string) string) Config {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}
	return Config{
		StoreBackend:     strings.ToLower(get("STORE_BACKEND", DefaultBackend)),
		BQProject:        get("BQ_PROJECT", ""),
		BQDataset:        get("BQ_DATASET", DefaultDataset),
		DatabaseURL:      get("DATABASE_URL", ""),
		GeminiAPIKey:     get("GEMINI_API_KEY", ""),
		GeminiModel:      get("GEMINI_MODEL", ""),
		OracleURL:        get("ORACLE_URL", ""),
		GCSBucket:        get("GCS_BUCKET", ""),
		NotionToken:      get("NOTION_TOKEN", ""),
		NotionDatabaseID: get("NOTION_DATABASE_ID", ""),
		Port:             get("PORT", DefaultPort),
		LogLevel:         get("LOG_LEVEL", DefaultLogLevel),
		LogFormat:        get("LOG_FORMAT", DefaultLogFormat),
	}
}

// Validate checks the settings every process needs: a known backend and
// its connection details.
func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendBigQuery:
		if c.BQProject == "" {
			return &MissingFieldError{Field: "BigQuery project", EnvVar: "BQ_PROJECT"}
		}
		if c.BQDataset == "" {
			return &MissingFieldError{Field: "BigQuery dataset", EnvVar: "BQ_DATASET"}
		}
	case BackendPostgres, BackendMySQL:
		if c.DatabaseURL == "" {
			return &MissingFieldError{Field: "database URL", EnvVar: "DATABASE_URL"}
		}
	case BackendMemory:
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q", c.StoreBackend)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("config: unknown LOG_FORMAT %q", c.LogFormat)
	}
	return nil
}

// RequireGemini checks the direct Gemini oracle can be built.
func (c Config) RequireGemini() error {
	if c.GeminiAPIKey == "" {
		return &MissingFieldError{Field: "Gemini API key", EnvVar: "GEMINI_API_KEY"}
	}
	return nil
}

// RequireGCS checks partition export can run.
func (c Config) RequireGCS() error {
	if c.GCSBucket == "" {
		return &MissingFieldError{Field: "GCS bucket", EnvVar: "GCS_BUCKET"}
	}
	return nil
}

// RequireNotion checks Notion publishing can run.
func (c Config) RequireNotion() error {
	if c.NotionToken == "" {
		return &MissingFieldError{Field: "Notion token", EnvVar: "NOTION_TOKEN"}
	}
	if c.NotionDatabaseID == "" {
		return &MissingFieldError{Field: "Notion database ID", EnvVar: "NOTION_DATABASE_ID"}
	}
	return nil
}
