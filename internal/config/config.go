package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Addr        string
	CORSOrigins []string
	DB          DBConfig
	Auth        AuthConfig
	LLM         LLMConfig
	Scoring     ScoringConfig
	Import      ImportConfig
	Log         LogConfig
}

type DBConfig struct {
	Driver       string // "postgres" or "memory"
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
}

// DSN returns the lib/pq connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

type LLMConfig struct {
	Provider    string // gemini, openai, anthropic, command, mock
	Model       string
	APIKey      string
	BaseURL     string
	Command     string
	Temperature float64
}

type ScoringConfig struct {
	// SimilarityMinChars is the length both answers must exceed before the
	// semantic similarity function is consulted.
	SimilarityMinChars int
}

type ImportConfig struct {
	BatchSize int
}

type LogConfig struct {
	Level  string
	Format string
}

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

var llmProviders = map[string]bool{
	"gemini":    true,
	"openai":    true,
	"anthropic": true,
	"command":   true,
	"mock":      true,
}

// SetDefaults registers the default for every key Load reads.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("cors-origins", []string{"*"})
	v.SetDefault("db-driver", DriverPostgres)
	v.SetDefault("db-host", "localhost")
	v.SetDefault("db-port", "5432")
	v.SetDefault("db-user", "upsc_user")
	v.SetDefault("db-password", "upsc_password")
	v.SetDefault("db-name", "upsc_prep")
	v.SetDefault("db-sslmode", "disable")
	v.SetDefault("db-max-open-conns", 25)
	v.SetDefault("token-ttl", 72*time.Hour)
	v.SetDefault("llm-provider", "openai")
	v.SetDefault("llm-temperature", 0.7)
	v.SetDefault("llm-command", "llm")
	v.SetDefault("similarity-min-chars", 30)
	v.SetDefault("import-batch-size", 100)
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "console")
}

// Load reads a Config from v. Flags, PYQ_* environment variables and the
// optional config file are expected to be bound already.
func Load(v *viper.Viper) Config {
	SetDefaults(v)
	return Config{
		Addr:        v.GetString("addr"),
		CORSOrigins: v.GetStringSlice("cors-origins"),
		DB: DBConfig{
			Driver:       strings.ToLower(v.GetString("db-driver")),
			Host:         v.GetString("db-host"),
			Port:         v.GetString("db-port"),
			User:         v.GetString("db-user"),
			Password:     v.GetString("db-password"),
			Name:         v.GetString("db-name"),
			SSLMode:      v.GetString("db-sslmode"),
			MaxOpenConns: v.GetInt("db-max-open-conns"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("jwt-secret"),
			TokenTTL:  v.GetDuration("token-ttl"),
		},
		LLM: LLMConfig{
			Provider:    strings.ToLower(v.GetString("llm-provider")),
			Model:       v.GetString("llm-model"),
			APIKey:      v.GetString("llm-api-key"),
			BaseURL:     v.GetString("llm-base-url"),
			Command:     v.GetString("llm-command"),
			Temperature: v.GetFloat64("llm-temperature"),
		},
		Scoring: ScoringConfig{
			SimilarityMinChars: v.GetInt("similarity-min-chars"),
		},
		Import: ImportConfig{
			BatchSize: v.GetInt("import-batch-size"),
		},
		Log: LogConfig{
			Level:  v.GetString("log-level"),
			Format: v.GetString("log-format"),
		},
	}
}

// Issue is one invalid configuration field.
type Issue struct {
	Field   string
	Message string
}

type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		parts[i] = issue.Field + ": " + issue.Message
	}
	return "invalid configuration: " + strings.Join(parts, "; ")
}

// Validate checks the settings needed to serve requests.
func (c Config) Validate() error {
	var issues []Issue
	add := func(field, msg string) {
		issues = append(issues, Issue{Field: field, Message: msg})
	}

	if c.Addr == "" {
		add("addr", "must not be empty")
	}
	if c.DB.Driver != DriverPostgres && c.DB.Driver != DriverMemory {
		add("db-driver", "must be 'postgres' or 'memory'")
	}
	if len(c.Auth.JWTSecret) < 16 {
		add("jwt-secret", "must be at least 16 characters")
	}
	if c.Auth.TokenTTL <= 0 {
		add("token-ttl", "must be positive")
	}
	if !llmProviders[c.LLM.Provider] {
		add("llm-provider", fmt.Sprintf("unknown provider %q", c.LLM.Provider))
	}
	switch c.LLM.Provider {
	case "gemini", "openai", "anthropic":
		if c.LLM.APIKey == "" {
			add("llm-api-key", "required for provider "+c.LLM.Provider)
		}
	case "command":
		if c.LLM.Command == "" {
			add("llm-command", "required for provider command")
		}
	}
	if c.Scoring.SimilarityMinChars < 0 {
		add("similarity-min-chars", "must not be negative")
	}
	if c.Import.BatchSize <= 0 {
		add("import-batch-size", "must be positive")
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}
