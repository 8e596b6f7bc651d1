package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load(viper.New())

	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q, want :8080", cfg.Addr)
	}
	if cfg.DB.Driver != DriverPostgres {
		t.Errorf("DB.Driver = %q, want %q", cfg.DB.Driver, DriverPostgres)
	}
	if cfg.Auth.TokenTTL != 72*time.Hour {
		t.Errorf("Auth.TokenTTL = %v, want 72h", cfg.Auth.TokenTTL)
	}
	if cfg.Scoring.SimilarityMinChars != 30 {
		t.Errorf("SimilarityMinChars = %d, want 30", cfg.Scoring.SimilarityMinChars)
	}
	if cfg.Import.BatchSize != 100 {
		t.Errorf("Import.BatchSize = %d, want 100", cfg.Import.BatchSize)
	}
	if cfg.LLM.Temperature != 0.7 {
		t.Errorf("LLM.Temperature = %v, want 0.7", cfg.LLM.Temperature)
	}
}

func TestLoad_Overrides(t *testing.T) {
	v := viper.New()
	v.Set("db-driver", "MEMORY")
	v.Set("llm-provider", "Gemini")
	v.Set("import-batch-size", 25)

	cfg := Load(v)
	if cfg.DB.Driver != DriverMemory {
		t.Errorf("DB.Driver = %q, want memory", cfg.DB.Driver)
	}
	if cfg.LLM.Provider != "gemini" {
		t.Errorf("LLM.Provider = %q, want gemini", cfg.LLM.Provider)
	}
	if cfg.Import.BatchSize != 25 {
		t.Errorf("Import.BatchSize = %d, want 25", cfg.Import.BatchSize)
	}
}

func TestDSN(t *testing.T) {
	c := DBConfig{Host: "db", Port: "5433", User: "u", Password: "p", Name: "n", SSLMode: "require"}
	want := "host=db port=5433 user=u password=p dbname=n sslmode=require"
	if got := c.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Load(viper.New())
		cfg.Auth.JWTSecret = "0123456789abcdef"
		cfg.LLM.Provider = "mock"
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"valid", func(*Config) {}, ""},
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "jwt-secret"},
		{"bad driver", func(c *Config) { c.DB.Driver = "sqlite" }, "db-driver"},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "llama" }, "llm-provider"},
		{"missing key", func(c *Config) { c.LLM.Provider = "openai" }, "llm-api-key"},
		{"zero batch", func(c *Config) { c.Import.BatchSize = 0 }, "import-batch-size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() = %v, want *ValidationError", err)
			}
			if !strings.Contains(verr.Error(), tt.field) {
				t.Errorf("error %q does not mention %s", verr.Error(), tt.field)
			}
		})
	}
}
