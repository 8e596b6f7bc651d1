package main

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/upsc-prep/backend/internal/auth"
	"github.com/upsc-prep/backend/internal/config"
	"github.com/upsc-prep/backend/internal/database"
	"github.com/upsc-prep/backend/internal/logging"
	"github.com/upsc-prep/backend/internal/questions"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "pyq",
		Short:        "UPSC previous year question bank: API server and tools",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "console", "Log format (console, json)")

	serve := serveCmd()
	root.AddCommand(serve, migrateCmd(), importCmd(), usersCmd(), practiceCmd())

	// Bare `pyq` serves.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

// addStoreFlags registers the database flags shared by every command that
// opens the store.
func addStoreFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("db-driver", config.DriverPostgres, "Store driver (postgres, memory)")
	f.String("db-host", "localhost", "Postgres host")
	f.String("db-port", "5432", "Postgres port")
	f.String("db-user", "upsc_user", "Postgres user")
	f.String("db-password", "", "Postgres password (or set PYQ_DB_PASSWORD)")
	f.String("db-name", "upsc_prep", "Postgres database name")
	f.String("db-sslmode", "disable", "Postgres sslmode")
}

// addLLMFlags registers the generator flags.
func addLLMFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("llm-provider", "openai", "Model-answer provider (gemini, openai, anthropic, command, mock)")
	f.String("llm-model", "", "Model name (provider default when empty)")
	f.String("llm-api-key", "", "Provider API key (or set PYQ_LLM_API_KEY)")
	f.String("llm-base-url", "", "OpenAI-compatible base URL")
	f.String("llm-command", "llm", "Executable for the command provider")
	f.Int("similarity-min-chars", 30, "Minimum answer length before semantic comparison")
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("PYQ")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("pyq")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/pyq")
	v.AddConfigPath("/etc/pyq")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn().Err(err).Msg("error reading config file")
		}
	} else {
		log.Debug().Str("path", v.ConfigFileUsed()).Msg("loaded config file")
	}
	return v
}

// setup configures logging and returns the resolved configuration.
func setup(cmd *cobra.Command) config.Config {
	v := viperForCmd(cmd)
	cfg := config.Load(v)
	logging.Setup(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	return cfg
}

// stores bundles the question and user stores for one driver.
type stores struct {
	questions questions.Repository
	users     auth.UserStore
	db        *sql.DB
}

func openStores(cfg config.DBConfig) (*stores, error) {
	logger := logging.Component("store")

	if cfg.Driver == config.DriverMemory {
		logger.Warn().Msg("using in-memory store; data is lost on exit")
		return &stores{questions: questions.NewMemoryStore(), users: auth.NewMemoryUserStore()}, nil
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info().Str("host", cfg.Host).Str("database", cfg.Name).Msg("database ready")

	return &stores{
		questions: questions.NewStore(db),
		users:     auth.NewPGUserStore(db),
		db:        db,
	}, nil
}

func (s *stores) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
