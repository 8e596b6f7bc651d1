package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/upsc-prep/backend/internal/apiclient"
	"github.com/upsc-prep/backend/internal/auth"
	"github.com/upsc-prep/backend/internal/config"
	"github.com/upsc-prep/backend/internal/database"
	"github.com/upsc-prep/backend/internal/generator"
	"github.com/upsc-prep/backend/internal/importer"
	"github.com/upsc-prep/backend/internal/logging"
	"github.com/upsc-prep/backend/internal/models"
	"github.com/upsc-prep/backend/internal/pyq"
	"github.com/upsc-prep/backend/internal/questions"
	"github.com/upsc-prep/backend/internal/scoring"
	"github.com/upsc-prep/backend/internal/tui"
)

// ── migrate ─────────────────────────────────────────────

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations (or roll back with --down)",
		RunE:  runMigrate,
	}
	cmd.Flags().Int("down", 0, "Roll back this many migrations instead of applying")
	addStoreFlags(cmd)
	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg := setup(cmd)
	if cfg.DB.Driver != config.DriverPostgres {
		return errors.New("migrate requires --db-driver postgres")
	}
	logger := logging.Component("migrate")

	db, err := database.Connect(cfg.DB)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	down, _ := cmd.Flags().GetInt("down")
	if down > 0 {
		if err := database.MigrateDown(db, down); err != nil {
			return err
		}
		logger.Info().Int("steps", down).Msg("rolled back")
		return nil
	}
	if err := database.Migrate(db); err != nil {
		return err
	}
	logger.Info().Msg("migrations applied")
	return nil
}

// ── import ──────────────────────────────────────────────

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Bulk import curated questions from a CSV file",
		Long: "Bulk import curated questions from a CSV file with the columns\n" +
			strings.Join(importer.Columns, ", ") + ".\nOptions are separated by \"" + importer.ListSeparator + "\".",
		RunE: runImport,
	}
	f := cmd.Flags()
	f.StringP("file", "f", "", "CSV file to import (- for stdin)")
	f.String("owner", "", "Email of the admin recorded as the importer")
	f.Int("import-batch-size", importer.DefaultBatchSize, "Rows per insert batch")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("owner")
	addStoreFlags(cmd)
	return cmd
}

func runImport(cmd *cobra.Command, _ []string) error {
	cfg := setup(cmd)
	if cfg.DB.Driver != config.DriverPostgres {
		return errors.New("import requires --db-driver postgres")
	}
	logger := logging.Component("import")
	ctx := cmd.Context()

	st, err := openStores(cfg.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	email, _ := cmd.Flags().GetString("owner")
	owner, err := st.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return fmt.Errorf("look up owner %q: %w", email, err)
	}
	if owner.Role != models.RoleAdmin {
		return fmt.Errorf("%s is not an admin; run `pyq users promote` first", owner.Email)
	}

	path, _ := cmd.Flags().GetString("file")
	var in io.Reader = os.Stdin
	if path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()
		in = file
	}

	im := importer.New(st.questions, cfg.Import.BatchSize)
	result, err := im.Import(ctx, in, owner.ID, func(p importer.Progress) {
		logger.Info().Int("imported", p.Imported).Int("total", p.Total).
			Str("progress", fmt.Sprintf("%.0f%%", p.Fraction*100)).Msg("batch stored")
	})
	if err != nil {
		return err
	}
	logger.Info().Int("imported", result.Imported).Msg("import complete")
	return nil
}

// ── users ───────────────────────────────────────────────

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage user accounts",
	}
	promote := &cobra.Command{
		Use:   "promote",
		Short: "Grant the admin role to a registered user",
		RunE:  runPromote,
	}
	promote.Flags().String("email", "", "Email of the user to promote")
	_ = promote.MarkFlagRequired("email")
	addStoreFlags(promote)
	cmd.AddCommand(promote)
	return cmd
}

func runPromote(cmd *cobra.Command, _ []string) error {
	cfg := setup(cmd)
	if cfg.DB.Driver != config.DriverPostgres {
		return errors.New("users promote requires --db-driver postgres")
	}

	st, err := openStores(cfg.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	email, _ := cmd.Flags().GetString("email")
	email = strings.ToLower(strings.TrimSpace(email))
	if err := st.users.SetRole(cmd.Context(), email, models.RoleAdmin); err != nil {
		return fmt.Errorf("promote %s: %w", email, err)
	}
	logger := logging.Component("users")
	logger.Info().Str("email", email).Msg("promoted to admin")
	return nil
}

// ── practice ────────────────────────────────────────────

func practiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "practice",
		Short: "Search questions and practise answers in the terminal",
		RunE:  runPractice,
	}
	f := cmd.Flags()
	f.String("server", "http://localhost:8080", "API server URL")
	f.String("email", "", "Sign in with this email to submit answers")
	f.String("password", "", "Password (prompted when empty; or set PYQ_PASSWORD)")
	f.Bool("local", false, "Use the configured store and model directly instead of a server")
	addStoreFlags(cmd)
	addLLMFlags(cmd)
	return cmd
}

func runPractice(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	cfg := config.Load(v)
	// The TUI owns the terminal; keep logs to warnings and above.
	logging.Setup(os.Stderr, "warn", cfg.Log.Format)

	ctx := cmd.Context()
	email := strings.ToLower(strings.TrimSpace(v.GetString("email")))
	if v.GetBool("local") {
		if err := checkLocalSignIn(cfg.DB.Driver, email); err != nil {
			return err
		}
	}
	password := v.GetString("password")
	if email != "" && password == "" {
		p, err := readPassword()
		if err != nil {
			return err
		}
		password = p
	}

	if v.GetBool("local") {
		return practiceLocal(ctx, cfg, email, password)
	}

	client := apiclient.New(v.GetString("server"), &http.Client{Timeout: 2 * time.Minute})
	if email != "" {
		if _, err := client.Login(ctx, email, password); err != nil {
			return fmt.Errorf("sign in: %w", err)
		}
	}
	return tui.Run(client, client.SignedIn(), os.Stdout)
}

// errAnonymousOnly is returned for --email with the in-memory store, which
// starts with no users.
var errAnonymousOnly = errors.New("practice --local with --db-driver memory is anonymous only; drop --email or use --db-driver postgres")

func checkLocalSignIn(driver, email string) error {
	if email != "" && driver == config.DriverMemory {
		return errAnonymousOnly
	}
	return nil
}

// practiceLocal runs the client against the store and model in-process.
func practiceLocal(ctx context.Context, cfg config.Config, email, password string) error {
	st, err := openStores(cfg.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	llm, model, err := generator.NewClient(ctx, cfg.LLM)
	if err != nil {
		return fmt.Errorf("create llm client: %w", err)
	}
	if closer, ok := llm.(io.Closer); ok {
		defer closer.Close()
	}
	gen := generator.New(llm, model)
	svc := questions.NewService(st.questions, gen, scoring.NewScorer(gen, cfg.Scoring.SimilarityMinChars))

	user := uuid.Nil
	if email != "" {
		u, err := st.users.GetUserByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("look up %q: %w", email, err)
		}
		if !auth.CheckPassword(u, password) {
			return errors.New("sign in: invalid email or password")
		}
		user = u.ID
	}
	return tui.Run(pyq.LocalBackend{Service: svc, User: user}, user != uuid.Nil, os.Stdout)
}

func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("password required: pass --password or set PYQ_PASSWORD")
	}
	fmt.Fprint(os.Stderr, "Password: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}
