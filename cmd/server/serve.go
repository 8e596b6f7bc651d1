package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/spf13/cobra"

	"github.com/upsc-prep/backend/internal/auth"
	"github.com/upsc-prep/backend/internal/config"
	"github.com/upsc-prep/backend/internal/generator"
	"github.com/upsc-prep/backend/internal/importer"
	"github.com/upsc-prep/backend/internal/logging"
	"github.com/upsc-prep/backend/internal/models"
	"github.com/upsc-prep/backend/internal/questions"
	"github.com/upsc-prep/backend/internal/scoring"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringSlice("cors-origins", []string{"*"}, "Allowed CORS origins")
	f.String("jwt-secret", "", "Token signing secret, at least 16 characters (or set PYQ_JWT_SECRET)")
	f.Duration("token-ttl", 72*time.Hour, "Token lifetime")
	f.Int("import-batch-size", importer.DefaultBatchSize, "Rows per bulk import batch")
	addStoreFlags(cmd)
	addLLMFlags(cmd)
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := setup(cmd)
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := logging.Component("server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(cfg, st, svc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown")
		}
	}()

	logger.Info().Str("addr", cfg.Addr).Str("store", cfg.DB.Driver).Str("model", gen.ModelName()).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

func newRouter(cfg config.Config, st *stores, svc *questions.Service) http.Handler {
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	mw := auth.NewMiddleware(tokens)
	authHandler := auth.NewHandler(st.users, tokens)
	importHandler := importer.NewHandler(importer.New(st.questions, cfg.Import.BatchSize))

	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()

	// Public routes
	api.HandleFunc("/auth/register", authHandler.Register).Methods("POST")
	api.HandleFunc("/auth/login", authHandler.Login).Methods("POST")

	// Protected routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(mw.Required)
	protected.HandleFunc("/auth/me", authHandler.GetCurrentUser).Methods("GET")

	questions.NewHandler(svc).Mount(api, mw)

	// Admin routes
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(mw.Required, auth.RequireRole(models.RoleAdmin))
	admin.HandleFunc("/questions/import", importHandler.Import).Methods("POST")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	return logging.Middleware(c.Handler(r))
}
