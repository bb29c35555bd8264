package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/config"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/database"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/handlers"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/logging"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/middleware"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/repositories"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  `Start the chat API. Sessions are stored in PostgreSQL and questions run against the configured SQL Server database.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env),
		zap.String("listen", cfg.ListenAddr()),
		zap.Bool("auth_enabled", cfg.Auth.Enabled()),
		zap.String("database", fmt.Sprintf("%s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)),
		zap.String("datasource", fmt.Sprintf("%s:%d/%s", cfg.Datasource.Host, cfg.Datasource.Port, cfg.Datasource.Database)),
		zap.String("default_model", cfg.LLM.DefaultModel),
		zap.Bool("allow_fallback", cfg.LLM.AllowFallback),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openMetadataStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	store, err := openBusinessStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close SQL Server connections", zap.String("error", logging.SanitizeError(err)))
		}
	}()

	stack, err := newAnswerStack(cfg, store, logger)
	if err != nil {
		return err
	}
	logger.Info("Models available", zap.Int("count", len(stack.registry.Available())), zap.String("default", stack.registry.DefaultModel()))

	chatService := services.NewChatService(repositories.NewChatRepository(db), stack.pipeline, stack.scope, logger)
	authService := services.NewAuthService(cfg.Auth.Email, cfg.Auth.Password, services.NewMemoryTokenStore(cfg.Auth.TokenTTL), logger)
	requireAuth := middleware.RequireToken(authService, logger)

	mux := http.NewServeMux()

	healthChecks := []handlers.HealthCheck{
		{Name: "postgres", Check: db.Ping},
		{Name: "mssql", Check: store.TestConnection},
	}
	handlers.NewHealthHandler(cfg, healthChecks, logger).RegisterRoutes(mux)
	handlers.NewAuthHandler(authService, logger).RegisterRoutes(mux)
	handlers.NewModelsHandler(stack.registry, logger).RegisterRoutes(mux)
	handlers.NewChatHandler(chatService, logger).RegisterRoutes(mux, requireAuth)
	handlers.NewSessionHandler(chatService, logger).RegisterRoutes(mux, requireAuth)
	handlers.NewSchemaHandler(stack.projector, stack.scope, cfg.Query.Format(), logger).RegisterRoutes(mux, requireAuth)

	server := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting sqlchat", zap.String("addr", server.Addr), zap.String("version", cfg.Version))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutting down server", zap.Duration("timeout", cfg.ShutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		logger.Info("Server stopped")
	}
	return nil
}

// openMetadataStore connects to PostgreSQL and applies pending migrations.
func openMetadataStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*database.DB, error) {
	db, err := database.Open(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata store: %w", err)
	}
	return db, nil
}
