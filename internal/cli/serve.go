package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sparkcampus/doubts/backend/internal/database"
	"github.com/sparkcampus/doubts/backend/internal/server"
)

func newServeCommand(opts *RootOptions) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API until SIGINT or SIGTERM.

In-flight requests get server.shutdown_timeout to finish before the
process exits.

Example:
  doubts serve --config ./config.yaml --migrate`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts, migrate)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply schema migrations before serving")

	return cmd
}

func runServe(cmd *cobra.Command, opts *RootOptions, migrate bool) error {
	cfg, logger, err := opts.setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	gin.SetMode(cfg.Server.Mode)

	db, err := opts.openDatabase(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("closing database", zap.Error(err))
		}
	}()

	if migrate {
		if err := database.Migrate(db.DB()); err != nil {
			return wrapExit(ExitCommandError, "migrate", err)
		}
	}

	srv, err := server.Build(cfg, db, logger)
	if err != nil {
		return wrapExit(ExitCommandError, "build server", err)
	}
	httpServer := srv.NewServer()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", httpServer.Addr), zap.String("mode", cfg.Server.Mode))
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return wrapExit(ExitCommandError, "server error", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")
	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return wrapExit(ExitCommandError, "graceful shutdown failed", err)
	}
	logger.Info("server stopped gracefully")
	return nil
}
