package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sparkcampus/doubts/backend/internal/config"
	"github.com/sparkcampus/doubts/backend/internal/database"
	"github.com/sparkcampus/doubts/backend/internal/logging"
)

// Exit codes returned by the doubts binary.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // a check found problems
	ExitCommandError = 2 // config, database or startup failure
)

// ExitError carries the process exit code alongside the cause.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func wrapExit(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// ExitCode maps err to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// RootOptions holds the global flags.
type RootOptions struct {
	ConfigPath string

	// OpenDatabase overrides how commands connect (for testing).
	// If nil, database.New is used.
	OpenDatabase func(cfg config.DatabaseConfig, logger *zap.Logger) (database.Service, error)
}

// NewRootCommand creates the doubts command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "doubts",
		Short:         "Doubts Q&A backend",
		Long:          "HTTP API for posting academic doubts, answering them and spending study credits.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML config file")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newLedgerCommand(opts))

	return cmd
}

// setup loads configuration and builds the logger every command starts from.
func (o *RootOptions) setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, nil, wrapExit(ExitCommandError, "load config", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, wrapExit(ExitCommandError, "build logger", err)
	}
	return cfg, logger, nil
}

func (o *RootOptions) openDatabase(cfg *config.Config, logger *zap.Logger) (database.Service, error) {
	open := o.OpenDatabase
	if open == nil {
		open = database.New
	}
	db, err := open(cfg.Database, logger)
	if err != nil {
		return nil, wrapExit(ExitCommandError, "connect database", err)
	}
	return db, nil
}
