package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/metasync/internal/compiler"
	"github.com/roach88/metasync/internal/engine"
	"github.com/roach88/metasync/internal/reconcile"
	"github.com/roach88/metasync/internal/store"
)

// SyncOptions holds flags for commands that work on a state database.
type SyncOptions struct {
	*RootOptions
	Database   string // path to the SQLite database
	Config     string // CUE configuration directory
	Workers    int
	MaxRetries int
}

// addStoreFlags registers --db and --config.
func addStoreFlags(cmd *cobra.Command, opts *SyncOptions) {
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Config, "config", "", "CUE configuration directory (required)")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("config")
}

// addEngineFlags registers the engine tuning flags.
func addEngineFlags(cmd *cobra.Command, opts *SyncOptions) {
	cmd.Flags().IntVar(&opts.Workers, "workers", engine.DefaultWorkers, "number of import shards")
	cmd.Flags().IntVar(&opts.MaxRetries, "max-retries", reconcile.DefaultMaxRetries, "export attempts before a change is marked failed")
}

// session is an open configuration, store and engine for one command.
type session struct {
	config *compiler.Config
	store  *store.Store
	engine *engine.Engine
}

// openSession loads the configuration and opens the database. Failures are
// reported through f and returned as an *ExitError.
func openSession(opts *SyncOptions, f *OutputFormatter) (*session, error) {
	if _, err := os.Stat(opts.Config); os.IsNotExist(err) {
		return nil, f.Fail(ExitCommandError, ErrCodeNotFound,
			fmt.Sprintf("config directory not found: %s", opts.Config), nil)
	}

	cfg, err := compiler.LoadDir(opts.Config)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeCompileFailed, "failed to load config", err)
	}
	f.VerboseLog("Loaded %d CUE file(s), %d sync rule(s) from %s", cfg.FileCount, len(cfg.Rules), opts.Config)

	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	slog.Debug("database ready", "db", opts.Database)

	eng := engine.New(st, cfg.Schema, cfg.Rules,
		engine.WithWorkers(opts.Workers),
		engine.WithMaxRetries(opts.MaxRetries),
		engine.WithLogger(slog.Default()),
	)
	return &session{config: cfg, store: st, engine: eng}, nil
}

func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// commandContext returns the command's context, or Background when the
// command was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
