package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mind-engage/mindengage-coach/internal/config"
	"github.com/mind-engage/mindengage-coach/internal/db"
	"github.com/mind-engage/mindengage-coach/internal/logging"
)

// NewRootCmd builds the coachd command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "coachd",
		Short: "Sales coaching sessions and proficiency scoring",
		Long: `coachd serves the coaching API and offers offline tools:

  coachd serve                          Run the HTTP API
  coachd migrate                        Create or update the schema
  coachd user add --tenant t1 ...       Bootstrap a tenant user
  coachd import-framework f.yaml --tenant t1
  coachd score fixture.yaml             Score a fixture without a database`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.HiddenDefaultCmd = true
	root.PersistentFlags().String("config", "", "YAML config file (env vars override it)")

	root.AddCommand(newServeCmd(), newMigrateCmd(), newUserCmd(), newImportFrameworkCmd(), newScoreCmd())
	return root
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

// env bundles what every database-backed command needs.
type env struct {
	cfg    config.Config
	log    *slog.Logger
	db     *sql.DB
	closer func()
}

func openEnv(ctx context.Context, cmd *cobra.Command) (*env, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, logCloser := logging.New(cfg.LogLevel, cfg.LogFile)
	slog.SetDefault(logger)

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		_ = logCloser.Close()
		return nil, fmt.Errorf("db open: %w", err)
	}
	return &env{
		cfg: cfg,
		log: logger,
		db:  dbh,
		closer: func() {
			_ = dbh.Close()
			_ = logCloser.Close()
		},
	}, nil
}
