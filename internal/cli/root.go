// Package cli implements the kidsbank command line: local ledger edits,
// sync control, exports and the analytics integrations.
package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dvloznov/kids-bank/internal/app"
	"github.com/dvloznov/kids-bank/internal/config"
	"github.com/dvloznov/kids-bank/internal/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	EnvFile    string
	DB         string // overrides the configured store DSN
	Verbose    bool
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the kidsbank CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "kidsbank",
		Short: "Kids Bank - pocket money ledger",
		Long:  "Manage pocket money accounts, savings goals and allowances, with end-to-end encrypted cloud sync between devices.",
		// main prints the error
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "kidsbank.yaml", "config file")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env", ".env", "env file")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "database DSN (overrides config)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewAccountsCommand(opts))
	cmd.AddCommand(NewTransactionsCommand(opts))
	cmd.AddCommand(NewGoalsCommand(opts))
	cmd.AddCommand(NewAllowanceCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewChartCommand(opts))
	cmd.AddCommand(NewBigQueryCommand(opts))
	cmd.AddCommand(NewBigQueryMigrateCommand(opts))
	cmd.AddCommand(NewNotionCommand(opts))
	cmd.AddCommand(NewCategorizeCommand(opts))

	return cmd
}

// loadConfig resolves the configuration with the command line overrides.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath, opts.EnvFile)
	if err != nil {
		return cfg, err
	}
	if opts.DB != "" {
		cfg.Store.DSN = opts.DB
	}
	return cfg, nil
}

// newLogger logs to the command's stderr so stdout stays clean for JSON.
func newLogger(cmd *cobra.Command, opts *RootOptions, cfg config.Config) (zerolog.Logger, error) {
	level := cfg.Log.Level
	if opts.Verbose {
		level = "debug"
	}
	return logger.NewFromConfig(cmd.ErrOrStderr(), level, cfg.Log.JSON)
}

// withApp opens the app for the duration of fn. The scheduler is not
// started, so edits made from the CLI are synced by the next "sync run" or
// by the server.
func withApp(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	log, err := newLogger(cmd, opts, cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logger.WithContext(ctx, log)

	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to close app")
		}
	}()

	return fn(ctx, a)
}

// formatter builds the output formatter for cmd.
func formatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
}
