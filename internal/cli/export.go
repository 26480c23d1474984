package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dvloznov/kids-bank/internal/app"
	"github.com/dvloznov/kids-bank/internal/export"
)

// NewExportCommand creates the export command group.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export accounts to a backup or a spreadsheet",
	}

	var jsonOut string
	jsonCmd := &cobra.Command{
		Use:          "json",
		Short:        "Write a JSON backup that 'import' can restore",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App) error {
				return writeOutput(cmd, jsonOut, func(w io.Writer) error {
					return export.WriteBackup(w, a.State.Snapshot())
				})
			})
		},
	}
	jsonCmd.Flags().StringVarP(&jsonOut, "out", "o", "", "output file (default stdout)")
	cmd.AddCommand(jsonCmd)

	var csvOut string
	csvCmd := &cobra.Command{
		Use:          "csv",
		Short:        "Write the live transactions of every account as CSV",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App) error {
				return writeOutput(cmd, csvOut, func(w io.Writer) error {
					return export.WriteCSV(w, a.State.Accounts())
				})
			})
		},
	}
	csvCmd.Flags().StringVarP(&csvOut, "out", "o", "", "output file (default stdout)")
	cmd.AddCommand(csvCmd)

	return cmd
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import a JSON backup",
		Long: `Import a JSON backup written by 'export json' or by the other clients.
The backup replaces every local account. Imported accounts are protected
from deletions made on other devices until the next successful sync.
Use - to read standard input.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			backup, err := export.ParseBackup(data)
			if err != nil {
				return err
			}
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App) error {
				if err := a.State.Import(ctx, backup.Accounts, backup.DeletedAccountIDs); err != nil {
					return err
				}
				return formatter(cmd, rootOpts).Message(map[string]int{"accounts": len(backup.Accounts)}, "Imported %d account(s)", len(backup.Accounts))
			})
		},
	}
}

// writeOutput runs fn against the file at path, or stdout when path is
// empty or "-".
func writeOutput(cmd *cobra.Command, path string, fn func(io.Writer) error) error {
	if path == "" || path == "-" {
		return fn(cmd.OutOrStdout())
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", path)
	return nil
}
