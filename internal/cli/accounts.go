package cli

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dvloznov/kids-bank/internal/app"
	"github.com/dvloznov/kids-bank/internal/ledger"
)

// AccountSummary is one row of "accounts list".
type AccountSummary struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Balance      float64 `json:"balance"`
	Goals        int     `json:"goals"`
	Transactions int     `json:"transactions"`
}

// NewAccountsCommand creates the accounts command group.
func NewAccountsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "accounts",
		Aliases: []string{"account"},
		Short:   "List and manage accounts",
	}

	cmd.AddCommand(&cobra.Command{
		Use:          "list",
		Short:        "List accounts with their balances",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App) error {
				accounts := a.State.Accounts()
				summaries := make([]AccountSummary, 0, len(accounts))
				rows := make([][]string, 0, len(accounts))
				for _, id := range accounts.IDs() {
					acc := accounts[id]
					live := 0
					for _, tx := range acc.Transactions {
						if !tx.Deleted {
							live++
						}
					}
					s := AccountSummary{
						ID:           id,
						Name:         acc.Name,
						Balance:      ledger.Balance(acc.Transactions),
						Goals:        len(acc.Goals),
						Transactions: live,
					}
					summaries = append(summaries, s)
					rows = append(rows, []string{s.ID, s.Name, formatAmount(s.Balance), strconv.Itoa(s.Goals), strconv.Itoa(s.Transactions)})
				}
				return formatter(cmd, rootOpts).Print(summaries, []string{"ID", "Name", "Balance", "Goals", "Transactions"}, rows)
			})
		},
	})

	var image string
	add := &cobra.Command{
		Use:          "add <name>",
		Short:        "Create an account",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App) error {
				id, err := a.State.AddAccount(ctx, args[0], image)
				if err != nil {
					return err
				}
				return formatter(cmd, rootOpts).Message(map[string]string{"id": id}, "Created account %s (%s)", args[0], id)
			})
		},
	}
	add.Flags().StringVar(&image, "image", "", "avatar image (URL or data URI)")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:          "rename <account> <name>",
		Short:        "Rename an account",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App) error {
				id, _, err := resolveAccount(a.State, args[0])
				if err != nil {
					return err
				}
				if err := a.State.RenameAccount(ctx, id, args[1]); err != nil {
					return err
				}
				return formatter(cmd, rootOpts).Message(nil, "Renamed account %s to %s", id, args[1])
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:          "remove <account>",
		Aliases:      []string{"rm"},
		Short:        "Remove an account on every device",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App) error {
				id, acc, err := resolveAccount(a.State, args[0])
				if err != nil {
					return err
				}
				if err := a.State.RemoveAccount(ctx, id); err != nil {
					return err
				}
				return formatter(cmd, rootOpts).Message(nil, "Removed account %s (%s)", acc.Name, id)
			})
		},
	})

	return cmd
}
