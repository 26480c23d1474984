package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/dvloznov/kids-bank/internal/app"
	"github.com/dvloznov/kids-bank/internal/domain"
)

// NewTransactionsCommand creates the tx command group.
func NewTransactionsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tx",
		Aliases: []string{"transactions"},
		Short:   "List and record transactions",
	}
	cmd.AddCommand(newTxListCommand(rootOpts))
	cmd.AddCommand(newTxAddCommand(rootOpts))
	cmd.AddCommand(newTxDeleteCommand(rootOpts))
	return cmd
}

func newTxListCommand(rootOpts *RootOptions) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:          "list <account>",
		Short:        "List the transactions of an account, newest first",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App) error {
				_, acc, err := resolveAccount(a.State, args[0])
				if err != nil {
					return err
				}

				txs := make([]domain.Transaction, 0, len(acc.Transactions))
				for _, tx := range acc.Transactions {
					if tx.Deleted && !all {
						continue
					}
					txs = append(txs, tx)
				}
				sort.SliceStable(txs, func(i, j int) bool {
					if txs[i].Date != txs[j].Date {
						return txs[i].Date > txs[j].Date
					}
					return txs[i].Timestamp > txs[j].Timestamp
				})

				rows := make([][]string, 0, len(txs))
				for _, tx := range txs {
					row := []string{tx.ID, tx.Date, formatAmount(tx.Amount), tx.Description, tx.Category}
					if all {
						row = append(row, fmt.Sprint(tx.Deleted))
					}
					rows = append(rows, row)
				}
				header := []string{"ID", "Date", "Amount", "Description", "Category"}
				if all {
					header = append(header, "Deleted")
				}
				return formatter(cmd, rootOpts).Print(txs, header, rows)
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include deleted transactions")
	return cmd
}

func newTxAddCommand(rootOpts *RootOptions) *cobra.Command {
	var description, date, category string
	cmd := &cobra.Command{
		Use:   "add <account> <amount>",
		Short: "Record a transaction",
		Long: `Record a transaction. Positive amounts are money in, negative amounts
money out. Use "--" before a negative amount: tx add Sam -- -2.50`,
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			if amount == 0 {
				return fmt.Errorf("amount must not be zero")
			}
			if date != "" {
				if _, err := time.Parse(domain.DateLayout, date); err != nil {
					return fmt.Errorf("invalid date %q: want YYYY-MM-DD", date)
				}
			}
			if category != "" && !domain.IsCategory(category, amount > 0) {
				return fmt.Errorf("unknown category %q", category)
			}

			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App) error {
				id, _, err := resolveAccount(a.State, args[0])
				if err != nil {
					return err
				}
				tx, err := a.State.AddTransaction(ctx, id, domain.Transaction{
					Date:        date,
					Amount:      amount,
					Description: description,
					Category:    category,
				})
				if err != nil {
					return err
				}
				return formatter(cmd, rootOpts).Message(tx, "Recorded %s on %s (%s)", formatAmount(tx.Amount), tx.Date, tx.ID)
			})
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "description")
	cmd.Flags().StringVar(&date, "date", "", "date as YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&category, "category", "", "category slug")
	return cmd
}

func newTxDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "delete <account> <tx-id>",
		Aliases:      []string{"rm"},
		Short:        "Delete a transaction",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App) error {
				id, _, err := resolveAccount(a.State, args[0])
				if err != nil {
					return err
				}
				if err := a.State.DeleteTransaction(ctx, id, args[1]); err != nil {
					return err
				}
				return formatter(cmd, rootOpts).Message(nil, "Deleted transaction %s", args[1])
			})
		},
	}
}
