package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dvloznov/kids-bank/internal/app"
	"github.com/dvloznov/kids-bank/internal/domain"
	"github.com/dvloznov/kids-bank/internal/ledger"
)

// GoalSummary is one row of "goals list".
type GoalSummary struct {
	domain.Goal
	Balance  float64 `json:"balance"`
	Progress float64 `json:"progress"`
}

// NewGoalsCommand creates the goals command group.
func NewGoalsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "goals",
		Aliases: []string{"goal"},
		Short:   "Manage savings goals",
	}

	cmd.AddCommand(&cobra.Command{
		Use:          "list <account>",
		Short:        "List the goals of an account",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App) error {
				_, acc, err := resolveAccount(a.State, args[0])
				if err != nil {
					return err
				}
				goals := make([]GoalSummary, 0, len(acc.Goals))
				rows := make([][]string, 0, len(acc.Goals))
				for _, g := range acc.Goals {
					s := GoalSummary{
						Goal:     g,
						Balance:  ledger.GoalBalance(acc.Transactions, g.ID),
						Progress: ledger.GoalProgress(acc.Transactions, g),
					}
					goals = append(goals, s)
					rows = append(rows, []string{
						g.ID, g.Icon + " " + g.Name, formatAmount(s.Balance), formatAmount(g.Target),
						fmt.Sprintf("%.0f%%", s.Progress*100),
					})
				}
				return formatter(cmd, rootOpts).Print(goals, []string{"ID", "Goal", "Saved", "Target", "Progress"}, rows)
			})
		},
	})

	var icon string
	add := &cobra.Command{
		Use:          "add <account> <name> <target>",
		Short:        "Create a savings goal",
		Args:         cobra.ExactArgs(3),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseAmount(args[2])
			if err != nil {
				return err
			}
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App) error {
				id, _, err := resolveAccount(a.State, args[0])
				if err != nil {
					return err
				}
				goal, err := a.State.AddGoal(ctx, id, args[1], target, icon)
				if err != nil {
					return err
				}
				return formatter(cmd, rootOpts).Message(goal, "Created goal %s %s (%s)", goal.Icon, goal.Name, goal.ID)
			})
		},
	}
	add.Flags().StringVar(&icon, "icon", "", "goal icon")
	cmd.AddCommand(add)

	cmd.AddCommand(newGoalTransferCommand(rootOpts, "deposit", "Move money from the balance into a goal", true))
	cmd.AddCommand(newGoalTransferCommand(rootOpts, "withdraw", "Move money from a goal back to the balance", false))
	cmd.AddCommand(newGoalCloseCommand(rootOpts, "remove", "Delete a goal, refunding what it holds", false))
	cmd.AddCommand(newGoalCloseCommand(rootOpts, "complete", "Close a reached goal, keeping the money spent", true))

	return cmd
}

func newGoalTransferCommand(rootOpts *RootOptions, use, short string, deposit bool) *cobra.Command {
	return &cobra.Command{
		Use:          use + " <account> <goal> <amount>",
		Short:        short,
		Args:         cobra.ExactArgs(3),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[2])
			if err != nil {
				return err
			}
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App) error {
				id, acc, err := resolveAccount(a.State, args[0])
				if err != nil {
					return err
				}
				goal, err := resolveGoal(acc, args[1])
				if err != nil {
					return err
				}
				tx, err := a.State.TransferGoal(ctx, id, goal.ID, amount, deposit)
				if err != nil {
					return err
				}
				return formatter(cmd, rootOpts).Message(tx, "%s", tx.Description)
			})
		},
	}
}

func newGoalCloseCommand(rootOpts *RootOptions, use, short string, complete bool) *cobra.Command {
	return &cobra.Command{
		Use:          use + " <account> <goal>",
		Short:        short,
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App) error {
				id, acc, err := resolveAccount(a.State, args[0])
				if err != nil {
					return err
				}
				goal, err := resolveGoal(acc, args[1])
				if err != nil {
					return err
				}
				if complete {
					err = a.State.CompleteGoal(ctx, id, goal.ID)
				} else {
					err = a.State.RemoveGoal(ctx, id, goal.ID)
				}
				if err != nil {
					return err
				}
				return formatter(cmd, rootOpts).Message(nil, "Closed goal %s", goal.Name)
			})
		},
	}
}

// NewAllowanceCommand creates the allowance command group.
func NewAllowanceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "allowance",
		Short: "Configure and pay recurring allowances",
	}

	var interval string
	set := &cobra.Command{
		Use:          "set <account> <amount>",
		Short:        "Set the allowance of an account",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			iv := domain.AllowanceInterval(interval)
			if iv != domain.AllowanceWeekly && iv != domain.AllowanceMonthly {
				return fmt.Errorf("invalid interval %q: must be weekly or monthly", interval)
			}
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App) error {
				id, acc, err := resolveAccount(a.State, args[0])
				if err != nil {
					return err
				}
				// A new allowance is first due on the next "allowance pay".
				al := &domain.Allowance{Amount: amount, Interval: iv}
				if acc.Allowance != nil {
					al.LastPaid = acc.Allowance.LastPaid
				}
				if err := a.State.SetAllowance(ctx, id, al); err != nil {
					return err
				}
				return formatter(cmd, rootOpts).Message(al, "Allowance of %s set to %s %s", acc.Name, formatAmount(amount), iv)
			})
		},
	}
	set.Flags().StringVar(&interval, "interval", string(domain.AllowanceWeekly), "payment interval (weekly|monthly)")
	cmd.AddCommand(set)

	cmd.AddCommand(&cobra.Command{
		Use:          "clear <account>",
		Short:        "Stop the allowance of an account",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App) error {
				id, acc, err := resolveAccount(a.State, args[0])
				if err != nil {
					return err
				}
				if err := a.State.SetAllowance(ctx, id, nil); err != nil {
					return err
				}
				return formatter(cmd, rootOpts).Message(nil, "Allowance of %s cleared", acc.Name)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:          "pay",
		Short:        "Pay every allowance that is due",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App) error {
				paid, err := a.State.PayAllowances(ctx)
				if err != nil {
					return err
				}
				return formatter(cmd, rootOpts).Message(map[string]int{"paid": paid}, "Paid %d allowance(s)", paid)
			})
		},
	})

	return cmd
}
