package state

import (
	"context"
	"fmt"

	"github.com/dvloznov/kids-bank/internal/domain"
	"github.com/dvloznov/kids-bank/internal/ledger"
)

// DefaultGoalIcon is used when a goal is created without an icon.
const DefaultGoalIcon = "🎯"

// AddGoal creates a savings goal in the account.
func (s *State) AddGoal(ctx context.Context, accountID, name string, target float64, icon string) (domain.Goal, error) {
	if target <= 0 {
		return domain.Goal{}, fmt.Errorf("AddGoal: %w", ErrInvalidAmount)
	}
	if icon == "" {
		icon = DefaultGoalIcon
	}

	var goal domain.Goal
	err := s.mutate(ctx, func() error {
		acc, ok := s.accounts[accountID]
		if !ok {
			return ErrAccountNotFound
		}
		goal = domain.Goal{
			ID:      s.newID(),
			Name:    name,
			Target:  target,
			Icon:    icon,
			Created: s.nowMillis(),
		}
		acc.Goals = append(append([]domain.Goal{}, acc.Goals...), goal)
		s.accounts[accountID] = acc
		return nil
	})
	if err != nil {
		return domain.Goal{}, fmt.Errorf("AddGoal: %w", err)
	}
	return goal, nil
}

// TransferGoal moves money between the account balance and a goal. A deposit
// is recorded as a debit tagged with the goal, a withdrawal as a credit.
func (s *State) TransferGoal(ctx context.Context, accountID, goalID string, amount float64, deposit bool) (domain.Transaction, error) {
	if amount <= 0 {
		return domain.Transaction{}, fmt.Errorf("TransferGoal: %w", ErrInvalidAmount)
	}

	var tx domain.Transaction
	err := s.mutate(ctx, func() error {
		acc, ok := s.accounts[accountID]
		if !ok {
			return ErrAccountNotFound
		}
		i := acc.FindGoal(goalID)
		if i < 0 {
			return ErrGoalNotFound
		}
		goal := acc.Goals[i]

		tx = s.newTransaction(domain.GoalsCategory, goal.ID)
		if deposit {
			tx.Amount = -amount
			tx.Description = "Saved for " + goal.Name
		} else {
			tx.Amount = amount
			tx.Description = "Withdrew from " + goal.Name
		}
		acc.Transactions = append(cloneTxs(acc.Transactions), tx)
		s.accounts[accountID] = acc
		return nil
	})
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("TransferGoal: %w", err)
	}
	return tx, nil
}

// RemoveGoal deletes a goal. A positive goal balance is refunded to the
// account as a credit first.
func (s *State) RemoveGoal(ctx context.Context, accountID, goalID string) error {
	if err := s.closeGoal(ctx, accountID, goalID, true); err != nil {
		return fmt.Errorf("RemoveGoal: %w", err)
	}
	return nil
}

// CompleteGoal closes a reached goal. The saved money stays spent.
func (s *State) CompleteGoal(ctx context.Context, accountID, goalID string) error {
	if err := s.closeGoal(ctx, accountID, goalID, false); err != nil {
		return fmt.Errorf("CompleteGoal: %w", err)
	}
	return nil
}

func (s *State) closeGoal(ctx context.Context, accountID, goalID string, refund bool) error {
	return s.mutate(ctx, func() error {
		acc, ok := s.accounts[accountID]
		if !ok {
			return ErrAccountNotFound
		}
		i := acc.FindGoal(goalID)
		if i < 0 {
			return ErrGoalNotFound
		}
		goal := acc.Goals[i]

		txs := cloneTxs(acc.Transactions)
		if balance := ledger.GoalBalance(txs, goal.ID); refund && balance > 0 {
			tx := s.newTransaction(domain.GoalsCategory, "")
			tx.Amount = balance
			tx.Description = "Refund: " + goal.Name
			txs = append(txs, tx)
		}

		goals := make([]domain.Goal, 0, len(acc.Goals)-1)
		goals = append(goals, acc.Goals[:i]...)
		goals = append(goals, acc.Goals[i+1:]...)

		acc.Transactions = txs
		acc.Goals = goals
		s.accounts[accountID] = acc
		return nil
	})
}

// SetAllowance installs or, with nil, removes the account's allowance.
func (s *State) SetAllowance(ctx context.Context, accountID string, al *domain.Allowance) error {
	if al != nil && al.Amount <= 0 {
		return fmt.Errorf("SetAllowance: %w", ErrInvalidAmount)
	}

	err := s.mutate(ctx, func() error {
		acc, ok := s.accounts[accountID]
		if !ok {
			return ErrAccountNotFound
		}
		if al == nil {
			acc.Allowance = nil
		} else {
			cp := *al
			acc.Allowance = &cp
		}
		s.accounts[accountID] = acc
		return nil
	})
	if err != nil {
		return fmt.Errorf("SetAllowance: %w", err)
	}
	return nil
}

// PayAllowances credits every allowance payment due up to today across all
// accounts and returns the number of transactions added.
func (s *State) PayAllowances(ctx context.Context) (int, error) {
	paid := 0
	err := s.mutate(ctx, func() error {
		today := s.now()
		for id, acc := range s.accounts {
			if acc.Allowance == nil {
				continue
			}
			due := ledger.DueAllowances(*acc.Allowance, today)
			if len(due) == 0 {
				continue
			}

			txs := cloneTxs(acc.Transactions)
			for _, date := range due {
				tx := s.newTransaction(domain.AllowanceCategory, "")
				tx.Date = date
				tx.Amount = acc.Allowance.Amount
				tx.Description = "Allowance"
				txs = append(txs, tx)
			}
			al := *acc.Allowance
			al.LastPaid = due[len(due)-1]

			acc.Transactions = txs
			acc.Allowance = &al
			s.accounts[id] = acc
			paid += len(due)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("PayAllowances: %w", err)
	}
	return paid, nil
}

func (s *State) newTransaction(category, goalID string) domain.Transaction {
	return domain.Transaction{
		ID:        s.newID(),
		Date:      ledger.Today(s.now()),
		Timestamp: s.nowMillis(),
		Category:  category,
		GoalID:    goalID,
	}
}
