package bqexport

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/kids-bank/internal/domain"
	"github.com/dvloznov/kids-bank/internal/logger"
)

// mockRepository is a mock implementation of Repository for testing.
type mockRepository struct {
	ExistingTransactionIDsFunc func(ctx context.Context, ids []string) (map[string]bool, error)
	InsertTransactionsFunc     func(ctx context.Context, rows []*TransactionRow) error
	InsertBalancesFunc         func(ctx context.Context, rows []*BalanceRow) error
}

func (m *mockRepository) ExistingTransactionIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	if m.ExistingTransactionIDsFunc != nil {
		return m.ExistingTransactionIDsFunc(ctx, ids)
	}
	return map[string]bool{}, nil
}

func (m *mockRepository) InsertTransactions(ctx context.Context, rows []*TransactionRow) error {
	if m.InsertTransactionsFunc != nil {
		return m.InsertTransactionsFunc(ctx, rows)
	}
	return nil
}

func (m *mockRepository) InsertBalances(ctx context.Context, rows []*BalanceRow) error {
	if m.InsertBalancesFunc != nil {
		return m.InsertBalancesFunc(ctx, rows)
	}
	return nil
}

var exportNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func testAccounts() domain.AccountMap {
	return domain.AccountMap{
		"a": {
			Name: "Ann",
			Transactions: []domain.Transaction{
				{ID: "t1", Date: "2024-03-01", Amount: 10.25, Description: "Gift", Timestamp: 1000, Category: "gift"},
				{ID: "t2", Date: "2024-03-02", Amount: -3, Description: "Saved for Bike", Timestamp: 2000, Category: "goals", GoalID: "g1"},
			},
			Goals: []domain.Goal{{ID: "g1", Name: "Bike", Target: 50}},
		},
	}
}

func TestExport_SkipsExistingTransactions(t *testing.T) {
	ctx := logger.WithContext(context.Background(), zerolog.Nop())

	var inserted []*TransactionRow
	var balances []*BalanceRow
	repo := &mockRepository{
		ExistingTransactionIDsFunc: func(ctx context.Context, ids []string) (map[string]bool, error) {
			assert.ElementsMatch(t, []string{"t1", "t2"}, ids)
			return map[string]bool{"t1": true}, nil
		},
		InsertTransactionsFunc: func(ctx context.Context, rows []*TransactionRow) error {
			inserted = rows
			return nil
		},
		InsertBalancesFunc: func(ctx context.Context, rows []*BalanceRow) error {
			balances = rows
			return nil
		},
	}

	res, err := Export(ctx, repo, testAccounts(), exportNow)
	require.NoError(t, err)
	assert.Equal(t, Result{Inserted: 1, Skipped: 1, Balances: 1}, res)

	require.Len(t, inserted, 1)
	row := inserted[0]
	assert.Equal(t, "t2", row.TransactionID)
	assert.Equal(t, "Ann", row.AccountName)
	assert.Equal(t, "2024-03-02", row.TransactionDate.String())
	assert.Equal(t, 0, row.Amount.Cmp(big.NewRat(-3, 1)))
	assert.True(t, row.GoalID.Valid)
	assert.Equal(t, time.UnixMilli(2000).UTC(), row.WrittenTS)

	require.Len(t, balances, 1)
	assert.Equal(t, 0, balances[0].Balance.Cmp(big.NewRat(29, 4)))
	assert.Equal(t, int64(1), balances[0].GoalCount)
}

func TestExport_InvalidDate(t *testing.T) {
	ctx := logger.WithContext(context.Background(), zerolog.Nop())
	accounts := domain.AccountMap{"a": {Name: "A", Transactions: []domain.Transaction{{ID: "t", Date: "yesterday"}}}}

	_, err := Export(ctx, &mockRepository{}, accounts, exportNow)
	assert.Error(t, err)
}

func TestExport_RepositoryError(t *testing.T) {
	ctx := logger.WithContext(context.Background(), zerolog.Nop())
	repo := &mockRepository{
		ExistingTransactionIDsFunc: func(ctx context.Context, ids []string) (map[string]bool, error) {
			return nil, errors.New("quota exceeded")
		},
	}

	_, err := Export(ctx, repo, testAccounts(), exportNow)
	assert.ErrorContains(t, err, "quota exceeded")
}
