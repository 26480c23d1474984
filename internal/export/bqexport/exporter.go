// Package bqexport copies transactions and balance snapshots into BigQuery
// for analytics. Exports are incremental: transactions already present in
// the table are skipped.
package bqexport

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/kids-bank/internal/domain"
	"github.com/dvloznov/kids-bank/internal/ledger"
	"github.com/dvloznov/kids-bank/internal/logger"
)

// Result summarizes an export.
type Result struct {
	Inserted int
	Skipped  int
	Balances int
}

// Export writes the transactions of accounts not yet in the table and one
// balance row per account.
func Export(ctx context.Context, repo Repository, accounts domain.AccountMap, now time.Time) (Result, error) {
	log := logger.FromContext(ctx)

	var rows []*TransactionRow
	var balances []*BalanceRow
	for _, id := range accounts.IDs() {
		acc := accounts[id]
		for _, tx := range acc.Transactions {
			row, err := toTransactionRow(id, acc.Name, tx, now)
			if err != nil {
				return Result{}, fmt.Errorf("Export: %w", err)
			}
			rows = append(rows, row)
		}
		balances = append(balances, &BalanceRow{
			AccountID:   id,
			AccountName: acc.Name,
			Balance:     decimal.NewFromFloat(ledger.Balance(acc.Transactions)).Rat(),
			GoalCount:   int64(len(acc.Goals)),
			SnapshotTS:  now,
		})
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.TransactionID
	}
	existing, err := repo.ExistingTransactionIDs(ctx, ids)
	if err != nil {
		return Result{}, fmt.Errorf("Export: %w", err)
	}

	var fresh []*TransactionRow
	for _, r := range rows {
		if !existing[r.TransactionID] {
			fresh = append(fresh, r)
		}
	}

	if err := repo.InsertTransactions(ctx, fresh); err != nil {
		return Result{}, fmt.Errorf("Export: %w", err)
	}
	if err := repo.InsertBalances(ctx, balances); err != nil {
		return Result{}, fmt.Errorf("Export: %w", err)
	}

	res := Result{Inserted: len(fresh), Skipped: len(rows) - len(fresh), Balances: len(balances)}
	log.Info().
		Int("inserted", res.Inserted).
		Int("skipped", res.Skipped).
		Int("balances", res.Balances).
		Msg("BigQuery export finished")
	return res, nil
}

func toTransactionRow(accountID, accountName string, tx domain.Transaction, now time.Time) (*TransactionRow, error) {
	date, err := civil.ParseDate(tx.Date)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: invalid date %q: %w", tx.ID, tx.Date, err)
	}

	return &TransactionRow{
		TransactionID:   tx.ID,
		AccountID:       accountID,
		AccountName:     accountName,
		TransactionDate: date,
		Amount:          decimal.NewFromFloat(tx.Amount).Rat(),
		Description:     tx.Description,
		Category:        bigquery.NullString{StringVal: tx.Category, Valid: tx.Category != ""},
		GoalID:          bigquery.NullString{StringVal: tx.GoalID, Valid: tx.GoalID != ""},
		Deleted:         tx.Deleted,
		WrittenTS:       time.UnixMilli(tx.Timestamp).UTC(),
		ExportedTS:      now,
	}, nil
}
