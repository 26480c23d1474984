package bqexport

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

// TransactionRow is one transaction in the analytics table.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED

	AccountID   string `bigquery:"account_id"`   // REQUIRED
	AccountName string `bigquery:"account_name"` // NULLABLE

	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED
	Amount          *big.Rat   `bigquery:"amount"`           // REQUIRED NUMERIC
	Description     string     `bigquery:"description"`      // REQUIRED STRING

	Category bigquery.NullString `bigquery:"category"` // NULLABLE
	GoalID   bigquery.NullString `bigquery:"goal_id"`  // NULLABLE
	Deleted  bool                `bigquery:"deleted"`

	WrittenTS  time.Time `bigquery:"written_ts"`  // REQUIRED, the transaction timestamp
	ExportedTS time.Time `bigquery:"exported_ts"` // REQUIRED
}

// BalanceRow is a per-account balance snapshot taken at export time.
type BalanceRow struct {
	AccountID   string    `bigquery:"account_id"`
	AccountName string    `bigquery:"account_name"`
	Balance     *big.Rat  `bigquery:"balance"` // NUMERIC
	GoalCount   int64     `bigquery:"goal_count"`
	SnapshotTS  time.Time `bigquery:"snapshot_ts"`
}
