package bqexport

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

const (
	transactionsTable = "transactions"
	balancesTable     = "balances"
)

// Repository provides an interface for the analytics tables.
// This interface enables testing the exporter without BigQuery.
type Repository interface {
	// ExistingTransactionIDs returns which of ids are already exported.
	ExistingTransactionIDs(ctx context.Context, ids []string) (map[string]bool, error)

	// InsertTransactions appends transaction rows.
	InsertTransactions(ctx context.Context, rows []*TransactionRow) error

	// InsertBalances appends balance snapshot rows.
	InsertBalances(ctx context.Context, rows []*BalanceRow) error
}

// BigQueryRepository is the concrete implementation of Repository
// that interacts with BigQuery. It holds a shared client.
type BigQueryRepository struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewBigQueryRepository creates a repository writing to projectID.datasetID.
func NewBigQueryRepository(ctx context.Context, projectID, datasetID string) (*BigQueryRepository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryRepository: creating client: %w", err)
	}
	return &BigQueryRepository{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
	}, nil
}

// ProjectID returns the GCP project of the dataset.
func (r *BigQueryRepository) ProjectID() string { return r.projectID }

// DatasetID returns the dataset the tables live in.
func (r *BigQueryRepository) DatasetID() string { return r.datasetID }

// Close closes the BigQuery client connection.
func (r *BigQueryRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// ExistingTransactionIDs delegates to ExistingTransactionIDsWithClient.
func (r *BigQueryRepository) ExistingTransactionIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	return ExistingTransactionIDsWithClient(ctx, r.client, r.projectID, r.datasetID, ids)
}

// InsertTransactions delegates to InsertTransactionsWithClient.
func (r *BigQueryRepository) InsertTransactions(ctx context.Context, rows []*TransactionRow) error {
	return InsertTransactionsWithClient(ctx, r.client, r.projectID, r.datasetID, rows)
}

// InsertBalances delegates to InsertBalancesWithClient.
func (r *BigQueryRepository) InsertBalances(ctx context.Context, rows []*BalanceRow) error {
	return InsertBalancesWithClient(ctx, r.client, r.projectID, r.datasetID, rows)
}

// ExistingTransactionIDsWithClient queries the transaction table for ids.
func ExistingTransactionIDsWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID string, ids []string) (map[string]bool, error) {
	found := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	q := client.Query(fmt.Sprintf(`
		SELECT DISTINCT transaction_id
		FROM `+"`%s.%s.%s`"+`
		WHERE transaction_id IN UNNEST(@ids)
	`, projectID, datasetID, transactionsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "ids", Value: ids},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ExistingTransactionIDs: query read: %w", err)
	}

	for {
		var row struct {
			TransactionID string `bigquery:"transaction_id"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ExistingTransactionIDs: iter next: %w", err)
		}
		found[row.TransactionID] = true
	}
	return found, nil
}

// InsertTransactionsWithClient inserts a batch of TransactionRow.
func InsertTransactionsWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID string, rows []*TransactionRow) error {
	if len(rows) == 0 {
		return nil
	}

	inserter := client.DatasetInProject(projectID, datasetID).Table(transactionsTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertTransactions: inserting rows: %w", err)
	}
	return nil
}

// InsertBalancesWithClient inserts a batch of BalanceRow.
func InsertBalancesWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID string, rows []*BalanceRow) error {
	if len(rows) == 0 {
		return nil
	}

	inserter := client.DatasetInProject(projectID, datasetID).Table(balancesTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertBalances: inserting rows: %w", err)
	}
	return nil
}

// Ensure BigQueryRepository implements Repository.
var _ Repository = (*BigQueryRepository)(nil)
