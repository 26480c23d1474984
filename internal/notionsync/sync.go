// Package notionsync mirrors the ledger into two Notion databases, one row per
// account and one per live transaction.
package notionsync

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/kids-bank/internal/domain"
	"github.com/dvloznov/kids-bank/internal/logger"
)

// PageSize is the number of results requested per database query.
const PageSize = 100

// Stats counts what a sync did, or would do in dry-run mode.
type Stats struct {
	Created  int
	Updated  int
	Archived int
	Skipped  int
	Failed   int
}

// Result holds the stats of both databases.
type Result struct {
	Accounts     Stats
	Transactions Stats
}

// Sync exports accounts then transactions. Either database id may be empty to
// skip it.
func Sync(ctx context.Context, client Service, accountsDBID, transactionsDBID string, accounts domain.AccountMap, dryRun bool) (Result, error) {
	var res Result
	var err error

	if accountsDBID != "" {
		if res.Accounts, err = SyncAccounts(ctx, client, accountsDBID, accounts, dryRun); err != nil {
			return res, fmt.Errorf("Sync: %w", err)
		}
	}
	if transactionsDBID != "" {
		if res.Transactions, err = SyncTransactions(ctx, client, transactionsDBID, accounts, dryRun); err != nil {
			return res, fmt.Errorf("Sync: %w", err)
		}
	}
	return res, nil
}

// row is a desired database row keyed by the value of its title property.
type row struct {
	key   string
	props notionapi.Properties
}

// SyncAccounts archives pages of removed accounts, refreshes existing ones and
// creates the missing ones. Balances change, so existing rows are updated.
func SyncAccounts(ctx context.Context, client Service, databaseID string, accounts domain.AccountMap, dryRun bool) (Stats, error) {
	rows := make([]row, 0, len(accounts))
	for _, id := range accounts.IDs() {
		rows = append(rows, row{key: id, props: AccountToProperties(id, accounts[id])})
	}

	stats, err := syncDatabase(ctx, client, databaseID, "account", propAccountID, rows, true, dryRun)
	if err != nil {
		return stats, fmt.Errorf("SyncAccounts: %w", err)
	}
	return stats, nil
}

// SyncTransactions archives pages of deleted transactions and creates the
// missing ones. Existing rows are left alone: a transaction is never edited,
// only soft deleted.
func SyncTransactions(ctx context.Context, client Service, databaseID string, accounts domain.AccountMap, dryRun bool) (Stats, error) {
	var rows []row
	for _, id := range accounts.IDs() {
		acc := accounts[id]
		for _, tx := range acc.Transactions {
			if tx.Deleted {
				continue
			}
			rows = append(rows, row{key: tx.ID, props: TransactionToProperties(id, acc.Name, tx)})
		}
	}

	stats, err := syncDatabase(ctx, client, databaseID, "transaction", propTransactionID, rows, false, dryRun)
	if err != nil {
		return stats, fmt.Errorf("SyncTransactions: %w", err)
	}
	return stats, nil
}

func syncDatabase(ctx context.Context, client Service, databaseID, kind, keyProp string, rows []row, update, dryRun bool) (Stats, error) {
	log := logger.FromContext(ctx).With().
		Str("kind", kind).
		Bool("dry_run", dryRun).
		Logger()

	log.Info().Int("row_count", len(rows)).Msg("Starting Notion sync")

	pages, err := queryAllPages(ctx, client, databaseID)
	if err != nil {
		return Stats{}, err
	}
	log.Info().Int("notion_page_count", len(pages)).Msg("Retrieved existing Notion pages")

	wanted := make(map[string]bool, len(rows))
	for _, r := range rows {
		wanted[r.key] = true
	}

	var stats Stats
	existing := make(map[string]string, len(pages))
	for _, page := range pages {
		key := titleValue(page, keyProp)
		pageID := string(page.ID)

		// Pages without a key, duplicates and rows no longer in the ledger go.
		_, dup := existing[key]
		if key != "" && wanted[key] && !dup {
			existing[key] = pageID
			continue
		}

		if dryRun {
			log.Info().Str("key", key).Str("page_id", pageID).Msg("[DRY RUN] Would archive stale Notion page")
			stats.Archived++
			continue
		}
		if err := client.ArchivePage(ctx, pageID); err != nil {
			log.Warn().Err(err).Str("key", key).Str("page_id", pageID).Msg("Failed to archive stale Notion page")
			stats.Failed++
			continue
		}
		stats.Archived++
	}

	for _, r := range rows {
		pageID, ok := existing[r.key]
		switch {
		case ok && !update:
			stats.Skipped++
		case dryRun && ok:
			log.Info().Str("key", r.key).Str("page_id", pageID).Msg("[DRY RUN] Would update Notion page")
			stats.Updated++
		case dryRun:
			log.Info().Str("key", r.key).Msg("[DRY RUN] Would create Notion page")
			stats.Created++
		case ok:
			if _, err := client.UpdatePage(ctx, pageID, r.props); err != nil {
				log.Warn().Err(err).Str("key", r.key).Str("page_id", pageID).Msg("Failed to update Notion page")
				stats.Failed++
				continue
			}
			stats.Updated++
		default:
			page, err := client.CreatePage(ctx, databaseID, r.props)
			if err != nil {
				log.Warn().Err(err).Str("key", r.key).Msg("Failed to create Notion page")
				stats.Failed++
				continue
			}
			log.Debug().Str("key", r.key).Str("page_id", string(page.ID)).Msg("Created Notion page")
			stats.Created++
		}
	}

	log.Info().
		Int("created", stats.Created).
		Int("updated", stats.Updated).
		Int("archived", stats.Archived).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Msg("Notion sync completed")

	return stats, nil
}

// queryAllPages follows the query cursor until every page has been read.
func queryAllPages(ctx context.Context, client Service, databaseID string) ([]notionapi.Page, error) {
	var pages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{PageSize: PageSize}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := client.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllPages: %w", err)
		}
		pages = append(pages, resp.Results...)

		if !resp.HasMore {
			return pages, nil
		}
		cursor = resp.NextCursor
	}
}
