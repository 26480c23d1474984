package notionsync

import (
	"context"

	"github.com/jomei/notionapi"
)

// Service provides an interface for the Notion operations the export needs.
type Service interface {
	// CreatePage creates a new page in a database.
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)

	// UpdatePage updates the properties of an existing page.
	UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error)

	// QueryDatabase returns one page of database results.
	QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)

	// ArchivePage archives a page.
	ArchivePage(ctx context.Context, pageID string) error
}
