package bqexport

import (
	"context"
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/kids-bank/internal/logger"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const migrationsTable = "schema_migrations"

// Pattern to match migration files: 0001_name.sql
var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

// Migration is a single migration file.
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// MigrationStore provides an interface for the migration bookkeeping.
type MigrationStore interface {
	// EnsureMigrationsTable creates the schema_migrations table if needed.
	EnsureMigrationsTable(ctx context.Context) error

	// AppliedVersions returns the versions already applied.
	AppliedVersions(ctx context.Context) (map[int]bool, error)

	// ApplyMigration runs m and records it as applied.
	ApplyMigration(ctx context.Context, m Migration, appliedBy string) error
}

// Migrations returns the embedded migrations for projectID.datasetID.
func Migrations(projectID, datasetID string) ([]Migration, error) {
	return ReadMigrations(migrationFS, "migrations", projectID, datasetID)
}

// ReadMigrations reads the migration files in dir, ordered by version.
// Files not named like 0001_name.sql are skipped.
func ReadMigrations(fsys fs.FS, dir, projectID, datasetID string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("ReadMigrations: %w", err)
	}

	var migrations []Migration
	seen := make(map[int]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		matches := migrationPattern.FindStringSubmatch(entry.Name())
		if matches == nil {
			continue
		}
		version, err := strconv.Atoi(matches[1])
		if err != nil {
			continue
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("ReadMigrations: version %04d used by %s and %s", version, prev, entry.Name())
		}
		seen[version] = entry.Name()

		content, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("ReadMigrations: %s: %w", entry.Name(), err)
		}

		// The checksum covers the file before placeholder substitution, so it
		// is the same for every project and dataset.
		sql := strings.ReplaceAll(string(content), "{{PROJECT_ID}}", projectID)
		sql = strings.ReplaceAll(sql, "{{DATASET_ID}}", datasetID)

		migrations = append(migrations, Migration{
			Version:  version,
			Name:     matches[2],
			Filename: entry.Name(),
			SQL:      sql,
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// Migrate applies the migrations not yet recorded in store and returns the
// ones it applied.
func Migrate(ctx context.Context, store MigrationStore, migrations []Migration, appliedBy string) ([]Migration, error) {
	log := logger.FromContext(ctx)

	if err := store.EnsureMigrationsTable(ctx); err != nil {
		return nil, fmt.Errorf("Migrate: %w", err)
	}
	applied, err := store.AppliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("Migrate: %w", err)
	}

	var ran []Migration
	for _, m := range migrations {
		if applied[m.Version] {
			log.Debug().Int("version", m.Version).Str("name", m.Name).Msg("Migration already applied")
			continue
		}
		if err := store.ApplyMigration(ctx, m, appliedBy); err != nil {
			return ran, fmt.Errorf("Migrate: %04d_%s: %w", m.Version, m.Name, err)
		}
		log.Info().Int("version", m.Version).Str("name", m.Name).Msg("Applied migration")
		ran = append(ran, m)
	}
	return ran, nil
}

// EnsureMigrationsTable implements MigrationStore.
func (r *BigQueryRepository) EnsureMigrationsTable(ctx context.Context) error {
	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS `+"`%s.%s.%s`"+` (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)
	`, r.projectID, r.datasetID, migrationsTable)

	if err := runQuery(ctx, r.client.Query(sql)); err != nil {
		return fmt.Errorf("EnsureMigrationsTable: %w", err)
	}
	return nil
}

// AppliedVersions implements MigrationStore.
func (r *BigQueryRepository) AppliedVersions(ctx context.Context) (map[int]bool, error) {
	sql := fmt.Sprintf(`
		SELECT version, name, applied_at
		FROM `+"`%s.%s.%s`"+`
		ORDER BY version ASC
	`, r.projectID, r.datasetID, migrationsTable)

	it, err := r.client.Query(sql).Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("AppliedVersions: query read: %w", err)
	}

	applied := make(map[int]bool)
	for {
		var row struct {
			Version   int64     `bigquery:"version"`
			Name      string    `bigquery:"name"`
			AppliedAt time.Time `bigquery:"applied_at"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("AppliedVersions: iter next: %w", err)
		}
		applied[int(row.Version)] = true
	}
	return applied, nil
}

// ApplyMigration implements MigrationStore.
func (r *BigQueryRepository) ApplyMigration(ctx context.Context, m Migration, appliedBy string) error {
	if err := runQuery(ctx, r.client.Query(m.SQL)); err != nil {
		return fmt.Errorf("ApplyMigration: execute: %w", err)
	}

	q := r.client.Query(fmt.Sprintf(`
		INSERT INTO `+"`%s.%s.%s`"+`
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`, r.projectID, r.datasetID, migrationsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "version", Value: m.Version},
		{Name: "name", Value: m.Name},
		{Name: "checksum", Value: m.Checksum},
		{Name: "applied_by", Value: appliedBy},
	}
	if err := runQuery(ctx, q); err != nil {
		return fmt.Errorf("ApplyMigration: record: %w", err)
	}
	return nil
}

// runQuery runs q and waits for the job to finish.
func runQuery(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}

// Ensure BigQueryRepository implements MigrationStore.
var _ MigrationStore = (*BigQueryRepository)(nil)
