package bqexport

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/kids-bank/internal/logger"
)

type mockMigrationStore struct {
	applied map[int]bool
	ran     []int
	failOn  int
}

func (m *mockMigrationStore) EnsureMigrationsTable(ctx context.Context) error { return nil }

func (m *mockMigrationStore) AppliedVersions(ctx context.Context) (map[int]bool, error) {
	return m.applied, nil
}

func (m *mockMigrationStore) ApplyMigration(ctx context.Context, mig Migration, appliedBy string) error {
	if mig.Version == m.failOn {
		return errors.New("boom")
	}
	m.ran = append(m.ran, mig.Version)
	return nil
}

func TestReadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"m/0002_second.sql":   {Data: []byte("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.b` (id INT64);")},
		"m/0001_first.sql":    {Data: []byte("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.a` (id INT64);")},
		"m/001_invalid.sql":   {Data: []byte("x")},
		"m/0003_test":         {Data: []byte("x")},
		"m/0004.sql":          {Data: []byte("x")},
		"m/invalid_0005.sql":  {Data: []byte("x")},
		"m/README.md":         {Data: []byte("docs")},
		"m/nested/0006_x.sql": {Data: []byte("x")},
	}

	migrations, err := ReadMigrations(fsys, "m", "proj", "kids")
	require.NoError(t, err)
	require.Len(t, migrations, 2)

	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "first", migrations[0].Name)
	assert.Equal(t, "CREATE TABLE `proj.kids.a` (id INT64);", migrations[0].SQL)
	assert.Equal(t, 2, migrations[1].Version)

	// Checksums do not depend on the target dataset.
	other, err := ReadMigrations(fsys, "m", "proj", "other")
	require.NoError(t, err)
	assert.Equal(t, migrations[0].Checksum, other[0].Checksum)
	assert.NotEqual(t, migrations[0].Checksum, migrations[1].Checksum)
}

func TestReadMigrations_DuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"m/0001_a.sql": {Data: []byte("a")},
		"m/0001_b.sql": {Data: []byte("b")},
	}
	_, err := ReadMigrations(fsys, "m", "p", "d")
	assert.Error(t, err)
}

func TestEmbeddedMigrations(t *testing.T) {
	migrations, err := Migrations("proj", "kids")
	require.NoError(t, err)
	require.Len(t, migrations, 3)

	assert.Contains(t, migrations[1].SQL, "`proj.kids.transactions`")
	assert.Contains(t, migrations[2].SQL, "`proj.kids.balances`")
	for _, m := range migrations {
		assert.NotContains(t, m.SQL, "{{")
	}
}

func TestMigrate(t *testing.T) {
	ctx := logger.WithContext(context.Background(), zerolog.Nop())
	migrations := []Migration{{Version: 1, Name: "a"}, {Version: 2, Name: "b"}, {Version: 3, Name: "c"}}

	store := &mockMigrationStore{applied: map[int]bool{1: true}}
	ran, err := Migrate(ctx, store, migrations, "test")
	require.NoError(t, err)
	assert.Len(t, ran, 2)
	assert.Equal(t, []int{2, 3}, store.ran)

	store = &mockMigrationStore{applied: map[int]bool{}, failOn: 2}
	ran, err = Migrate(ctx, store, migrations, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0002_b")
	assert.Len(t, ran, 1, "migrations after a failure are not run")
	assert.Equal(t, []int{1}, store.ran)
}
