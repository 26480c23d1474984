package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/kids-bank/internal/domain"
)

// testEnv runs commands against a SQLite database in a temp dir.
type testEnv struct {
	dir string
	db  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	return &testEnv{dir: dir, db: filepath.Join(dir, "kidsbank.db")}
}

func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{
		"--db=" + e.db,
		"--config=" + filepath.Join(e.dir, "missing.yaml"),
		"--env=" + filepath.Join(e.dir, "missing.env"),
	}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (e *testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	require.NoError(t, err, "kidsbank %s", strings.Join(args, " "))
	return out
}

func (e *testEnv) accounts(t *testing.T) []AccountSummary {
	t.Helper()
	var list []AccountSummary
	require.NoError(t, json.Unmarshal([]byte(e.mustRun(t, "--format", "json", "accounts", "list")), &list))
	return list
}

func TestAccountsAndTransactions(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "accounts", "add", "Sam")
	assert.Contains(t, out, "Created account Sam")

	env.mustRun(t, "tx", "add", "sam", "5", "--description", "Washing up", "--category", "chores")
	env.mustRun(t, "tx", "add", "Sam", "--description", "Sweets", "--", "-2.5")

	list := env.accounts(t)
	require.Len(t, list, 1)
	assert.Equal(t, "Sam", list[0].Name)
	assert.Equal(t, 2.5, list[0].Balance)
	assert.Equal(t, 2, list[0].Transactions)

	var txs []domain.Transaction
	require.NoError(t, json.Unmarshal([]byte(env.mustRun(t, "--format", "json", "tx", "list", "Sam")), &txs))
	require.Len(t, txs, 2)

	var washing domain.Transaction
	for _, tx := range txs {
		if tx.Description == "Washing up" {
			washing = tx
		}
	}
	require.NotEmpty(t, washing.ID)
	assert.Equal(t, "chores", washing.Category)

	env.mustRun(t, "tx", "delete", "Sam", washing.ID)
	list = env.accounts(t)
	assert.Equal(t, -2.5, list[0].Balance)
	assert.Equal(t, 1, list[0].Transactions)

	out = env.mustRun(t, "tx", "list", "--all", "Sam")
	assert.Contains(t, out, "Washing up")

	env.mustRun(t, "accounts", "rename", list[0].ID, "Samantha")
	out = env.mustRun(t, "accounts", "list")
	assert.Contains(t, out, "Samantha")

	env.mustRun(t, "accounts", "remove", "Samantha")
	assert.Empty(t, env.accounts(t))
}

func TestTransactionValidation(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "accounts", "add", "Sam")

	_, err := env.run(t, "tx", "add", "Sam", "0")
	assert.Error(t, err)

	_, err = env.run(t, "tx", "add", "Sam", "abc")
	assert.Error(t, err)

	_, err = env.run(t, "tx", "add", "Sam", "3", "--date", "03/01/2024")
	assert.Error(t, err)

	_, err = env.run(t, "tx", "add", "Sam", "3", "--category", "toys")
	assert.Error(t, err, "toys is a spend category")

	_, err = env.run(t, "tx", "add", "Nobody", "3")
	assert.Error(t, err)
}

func TestAmbiguousAccountName(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "accounts", "add", "Sam")
	env.mustRun(t, "accounts", "add", "sam")

	_, err := env.run(t, "tx", "add", "Sam", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ambiguous")
}

func TestGoalsAndAllowance(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "accounts", "add", "Sam")
	env.mustRun(t, "tx", "add", "Sam", "20")
	env.mustRun(t, "goals", "add", "Sam", "Bike", "10", "--icon", "🚲")
	env.mustRun(t, "goals", "deposit", "Sam", "bike", "4")

	var goals []GoalSummary
	require.NoError(t, json.Unmarshal([]byte(env.mustRun(t, "--format", "json", "goals", "list", "Sam")), &goals))
	require.Len(t, goals, 1)
	assert.Equal(t, "Bike", goals[0].Name)
	assert.Equal(t, 4.0, goals[0].Balance)
	assert.InDelta(t, 0.4, goals[0].Progress, 1e-9)
	assert.Equal(t, 16.0, env.accounts(t)[0].Balance)

	env.mustRun(t, "goals", "withdraw", "Sam", "Bike", "1")
	env.mustRun(t, "goals", "remove", "Sam", "Bike")
	list := env.accounts(t)
	assert.Equal(t, 20.0, list[0].Balance, "removing a goal refunds its balance")
	assert.Zero(t, list[0].Goals)

	_, err := env.run(t, "allowance", "set", "Sam", "2", "--interval", "daily")
	assert.Error(t, err)

	env.mustRun(t, "allowance", "set", "Sam", "2", "--interval", "weekly")
	out := env.mustRun(t, "--format", "json", "allowance", "pay")
	assert.JSONEq(t, `{"paid":1}`, out)

	out = env.mustRun(t, "--format", "json", "allowance", "pay")
	assert.JSONEq(t, `{"paid":0}`, out)
	assert.Equal(t, 22.0, env.accounts(t)[0].Balance)

	env.mustRun(t, "allowance", "clear", "Sam")
}

func TestExportImport(t *testing.T) {
	src := newTestEnv(t)
	src.mustRun(t, "accounts", "add", "Sam")
	src.mustRun(t, "tx", "add", "Sam", "7.25", "--description", "Birthday", "--category", "gift")

	backup := filepath.Join(src.dir, "backup.json")
	src.mustRun(t, "export", "json", "--out", backup)

	csvOut := src.mustRun(t, "export", "csv")
	assert.True(t, strings.HasPrefix(csvOut, "Account ID,Account Name,Transaction ID"))
	assert.Contains(t, csvOut, "Birthday")

	dst := newTestEnv(t)
	dst.mustRun(t, "accounts", "add", "Old")
	out := dst.mustRun(t, "import", backup)
	assert.Contains(t, out, "Imported 1 account(s)")

	list := dst.accounts(t)
	require.Len(t, list, 1)
	assert.Equal(t, "Sam", list[0].Name)
	assert.Equal(t, 7.25, list[0].Balance)

	_, err := dst.run(t, "import", filepath.Join(src.dir, "missing.json"))
	assert.Error(t, err)
}

func TestChart(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "accounts", "add", "Sam")
	env.mustRun(t, "tx", "add", "Sam", "3")

	png := filepath.Join(env.dir, "sam.png")
	env.mustRun(t, "chart", "Sam", "--days", "7", "--out", png)

	data, err := os.ReadFile(png)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))

	_, err = env.run(t, "chart", "Sam", "--days", "0")
	assert.Error(t, err)
}

func TestSyncCommands(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "sync", "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")

	env.mustRun(t, "sync", "keys")
	var status SyncStatus
	require.NoError(t, json.Unmarshal([]byte(env.mustRun(t, "--format", "json", "sync", "status")), &status))
	assert.False(t, status.Enabled)
	assert.False(t, status.Configured)
	assert.NotEmpty(t, status.GUID)
	assert.Equal(t, domain.CloudModeNone, status.Mode)

	env.mustRun(t, "sync", "enable")
	require.NoError(t, json.Unmarshal([]byte(env.mustRun(t, "--format", "json", "sync", "status")), &status))
	assert.True(t, status.Configured)

	// No transport settings, so there is nothing to pair with.
	_, err = env.run(t, "sync", "pairing")
	assert.Error(t, err)

	env.mustRun(t, "sync", "disable")
	require.NoError(t, json.Unmarshal([]byte(env.mustRun(t, "--format", "json", "sync", "status")), &status))
	assert.False(t, status.Enabled)
}

func TestPairRejectsInvalidPayload(t *testing.T) {
	env := newTestEnv(t)

	file := filepath.Join(env.dir, "pairing.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"aws":{},"guid":"g","key":"k"}`), 0o600))
	_, err := env.run(t, "sync", "pair", file)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(file, []byte(`not json`), 0o600))
	_, err = env.run(t, "sync", "pair", file)
	assert.Error(t, err)
}

func TestIntegrationsRequireConfig(t *testing.T) {
	t.Setenv("KIDSBANK_NOTION_TOKEN", "")
	t.Setenv("KIDSBANK_GEMINI_API_KEY", "")
	t.Setenv("KIDSBANK_BIGQUERY_PROJECT_ID", "")

	env := newTestEnv(t)

	_, err := env.run(t, "notion-sync")
	assert.ErrorContains(t, err, "notion token")

	_, err = env.run(t, "categorize", "ice cream")
	assert.ErrorContains(t, err, "gemini api key")

	_, err = env.run(t, "bq-export")
	assert.ErrorContains(t, err, "BigQuery project")
}
