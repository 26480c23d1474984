package export

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/kids-bank/internal/domain"
)

func sampleAccounts() domain.AccountMap {
	return domain.AccountMap{
		"b2": {Name: "Ben", Transactions: []domain.Transaction{}},
		"a1": {
			Name: `Ann "Ace"`,
			Transactions: []domain.Transaction{
				{ID: "t1", Date: "2024-03-01", Description: "Gift, from Gran", Amount: 10.5, Timestamp: 1709251200000},
				{ID: "t2", Date: "2024-03-02", Description: "Candy", Amount: -2},
			},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleAccounts()))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "accounts_csv", buf.Bytes())
}

func TestBackup_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBackup(&buf, domain.SyncPayload{
		Accounts:   sampleAccounts(),
		DeletedIDs: []string{"z9"},
	}))
	assert.Contains(t, buf.String(), `"deletedAccountIds": [`)

	b, err := ParseBackup(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "b2"}, b.Accounts.IDs())
	assert.Equal(t, []string{"z9"}, b.DeletedAccountIDs)
	assert.Equal(t, "Gift, from Gran", b.Accounts["a1"].Transactions[0].Description)
}

func TestWriteBackup_EmptyState(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBackup(&buf, domain.SyncPayload{}))
	assert.JSONEq(t, `{"accounts":{},"deletedAccountIds":[]}`, buf.String())
}

func TestParseBackup_BareAccountMap(t *testing.T) {
	b, err := ParseBackup([]byte(`{"x1":{"name":"X","transactions":[]}}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"x1"}, b.Accounts.IDs())
	assert.NotNil(t, b.DeletedAccountIDs)
	assert.Empty(t, b.DeletedAccountIDs)
}

func TestParseBackup_WrappedWithoutTombstones(t *testing.T) {
	b, err := ParseBackup([]byte(`{"accounts":{"x1":{"name":"X","transactions":[]}}}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"x1"}, b.Accounts.IDs())
	assert.Empty(t, b.DeletedAccountIDs)
}

func TestParseBackup_Invalid(t *testing.T) {
	_, err := ParseBackup([]byte(`[1,2]`))
	assert.Error(t, err)
}
