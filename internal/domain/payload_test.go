package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePayload_Wrapped(t *testing.T) {
	data := []byte(`{"accounts":{"a1":{"name":"Alice","transactions":[{"id":"t1","date":"2024-01-01","amount":5,"description":"x","timestamp":100}]}},"deletedIds":["a2"]}`)

	got, err := DecodePayload(data)
	require.NoError(t, err)

	assert.Equal(t, PayloadWrapped, got.Format)
	assert.Equal(t, []string{"a2"}, got.Payload.DeletedIDs)
	require.Contains(t, got.Payload.Accounts, "a1")
	acc := got.Payload.Accounts["a1"]
	assert.Equal(t, "Alice", acc.Name)
	require.Len(t, acc.Transactions, 1)
	assert.Equal(t, int64(100), acc.Transactions[0].Timestamp)
}

func TestDecodePayload_Legacy(t *testing.T) {
	data := []byte(`{"a1":{"name":"Alice","transactions":[]},"a2":{"name":"Bob"}}`)

	got, err := DecodePayload(data)
	require.NoError(t, err)

	assert.Equal(t, PayloadLegacy, got.Format)
	assert.Empty(t, got.Payload.DeletedIDs)
	assert.NotNil(t, got.Payload.DeletedIDs)
	assert.Len(t, got.Payload.Accounts, 2)
	assert.Equal(t, "Bob", got.Payload.Accounts["a2"].Name)
}

func TestDecodePayload_AccountsWithoutDeletedIDsIsLegacy(t *testing.T) {
	// An account literally named "accounts" must not be mistaken for a wrapper.
	data := []byte(`{"accounts":{"name":"Odd"}}`)

	got, err := DecodePayload(data)
	require.NoError(t, err)

	assert.Equal(t, PayloadLegacy, got.Format)
	assert.Equal(t, "Odd", got.Payload.Accounts["accounts"].Name)
}

func TestDecodePayload_Invalid(t *testing.T) {
	_, err := DecodePayload([]byte(`[1,2,3]`))
	assert.Error(t, err)
}

func TestTransaction_LegacyNumericID(t *testing.T) {
	var tx Transaction
	require.NoError(t, json.Unmarshal([]byte(`{"id":1700000000000,"date":"2024-01-01","amount":-2.5,"description":"candy"}`), &tx))

	assert.Equal(t, "1700000000000", tx.ID)
	assert.Equal(t, int64(0), tx.Timestamp)
	assert.Equal(t, -2.5, tx.Amount)
}

func TestTransaction_ZeroIDIsMissing(t *testing.T) {
	var tx Transaction
	require.NoError(t, json.Unmarshal([]byte(`{"id":0,"date":"2024-01-01","amount":1}`), &tx))
	assert.Equal(t, "", tx.ID)
}

func TestTransaction_PreservesUnknownFields(t *testing.T) {
	in := []byte(`{"id":"t1","date":"2024-01-01","amount":1,"description":"d","timestamp":5,"note":{"by":"mum"}}`)

	var tx Transaction
	require.NoError(t, json.Unmarshal(in, &tx))
	require.Contains(t, tx.Extra, "note")

	out, err := json.Marshal(tx)
	require.NoError(t, err)
	assert.JSONEq(t, string(in), string(out))
}

func TestAccount_MarshalEmptyTransactions(t *testing.T) {
	out, err := json.Marshal(Account{Name: "Alice"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Alice","transactions":[]}`, string(out))
}

func TestAccount_RoundTripGoalsAndAllowance(t *testing.T) {
	in := []byte(`{"name":"Alice","image":"data:x","transactions":[],"goals":[{"id":"g1","name":"Bike","target":100,"icon":"🚲","created":1}],"allowance":{"amount":5,"interval":"weekly","lastPaid":"2024-01-01"},"color":"red"}`)

	var acc Account
	require.NoError(t, json.Unmarshal(in, &acc))
	assert.Equal(t, "data:x", acc.Image)
	require.Len(t, acc.Goals, 1)
	require.NotNil(t, acc.Allowance)
	assert.Equal(t, AllowanceWeekly, acc.Allowance.Interval)

	out, err := json.Marshal(acc)
	require.NoError(t, err)
	assert.JSONEq(t, string(in), string(out))
}

func TestAccount_CloneIsIndependent(t *testing.T) {
	acc := Account{
		Name:         "Alice",
		Transactions: []Transaction{{ID: "t1", Amount: 1}},
		Goals:        []Goal{{ID: "g1"}},
		Allowance:    &Allowance{Amount: 2},
	}
	cp := acc.Clone()
	cp.Transactions[0].Amount = 99
	cp.Goals[0].ID = "changed"
	cp.Allowance.Amount = 7

	assert.Equal(t, 1.0, acc.Transactions[0].Amount)
	assert.Equal(t, "g1", acc.Goals[0].ID)
	assert.Equal(t, 2.0, acc.Allowance.Amount)
}

func TestCloudConfig_Mode(t *testing.T) {
	tests := []struct {
		name string
		cfg  CloudConfig
		want CloudMode
	}{
		{"empty", CloudConfig{}, CloudModeNone},
		{"par", CloudConfig{ParURL: "https://example.com/p/", AccessKeyID: "k"}, CloudModePAR},
		{"s3", CloudConfig{Bucket: "b", Region: "r", AccessKeyID: "k", SecretAccessKey: "s"}, CloudModeS3},
		{"s3 without region", CloudConfig{Bucket: "b", AccessKeyID: "k", SecretAccessKey: "s"}, CloudModeNone},
		{"gcs", CloudConfig{Provider: "gcs", Bucket: "b"}, CloudModeGCS},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.Mode())
		})
	}
}
