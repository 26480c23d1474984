package chart

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/kids-bank/internal/domain"
	"github.com/dvloznov/kids-bank/internal/ledger"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func TestRenderAccount(t *testing.T) {
	acc := domain.Account{
		Name: "Ann",
		Transactions: []domain.Transaction{
			{ID: "t1", Date: "2024-03-10", Amount: 10},
			{ID: "t2", Date: "2024-03-12", Amount: -4},
		},
	}

	var buf bytes.Buffer
	err := RenderAccount(&buf, acc, 7, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
}

func TestRenderBalance_FlatSinglePoint(t *testing.T) {
	var buf bytes.Buffer
	err := RenderBalance(&buf, "Empty", []ledger.Point{{Date: "2024-03-15", Balance: 0}})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
}

func TestRenderBalance_Errors(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, RenderBalance(&buf, "none", nil))
	assert.Error(t, RenderBalance(&buf, "bad", []ledger.Point{{Date: "15/03/2024"}}))
}
