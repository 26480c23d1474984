// Package reconcile merges two replicas of the account state. Everything in
// here is pure: inputs are never mutated and results share no memory with them.
package reconcile

import (
	"time"

	"github.com/dvloznov/kids-bank/internal/domain"
	"github.com/google/uuid"
)

// Normalizer fills in transaction identity and write time.
type Normalizer struct {
	Now   func() time.Time
	NewID func() string
}

// DefaultNormalizer uses the wall clock and random UUIDs.
var DefaultNormalizer = Normalizer{
	Now:   time.Now,
	NewID: uuid.NewString,
}

// NormalizeTransactions normalizes txs with the DefaultNormalizer.
func NormalizeTransactions(txs []domain.Transaction) []domain.Transaction {
	return DefaultNormalizer.Normalize(txs)
}

// Normalize returns a copy of txs in which every transaction has a non-empty
// id and a non-zero timestamp. Present values are kept, so applying it twice
// gives the same result as applying it once. A nil input yields an empty list.
func (n Normalizer) Normalize(txs []domain.Transaction) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		tx = tx.Clone()
		if tx.ID == "" {
			tx.ID = n.NewID()
		}
		if tx.Timestamp == 0 {
			tx.Timestamp = n.Now().UnixMilli()
		}
		out = append(out, tx)
	}
	return out
}
