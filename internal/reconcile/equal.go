package reconcile

import (
	"sort"

	"github.com/dvloznov/kids-bank/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// Equal reports whether two payloads hold the same state. Missing and empty
// collections are equal and tombstones are compared as sets.
func Equal(a, b domain.SyncPayload) bool {
	return cmp.Equal(sortedTombstones(a), sortedTombstones(b), cmpopts.EquateEmpty())
}

func sortedTombstones(p domain.SyncPayload) domain.SyncPayload {
	ids := append([]string(nil), p.DeletedIDs...)
	sort.Strings(ids)
	return domain.SyncPayload{Accounts: p.Accounts, DeletedIDs: ids}
}
