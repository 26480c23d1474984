package reconcile

import (
	"sort"

	"github.com/dvloznov/kids-bank/internal/domain"
	"github.com/dvloznov/kids-bank/internal/ledger"
)

// Result is the outcome of merging two replicas.
type Result struct {
	Accounts   domain.AccountMap
	DeletedIDs []string
}

// Payload converts the result to the replicated wire payload.
func (r Result) Payload() domain.SyncPayload {
	return domain.SyncPayload{Accounts: r.Accounts, DeletedIDs: r.DeletedIDs}
}

// Merge combines local and remote replicas with the DefaultNormalizer.
func Merge(local, remote domain.AccountMap, localDeleted, remoteDeleted, restored []string) Result {
	return DefaultNormalizer.Merge(local, remote, localDeleted, remoteDeleted, restored)
}

// Merge combines local and remote replicas.
//
// Tombstones are the union of both sides minus the restored ids, and a
// tombstoned account never survives. Accounts present on one side are taken
// as they are apart from normalizing their transactions. Accounts present
// on both sides get the union of their transactions, where a local
// transaction replaces the remote one with the same id only if its timestamp
// is strictly greater, and the local name and image when they are non-empty.
func (n Normalizer) Merge(local, remote domain.AccountMap, localDeleted, remoteDeleted, restored []string) Result {
	deleted := mergeTombstones(localDeleted, remoteDeleted, restored)

	merged := make(domain.AccountMap, len(local)+len(remote))
	for id, acc := range remote {
		if _, ok := local[id]; ok {
			continue
		}
		acc = acc.Clone()
		acc.Transactions = n.Normalize(acc.Transactions)
		merged[id] = acc
	}

	for id, localAcc := range local {
		remoteAcc, ok := remote[id]
		if !ok {
			acc := localAcc.Clone()
			acc.Transactions = n.Normalize(acc.Transactions)
			merged[id] = acc
			continue
		}

		acc := remoteAcc.Clone()
		acc.Transactions = mergeTransactions(n.Normalize(localAcc.Transactions), n.Normalize(remoteAcc.Transactions))
		acc.Goals = mergeGoals(localAcc.Goals, remoteAcc.Goals)
		if localAcc.Allowance != nil {
			al := *localAcc.Allowance
			acc.Allowance = &al
		}
		if localAcc.Name != "" {
			acc.Name = localAcc.Name
		}
		if localAcc.Image != "" {
			acc.Image = localAcc.Image
		}
		merged[id] = acc
	}

	for _, id := range deleted {
		delete(merged, id)
	}

	return Result{Accounts: merged, DeletedIDs: deleted}
}

// mergeTombstones returns the sorted, de-duplicated union minus restored ids.
func mergeTombstones(localDeleted, remoteDeleted, restored []string) []string {
	skip := make(map[string]bool, len(restored))
	for _, id := range restored {
		skip[id] = true
	}

	seen := make(map[string]bool, len(localDeleted)+len(remoteDeleted))
	out := []string{}
	for _, list := range [][]string{localDeleted, remoteDeleted} {
		for _, id := range list {
			if seen[id] || skip[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// mergeTransactions unions both lists by id and sorts the result by date.
// Remote entries come first so ties on date keep remote order.
func mergeTransactions(local, remote []domain.Transaction) []domain.Transaction {
	order := make([]string, 0, len(local)+len(remote))
	byID := make(map[string]domain.Transaction, len(local)+len(remote))

	for _, tx := range remote {
		if _, ok := byID[tx.ID]; !ok {
			order = append(order, tx.ID)
		}
		byID[tx.ID] = tx
	}
	for _, tx := range local {
		existing, ok := byID[tx.ID]
		if !ok {
			order = append(order, tx.ID)
			byID[tx.ID] = tx
			continue
		}
		if tx.Timestamp > existing.Timestamp {
			byID[tx.ID] = tx
		}
	}

	out := make([]domain.Transaction, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return ledger.ParseDate(out[i].Date).Before(ledger.ParseDate(out[j].Date))
	})
	return out
}

// mergeGoals keeps remote goals in order, lets local goals replace the ones
// with the same id and appends local-only goals.
func mergeGoals(local, remote []domain.Goal) []domain.Goal {
	if len(local) == 0 && len(remote) == 0 {
		return nil
	}

	localByID := make(map[string]domain.Goal, len(local))
	for _, g := range local {
		localByID[g.ID] = g
	}

	out := make([]domain.Goal, 0, len(local)+len(remote))
	used := make(map[string]bool, len(local))
	for _, g := range remote {
		if lg, ok := localByID[g.ID]; ok {
			if used[g.ID] {
				continue
			}
			g = lg
		}
		used[g.ID] = true
		out = append(out, g)
	}
	for _, g := range local {
		if used[g.ID] {
			continue
		}
		used[g.ID] = true
		out = append(out, g)
	}
	return out
}
