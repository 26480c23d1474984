// Package state owns the in-memory replica of the accounts together with the
// sync descriptor, and persists both to the local durable store.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/kids-bank/internal/domain"
	"github.com/dvloznov/kids-bank/internal/ledger"
	"github.com/dvloznov/kids-bank/internal/logger"
	"github.com/dvloznov/kids-bank/internal/store"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrGoalNotFound        = errors.New("goal not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrNameRequired        = errors.New("name is required")
)

// ToastConfig gates toast notifications published during sync.
type ToastConfig struct {
	Enabled         bool `json:"enabled"`
	ShowSyncStart   bool `json:"showSyncStart"`
	ShowSyncSuccess bool `json:"showSyncSuccess"`
}

// DefaultToastConfig enables every notification.
func DefaultToastConfig() ToastConfig {
	return ToastConfig{Enabled: true, ShowSyncStart: true, ShowSyncSuccess: true}
}

// Descriptor is the sync descriptor: whether cloud sync is on, the remote
// object key, the shared key and the last ETag seen.
type Descriptor struct {
	Enabled bool
	GUID    string
	Key     string
	ETag    string
}

// Configured reports whether a sync can run.
func (d Descriptor) Configured() bool {
	return d.Enabled && d.GUID != "" && d.Key != ""
}

// Option configures a State.
type Option func(*State)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *State) { s.now = now }
}

// WithIDGenerator overrides the id source for accounts, transactions and goals.
func WithIDGenerator(newID func() string) Option {
	return func(s *State) { s.newID = newID }
}

// WithSaveHook registers fn to run after every user mutation is persisted.
// It is how the trigger scheduler learns about local saves.
func WithSaveHook(fn func()) Option {
	return func(s *State) { s.onSave = fn }
}

// State is safe for concurrent use.
type State struct {
	mu    sync.RWMutex
	store store.Store

	now    func() time.Time
	newID  func() string
	onSave func()

	accounts   domain.AccountMap
	deleted    []string
	restored   []string
	desc       Descriptor
	cloud      domain.CloudConfig
	toast      ToastConfig
	lastSynced *domain.SyncPayload
}

// Load reads the persisted state from st. Missing keys yield empty values.
func Load(ctx context.Context, st store.Store, opts ...Option) (*State, error) {
	s := &State{
		store:    st,
		now:      time.Now,
		newID:    uuid.NewString,
		accounts: domain.AccountMap{},
		deleted:  []string{},
		restored: []string{},
		toast:    DefaultToastConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}

	fields := []struct {
		key string
		dst any
	}{
		{store.KeyAccounts, &s.accounts},
		{store.KeyDeletedAccountIDs, &s.deleted},
		{store.KeyRestoredIDs, &s.restored},
		{store.KeyCloudSyncEnabled, &s.desc.Enabled},
		{store.KeySyncGUID, &s.desc.GUID},
		{store.KeyEncryptionKey, &s.desc.Key},
		{store.KeyLastETag, &s.desc.ETag},
		{store.KeyCloudConfig, &s.cloud},
		{store.KeyToastConfig, &s.toast},
		{store.KeyLastSynced, &s.lastSynced},
	}
	for _, f := range fields {
		if err := s.read(ctx, f.key, f.dst); err != nil {
			return nil, fmt.Errorf("Load: %w", err)
		}
	}

	if s.accounts == nil {
		s.accounts = domain.AccountMap{}
	}
	if s.deleted == nil {
		s.deleted = []string{}
	}
	if s.restored == nil {
		s.restored = []string{}
	}
	return s, nil
}

func (s *State) read(ctx context.Context, key string, dst any) error {
	raw, err := s.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	if raw == nil {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *State) write(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.store.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// persistData writes accounts, tombstones and restored ids. Caller holds mu.
func (s *State) persistData(ctx context.Context) error {
	if err := s.write(ctx, store.KeyAccounts, s.accounts); err != nil {
		return err
	}
	if err := s.write(ctx, store.KeyDeletedAccountIDs, s.deleted); err != nil {
		return err
	}
	return s.write(ctx, store.KeyRestoredIDs, s.restored)
}

// dataBackup is a copy of the replicated data taken before a change.
type dataBackup struct {
	accounts domain.AccountMap
	deleted  []string
	restored []string
}

// backupLocked copies the data fields. Caller holds mu.
func (s *State) backupLocked() dataBackup {
	return dataBackup{
		accounts: s.accounts.Clone(),
		deleted:  append([]string{}, s.deleted...),
		restored: append([]string{}, s.restored...),
	}
}

// rollbackLocked puts b back and rewrites it so keys stored before a failed
// write do not run ahead of the others. Caller holds mu.
func (s *State) rollbackLocked(ctx context.Context, b dataBackup) {
	s.accounts = b.accounts
	if s.accounts == nil {
		s.accounts = domain.AccountMap{}
	}
	s.deleted = b.deleted
	s.restored = b.restored
	if err := s.persistData(ctx); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("Failed to restore persisted state after a failed write")
	}
}

// mutate runs fn under the write lock, persists the data and fires the save
// hook once the lock is released. If fn or the write fails the in-memory data
// is rolled back.
func (s *State) mutate(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	backup := s.backupLocked()
	if err := fn(); err != nil {
		s.accounts, s.deleted, s.restored = backup.accounts, backup.deleted, backup.restored
		s.mu.Unlock()
		return err
	}
	err := s.persistData(ctx)
	if err != nil {
		s.rollbackLocked(ctx, backup)
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if s.onSave != nil {
		s.onSave()
	}
	return nil
}

func (s *State) nowMillis() int64 {
	return s.now().UnixMilli()
}

// Snapshot returns a deep copy of the replicated data.
func (s *State) Snapshot() domain.SyncPayload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *State) snapshotLocked() domain.SyncPayload {
	return domain.SyncPayload{
		Accounts:   s.accounts.Clone(),
		DeletedIDs: append([]string{}, s.deleted...),
	}
}

// Account returns a copy of one account.
func (s *State) Account(id string) (domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[id]
	if !ok {
		return domain.Account{}, ErrAccountNotFound
	}
	return acc.Clone(), nil
}

// Accounts returns a copy of every live account.
func (s *State) Accounts() domain.AccountMap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accounts.Clone()
}

// RestoredIDs returns the ids currently shielded from remote tombstones.
func (s *State) RestoredIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.restored...)
}

// AddAccount creates an empty account and returns its id.
func (s *State) AddAccount(ctx context.Context, name, image string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("AddAccount: %w", ErrNameRequired)
	}

	var id string
	err := s.mutate(ctx, func() error {
		id = s.newID()
		s.accounts[id] = domain.Account{
			Name:         name,
			Image:        image,
			Transactions: []domain.Transaction{},
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("AddAccount: %w", err)
	}
	return id, nil
}

// RenameAccount changes the display name.
func (s *State) RenameAccount(ctx context.Context, id, name string) error {
	err := s.mutate(ctx, func() error {
		acc, ok := s.accounts[id]
		if !ok {
			return ErrAccountNotFound
		}
		acc.Name = name
		s.accounts[id] = acc
		return nil
	})
	if err != nil {
		return fmt.Errorf("RenameAccount: %w", err)
	}
	return nil
}

// SetAccountImage replaces the account image.
func (s *State) SetAccountImage(ctx context.Context, id, image string) error {
	err := s.mutate(ctx, func() error {
		acc, ok := s.accounts[id]
		if !ok {
			return ErrAccountNotFound
		}
		acc.Image = image
		s.accounts[id] = acc
		return nil
	})
	if err != nil {
		return fmt.Errorf("SetAccountImage: %w", err)
	}
	return nil
}

// RemoveAccount drops the account, records a tombstone and withdraws any
// restoration protection for it.
func (s *State) RemoveAccount(ctx context.Context, id string) error {
	err := s.mutate(ctx, func() error {
		if _, ok := s.accounts[id]; !ok {
			return ErrAccountNotFound
		}
		delete(s.accounts, id)
		if !contains(s.deleted, id) {
			s.deleted = append(s.deleted, id)
		}
		s.restored = remove(s.restored, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("RemoveAccount: %w", err)
	}
	return nil
}

// AddTransaction appends tx with a fresh id and write timestamp. An empty
// date means today.
func (s *State) AddTransaction(ctx context.Context, accountID string, tx domain.Transaction) (domain.Transaction, error) {
	err := s.mutate(ctx, func() error {
		acc, ok := s.accounts[accountID]
		if !ok {
			return ErrAccountNotFound
		}
		tx.ID = s.newID()
		tx.Timestamp = s.nowMillis()
		tx.Deleted = false
		if tx.Date == "" {
			tx.Date = ledger.Today(s.now())
		}
		acc.Transactions = append(cloneTxs(acc.Transactions), tx)
		s.accounts[accountID] = acc
		return nil
	})
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("AddTransaction: %w", err)
	}
	return tx, nil
}

// DeleteTransaction soft-deletes a transaction and bumps its timestamp so the
// deletion wins against older copies on other replicas.
func (s *State) DeleteTransaction(ctx context.Context, accountID, txID string) error {
	err := s.mutate(ctx, func() error {
		acc, ok := s.accounts[accountID]
		if !ok {
			return ErrAccountNotFound
		}
		txs := cloneTxs(acc.Transactions)
		for i := range txs {
			if txs[i].ID == txID {
				txs[i].Deleted = true
				txs[i].Timestamp = s.nowMillis()
				acc.Transactions = txs
				s.accounts[accountID] = acc
				return nil
			}
		}
		return ErrTransactionNotFound
	})
	if err != nil {
		return fmt.Errorf("DeleteTransaction: %w", err)
	}
	return nil
}

// Import restores a backup. Imported accounts replace the local ones, their
// ids leave the tombstone set and are shielded from remote tombstones until
// the next successful sync. The backup's tombstones replace the local ones.
func (s *State) Import(ctx context.Context, accounts domain.AccountMap, deletedIDs []string) error {
	err := s.mutate(ctx, func() error {
		s.accounts = accounts.Clone()
		if s.accounts == nil {
			s.accounts = domain.AccountMap{}
		}

		deleted := []string{}
		for _, id := range deletedIDs {
			if _, revived := s.accounts[id]; revived || contains(deleted, id) {
				continue
			}
			deleted = append(deleted, id)
		}
		s.deleted = deleted

		for _, id := range s.accounts.IDs() {
			if !contains(s.restored, id) {
				s.restored = append(s.restored, id)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("Import: %w", err)
	}
	return nil
}

// Replace adopts p as authoritative. Restoration protection, the ETag and the
// synced snapshot are cleared. It does not fire the save hook.
func (s *State) Replace(ctx context.Context, p domain.SyncPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	backup := s.backupLocked()
	s.accounts = p.Accounts.Clone()
	if s.accounts == nil {
		s.accounts = domain.AccountMap{}
	}
	s.deleted = append([]string{}, p.DeletedIDs...)
	s.restored = []string{}

	if err := s.persistData(ctx); err != nil {
		s.rollbackLocked(ctx, backup)
		return fmt.Errorf("Replace: %w", err)
	}
	if err := s.store.Delete(ctx, store.KeyLastETag); err != nil {
		return fmt.Errorf("Replace: clear etag: %w", err)
	}
	s.desc.ETag = ""
	if err := s.store.Delete(ctx, store.KeyLastSynced); err != nil {
		return fmt.Errorf("Replace: clear snapshot: %w", err)
	}
	s.lastSynced = nil
	return nil
}

// MergeFunc computes the new replica from the current local data and the
// restored ids.
type MergeFunc func(local domain.SyncPayload, restored []string) domain.SyncPayload

// ApplyMerge runs fn against the current state and stores its result, all
// under the write lock so no user mutation can interleave. The remote etag
// the merge was computed against is recorded only once the merged data is
// stored; a failed write leaves both the data and the etag as they were. It
// returns the stored payload and the restored ids fn saw.
func (s *State) ApplyMerge(ctx context.Context, etag string, fn MergeFunc) (domain.SyncPayload, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	backup := s.backupLocked()
	restored := append([]string{}, s.restored...)
	merged := fn(s.snapshotLocked(), restored)

	s.accounts = merged.Accounts.Clone()
	if s.accounts == nil {
		s.accounts = domain.AccountMap{}
	}
	s.deleted = append([]string{}, merged.DeletedIDs...)

	if err := s.persistData(ctx); err != nil {
		s.rollbackLocked(ctx, backup)
		return domain.SyncPayload{}, nil, fmt.Errorf("ApplyMerge: %w", err)
	}
	if err := s.write(ctx, store.KeyLastETag, etag); err != nil {
		return domain.SyncPayload{}, nil, fmt.Errorf("ApplyMerge: %w", err)
	}
	s.desc.ETag = etag
	return s.snapshotLocked(), restored, nil
}

// ClearRestored removes ids from the restoration set. Ids restored after the
// given list was captured stay protected.
func (s *State) ClearRestored(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		s.restored = remove(s.restored, id)
	}
	if err := s.write(ctx, store.KeyRestoredIDs, s.restored); err != nil {
		return fmt.Errorf("ClearRestored: %w", err)
	}
	return nil
}

// Descriptor returns the current sync descriptor.
func (s *State) Descriptor() Descriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.desc
}

// SetEnabled turns cloud sync on or off.
func (s *State) SetEnabled(ctx context.Context, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.desc.Enabled = enabled
	if err := s.write(ctx, store.KeyCloudSyncEnabled, enabled); err != nil {
		return fmt.Errorf("SetEnabled: %w", err)
	}
	return nil
}

// SetSyncDetails installs a new sync id and key. The ETag and synced
// snapshot belong to the old object and are dropped.
func (s *State) SetSyncDetails(ctx context.Context, guid, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.desc.GUID = guid
	s.desc.Key = key
	s.desc.ETag = ""
	s.lastSynced = nil

	if err := s.write(ctx, store.KeySyncGUID, guid); err != nil {
		return fmt.Errorf("SetSyncDetails: %w", err)
	}
	if err := s.write(ctx, store.KeyEncryptionKey, key); err != nil {
		return fmt.Errorf("SetSyncDetails: %w", err)
	}
	if err := s.store.Delete(ctx, store.KeyLastETag); err != nil {
		return fmt.Errorf("SetSyncDetails: clear etag: %w", err)
	}
	if err := s.store.Delete(ctx, store.KeyLastSynced); err != nil {
		return fmt.Errorf("SetSyncDetails: clear snapshot: %w", err)
	}
	return nil
}

// SetETag records the ETag of the remote object last seen.
func (s *State) SetETag(ctx context.Context, etag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(ctx, store.KeyLastETag, etag); err != nil {
		return fmt.Errorf("SetETag: %w", err)
	}
	s.desc.ETag = etag
	return nil
}

// LastSynced returns the payload believed to be on the remote, or nil.
func (s *State) LastSynced() *domain.SyncPayload {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lastSynced == nil {
		return nil
	}
	p := domain.SyncPayload{
		Accounts:   s.lastSynced.Accounts.Clone(),
		DeletedIDs: append([]string{}, s.lastSynced.DeletedIDs...),
	}
	return &p
}

// SetLastSynced stores the payload now known to be on the remote.
func (s *State) SetLastSynced(ctx context.Context, p domain.SyncPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := domain.SyncPayload{
		Accounts:   p.Accounts.Clone(),
		DeletedIDs: append([]string{}, p.DeletedIDs...),
	}
	if err := s.write(ctx, store.KeyLastSynced, cp); err != nil {
		return fmt.Errorf("SetLastSynced: %w", err)
	}
	s.lastSynced = &cp
	return nil
}

// CloudConfig returns the transport configuration.
func (s *State) CloudConfig() domain.CloudConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cloud
}

// SetCloudConfig replaces the transport configuration.
func (s *State) SetCloudConfig(ctx context.Context, cfg domain.CloudConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cloud = cfg
	if err := s.write(ctx, store.KeyCloudConfig, cfg); err != nil {
		return fmt.Errorf("SetCloudConfig: %w", err)
	}
	return nil
}

// ToastConfig returns the notification settings.
func (s *State) ToastConfig() ToastConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.toast
}

// SetToastConfig replaces the notification settings.
func (s *State) SetToastConfig(ctx context.Context, cfg ToastConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.toast = cfg
	if err := s.write(ctx, store.KeyToastConfig, cfg); err != nil {
		return fmt.Errorf("SetToastConfig: %w", err)
	}
	return nil
}

func cloneTxs(txs []domain.Transaction) []domain.Transaction {
	out := make([]domain.Transaction, len(txs))
	for i, tx := range txs {
		out[i] = tx.Clone()
	}
	return out
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

func remove(list []string, id string) []string {
	out := []string{}
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
