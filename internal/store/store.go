package store

import (
	"context"
)

// Keys under which the state container persists itself. They match the
// names the other clients use in their own local storage.
const (
	KeyAccounts          = "accounts"
	KeyDeletedAccountIDs = "deletedAccountIds"
	KeyRestoredIDs       = "restoredAccountIds"
	KeyCloudSyncEnabled  = "cloudSyncEnabled"
	KeySyncGUID          = "syncGuid"
	KeyEncryptionKey     = "encryptionKeyJwk"
	KeyLastETag          = "lastEtag"
	KeyCloudConfig       = "cloudConfig"
	KeyToastConfig       = "toastConfig"
	KeyLastSynced        = "lastSyncedPayload"
)

// Store provides an interface for the local durable key-value store.
// This interface enables swapping SQLite, Postgres and in-memory backends.
type Store interface {
	// Get returns the value stored under key, or nil and no error when absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
