package cloudsync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/kids-bank/internal/blob"
	"github.com/dvloznov/kids-bank/internal/cipher"
	"github.com/dvloznov/kids-bank/internal/domain"
	"github.com/dvloznov/kids-bank/internal/pubsub"
	"github.com/dvloznov/kids-bank/internal/state"
	storemem "github.com/dvloznov/kids-bank/internal/store/inmemory"
)

var testCloud = domain.CloudConfig{ParURL: "https://objectstorage.example/p/abc/"}

// newDevice is an unpaired device sharing the harness remote.
func newDevice(t *testing.T, h *harness) (*state.State, *Syncer, *pubsub.Bus) {
	t.Helper()
	st, err := state.Load(h.ctx, storemem.NewStore())
	require.NoError(t, err)
	bus := pubsub.NewBus()
	s := New(st, bus, WithTransportFactory(func(ctx context.Context, cfg domain.CloudConfig) (blob.Transport, error) {
		return h.remote, nil
	}))
	return st, s, bus
}

func TestImportPairing_AdoptsRemoteData(t *testing.T) {
	h := newHarness(t)
	h.putRemote(t, domain.SyncPayload{
		Accounts: domain.AccountMap{
			"acc-1": {Name: "Alice", Transactions: []domain.Transaction{tx("t1", "2024-03-01", 5, 1)}},
		},
		DeletedIDs: []string{"acc-old"},
	})

	st, s, bus := newDevice(t, h)
	_, err := st.AddAccount(h.ctx, "Local", "")
	require.NoError(t, err)

	updated := 0
	bus.Subscribe(pubsub.TopicStateUpdated, func(pubsub.Event) { updated++ })

	found, err := s.ImportPairing(h.ctx, domain.PairingPayload{Cloud: testCloud, GUID: testGUID, Key: h.key})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 1, updated)

	accounts := st.Accounts()
	require.Len(t, accounts, 1)
	assert.Equal(t, "Alice", accounts["acc-1"].Name)
	assert.Equal(t, []string{"acc-old"}, st.Snapshot().DeletedIDs)

	desc := st.Descriptor()
	assert.Equal(t, testGUID, desc.GUID)
	assert.Equal(t, h.key, desc.Key)
	assert.Equal(t, testCloud, st.CloudConfig())
}

func TestImportPairing_NoRemoteKeepsLocalData(t *testing.T) {
	h := newHarness(t)
	st, s, _ := newDevice(t, h)
	id, err := st.AddAccount(h.ctx, "Local", "")
	require.NoError(t, err)

	found, err := s.ImportPairing(h.ctx, domain.PairingPayload{Cloud: testCloud, GUID: testGUID, Key: h.key})
	require.NoError(t, err)
	assert.False(t, found)
	assert.Contains(t, st.Accounts(), id)
	assert.Equal(t, testGUID, st.Descriptor().GUID)
}

func TestImportPairing_RejectsInvalidPayload(t *testing.T) {
	h := newHarness(t)
	st, s, _ := newDevice(t, h)

	tests := []struct {
		name    string
		payload domain.PairingPayload
		wantErr error
	}{
		{"missing cloud", domain.PairingPayload{GUID: "g", Key: h.key}, ErrInvalidPairing},
		{"missing guid", domain.PairingPayload{Cloud: testCloud, Key: h.key}, ErrInvalidPairing},
		{"missing key", domain.PairingPayload{Cloud: testCloud, GUID: "g"}, ErrInvalidPairing},
		{"bad key", domain.PairingPayload{Cloud: testCloud, GUID: "g", Key: "c2hvcnQ"}, cipher.ErrInvalidKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.ImportPairing(h.ctx, tt.payload)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Empty(t, st.Descriptor().GUID, "nothing is saved for a rejected payload")
	assert.Equal(t, domain.CloudModeNone, st.CloudConfig().Mode())
}

func TestImportPairing_WrongKeyFails(t *testing.T) {
	h := newHarness(t)
	h.putRemote(t, domain.SyncPayload{Accounts: domain.AccountMap{"acc-1": {Name: "Alice"}}})

	otherKey, err := cipher.GenerateKey()
	require.NoError(t, err)

	st, s, _ := newDevice(t, h)
	_, err = s.ImportPairing(h.ctx, domain.PairingPayload{Cloud: testCloud, GUID: testGUID, Key: otherKey})
	require.Error(t, err)
	assert.Empty(t, st.Accounts())
}

func TestGenerateSyncKeys(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.st.SetETag(h.ctx, `"v9"`))

	guid, err := h.syncer.GenerateSyncKeys(h.ctx)
	require.NoError(t, err)

	desc := h.st.Descriptor()
	assert.NotEqual(t, testGUID, guid)
	assert.Equal(t, guid, desc.GUID)
	assert.NotEqual(t, h.key, desc.Key)
	assert.Empty(t, desc.ETag)
	_, err = cipher.ParseKey(desc.Key)
	assert.NoError(t, err)
}

func TestPairingPayload(t *testing.T) {
	h := newHarness(t)

	p, err := h.syncer.PairingPayload()
	require.NoError(t, err)
	assert.Equal(t, domain.PairingPayload{Cloud: testCloud, GUID: testGUID, Key: h.key}, p)

	_, s, _ := newDevice(t, h)
	_, err = s.PairingPayload()
	assert.ErrorIs(t, err, ErrInvalidPairing)
}

func TestSetOnline(t *testing.T) {
	h := newHarness(t)

	h.syncer.SetOnline(h.ctx, false)
	assert.Equal(t, []pubsub.SyncStatus{pubsub.StatusOffline}, h.statuses())
	assert.Zero(t, h.remote.Downloads())
	h.reset()

	h.syncer.SetOnline(h.ctx, true)
	assert.Equal(t, 1, h.remote.Uploads())
	assert.Equal(t, pubsub.StatusSynced, h.syncer.Status())
	assert.Equal(t, pubsub.StatusSyncing, h.statuses()[0])
}

func TestSetOnline_DisabledDoesNothing(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.syncer.SetEnabled(h.ctx, false))
	h.reset()

	h.syncer.SetOnline(h.ctx, true)
	assert.Empty(t, h.statuses())
	assert.Zero(t, h.remote.Downloads())
}

func TestStart(t *testing.T) {
	h := newHarness(t)
	h.syncer.Start(h.ctx)
	assert.Equal(t, 1, h.remote.Uploads())
	assert.Equal(t, pubsub.StatusSynced, h.statuses()[0])
	assert.Equal(t, pubsub.StatusSynced, h.syncer.Status())

	h = newHarness(t)
	require.NoError(t, h.st.SetEnabled(h.ctx, false))
	h.syncer.Start(h.ctx)
	assert.Equal(t, []pubsub.SyncStatus{pubsub.StatusDisabled}, h.statuses())
	assert.Zero(t, h.remote.Downloads())
}

func TestSetEnabled(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.syncer.SetEnabled(h.ctx, false))
	assert.False(t, h.st.Descriptor().Enabled)
	assert.Equal(t, pubsub.StatusDisabled, h.syncer.Status())

	require.NoError(t, h.syncer.SetEnabled(h.ctx, true))
	assert.True(t, h.st.Descriptor().Enabled)
	assert.Equal(t, pubsub.StatusSynced, h.syncer.Status())
}
