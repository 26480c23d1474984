// Package cloudsync runs the synchronization protocol between the local state
// and the encrypted remote object: download, merge, then upload unless the
// remote already holds the merged state.
package cloudsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/dvloznov/kids-bank/internal/blob"
	"github.com/dvloznov/kids-bank/internal/cipher"
	"github.com/dvloznov/kids-bank/internal/domain"
	"github.com/dvloznov/kids-bank/internal/logger"
	"github.com/dvloznov/kids-bank/internal/pubsub"
	"github.com/dvloznov/kids-bank/internal/reconcile"
	"github.com/dvloznov/kids-bank/internal/state"
)

const (
	msgSyncStart     = "Syncing with cloud..."
	msgSyncComplete  = "Sync Complete"
	msgSyncNoChanges = "Sync Complete (No changes)"
	msgSyncFailed    = "Sync failed"
)

// Option configures a Syncer.
type Option func(*Syncer)

// WithTransportFactory replaces NewTransport, mainly for tests.
func WithTransportFactory(f TransportFactory) Option {
	return func(s *Syncer) { s.newTransport = f }
}

// WithNormalizer sets the clock and id source used during merges.
func WithNormalizer(n reconcile.Normalizer) Option {
	return func(s *Syncer) { s.normalizer = n }
}

// Syncer is the sync orchestrator. At most one Sync runs at a time; callers
// arriving while one is in flight return immediately.
type Syncer struct {
	state        *state.State
	bus          pubsub.Publisher
	newTransport TransportFactory
	normalizer   reconcile.Normalizer

	running atomic.Bool

	mu           sync.Mutex
	transport    blob.Transport
	transportCfg domain.CloudConfig
	status       pubsub.SyncStatus
}

// New creates a Syncer over st publishing to bus.
func New(st *state.State, bus pubsub.Publisher, opts ...Option) *Syncer {
	s := &Syncer{
		state:        st,
		bus:          bus,
		newTransport: NewTransport,
		normalizer:   reconcile.DefaultNormalizer,
		status:       pubsub.StatusDisabled,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Status returns the last published sync status.
func (s *Syncer) Status() pubsub.SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Running reports whether a sync is in flight.
func (s *Syncer) Running() bool {
	return s.running.Load()
}

func (s *Syncer) publishStatus(status pubsub.SyncStatus) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
	s.bus.Publish(pubsub.StatusChanged(status))
}

func (s *Syncer) toast(message string, typ pubsub.ToastType, show func(state.ToastConfig) bool) {
	cfg := s.state.ToastConfig()
	if cfg.Enabled && show(cfg) {
		s.bus.Publish(pubsub.Notify(message, typ))
	}
}

// transportFor returns a cached transport, rebuilding it when the cloud
// configuration changed.
func (s *Syncer) transportFor(ctx context.Context) (blob.Transport, error) {
	cfg := s.state.CloudConfig()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.transport != nil && s.transportCfg == cfg {
		return s.transport, nil
	}
	t, err := s.newTransport(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s.transport = t
	s.transportCfg = cfg
	return t, nil
}

// Outcome is what a call to Sync did.
type Outcome string

const (
	// OutcomeSkipped means no cycle ran: sync is not configured, has no
	// transport, or another cycle was already in progress.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeSynced means the cycle finished successfully.
	OutcomeSynced Outcome = "synced"
	// OutcomeFailed means the cycle ran and ended with an error.
	OutcomeFailed Outcome = "failed"
)

// Sync runs one synchronization cycle. It never returns an error: failures
// are published on the bus and logged, and the outcome tells the caller
// whether a cycle ran at all.
func (s *Syncer) Sync(ctx context.Context) Outcome {
	log := logger.FromContext(ctx).With().Str("component", "cloudsync").Logger()

	desc := s.state.Descriptor()
	if !desc.Configured() {
		log.Debug().Msg("Cloud sync not configured, skipping")
		return OutcomeSkipped
	}
	if !s.running.CompareAndSwap(false, true) {
		log.Debug().Msg("Sync already in progress, skipping")
		return OutcomeSkipped
	}
	defer s.running.Store(false)

	transport, err := s.transportFor(ctx)
	if errors.Is(err, blob.ErrNotConfigured) {
		log.Debug().Msg("No cloud transport configured, skipping")
		return OutcomeSkipped
	}

	s.publishStatus(pubsub.StatusSyncing)
	s.toast(msgSyncStart, pubsub.ToastInfo, func(c state.ToastConfig) bool { return c.ShowSyncStart })

	if err == nil {
		err = s.run(ctx, log, transport, desc)
	}
	if err != nil {
		log.Error().Err(err).Str("guid", desc.GUID).Msg("Cloud sync failed")
		s.publishStatus(pubsub.StatusError)
		s.toast(msgSyncFailed, pubsub.ToastError, func(state.ToastConfig) bool { return true })
		return OutcomeFailed
	}
	return OutcomeSynced
}

func (s *Syncer) run(ctx context.Context, log zerolog.Logger, transport blob.Transport, desc state.Descriptor) error {
	c, err := cipher.New(desc.Key)
	if err != nil {
		return fmt.Errorf("Sync: %w", err)
	}

	dl, err := transport.Download(ctx, desc.GUID, desc.ETag)
	if err != nil {
		return fmt.Errorf("Sync: download: %w", err)
	}

	var (
		merged   domain.SyncPayload
		baseline *domain.SyncPayload
		restored []string
	)

	switch {
	case dl == nil:
		log.Info().Msg("No remote object yet, uploading local state")
		merged = s.state.Snapshot()
		restored = s.state.RestoredIDs()

	case dl.NotModified:
		log.Info().Str("etag", desc.ETag).Msg("Remote object not modified")
		merged = s.state.Snapshot()
		restored = s.state.RestoredIDs()
		baseline = s.state.LastSynced()

	default:
		remote, err := decodeRemote(c, dl.Data)
		if err != nil {
			return fmt.Errorf("Sync: %w", err)
		}
		merged, restored, err = s.state.ApplyMerge(ctx, dl.ETag, func(local domain.SyncPayload, restored []string) domain.SyncPayload {
			return s.normalizer.Merge(local.Accounts, remote.Payload.Accounts, local.DeletedIDs, remote.Payload.DeletedIDs, restored).Payload()
		})
		if err != nil {
			return fmt.Errorf("Sync: %w", err)
		}
		s.bus.Publish(pubsub.StateUpdated())

		log.Info().
			Str("format", remote.Format.String()).
			Int("accounts", len(merged.Accounts)).
			Int("tombstones", len(merged.DeletedIDs)).
			Msg("Merged remote state")
		baseline = &remote.Payload
	}

	message := msgSyncComplete
	if baseline != nil && reconcile.Equal(merged, *baseline) {
		log.Info().Msg("Local state is identical to remote, skipping upload")
		message = msgSyncNoChanges
	} else {
		etag, err := upload(ctx, c, transport, desc.GUID, merged)
		if err != nil {
			return fmt.Errorf("Sync: %w", err)
		}
		if etag != "" {
			if err := s.state.SetETag(ctx, etag); err != nil {
				return fmt.Errorf("Sync: %w", err)
			}
		}
		log.Info().Str("etag", etag).Msg("Uploaded merged state")
	}

	if err := s.state.SetLastSynced(ctx, merged); err != nil {
		return fmt.Errorf("Sync: %w", err)
	}
	if len(restored) > 0 {
		if err := s.state.ClearRestored(ctx, restored); err != nil {
			return fmt.Errorf("Sync: %w", err)
		}
	}

	s.publishStatus(pubsub.StatusSynced)
	s.toast(message, pubsub.ToastSuccess, func(c state.ToastConfig) bool { return c.ShowSyncSuccess })
	return nil
}

func decodeRemote(c cipher.Cipher, data []byte) (domain.DecodedPayload, error) {
	plaintext, err := c.Decrypt(string(data))
	if err != nil {
		return domain.DecodedPayload{}, fmt.Errorf("decrypt remote: %w", err)
	}
	decoded, err := domain.DecodePayload(plaintext)
	if err != nil {
		return domain.DecodedPayload{}, fmt.Errorf("decode remote: %w", err)
	}
	return decoded, nil
}

func upload(ctx context.Context, c cipher.Cipher, transport blob.Transport, key string, p domain.SyncPayload) (string, error) {
	plaintext, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	envelope, err := c.Encrypt(plaintext)
	if err != nil {
		return "", fmt.Errorf("encrypt payload: %w", err)
	}
	etag, err := transport.Upload(ctx, key, []byte(envelope))
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	return etag, nil
}
