package cloudsync

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dvloznov/kids-bank/internal/cipher"
	"github.com/dvloznov/kids-bank/internal/domain"
	"github.com/dvloznov/kids-bank/internal/logger"
	"github.com/dvloznov/kids-bank/internal/pubsub"
)

// ErrInvalidPairing is returned for a pairing payload missing its cloud
// config, sync id or key.
var ErrInvalidPairing = errors.New("invalid pairing payload: missing aws config, guid, or key")

// Start publishes the initial status and, when cloud sync is enabled, runs
// a first sync.
func (s *Syncer) Start(ctx context.Context) Outcome {
	if !s.state.Descriptor().Enabled {
		s.publishStatus(pubsub.StatusDisabled)
		return OutcomeSkipped
	}
	s.publishStatus(pubsub.StatusSynced)
	return s.Sync(ctx)
}

// SetEnabled turns cloud sync on or off. Enabling assumes "synced" until
// the next sync reports otherwise.
func (s *Syncer) SetEnabled(ctx context.Context, enabled bool) error {
	if err := s.state.SetEnabled(ctx, enabled); err != nil {
		return fmt.Errorf("SetEnabled: %w", err)
	}
	if enabled {
		s.publishStatus(pubsub.StatusSynced)
	} else {
		s.publishStatus(pubsub.StatusDisabled)
	}
	return nil
}

// SetOnline reacts to connectivity changes. Coming back online syncs
// right away.
func (s *Syncer) SetOnline(ctx context.Context, online bool) Outcome {
	if !online {
		s.publishStatus(pubsub.StatusOffline)
		return OutcomeSkipped
	}
	if !s.state.Descriptor().Enabled {
		return OutcomeSkipped
	}
	s.publishStatus(pubsub.StatusSyncing)
	return s.Sync(ctx)
}

// LoadFromCloud downloads and decrypts the remote payload without merging
// or touching local state. It returns nil when there is no remote object.
func (s *Syncer) LoadFromCloud(ctx context.Context) (*domain.DecodedPayload, error) {
	desc := s.state.Descriptor()
	if desc.GUID == "" || desc.Key == "" {
		return nil, nil
	}

	transport, err := s.transportFor(ctx)
	if err != nil {
		return nil, fmt.Errorf("LoadFromCloud: %w", err)
	}
	c, err := cipher.New(desc.Key)
	if err != nil {
		return nil, fmt.Errorf("LoadFromCloud: %w", err)
	}

	dl, err := transport.Download(ctx, desc.GUID, "")
	if err != nil {
		return nil, fmt.Errorf("LoadFromCloud: download: %w", err)
	}
	if dl == nil || len(dl.Data) == 0 {
		return nil, nil
	}

	decoded, err := decodeRemote(c, dl.Data)
	if err != nil {
		return nil, fmt.Errorf("LoadFromCloud: %w", err)
	}
	return &decoded, nil
}

// ImportPairing applies the settings shared by another device and adopts
// the remote state when one exists. It reports whether data was found.
func (s *Syncer) ImportPairing(ctx context.Context, p domain.PairingPayload) (bool, error) {
	if p.Cloud.Mode() == domain.CloudModeNone || p.GUID == "" || p.Key == "" {
		return false, ErrInvalidPairing
	}
	if _, err := cipher.ParseKey(p.Key); err != nil {
		return false, fmt.Errorf("ImportPairing: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("mode", string(p.Cloud.Mode())).
		Str("guid", p.GUID).
		Msg("Importing pairing configuration")

	if err := s.state.SetCloudConfig(ctx, p.Cloud); err != nil {
		return false, fmt.Errorf("ImportPairing: %w", err)
	}
	if err := s.state.SetSyncDetails(ctx, p.GUID, p.Key); err != nil {
		return false, fmt.Errorf("ImportPairing: %w", err)
	}

	data, err := s.LoadFromCloud(ctx)
	if err != nil {
		return false, fmt.Errorf("ImportPairing: %w", err)
	}
	if data == nil {
		log.Warn().Msg("No remote data found for pairing")
		return false, nil
	}

	if err := s.state.Replace(ctx, data.Payload); err != nil {
		return false, fmt.Errorf("ImportPairing: %w", err)
	}
	s.bus.Publish(pubsub.StateUpdated())
	return true, nil
}

// GenerateSyncKeys installs a fresh sync id and key. Data stored under the
// previous id is no longer reachable from this device.
func (s *Syncer) GenerateSyncKeys(ctx context.Context) (string, error) {
	key, err := cipher.GenerateKey()
	if err != nil {
		return "", fmt.Errorf("GenerateSyncKeys: %w", err)
	}
	guid := uuid.NewString()
	if err := s.state.SetSyncDetails(ctx, guid, key); err != nil {
		return "", fmt.Errorf("GenerateSyncKeys: %w", err)
	}
	return guid, nil
}

// PairingPayload builds the configuration another device needs to join.
func (s *Syncer) PairingPayload() (domain.PairingPayload, error) {
	desc := s.state.Descriptor()
	cfg := s.state.CloudConfig()
	if cfg.Mode() == domain.CloudModeNone || desc.GUID == "" || desc.Key == "" {
		return domain.PairingPayload{}, ErrInvalidPairing
	}
	return domain.PairingPayload{Cloud: cfg, GUID: desc.GUID, Key: desc.Key}, nil
}
