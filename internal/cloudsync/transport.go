package cloudsync

import (
	"context"
	"fmt"

	"github.com/dvloznov/kids-bank/internal/blob"
	"github.com/dvloznov/kids-bank/internal/blob/gcsstore"
	"github.com/dvloznov/kids-bank/internal/blob/par"
	"github.com/dvloznov/kids-bank/internal/blob/s3store"
	"github.com/dvloznov/kids-bank/internal/domain"
)

// TransportFactory builds the blob transport for a cloud configuration.
type TransportFactory func(ctx context.Context, cfg domain.CloudConfig) (blob.Transport, error)

// NewTransport picks the transport matching cfg.Mode(). It returns
// blob.ErrNotConfigured when the configuration is incomplete.
func NewTransport(ctx context.Context, cfg domain.CloudConfig) (blob.Transport, error) {
	switch cfg.Mode() {
	case domain.CloudModePAR:
		return par.NewClient(cfg.ParURL, nil), nil
	case domain.CloudModeS3:
		t, err := s3store.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("NewTransport: s3: %w", err)
		}
		return t, nil
	case domain.CloudModeGCS:
		t, err := gcsstore.New(ctx, cfg.Bucket, cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("NewTransport: gcs: %w", err)
		}
		return t, nil
	default:
		return nil, blob.ErrNotConfigured
	}
}
