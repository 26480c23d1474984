// Package app wires the local store, state, sync orchestrator, trigger
// scheduler and telemetry into one runnable unit shared by the API server
// and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/dvloznov/kids-bank/internal/cloudsync"
	"github.com/dvloznov/kids-bank/internal/config"
	"github.com/dvloznov/kids-bank/internal/domain"
	"github.com/dvloznov/kids-bank/internal/logger"
	"github.com/dvloznov/kids-bank/internal/pubsub"
	"github.com/dvloznov/kids-bank/internal/state"
	"github.com/dvloznov/kids-bank/internal/store"
	"github.com/dvloznov/kids-bank/internal/store/sqlstore"
	"github.com/dvloznov/kids-bank/internal/telemetry"
	"github.com/dvloznov/kids-bank/internal/trigger"
	"github.com/dvloznov/kids-bank/internal/trigger/inmemory"
)

// ErrSyncFailed is reported to the scheduler when a run ends in the error
// status. Details are in the logs and on the bus.
var ErrSyncFailed = errors.New("sync ended with an error")

// App holds the long-lived components.
type App struct {
	Config    config.Config
	Log       zerolog.Logger
	Store     store.Store
	State     *state.State
	Bus       *pubsub.Bus
	Syncer    *cloudsync.Syncer
	Scheduler *inmemory.Scheduler
	Runs      *inmemory.Store

	closeStore func() error
	telemetry  *telemetry.Forwarder
}

// Open connects to the configured store and loads the state.
func Open(ctx context.Context, cfg config.Config, log zerolog.Logger) (*App, error) {
	st, err := sqlstore.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}

	a, err := New(ctx, cfg, st, log)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("Open: %w", err)
	}
	a.closeStore = st.Close
	return a, nil
}

// New builds an App over an already opened store.
func New(ctx context.Context, cfg config.Config, st store.Store, log zerolog.Logger, opts ...cloudsync.Option) (*App, error) {
	a := &App{
		Config: cfg,
		Log:    log,
		Store:  st,
		Bus:    pubsub.NewBus(),
		Runs:   inmemory.NewStore(cfg.Sync.HistorySize),
	}

	// The scheduler consults the state, which is loaded after it.
	a.Scheduler = inmemory.NewScheduler(cfg.Sync.QueueSize, cfg.Sync.Debounce, a.Runs,
		inmemory.WithEnabled(func() bool { return a.State != nil && a.State.Descriptor().Enabled }),
		inmemory.WithLogger(log.With().Str("component", "trigger").Logger()),
	)

	s, err := state.Load(ctx, st, state.WithSaveHook(a.Scheduler.Notify))
	if err != nil {
		return nil, fmt.Errorf("New: %w", err)
	}
	a.State = s

	if err := a.seedCloudConfig(ctx); err != nil {
		return nil, fmt.Errorf("New: %w", err)
	}

	a.Syncer = cloudsync.New(s, a.Bus, opts...)
	return a, nil
}

// seedCloudConfig installs the configured transport settings when the
// device has none yet. Settings saved on the device, usually from pairing,
// take precedence over the file.
func (a *App) seedCloudConfig(ctx context.Context) error {
	if a.Config.Cloud.Mode() == domain.CloudModeNone || a.State.CloudConfig().Mode() != domain.CloudModeNone {
		return nil
	}
	a.Log.Info().Str("mode", string(a.Config.Cloud.Mode())).Msg("Using cloud config from configuration file")
	return a.State.SetCloudConfig(ctx, a.Config.Cloud)
}

// RunSync is the scheduler handler: one sync cycle per run.
func (a *App) RunSync(ctx context.Context, run *trigger.Run) error {
	log := a.Log.With().Str("run_id", run.ID).Str("reason", string(run.Reason)).Logger()
	ctx = logger.WithContext(ctx, log)

	var outcome cloudsync.Outcome
	switch run.Reason {
	case trigger.ReasonStartup:
		outcome = a.Syncer.Start(ctx)
	case trigger.ReasonOnline:
		outcome = a.Syncer.SetOnline(ctx, true)
	default:
		outcome = a.Syncer.Sync(ctx)
	}

	switch outcome {
	case cloudsync.OutcomeSkipped:
		return trigger.ErrSkipped
	case cloudsync.OutcomeFailed:
		return ErrSyncFailed
	}
	return nil
}

// Start launches the background workers: the sync scheduler and, when
// brokers are configured, the telemetry forwarder. It then requests the
// startup sync.
func (a *App) Start(ctx context.Context) error {
	if a.Config.Kafka.Enabled() {
		device := a.Config.Kafka.Device
		if device == "" {
			device, _ = os.Hostname()
		}
		writer := telemetry.NewWriter(a.Config.Kafka.Brokers, a.Config.Kafka.Topic)
		a.telemetry = telemetry.NewForwarder(writer, device, 0, a.Log.With().Str("component", "telemetry").Logger())
		a.telemetry.Start(ctx, a.Bus)
	}

	if err := a.Scheduler.Start(ctx, a.RunSync); err != nil {
		return fmt.Errorf("Start: %w", err)
	}

	if !a.State.Descriptor().Enabled {
		a.Syncer.Start(ctx)
		return nil
	}
	if err := a.Scheduler.Trigger(ctx, trigger.ReasonStartup); err != nil {
		return fmt.Errorf("Start: %w", err)
	}
	return nil
}

// Close stops the workers, waiting for a sync in progress, and closes the
// store.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Scheduler.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
	}
	if a.telemetry != nil {
		if err := a.telemetry.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop telemetry: %w", err))
		}
	}
	if a.closeStore != nil {
		if err := a.closeStore(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("Close: %w", err)
	}
	return nil
}
