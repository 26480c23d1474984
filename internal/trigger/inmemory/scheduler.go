// Package inmemory provides a channel-backed sync scheduler and an in-memory
// run history.
package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/kids-bank/internal/trigger"
)

// DefaultDelay is how long save triggers wait for more saves.
const DefaultDelay = 2 * time.Second

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithEnabled sets the check consulted before accepting a trigger. Requests
// arriving while it returns false are ignored.
func WithEnabled(fn func() bool) Option {
	return func(s *Scheduler) { s.enabled = fn }
}

// WithLogger sets the scheduler logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Scheduler) { s.log = log }
}

// Scheduler queues sync runs for a single worker, so runs it starts never
// overlap. Save triggers are debounced by delay: a burst of saves produces
// one run, no sooner than delay after the last save.
type Scheduler struct {
	runChan   chan *trigger.Run
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     trigger.RunStore
	closed    bool

	delay   time.Duration
	timerMu sync.Mutex
	timer   *time.Timer

	enabled func() bool
	log     zerolog.Logger
}

// NewScheduler creates a scheduler. bufferSize bounds the number of pending
// runs; further immediate triggers are coalesced into the pending ones.
func NewScheduler(bufferSize int, delay time.Duration, store trigger.RunStore, opts ...Option) *Scheduler {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	s := &Scheduler{
		runChan:   make(chan *trigger.Run, bufferSize),
		closeChan: make(chan struct{}),
		store:     store,
		delay:     delay,
		enabled:   func() bool { return true },
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Trigger requests a sync. Save triggers restart the debounce timer; every
// other reason is queued immediately.
func (s *Scheduler) Trigger(ctx context.Context, reason trigger.Reason) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return fmt.Errorf("scheduler is closed")
	}

	if !s.enabled() {
		s.log.Debug().Str("reason", string(reason)).Msg("Cloud sync disabled, ignoring trigger")
		return nil
	}

	if reason.Debounced() && s.delay > 0 {
		s.timerMu.Lock()
		defer s.timerMu.Unlock()
		if s.timer != nil {
			s.timer.Stop()
		}
		s.timer = time.AfterFunc(s.delay, func() {
			if err := s.enqueue(context.Background(), reason); err != nil {
				s.log.Debug().Err(err).Msg("Dropped debounced trigger")
			}
		})
		return nil
	}

	return s.enqueue(ctx, reason)
}

// Notify is a save hook: it records a debounced save trigger.
func (s *Scheduler) Notify() {
	if err := s.Trigger(context.Background(), trigger.ReasonSave); err != nil {
		s.log.Debug().Err(err).Msg("Save trigger rejected")
	}
}

func (s *Scheduler) enqueue(ctx context.Context, reason trigger.Reason) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("scheduler is closed")
	}

	run := &trigger.Run{
		ID:        uuid.New().String(),
		Reason:    reason,
		Status:    trigger.RunStatusPending,
		CreatedAt: time.Now(),
	}

	// Saved before it is queued: once sent, the run belongs to the worker.
	if s.store != nil {
		if err := s.store.SaveRun(ctx, run); err != nil {
			return fmt.Errorf("failed to save run: %w", err)
		}
	}

	select {
	case s.runChan <- run:
		return nil
	default:
	}

	// A pending run will pick up the same state.
	run.Status = trigger.RunStatusCoalesced
	if s.store != nil {
		if err := s.store.SaveRun(ctx, run); err != nil {
			return fmt.Errorf("failed to save run: %w", err)
		}
	}
	return nil
}

// Start starts the worker goroutine that hands queued runs to handler.
func (s *Scheduler) Start(ctx context.Context, handler trigger.Handler) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return fmt.Errorf("scheduler is closed")
	}
	s.mu.RUnlock()

	s.wg.Add(1)
	go s.worker(ctx, handler)
	return nil
}

func (s *Scheduler) worker(ctx context.Context, handler trigger.Handler) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closeChan:
			return
		case run := <-s.runChan:
			s.process(ctx, run, handler)
		}
	}
}

func (s *Scheduler) process(ctx context.Context, run *trigger.Run, handler trigger.Handler) {
	run.Status = trigger.RunStatusRunning
	now := time.Now()
	run.StartedAt = &now
	s.save(ctx, run)

	err := handler(ctx, run)

	completedAt := time.Now()
	run.CompletedAt = &completedAt
	switch {
	case errors.Is(err, trigger.ErrSkipped):
		run.Status = trigger.RunStatusSkipped
		s.log.Debug().Str("run_id", run.ID).Str("reason", string(run.Reason)).Msg("Sync run skipped")
	case err != nil:
		run.Status = trigger.RunStatusFailed
		run.Error = err.Error()
		s.log.Warn().Err(err).Str("run_id", run.ID).Str("reason", string(run.Reason)).Msg("Sync run failed")
	default:
		run.Status = trigger.RunStatusCompleted
	}
	s.save(ctx, run)
}

func (s *Scheduler) save(ctx context.Context, run *trigger.Run) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveRun(ctx, run); err != nil {
		s.log.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to record sync run")
	}
}

// Stop cancels a pending debounce, stops the worker and waits for the run
// in progress to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.closeChan)
	s.mu.Unlock()

	s.timerMu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timerMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the scheduler without a deadline.
func (s *Scheduler) Close() error {
	return s.Stop(context.Background())
}
