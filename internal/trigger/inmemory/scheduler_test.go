package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/kids-bank/internal/trigger"
)

// recorder counts handler calls and signals each one.
type recorder struct {
	mu      sync.Mutex
	reasons []trigger.Reason
	calls   chan struct{}
	err     error
}

func newRecorder() *recorder {
	return &recorder{calls: make(chan struct{}, 16)}
}

func (r *recorder) handle(ctx context.Context, run *trigger.Run) error {
	r.mu.Lock()
	r.reasons = append(r.reasons, run.Reason)
	r.mu.Unlock()
	r.calls <- struct{}{}
	return r.err
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reasons)
}

func waitCall(t *testing.T, r *recorder) {
	t.Helper()
	select {
	case <-r.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not called")
	}
}

func TestScheduler_ImmediateTrigger(t *testing.T) {
	ctx := context.Background()
	store := NewStore(0)
	s := NewScheduler(4, time.Hour, store)
	rec := newRecorder()
	require.NoError(t, s.Start(ctx, rec.handle))
	defer s.Close()

	require.NoError(t, s.Trigger(ctx, trigger.ReasonOnline))
	waitCall(t, rec)
	require.NoError(t, s.Stop(ctx))

	assert.Equal(t, []trigger.Reason{trigger.ReasonOnline}, rec.reasons)
	runs, err := store.ListRuns(ctx, trigger.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, trigger.RunStatusCompleted, runs[0].Status)
	assert.NotNil(t, runs[0].CompletedAt)
}

func TestScheduler_DebouncesSaves(t *testing.T) {
	ctx := context.Background()
	s := NewScheduler(4, 50*time.Millisecond, nil)
	rec := newRecorder()
	require.NoError(t, s.Start(ctx, rec.handle))
	defer s.Close()

	for i := 0; i < 5; i++ {
		s.Notify()
		time.Sleep(10 * time.Millisecond)
	}
	waitCall(t, rec)

	// Nothing else fires after the burst.
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

func TestScheduler_DisabledIgnoresTriggers(t *testing.T) {
	ctx := context.Background()
	var enabled atomic.Bool
	s := NewScheduler(4, 0, nil, WithEnabled(enabled.Load))
	rec := newRecorder()
	require.NoError(t, s.Start(ctx, rec.handle))
	defer s.Close()

	require.NoError(t, s.Trigger(ctx, trigger.ReasonFocus))
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, rec.count())

	enabled.Store(true)
	require.NoError(t, s.Trigger(ctx, trigger.ReasonFocus))
	waitCall(t, rec)
}

func TestScheduler_FailedRunRecorded(t *testing.T) {
	ctx := context.Background()
	store := NewStore(0)
	s := NewScheduler(1, 0, store)
	rec := newRecorder()
	rec.err = errors.New("sync failed")
	require.NoError(t, s.Start(ctx, rec.handle))

	require.NoError(t, s.Trigger(ctx, trigger.ReasonManual))
	waitCall(t, rec)
	require.NoError(t, s.Stop(ctx))

	runs, err := store.ListRuns(ctx, trigger.RunFilter{Status: trigger.RunStatusFailed})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "sync failed", runs[0].Error)
}

func TestScheduler_SkippedRunRecorded(t *testing.T) {
	ctx := context.Background()
	store := NewStore(0)
	s := NewScheduler(1, 0, store)
	rec := newRecorder()
	rec.err = fmt.Errorf("handler: %w", trigger.ErrSkipped)
	require.NoError(t, s.Start(ctx, rec.handle))

	require.NoError(t, s.Trigger(ctx, trigger.ReasonFocus))
	waitCall(t, rec)
	require.NoError(t, s.Stop(ctx))

	runs, err := store.ListRuns(ctx, trigger.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, trigger.RunStatusSkipped, runs[0].Status)
	assert.Empty(t, runs[0].Error)
}

func TestScheduler_CoalescesWhenQueueFull(t *testing.T) {
	ctx := context.Background()
	store := NewStore(0)
	s := NewScheduler(1, 0, store)

	// No worker yet, so the first run stays queued.
	require.NoError(t, s.Trigger(ctx, trigger.ReasonOnline))
	require.NoError(t, s.Trigger(ctx, trigger.ReasonFocus))

	coalesced, err := store.ListRuns(ctx, trigger.RunFilter{Status: trigger.RunStatusCoalesced})
	require.NoError(t, err)
	require.Len(t, coalesced, 1)
	assert.Equal(t, trigger.ReasonFocus, coalesced[0].Reason)

	rec := newRecorder()
	require.NoError(t, s.Start(ctx, rec.handle))
	waitCall(t, rec)
	require.NoError(t, s.Stop(ctx))
	assert.Equal(t, 1, rec.count())
}

func TestScheduler_StopRejectsTriggers(t *testing.T) {
	ctx := context.Background()
	s := NewScheduler(1, time.Hour, nil)
	require.NoError(t, s.Start(ctx, newRecorder().handle))

	s.Notify()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))

	assert.Error(t, s.Trigger(ctx, trigger.ReasonOnline))
	assert.Error(t, s.Start(ctx, newRecorder().handle))
}

func TestStore_ListRuns(t *testing.T) {
	ctx := context.Background()
	store := NewStore(2)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.SaveRun(ctx, &trigger.Run{
			ID:        id,
			Reason:    trigger.ReasonSave,
			Status:    trigger.RunStatusCompleted,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	_, err := store.GetRun(ctx, "a")
	assert.Error(t, err, "oldest run should be evicted")

	runs, err := store.ListRuns(ctx, trigger.RunFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "c", runs[0].ID)

	assert.Error(t, store.SaveRun(ctx, &trigger.Run{}))
}

func TestParseReason(t *testing.T) {
	r, ok := trigger.ParseReason("visible")
	assert.True(t, ok)
	assert.Equal(t, trigger.ReasonVisible, r)

	_, ok = trigger.ParseReason("blur")
	assert.False(t, ok)
}
