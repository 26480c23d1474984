package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/kids-bank/internal/trigger"
)

// Store is an in-memory implementation of trigger.RunStore.
// It keeps at most limit runs, dropping the oldest first.
type Store struct {
	mu    sync.RWMutex
	runs  map[string]*trigger.Run
	order []string
	limit int
}

// NewStore creates a run store holding up to limit runs (0 means 100).
func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 100
	}
	return &Store{
		runs:  make(map[string]*trigger.Run),
		limit: limit,
	}
}

// SaveRun implements the trigger.RunStore interface.
func (s *Store) SaveRun(ctx context.Context, run *trigger.Run) error {
	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.ID]; !exists {
		s.order = append(s.order, run.ID)
		if len(s.order) > s.limit {
			delete(s.runs, s.order[0])
			s.order = s.order[1:]
		}
	}

	runCopy := *run
	s.runs[run.ID] = &runCopy
	return nil
}

// GetRun implements the trigger.RunStore interface.
func (s *Store) GetRun(ctx context.Context, id string) (*trigger.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.runs[id]
	if !exists {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	runCopy := *run
	return &runCopy, nil
}

// ListRuns implements the trigger.RunStore interface.
func (s *Store) ListRuns(ctx context.Context, filter trigger.RunFilter) ([]*trigger.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*trigger.Run{}
	for _, run := range s.runs {
		if filter.Reason != "" && run.Reason != filter.Reason {
			continue
		}
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		runCopy := *run
		result = append(result, &runCopy)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

// Ensure Store implements trigger.RunStore interface.
var _ trigger.RunStore = (*Store)(nil)
