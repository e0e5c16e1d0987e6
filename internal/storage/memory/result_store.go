package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"tt-analysis/internal/domain"
	"tt-analysis/internal/storage"
)

// ResultStore is an in-memory implementation of storage.ResultStore.
type ResultStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ScenarioResult // keyed by run_id|row_index
}

// NewResultStore creates a new in-memory result store.
func NewResultStore() *ResultStore {
	return &ResultStore{
		data: make(map[string]*domain.ScenarioResult),
	}
}

// resultKey generates a unique key for a result row.
func resultKey(runID string, rowIndex int) string {
	return fmt.Sprintf("%s|%d", runID, rowIndex)
}

func validResult(r *domain.ScenarioResult) bool {
	return r != nil && r.RunID != "" && r.ScenarioID != "" && r.RowIndex >= 0
}

// Insert adds a new result. Returns ErrDuplicateKey if key exists.
func (s *ResultStore) Insert(_ context.Context, r *domain.ScenarioResult) error {
	if !validResult(r) {
		return storage.ErrInvalidInput
	}

	key := resultKey(r.RunID, r.RowIndex)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	rCopy := *r
	s.data[key] = &rCopy
	return nil
}

// InsertBulk adds multiple results atomically. Fails entire batch on any duplicate.
func (s *ResultStore) InsertBulk(_ context.Context, results []*domain.ScenarioResult) error {
	if len(results) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(results))

	// First pass: check for duplicates (existing + intra-batch)
	for _, r := range results {
		if !validResult(r) {
			return storage.ErrInvalidInput
		}
		key := resultKey(r.RunID, r.RowIndex)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, r := range results {
		rCopy := *r
		s.data[resultKey(r.RunID, r.RowIndex)] = &rCopy
	}

	return nil
}

// GetByRunID retrieves all results of a run, ordered by row_index ASC.
func (s *ResultStore) GetByRunID(_ context.Context, runID string) ([]*domain.ScenarioResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ScenarioResult
	for _, r := range s.data {
		if r.RunID == runID {
			rCopy := *r
			result = append(result, &rCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].RowIndex < result[j].RowIndex
	})

	return result, nil
}

// GetByScenarioID retrieves all results for a scenario, ordered by run_id, row_index.
func (s *ResultStore) GetByScenarioID(_ context.Context, scenarioID string) ([]*domain.ScenarioResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ScenarioResult
	for _, r := range s.data {
		if r.ScenarioID == scenarioID {
			rCopy := *r
			result = append(result, &rCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].RunID != result[j].RunID {
			return result[i].RunID < result[j].RunID
		}
		return result[i].RowIndex < result[j].RowIndex
	})

	return result, nil
}

var _ storage.ResultStore = (*ResultStore)(nil)
