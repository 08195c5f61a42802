package memory

import (
	"context"
	"sync"

	"course-quiz-service/internal/domain"
)

// ResultStore keeps completed session results in memory.
type ResultStore struct {
	mu      sync.RWMutex
	results map[string]domain.SessionResult
}

func NewResultStore() *ResultStore {
	return &ResultStore{results: make(map[string]domain.SessionResult)}
}

func (s *ResultStore) SaveResult(_ context.Context, result domain.SessionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.results[result.SessionID]; exists {
		return nil
	}
	s.results[result.SessionID] = result
	return nil
}

func (s *ResultStore) GetResult(_ context.Context, sessionID string) (domain.SessionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if result, ok := s.results[sessionID]; ok {
		return result, nil
	}
	return domain.SessionResult{}, domain.ErrResultsNotFound
}
