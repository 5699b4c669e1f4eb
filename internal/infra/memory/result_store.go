package memory

import (
	"context"
	"sort"
	"sync"

	"quizroom-service/internal/domain"
)

// ResultStore is an in-memory implementation of app.ResultStore.
type ResultStore struct {
	mu      sync.RWMutex
	results map[string]domain.SessionResults
}

func NewResultStore() *ResultStore {
	return &ResultStore{
		results: make(map[string]domain.SessionResults),
	}
}

func (s *ResultStore) SaveResults(_ context.Context, results domain.SessionResults) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[results.SessionID] = results
	return nil
}

func (s *ResultStore) GetResults(_ context.Context, sessionID string) (domain.SessionResults, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results, ok := s.results[sessionID]
	if !ok {
		return domain.SessionResults{}, domain.ErrResultsNotFound
	}
	return results, nil
}

func (s *ResultStore) ListByQuiz(_ context.Context, quizID string, limit, offset int) ([]domain.SessionResults, error) {
	s.mu.RLock()
	out := make([]domain.SessionResults, 0)
	for _, r := range s.results {
		if r.QuizID == quizID {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].FinishedAt.Equal(out[j].FinishedAt) {
			return out[i].FinishedAt.After(out[j].FinishedAt)
		}
		return out[i].SessionID < out[j].SessionID
	})
	if offset >= len(out) {
		return []domain.SessionResults{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}
