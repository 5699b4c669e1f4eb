package app

import (
	"context"

	"quizroom-service/internal/domain"
)

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// ResultStore persists final results of finished sessions.
type ResultStore interface {
	SaveResults(ctx context.Context, results domain.SessionResults) error
	GetResults(ctx context.Context, sessionID string) (domain.SessionResults, error)
	// ListByQuiz pages through the finished sessions of a quiz, newest first.
	ListByQuiz(ctx context.Context, quizID string, limit, offset int) ([]domain.SessionResults, error)
}

// ResultPublisher announces finished sessions to downstream consumers.
type ResultPublisher interface {
	PublishResults(ctx context.Context, results domain.SessionResults) error
}

// CodeReserver claims room codes outside the process (e.g. Redis) so that a
// restarted or parallel instance does not hand out a live code twice.
type CodeReserver interface {
	Reserve(ctx context.Context, code, sessionID string) (bool, error)
	Release(ctx context.Context, code string) error
}

// CodeRefresher is implemented by reservers whose claims expire. Active rooms
// refresh their claim so it outlives the reservation TTL.
type CodeRefresher interface {
	Refresh(ctx context.Context, code, sessionID string) (bool, error)
}
