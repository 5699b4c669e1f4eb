package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"quizroom-service/internal/domain"
)

type sessionResultRow struct {
	bun.BaseModel `bun:"table:session_results"`

	SessionID      string                     `bun:"session_id,pk"`
	QuizID         string                     `bun:"quiz_id,notnull"`
	QuizTitle      string                     `bun:"quiz_title,notnull"`
	RoomCode       string                     `bun:"room_code,notnull"`
	TotalQuestions int                        `bun:"total_questions,notnull"`
	Participants   []domain.ParticipantResult `bun:"participants,type:jsonb,notnull"`
	FinishedAt     time.Time                  `bun:"finished_at,notnull"`
}

// ResultStore keeps final session results in the session_results table.
type ResultStore struct {
	db *bun.DB
}

func NewResultStore(db *bun.DB) *ResultStore {
	return &ResultStore{db: db}
}

// SaveResults upserts the results of a session.
func (s *ResultStore) SaveResults(ctx context.Context, results domain.SessionResults) error {
	row := sessionResultRow{
		SessionID:      results.SessionID,
		QuizID:         results.QuizID,
		QuizTitle:      results.QuizTitle,
		RoomCode:       results.RoomCode,
		TotalQuestions: results.TotalQuestions,
		Participants:   results.Participants,
		FinishedAt:     results.FinishedAt,
	}
	if row.Participants == nil {
		row.Participants = []domain.ParticipantResult{}
	}
	_, err := s.db.NewInsert().
		Model(&row).
		On("CONFLICT (session_id) DO UPDATE").
		Set("participants = EXCLUDED.participants").
		Set("finished_at = EXCLUDED.finished_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save results %s: %w", results.SessionID, err)
	}
	return nil
}

func (s *ResultStore) GetResults(ctx context.Context, sessionID string) (domain.SessionResults, error) {
	var row sessionResultRow
	err := s.db.NewSelect().Model(&row).Where("session_id = ?", sessionID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SessionResults{}, domain.ErrResultsNotFound
	}
	if err != nil {
		return domain.SessionResults{}, fmt.Errorf("get results %s: %w", sessionID, err)
	}
	return row.toDomain(), nil
}

// ListByQuiz returns a page of the results of a quiz, newest first.
func (s *ResultStore) ListByQuiz(ctx context.Context, quizID string, limit, offset int) ([]domain.SessionResults, error) {
	var rows []sessionResultRow
	q := s.db.NewSelect().
		Model(&rows).
		Where("quiz_id = ?", quizID).
		OrderExpr("finished_at DESC, session_id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list results of quiz %s: %w", quizID, err)
	}
	out := make([]domain.SessionResults, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r sessionResultRow) toDomain() domain.SessionResults {
	return domain.SessionResults{
		SessionID:      r.SessionID,
		QuizID:         r.QuizID,
		QuizTitle:      r.QuizTitle,
		RoomCode:       r.RoomCode,
		TotalQuestions: r.TotalQuestions,
		Participants:   r.Participants,
		FinishedAt:     r.FinishedAt.UTC(),
	}
}
