package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizroom-service/internal/domain"
	infraredis "quizroom-service/internal/infra/redis"
)

type savedQuizzes map[string]domain.Quiz

func (s savedQuizzes) SaveQuiz(_ context.Context, quiz domain.Quiz) error {
	s[quiz.ID] = quiz
	return nil
}

func (s savedQuizzes) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	quiz, ok := s[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return quiz, nil
}

const seedYAML = `quizzes:
  - id: capitals
    title: Capitals
    questions:
      - id: q1
        text: Capital of France?
        answers:
          - {id: a, text: Paris, is_correct: true}
          - {id: b, text: Lyon}
`

func TestSeedQuizzesRefreshesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := savedQuizzes{}
	repo := infraredis.NewQuizRepository(client, store, time.Minute, nil)
	ctx := context.Background()

	store["capitals"] = domain.Quiz{
		ID:    "capitals",
		Title: "Old title",
		Questions: []domain.Question{{
			ID:   "q1",
			Text: "Old?",
			Answers: []domain.AnswerOption{
				{ID: "a", Text: "yes", IsCorrect: true},
				{ID: "b", Text: "no"},
			},
		}},
	}
	cached, err := repo.GetQuiz(ctx, "capitals")
	require.NoError(t, err)
	require.Equal(t, "Old title", cached.Title)

	path := filepath.Join(t.TempDir(), "quizzes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o600))
	require.NoError(t, seedQuizzes(ctx, store, repo, path))

	// The seeded copy is normalized before it is stored.
	assert.Equal(t, domain.DefaultTimeLimit, store["capitals"].Questions[0].TimeLimit)

	fresh, err := repo.GetQuiz(ctx, "capitals")
	require.NoError(t, err)
	assert.Equal(t, "Capitals", fresh.Title)
}

func TestSeedQuizzesRejectsInvalidQuiz(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quizzes.yaml")
	require.NoError(t, os.WriteFile(path, []byte("quizzes:\n  - id: empty\n    title: Empty\n"), 0o600))

	store := savedQuizzes{}
	err := seedQuizzes(context.Background(), store, nil, path)
	assert.ErrorIs(t, err, domain.ErrInvalidQuiz)
	assert.Empty(t, store)
}
