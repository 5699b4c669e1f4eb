package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizroom-service/internal/domain"
)

func TestResultStoreLifecycle(t *testing.T) {
	store := NewResultStore()
	ctx := context.Background()

	_, err := store.GetResults(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrResultsNotFound)

	require.NoError(t, store.SaveResults(ctx, domain.SessionResults{SessionID: "s1", QuizTitle: "Arithmetic"}))
	got, err := store.GetResults(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Arithmetic", got.QuizTitle)
}

func TestResultStoreListByQuiz(t *testing.T) {
	store := NewResultStore()
	ctx := context.Background()
	base := time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"s1", "s2", "s3"} {
		require.NoError(t, store.SaveResults(ctx, domain.SessionResults{
			SessionID:  id,
			QuizID:     "quiz-1",
			FinishedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, store.SaveResults(ctx, domain.SessionResults{SessionID: "other", QuizID: "quiz-2", FinishedAt: base}))

	page, err := store.ListByQuiz(ctx, "quiz-1", 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "s3", page[0].SessionID)
	assert.Equal(t, "s2", page[1].SessionID)

	page, err = store.ListByQuiz(ctx, "quiz-1", 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "s1", page[0].SessionID)

	page, err = store.ListByQuiz(ctx, "quiz-1", 2, 5)
	require.NoError(t, err)
	assert.Empty(t, page)
}
