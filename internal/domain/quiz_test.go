package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampTimeLimit(t *testing.T) {
	assert.Equal(t, DefaultTimeLimit, ClampTimeLimit(0))
	assert.Equal(t, MinTimeLimit, ClampTimeLimit(1))
	assert.Equal(t, MinTimeLimit, ClampTimeLimit(-10))
	assert.Equal(t, 42, ClampTimeLimit(42))
	assert.Equal(t, MaxTimeLimit, ClampTimeLimit(10_000))
}

func TestNormalizeClampsAndCopies(t *testing.T) {
	quiz := Quiz{
		ID: "quiz-1",
		Questions: []Question{{
			ID:        "q1",
			Text:      "2 + 2?",
			TimeLimit: 2,
			Answers: []AnswerOption{
				{ID: "a1", Text: "3"},
				{ID: "a2", Text: "4", IsCorrect: true},
			},
		}},
	}

	got, err := quiz.Normalize()
	require.NoError(t, err)
	assert.Equal(t, MinTimeLimit, got.Questions[0].TimeLimit)
	assert.Equal(t, 2, quiz.Questions[0].TimeLimit, "input must not be mutated")

	correct, ok := got.Questions[0].CorrectAnswer()
	require.True(t, ok)
	assert.Equal(t, "a2", correct.ID)
}

func TestNormalizeRejectsBrokenQuizzes(t *testing.T) {
	cases := map[string]Quiz{
		"no questions": {ID: "x"},
		"one answer": {ID: "x", Questions: []Question{{
			ID: "q1", Answers: []AnswerOption{{ID: "a1", IsCorrect: true}},
		}}},
		"two correct": {ID: "x", Questions: []Question{{
			ID: "q1", Answers: []AnswerOption{{ID: "a1", IsCorrect: true}, {ID: "a2", IsCorrect: true}},
		}}},
		"no correct": {ID: "x", Questions: []Question{{
			ID: "q1", Answers: []AnswerOption{{ID: "a1"}, {ID: "a2"}},
		}}},
		"duplicate ids": {ID: "x", Questions: []Question{
			{ID: "q1", Answers: []AnswerOption{{ID: "a1", IsCorrect: true}, {ID: "a2"}}},
			{ID: "q1", Answers: []AnswerOption{{ID: "a1", IsCorrect: true}, {ID: "a2"}}},
		}},
	}
	for name, quiz := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := quiz.Normalize()
			assert.ErrorIs(t, err, ErrInvalidQuiz)
		})
	}
}

func TestErrorCodeUnwraps(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), ErrDuplicateAnswer)
	assert.Equal(t, "duplicate_answer", ErrorCode(wrapped))
	assert.Equal(t, "internal_error", ErrorCode(errors.New("boom")))
}
