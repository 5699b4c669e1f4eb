package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizroom-service/internal/domain"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func testQuiz(n int) domain.Quiz {
	quiz := domain.Quiz{ID: "qz", Title: "Capitals"}
	for i := 0; i < n; i++ {
		id := string(rune('a' + i))
		quiz.Questions = append(quiz.Questions, domain.Question{
			ID:        id,
			Text:      "question " + id,
			TimeLimit: 10,
			Answers: []domain.AnswerOption{
				{ID: id + "1", Text: "yes", IsCorrect: true},
				{ID: id + "2", Text: "no"},
			},
		})
	}
	return quiz
}

func TestSessionIndexOnlyMovesForward(t *testing.T) {
	s := NewSessionState("s1", "ABC123", "host", testQuiz(3), epoch)
	assert.Equal(t, -1, s.CurrentIndex())
	assert.False(t, s.CloseQuestion(0))

	s.AddParticipant("u1", "One", "c1", epoch)
	require.NoError(t, s.Start())
	assert.Error(t, s.AdvanceQuestion(), "open question cannot be skipped")

	assert.True(t, s.CloseQuestion(0))
	assert.False(t, s.CloseQuestion(0), "second close is a no-op")
	require.NoError(t, s.AdvanceQuestion())
	assert.Equal(t, 1, s.CurrentIndex())
	assert.False(t, s.CloseQuestion(0), "stale index")

	assert.True(t, s.CloseQuestion(1))
	require.NoError(t, s.AdvanceQuestion())
	assert.True(t, s.IsLastQuestion())
	assert.True(t, s.CloseQuestion(2))
	assert.Error(t, s.AdvanceQuestion())

	s.Finish(epoch.Add(time.Minute))
	assert.Equal(t, domain.StatusFinished, s.Status())
	assert.Equal(t, epoch.Add(time.Minute), s.FinishedAt())
}

func TestSessionProgress(t *testing.T) {
	s := NewSessionState("s1", "ABC123", "host", testQuiz(2), epoch)
	s.AddParticipant("u1", "One", "c1", epoch)
	s.AddParticipant("u2", "Two", "c2", epoch)
	require.NoError(t, s.Start())

	_, err := s.RecordAnswer("a", "u1", "a2", epoch)
	require.NoError(t, err)
	answered, total := s.Progress()
	assert.Equal(t, 1, answered)
	assert.Equal(t, 2, total)
	assert.False(t, s.AllAnswered())

	// u1 drops after answering and still counts; u2 drops without answering and does not.
	s.RemoveParticipant("u1", "c1")
	s.RemoveParticipant("u2", "c2")
	answered, total = s.Progress()
	assert.Equal(t, 1, answered)
	assert.Equal(t, 1, total)
	assert.False(t, s.AllAnswered(), "nobody connected")
	assert.Equal(t, 2, s.ParticipantCount())
}

func TestScoreSession(t *testing.T) {
	s := NewSessionState("s1", "ABC123", "host", testQuiz(5), epoch)
	s.AddParticipant("u1", "One", "c1", epoch)
	s.AddParticipant("u2", "Two", "c2", epoch)
	require.NoError(t, s.Start())

	// u1: correct on a, b, c; no answer on d and e. u2: wrong on a.
	picks := map[string]string{"a": "a1", "b": "b1", "c": "c1"}
	for i, q := range s.Quiz.Questions {
		if answer, ok := picks[q.ID]; ok {
			_, err := s.RecordAnswer(q.ID, "u1", answer, epoch)
			require.NoError(t, err)
		}
		if q.ID == "a" {
			_, err := s.RecordAnswer("a", "u2", "a2", epoch)
			require.NoError(t, err)
		}
		require.True(t, s.CloseQuestion(i))
		if !s.IsLastQuestion() {
			require.NoError(t, s.AdvanceQuestion())
		}
	}
	s.Finish(epoch)

	results := ScoreSession(s, epoch)
	require.Len(t, results.Participants, 2)
	top := results.Participants[0]
	assert.Equal(t, "u1", top.UserID)
	assert.Equal(t, 3, top.CorrectAnswers)
	assert.Equal(t, 5, top.TotalQuestions)
	assert.InDelta(t, 60.0, top.Score, 1e-9)
	require.Len(t, top.Answers, 5)
	assert.Equal(t, "yes", top.Answers[0].SelectedAnswerText)
	assert.Equal(t, "yes", top.Answers[3].CorrectAnswerText)
	assert.Empty(t, top.Answers[3].SelectedAnswerID)
	assert.False(t, top.Answers[4].IsCorrect)

	low := results.Participants[1]
	assert.Equal(t, "u2", low.UserID)
	assert.Zero(t, low.Score)
	assert.Equal(t, "no", low.Answers[0].SelectedAnswerText)
	assert.Equal(t, 5, results.TotalQuestions)
}

func TestPercentage(t *testing.T) {
	assert.InDelta(t, 33.333, percentage(1, 3), 0.001)
	assert.Zero(t, percentage(0, 0))
	assert.Equal(t, 100.0, percentage(4, 4))
}
