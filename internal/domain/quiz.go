package domain

import (
	"fmt"
	"time"
)

// ClampTimeLimit bounds a per-question time limit to [MinTimeLimit, MaxTimeLimit].
// Zero means "not set" and falls back to DefaultTimeLimit.
func ClampTimeLimit(seconds int) int {
	switch {
	case seconds == 0:
		return DefaultTimeLimit
	case seconds < MinTimeLimit:
		return MinTimeLimit
	case seconds > MaxTimeLimit:
		return MaxTimeLimit
	}
	return seconds
}

// Normalize clamps time limits and validates the quiz. Loaders call it once
// when a quiz enters the service; the coordinator trusts the result.
func (q Quiz) Normalize() (Quiz, error) {
	if len(q.Questions) == 0 {
		return Quiz{}, fmt.Errorf("%w: quiz %s has no questions", ErrInvalidQuiz, q.ID)
	}
	out := q
	out.Questions = make([]Question, len(q.Questions))
	seen := make(map[string]struct{}, len(q.Questions))
	for i, question := range q.Questions {
		if question.ID == "" {
			return Quiz{}, fmt.Errorf("%w: question %d has no id", ErrInvalidQuiz, i)
		}
		if _, dup := seen[question.ID]; dup {
			return Quiz{}, fmt.Errorf("%w: duplicate question id %s", ErrInvalidQuiz, question.ID)
		}
		seen[question.ID] = struct{}{}
		if len(question.Answers) < 2 {
			return Quiz{}, fmt.Errorf("%w: question %s needs at least two answers", ErrInvalidQuiz, question.ID)
		}
		correct := 0
		for _, a := range question.Answers {
			if a.IsCorrect {
				correct++
			}
		}
		if correct != 1 {
			return Quiz{}, fmt.Errorf("%w: question %s must have exactly one correct answer, has %d", ErrInvalidQuiz, question.ID, correct)
		}
		question.Answers = append([]AnswerOption(nil), question.Answers...)
		question.TimeLimit = ClampTimeLimit(question.TimeLimit)
		out.Questions[i] = question
	}
	return out, nil
}

// QuestionIndex returns the position of a question, or -1.
func (q Quiz) QuestionIndex(questionID string) int {
	for i := range q.Questions {
		if q.Questions[i].ID == questionID {
			return i
		}
	}
	return -1
}

// Duration is the question's time limit as a time.Duration.
func (q Question) Duration() time.Duration {
	return time.Duration(q.TimeLimit) * time.Second
}

// CorrectAnswer returns the single correct option.
func (q Question) CorrectAnswer() (AnswerOption, bool) {
	for _, a := range q.Answers {
		if a.IsCorrect {
			return a, true
		}
	}
	return AnswerOption{}, false
}

// Answer looks up an option by id.
func (q Question) Answer(answerID string) (AnswerOption, bool) {
	for _, a := range q.Answers {
		if a.ID == answerID {
			return a, true
		}
	}
	return AnswerOption{}, false
}
