package app

import (
	"sort"
	"time"

	"quizroom-service/internal/domain"
)

// ScoreSession computes the final tally from the answer ledger. Every
// participant is scored against the full question count; unanswered
// questions count as incorrect.
//
// Ranking is score descending, ties broken by join order (earlier joiner
// first).
func ScoreSession(state *SessionState, finishedAt time.Time) domain.SessionResults {
	questions := state.Quiz.Questions
	total := len(questions)
	roster := state.Participants()

	results := make([]domain.ParticipantResult, 0, len(roster))
	joinOrder := make(map[string]int, len(roster))
	for _, p := range roster {
		joinOrder[p.UserID] = p.JoinOrder

		details := make([]domain.AnswerDetail, 0, total)
		correctCount := 0
		for _, q := range questions {
			detail := scoreQuestion(state, q, p.UserID)
			if detail.IsCorrect {
				correctCount++
			}
			details = append(details, detail)
		}

		results = append(results, domain.ParticipantResult{
			UserID:         p.UserID,
			DisplayName:    p.DisplayName,
			CorrectAnswers: correctCount,
			TotalQuestions: total,
			Score:          percentage(correctCount, total),
			Answers:        details,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return joinOrder[results[i].UserID] < joinOrder[results[j].UserID]
	})

	return domain.SessionResults{
		SessionID:      state.ID,
		QuizID:         state.Quiz.ID,
		QuizTitle:      state.Quiz.Title,
		RoomCode:       state.RoomCode,
		TotalQuestions: total,
		Participants:   results,
		FinishedAt:     finishedAt,
	}
}

func scoreQuestion(state *SessionState, q domain.Question, userID string) domain.AnswerDetail {
	correct, _ := q.CorrectAnswer()
	detail := domain.AnswerDetail{
		QuestionID:        q.ID,
		QuestionText:      q.Text,
		CorrectAnswerText: correct.Text,
	}
	record, ok := state.Answer(q.ID, userID)
	if !ok {
		return detail
	}
	detail.SelectedAnswerID = record.AnswerID
	if selected, ok := q.Answer(record.AnswerID); ok {
		detail.SelectedAnswerText = selected.Text
	}
	detail.IsCorrect = record.AnswerID == correct.ID
	return detail
}

func percentage(correct, total int) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(correct) / float64(total)
}
