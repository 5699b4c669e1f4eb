package app

import (
	"fmt"
	"time"

	"quizroom-service/internal/domain"
)

// SessionState holds the mutable state of one room. It is not safe for
// concurrent use: only the owning room loop touches it.
type SessionState struct {
	ID        string
	RoomCode  string
	CreatorID string
	Quiz      domain.Quiz
	CreatedAt time.Time

	status       domain.SessionStatus
	currentIndex int
	questionOpen bool
	finishedAt   time.Time

	participants map[string]*domain.Participant
	order        []string
	joinSeq      int

	// answers is keyed by question id, then user id.
	answers map[string]map[string]domain.AnswerRecord
}

// NewSessionState creates a session in the waiting state.
func NewSessionState(id, roomCode, creatorID string, quiz domain.Quiz, now time.Time) *SessionState {
	return &SessionState{
		ID:           id,
		RoomCode:     roomCode,
		CreatorID:    creatorID,
		Quiz:         quiz,
		CreatedAt:    now,
		status:       domain.StatusWaiting,
		currentIndex: -1,
		participants: make(map[string]*domain.Participant),
		answers:      make(map[string]map[string]domain.AnswerRecord),
	}
}

func (s *SessionState) Status() domain.SessionStatus { return s.status }

func (s *SessionState) CurrentIndex() int { return s.currentIndex }

func (s *SessionState) QuestionCount() int { return len(s.Quiz.Questions) }

// QuestionOpen reports whether the current question accepts answers.
func (s *SessionState) QuestionOpen() bool { return s.questionOpen }

// AddParticipant registers a user or refreshes the connection of a known one.
// A rejoining user keeps their answer records and eligibility.
func (s *SessionState) AddParticipant(userID, displayName, connID string, now time.Time) (p *domain.Participant, rejoined bool) {
	if p, ok := s.participants[userID]; ok {
		if displayName != "" {
			p.DisplayName = displayName
		}
		p.ConnID = connID
		p.Connected = true
		return p, true
	}

	s.joinSeq++
	p = &domain.Participant{
		UserID:      userID,
		DisplayName: displayName,
		JoinedAt:    now,
		JoinOrder:   s.joinSeq,
		ConnID:      connID,
		Connected:   true,
		// Late joiners start with the question after the one currently open.
		EligibleFrom: s.currentIndex + 1,
	}
	s.participants[userID] = p
	s.order = append(s.order, userID)
	return p, false
}

// RemoveParticipant handles a dropped connection. Before the quiz starts the
// user leaves the roster; afterwards they stay for scoring, marked
// disconnected. A connID that no longer matches the participant's current
// connection (superseded by a reconnect) is ignored.
func (s *SessionState) RemoveParticipant(userID, connID string) (*domain.Participant, bool) {
	p, ok := s.participants[userID]
	if !ok || p.ConnID != connID {
		return nil, false
	}
	if s.status == domain.StatusWaiting {
		delete(s.participants, userID)
		for i, id := range s.order {
			if id == userID {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
		return p, true
	}
	p.Connected = false
	p.ConnID = ""
	return p, true
}

// Participant returns the roster entry for a user.
func (s *SessionState) Participant(userID string) (*domain.Participant, bool) {
	p, ok := s.participants[userID]
	return p, ok
}

// Participants returns the roster in join order.
func (s *SessionState) Participants() []domain.Participant {
	out := make([]domain.Participant, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.participants[id])
	}
	return out
}

func (s *SessionState) ParticipantCount() int { return len(s.order) }

// Start moves a waiting session to in_progress and opens question 0.
func (s *SessionState) Start() error {
	if s.status != domain.StatusWaiting {
		return domain.ErrAlreadyStarted
	}
	if len(s.order) == 0 {
		return domain.ErrNoParticipants
	}
	s.status = domain.StatusInProgress
	s.currentIndex = 0
	s.questionOpen = true
	return nil
}

// CurrentQuestion returns the question at the current index.
func (s *SessionState) CurrentQuestion() (domain.Question, bool) {
	if s.currentIndex < 0 || s.currentIndex >= len(s.Quiz.Questions) {
		return domain.Question{}, false
	}
	return s.Quiz.Questions[s.currentIndex], true
}

func (s *SessionState) IsLastQuestion() bool {
	return s.currentIndex == len(s.Quiz.Questions)-1
}

// CloseQuestion closes the question at index. It returns false when that
// question is not the open one, which makes repeated or late closes no-ops.
func (s *SessionState) CloseQuestion(index int) bool {
	if s.status != domain.StatusInProgress || !s.questionOpen || index != s.currentIndex {
		return false
	}
	s.questionOpen = false
	return true
}

// AdvanceQuestion opens the next question. The current one must be closed.
func (s *SessionState) AdvanceQuestion() error {
	if s.status != domain.StatusInProgress || s.questionOpen {
		return fmt.Errorf("advance from question %d: question still open or session not running", s.currentIndex)
	}
	if s.IsLastQuestion() {
		return fmt.Errorf("advance from question %d: no more questions", s.currentIndex)
	}
	s.currentIndex++
	s.questionOpen = true
	return nil
}

// Finish marks the session finished. The current question must be closed.
func (s *SessionState) Finish(now time.Time) {
	s.questionOpen = false
	s.status = domain.StatusFinished
	s.finishedAt = now
}

func (s *SessionState) FinishedAt() time.Time { return s.finishedAt }

// RecordAnswer stores the first answer of a participant to the open question.
func (s *SessionState) RecordAnswer(questionID, userID, answerID string, now time.Time) (domain.AnswerRecord, error) {
	index := s.Quiz.QuestionIndex(questionID)
	if index < 0 {
		return domain.AnswerRecord{}, domain.ErrQuestionNotFound
	}
	if s.status != domain.StatusInProgress || !s.questionOpen || index != s.currentIndex {
		return domain.AnswerRecord{}, domain.ErrQuestionClosed
	}
	p, ok := s.participants[userID]
	if !ok {
		return domain.AnswerRecord{}, domain.ErrNotParticipant
	}
	if p.EligibleFrom > index {
		return domain.AnswerRecord{}, domain.ErrQuestionClosed
	}
	if _, dup := s.answers[questionID][userID]; dup {
		return domain.AnswerRecord{}, domain.ErrDuplicateAnswer
	}
	if _, ok := s.Quiz.Questions[index].Answer(answerID); !ok {
		return domain.AnswerRecord{}, domain.ErrAnswerNotFound
	}

	record := domain.AnswerRecord{
		QuestionID:  questionID,
		UserID:      userID,
		AnswerID:    answerID,
		SubmittedAt: now,
	}
	if s.answers[questionID] == nil {
		s.answers[questionID] = make(map[string]domain.AnswerRecord)
	}
	s.answers[questionID][userID] = record
	return record, nil
}

// Answer returns the record of a user for a question.
func (s *SessionState) Answer(questionID, userID string) (domain.AnswerRecord, bool) {
	record, ok := s.answers[questionID][userID]
	return record, ok
}

// Progress returns the answered count of the open question and the number of
// participants it is measured against: eligible participants that are either
// connected or have already answered.
func (s *SessionState) Progress() (answered, total int) {
	question, ok := s.CurrentQuestion()
	if !ok {
		return 0, 0
	}
	for _, id := range s.order {
		p := s.participants[id]
		if p.EligibleFrom > s.currentIndex {
			continue
		}
		_, has := s.answers[question.ID][id]
		if has {
			answered++
		}
		if has || p.Connected {
			total++
		}
	}
	return answered, total
}

// AllAnswered reports whether every connected eligible participant has
// answered the open question. With nobody connected the question waits for
// its timer.
func (s *SessionState) AllAnswered() bool {
	question, ok := s.CurrentQuestion()
	if !ok || !s.questionOpen {
		return false
	}
	connected := 0
	for _, id := range s.order {
		p := s.participants[id]
		if !p.Connected || p.EligibleFrom > s.currentIndex {
			continue
		}
		connected++
		if _, has := s.answers[question.ID][id]; !has {
			return false
		}
	}
	return connected > 0
}

// Snapshot returns a read-only projection of the session.
func (s *SessionState) Snapshot() domain.SessionSnapshot {
	participants := make([]domain.ParticipantInfo, 0, len(s.order))
	for _, id := range s.order {
		p := s.participants[id]
		participants = append(participants, domain.ParticipantInfo{
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			JoinedAt:    p.JoinedAt,
			Connected:   p.Connected,
		})
	}
	return domain.SessionSnapshot{
		ID:                   s.ID,
		QuizID:               s.Quiz.ID,
		QuizTitle:            s.Quiz.Title,
		RoomCode:             s.RoomCode,
		CreatorID:            s.CreatorID,
		Status:               s.status,
		CurrentQuestionIndex: s.currentIndex,
		TotalQuestions:       len(s.Quiz.Questions),
		Participants:         participants,
		CreatedAt:            s.CreatedAt,
	}
}
