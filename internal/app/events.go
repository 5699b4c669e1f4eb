package app

import "quizroom-service/internal/domain"

// Event is one outbound message to a connection.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

const (
	EventRoomJoined          = "room_joined"
	EventRoomJoinError       = "room_join_error"
	EventParticipantJoined   = "participant_joined"
	EventParticipantLeft     = "participant_left"
	EventQuizStarted         = "quiz_started"
	EventNextQuestion        = "next_question"
	EventAnswerSubmitted     = "answer_submitted"
	EventAnswerError         = "answer_error"
	EventParticipantAnswered = "participant_answered"
	EventQuestionTimeout     = "question_timeout"
	EventQuizFinished        = "quiz_finished"
	EventQuizError           = "quiz_error"
	EventPong                = "pong"
)

type RoomJoinedPayload struct {
	SessionID            string                   `json:"session_id"`
	QuizID               string                   `json:"quiz_id"`
	RoomCode             string                   `json:"room_code"`
	Status               domain.SessionStatus     `json:"status"`
	IsCreator            bool                     `json:"is_creator"`
	CurrentQuestionIndex int                      `json:"current_question_index"`
	TotalQuestions       int                      `json:"total_questions"`
	Participants         []domain.ParticipantInfo `json:"participants"`
}

type ParticipantPayload struct {
	UserID           string `json:"user_id"`
	DisplayName      string `json:"display_name"`
	ParticipantCount int    `json:"participant_count"`
}

type QuizStartedPayload struct {
	SessionID      string `json:"session_id"`
	TotalQuestions int    `json:"total_questions"`
}

// AnswerView is an answer option as shown during play: never with correctness.
type AnswerView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type NextQuestionPayload struct {
	QuestionID     string       `json:"question_id"`
	QuestionText   string       `json:"question_text"`
	Answers        []AnswerView `json:"answers"`
	TimeLimit      int          `json:"time_limit"`
	QuestionNumber int          `json:"question_number"`
	TotalQuestions int          `json:"total_questions"`
}

type AnswerSubmittedPayload struct {
	QuestionID string `json:"question_id"`
}

type ParticipantAnsweredPayload struct {
	AnsweredCount     int `json:"answered_count"`
	TotalParticipants int `json:"total_participants"`
}

type QuestionTimeoutPayload struct {
	QuestionID     string `json:"question_id"`
	QuestionNumber int    `json:"question_number"`
}

type QuizFinishedPayload struct {
	SessionID string `json:"session_id"`
}

// ErrorPayload carries a stable code plus a human readable message.
type ErrorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ErrorEvent builds an error event of the given type from err.
func ErrorEvent(eventType string, err error) Event {
	return Event{Type: eventType, Payload: ErrorPayload{Error: domain.ErrorCode(err), Message: err.Error()}}
}

func nextQuestionEvent(q domain.Question, index, total int) Event {
	answers := make([]AnswerView, 0, len(q.Answers))
	for _, a := range q.Answers {
		answers = append(answers, AnswerView{ID: a.ID, Text: a.Text})
	}
	return Event{Type: EventNextQuestion, Payload: NextQuestionPayload{
		QuestionID:     q.ID,
		QuestionText:   q.Text,
		Answers:        answers,
		TimeLimit:      q.TimeLimit,
		QuestionNumber: index + 1,
		TotalQuestions: total,
	}}
}
