package domain

import "time"

// SessionStatus is the lifecycle state of a room.
type SessionStatus string

const (
	StatusWaiting    SessionStatus = "waiting"
	StatusInProgress SessionStatus = "in_progress"
	StatusFinished   SessionStatus = "finished"
)

const (
	MinTimeLimit     = 5
	MaxTimeLimit     = 600
	DefaultTimeLimit = 30
)

// AnswerOption is one selectable answer of a question.
type AnswerOption struct {
	ID        string `json:"id" yaml:"id"`
	Text      string `json:"text" yaml:"text"`
	IsCorrect bool   `json:"is_correct" yaml:"is_correct"`
}

// Question models an MCQ question with exactly one correct option.
type Question struct {
	ID        string         `json:"id" yaml:"id"`
	Text      string         `json:"text" yaml:"text"`
	Answers   []AnswerOption `json:"answers" yaml:"answers"`
	TimeLimit int            `json:"time_limit" yaml:"time_limit"` // seconds
}

// Quiz is an ordered collection of questions. It is read-only once a session
// has been created for it.
type Quiz struct {
	ID        string     `json:"id" yaml:"id"`
	Title     string     `json:"title" yaml:"title"`
	Questions []Question `json:"questions" yaml:"questions"`
}

// Participant is a roster entry. ConnID is a weak handle onto the transport
// connection; the connection itself is owned by the dispatcher.
type Participant struct {
	UserID      string
	DisplayName string
	JoinedAt    time.Time
	JoinOrder   int
	ConnID      string
	Connected   bool
	// EligibleFrom is the first question index this participant may answer.
	EligibleFrom int
}

// AnswerRecord is a committed answer of one participant to one question.
type AnswerRecord struct {
	QuestionID  string
	UserID      string
	AnswerID    string
	SubmittedAt time.Time
}

// ParticipantInfo is the public roster view of a participant.
type ParticipantInfo struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	JoinedAt    time.Time `json:"joined_at"`
	Connected   bool      `json:"connected"`
}

// SessionSnapshot is a read-only projection of a session for joiners and the
// REST surface.
type SessionSnapshot struct {
	ID                   string            `json:"id"`
	QuizID               string            `json:"quiz_id"`
	QuizTitle            string            `json:"quiz_title"`
	RoomCode             string            `json:"room_code"`
	CreatorID            string            `json:"creator_id"`
	Status               SessionStatus     `json:"status"`
	CurrentQuestionIndex int               `json:"current_question_index"`
	TotalQuestions       int               `json:"total_questions"`
	Participants         []ParticipantInfo `json:"participants"`
	CreatedAt            time.Time         `json:"created_at"`
}

// AnswerDetail is one row of the per-question review of a participant.
type AnswerDetail struct {
	QuestionID         string `json:"question_id"`
	QuestionText       string `json:"question_text"`
	SelectedAnswerID   string `json:"selected_answer_id,omitempty"`
	SelectedAnswerText string `json:"selected_answer_text,omitempty"`
	CorrectAnswerText  string `json:"correct_answer_text"`
	IsCorrect          bool   `json:"is_correct"`
}

// ParticipantResult is the final tally of one participant.
type ParticipantResult struct {
	UserID         string         `json:"user_id"`
	DisplayName    string         `json:"display_name"`
	CorrectAnswers int            `json:"correct_answers"`
	TotalQuestions int            `json:"total_questions"`
	Score          float64        `json:"score"`
	Answers        []AnswerDetail `json:"answers"`
}

// SessionResults is what a finished session leaves behind.
type SessionResults struct {
	SessionID      string              `json:"session_id"`
	QuizID         string              `json:"quiz_id"`
	QuizTitle      string              `json:"quiz_title"`
	RoomCode       string              `json:"room_code"`
	TotalQuestions int                 `json:"total_questions"`
	Participants   []ParticipantResult `json:"participants"`
	FinishedAt     time.Time           `json:"finished_at"`
}
