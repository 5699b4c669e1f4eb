package domain

import "errors"

var (
	// ErrRoomNotFound is returned when no live session owns a room code.
	ErrRoomNotFound = errors.New("room not found")
	// ErrSessionNotFound is returned when a session id is unknown.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrNoActiveSession is returned when a quiz has no waiting or running session.
	ErrNoActiveSession = errors.New("no active session for quiz")
	ErrSessionFinished = errors.New("quiz session already finished")
	ErrNotCreator      = errors.New("only the session creator can do this")
	ErrNoParticipants  = errors.New("no participants in room")
	ErrAlreadyStarted  = errors.New("quiz already started")
	ErrQuestionClosed  = errors.New("question is not open for answers")
	// ErrNotParticipant is returned when a user tries to act before joining.
	ErrNotParticipant  = errors.New("not a participant of this room")
	ErrDuplicateAnswer = errors.New("answer already submitted for this question")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrAnswerNotFound indicates a submitted answer ID is invalid.
	ErrAnswerNotFound = errors.New("answer option not found")
	ErrInvalidQuiz    = errors.New("invalid quiz")
	// ErrCodeSpaceExhausted means no free room code was found within the retry budget.
	ErrCodeSpaceExhausted = errors.New("could not allocate a room code")
	ErrResultsNotFound    = errors.New("results not found")
	// ErrRoomClosed is returned for commands sent to a room whose loop has stopped.
	ErrRoomClosed = errors.New("room closed")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrRoomNotFound, "room_not_found"},
	{ErrSessionNotFound, "session_not_found"},
	{ErrNoActiveSession, "no_active_session"},
	{ErrSessionFinished, "session_finished"},
	{ErrNotCreator, "not_creator"},
	{ErrNoParticipants, "no_participants"},
	{ErrAlreadyStarted, "already_started"},
	{ErrQuestionClosed, "question_closed"},
	{ErrNotParticipant, "not_participant"},
	{ErrDuplicateAnswer, "duplicate_answer"},
	{ErrQuizNotFound, "quiz_not_found"},
	{ErrQuestionNotFound, "question_not_found"},
	{ErrAnswerNotFound, "answer_not_found"},
	{ErrInvalidQuiz, "invalid_quiz"},
	{ErrCodeSpaceExhausted, "code_space_exhausted"},
	{ErrResultsNotFound, "results_not_found"},
	{ErrRoomClosed, "room_closed"},
}

// ErrorCode maps an error to the stable code sent to clients.
func ErrorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return "internal_error"
}
