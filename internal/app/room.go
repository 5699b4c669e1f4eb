package app

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"quizroom-service/internal/domain"
)

type closeReason int

const (
	closeAllAnswered closeReason = iota
	closeTimeout
)

// room owns one SessionState and serializes every mutation of it through
// its inbox. Client commands and timer expiries take the same path.
type room struct {
	id        string
	code      string
	quizID    string
	createdAt time.Time

	c      *Coordinator
	state  *SessionState
	logger *slog.Logger

	inbox    chan func()
	quit     chan struct{}
	stopOnce sync.Once
	status   atomic.Value

	timer   *QuestionTimer
	hosts   map[string]struct{}
	results *domain.SessionResults
}

func newRoom(c *Coordinator, state *SessionState) *room {
	r := &room{
		id:        state.ID,
		code:      state.RoomCode,
		quizID:    state.Quiz.ID,
		createdAt: state.CreatedAt,
		c:         c,
		state:     state,
		logger:    c.logger.With("session_id", state.ID, "room_code", state.RoomCode),
		inbox:     make(chan func(), 64),
		quit:      make(chan struct{}),
		hosts:     make(map[string]struct{}),
	}
	r.status.Store(state.Status())
	return r
}

// Status is safe to call from any goroutine.
func (r *room) Status() domain.SessionStatus {
	return r.status.Load().(domain.SessionStatus)
}

func (r *room) run() {
	for {
		select {
		case fn := <-r.inbox:
			r.exec(fn)
		case <-r.quit:
			return
		}
	}
}

// exec runs one command; a panic is contained to the command.
func (r *room) exec(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("room command panicked", "panic", rec)
		}
	}()
	fn()
	r.status.Store(r.state.Status())
}

// do runs fn on the room loop and waits for it.
func (r *room) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	cmd := func() {
		defer close(done)
		fn()
	}
	select {
	case r.inbox <- cmd:
	case <-r.quit:
		return domain.ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-r.quit:
		select {
		case <-done:
			return nil
		default:
			return domain.ErrRoomClosed
		}
	}
}

// post queues fn without waiting. It gives up once the room has stopped.
func (r *room) post(fn func()) {
	select {
	case r.inbox <- fn:
	case <-r.quit:
	}
}

func (r *room) stop() {
	r.stopOnce.Do(func() { close(r.quit) })
}

func (r *room) broadcast(ev Event) {
	r.c.dispatcher.Broadcast(r.id, ev)
}

func (r *room) now() time.Time { return r.c.now() }

// The methods below run on the room loop only.

func (r *room) join(userID, displayName string, conn Conn) (RoomJoinedPayload, bool, error) {
	if r.state.Status() == domain.StatusFinished {
		return RoomJoinedPayload{}, false, domain.ErrSessionFinished
	}

	isCreator := userID == r.state.CreatorID
	if isCreator {
		r.hosts[conn.ID()] = struct{}{}
		r.c.dispatcher.Subscribe(r.id, conn)
	} else {
		if prev, ok := r.state.Participant(userID); ok && prev.ConnID != "" && prev.ConnID != conn.ID() {
			// The newer connection supersedes the old one.
			r.c.dispatcher.Unsubscribe(r.id, prev.ConnID)
		}
		p, rejoined := r.state.AddParticipant(userID, displayName, conn.ID(), r.now())
		r.c.dispatcher.Subscribe(r.id, conn)
		r.logger.Info("participant joined", "user_id", userID, "rejoined", rejoined, "eligible_from", p.EligibleFrom)
	}

	payload := r.joinedPayload(isCreator)
	r.c.dispatcher.SendTo(r.id, conn.ID(), Event{Type: EventRoomJoined, Payload: payload})
	if !isCreator {
		p, _ := r.state.Participant(userID)
		r.broadcast(Event{Type: EventParticipantJoined, Payload: ParticipantPayload{
			UserID:           userID,
			DisplayName:      p.DisplayName,
			ParticipantCount: r.state.ParticipantCount(),
		}})
	}
	return payload, isCreator, nil
}

func (r *room) joinedPayload(isCreator bool) RoomJoinedPayload {
	snap := r.state.Snapshot()
	return RoomJoinedPayload{
		SessionID:            snap.ID,
		QuizID:               snap.QuizID,
		RoomCode:             snap.RoomCode,
		Status:               snap.Status,
		IsCreator:            isCreator,
		CurrentQuestionIndex: snap.CurrentQuestionIndex,
		TotalQuestions:       snap.TotalQuestions,
		Participants:         snap.Participants,
	}
}

func (r *room) leave(userID, connID string) {
	r.c.dispatcher.Unsubscribe(r.id, connID)
	if _, ok := r.hosts[connID]; ok {
		delete(r.hosts, connID)
		return
	}
	p, ok := r.state.RemoveParticipant(userID, connID)
	if !ok {
		return
	}
	r.logger.Info("participant left", "user_id", userID, "status", r.state.Status())
	if r.state.Status() == domain.StatusFinished {
		return
	}
	r.broadcast(Event{Type: EventParticipantLeft, Payload: ParticipantPayload{
		UserID:           p.UserID,
		DisplayName:      p.DisplayName,
		ParticipantCount: r.state.ParticipantCount(),
	}})
	if r.state.QuestionOpen() && r.state.AllAnswered() {
		r.closeQuestion(r.state.CurrentIndex(), closeAllAnswered)
	}
}

func (r *room) start(userID string) error {
	if userID != r.state.CreatorID {
		return domain.ErrNotCreator
	}
	if err := r.state.Start(); err != nil {
		return err
	}
	r.logger.Info("quiz started", "participants", r.state.ParticipantCount())
	r.broadcast(Event{Type: EventQuizStarted, Payload: QuizStartedPayload{
		SessionID:      r.id,
		TotalQuestions: r.state.QuestionCount(),
	}})
	r.openCurrentQuestion()
	return nil
}

func (r *room) openCurrentQuestion() {
	question, ok := r.state.CurrentQuestion()
	if !ok {
		r.logger.Error("no question at current index", "index", r.state.CurrentIndex())
		return
	}
	index := r.state.CurrentIndex()
	r.broadcast(nextQuestionEvent(question, index, r.state.QuestionCount()))
	r.timer = startQuestionTimer(r.c.afterFunc, index, question.Duration(), func(idx int) {
		r.post(func() { r.closeQuestion(idx, closeTimeout) })
	})
}

func (r *room) submitAnswer(userID, questionID, answerID string) error {
	if _, err := r.state.RecordAnswer(questionID, userID, answerID, r.now()); err != nil {
		return err
	}
	if p, ok := r.state.Participant(userID); ok && p.ConnID != "" {
		r.c.dispatcher.SendTo(r.id, p.ConnID, Event{Type: EventAnswerSubmitted, Payload: AnswerSubmittedPayload{QuestionID: questionID}})
	}
	answered, total := r.state.Progress()
	r.broadcast(Event{Type: EventParticipantAnswered, Payload: ParticipantAnsweredPayload{
		AnsweredCount:     answered,
		TotalParticipants: total,
	}})
	if r.state.AllAnswered() {
		r.closeQuestion(r.state.CurrentIndex(), closeAllAnswered)
	}
	return nil
}

// closeQuestion is the single exit of an open question. Both the timer and
// the last answer land here; whichever comes second finds the question
// already closed and does nothing.
func (r *room) closeQuestion(index int, reason closeReason) {
	if !r.state.CloseQuestion(index) {
		r.logger.Debug("close ignored, question not open", "index", index, "reason", reason)
		return
	}
	r.timer.Cancel()
	r.timer = nil

	question := r.state.Quiz.Questions[index]
	if reason == closeTimeout {
		r.broadcast(Event{Type: EventQuestionTimeout, Payload: QuestionTimeoutPayload{
			QuestionID:     question.ID,
			QuestionNumber: index + 1,
		}})
	}

	if r.state.IsLastQuestion() {
		r.finish()
		return
	}
	if err := r.state.AdvanceQuestion(); err != nil {
		r.logger.Error("advance question", "error", err)
		return
	}
	r.openCurrentQuestion()
}

func (r *room) finish() {
	finishedAt := r.now()
	r.state.Finish(finishedAt)
	results := ScoreSession(r.state, finishedAt)
	r.results = &results
	r.status.Store(domain.StatusFinished)

	persisted := r.c.persist(results, r.logger)
	r.broadcast(Event{Type: EventQuizFinished, Payload: QuizFinishedPayload{SessionID: r.id}})
	r.logger.Info("quiz finished", "participants", len(results.Participants), "persisted", persisted)

	if persisted {
		r.c.scheduleRemoval(r.id)
		return
	}
	// The room stays registered; keep its code claimed while it does.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.c.persistTimeout)
		defer cancel()
		r.c.refreshCode(ctx, r)
	}()
}

func (r *room) cancel(userID string) error {
	if userID != r.state.CreatorID {
		return domain.ErrNotCreator
	}
	if r.state.Status() == domain.StatusFinished {
		return domain.ErrSessionFinished
	}
	r.timer.Cancel()
	r.timer = nil
	// Finishing without results turns late timer expiries and answers into no-ops.
	r.state.Finish(r.now())
	r.broadcast(Event{Type: EventQuizError, Payload: ErrorPayload{
		Error:   "session_cancelled",
		Message: "the quiz was cancelled by its creator",
	}})
	r.logger.Info("session cancelled")
	return nil
}

// shutdown stops the pending timer; used before the loop exits.
func (r *room) shutdown() {
	if r.timer != nil {
		r.logger.Info("stopping open question", "index", r.timer.Index())
	}
	r.timer.Cancel()
	r.timer = nil
}
