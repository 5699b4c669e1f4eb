package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"quizroom-service/internal/domain"
)

// Coordinator contains the room use cases: creating sessions, joining,
// starting, answering and the results query.
type Coordinator struct {
	quizzes    QuizRepository
	results    ResultStore
	publisher  ResultPublisher
	dispatcher *Dispatcher
	registry   *RoomRegistry
	logger     *slog.Logger

	afterFunc         AfterFunc
	now               func() time.Time
	newID             func() string
	finishedRetention time.Duration
	persistTimeout    time.Duration
}

// Option configures a Coordinator.
type Option func(*Coordinator)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

func WithPublisher(p ResultPublisher) Option {
	return func(c *Coordinator) { c.publisher = p }
}

func WithRegistry(r *RoomRegistry) Option {
	return func(c *Coordinator) { c.registry = r }
}

// WithClock is test-only for deterministic timestamps and timers.
func WithClock(now func() time.Time, after AfterFunc) Option {
	return func(c *Coordinator) {
		c.now = now
		c.afterFunc = after
	}
}

func WithIDs(newID func() string) Option {
	return func(c *Coordinator) { c.newID = newID }
}

// WithFinishedRetention keeps finished rooms joinable-as-finished for d
// before they are removed from the registry.
func WithFinishedRetention(d time.Duration) Option {
	return func(c *Coordinator) { c.finishedRetention = d }
}

func WithPersistTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.persistTimeout = d }
}

func NewCoordinator(quizzes QuizRepository, results ResultStore, dispatcher *Dispatcher, opts ...Option) *Coordinator {
	c := &Coordinator{
		quizzes:           quizzes,
		results:           results,
		dispatcher:        dispatcher,
		logger:            slog.Default(),
		afterFunc:         RealAfterFunc,
		now:               time.Now,
		newID:             uuid.NewString,
		finishedRetention: time.Minute,
		persistTimeout:    5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.registry == nil {
		c.registry = NewRoomRegistry(RandomCodes(6), 32, nil)
	}
	return c
}

// JoinRequest is an inbound join_room command.
type JoinRequest struct {
	RoomCode    string
	UserID      string
	DisplayName string
	Conn        Conn
}

// JoinResult tells the transport which session the connection now belongs to.
type JoinResult struct {
	SessionID string
	IsCreator bool
	Room      RoomJoinedPayload
}

// CreateSession allocates a waiting room for a quiz.
func (c *Coordinator) CreateSession(ctx context.Context, quizID, creatorID string) (domain.SessionSnapshot, error) {
	quiz, err := c.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	if len(quiz.Questions) == 0 {
		return domain.SessionSnapshot{}, fmt.Errorf("%w: quiz %s has no questions", domain.ErrInvalidQuiz, quizID)
	}

	sessionID := c.newID()
	var snap domain.SessionSnapshot
	rm, err := c.registry.create(ctx, sessionID, func(code string) *room {
		state := NewSessionState(sessionID, code, creatorID, quiz, c.now())
		snap = state.Snapshot()
		return newRoom(c, state)
	})
	if err != nil {
		c.logger.Error("create session", "quiz_id", quizID, "error", err)
		return domain.SessionSnapshot{}, err
	}
	go rm.run()

	c.logger.Info("session created", "session_id", sessionID, "room_code", rm.code, "quiz_id", quizID, "creator_id", creatorID)
	return snap, nil
}

// Join adds a connection to a room. The room_joined reply and the
// participant_joined broadcast are emitted from the room loop.
func (c *Coordinator) Join(ctx context.Context, req JoinRequest) (JoinResult, error) {
	rm, err := c.registry.findByCode(req.RoomCode)
	if err != nil {
		return JoinResult{}, err
	}
	var (
		payload   RoomJoinedPayload
		isCreator bool
		joinErr   error
	)
	if err := rm.do(ctx, func() {
		payload, isCreator, joinErr = rm.join(req.UserID, req.DisplayName, req.Conn)
	}); err != nil {
		return JoinResult{}, err
	}
	if joinErr != nil {
		return JoinResult{}, joinErr
	}
	c.refreshCode(ctx, rm)
	return JoinResult{SessionID: rm.id, IsCreator: isCreator, Room: payload}, nil
}

// Start opens question 0 of a waiting session.
func (c *Coordinator) Start(ctx context.Context, sessionID, userID string) error {
	if err := c.onRoom(ctx, sessionID, func(rm *room) error { return rm.start(userID) }); err != nil {
		return err
	}
	if rm, err := c.registry.findByID(sessionID); err == nil {
		c.refreshCode(ctx, rm)
	}
	return nil
}

// SubmitAnswer records a participant's answer to the open question.
func (c *Coordinator) SubmitAnswer(ctx context.Context, sessionID, userID, questionID, answerID string) error {
	return c.onRoom(ctx, sessionID, func(rm *room) error { return rm.submitAnswer(userID, questionID, answerID) })
}

// Disconnect handles a dropped connection.
func (c *Coordinator) Disconnect(ctx context.Context, sessionID, userID, connID string) {
	err := c.onRoom(ctx, sessionID, func(rm *room) error {
		rm.leave(userID, connID)
		return nil
	})
	if err != nil && !errors.Is(err, domain.ErrSessionNotFound) && !errors.Is(err, domain.ErrRoomClosed) {
		c.logger.Warn("disconnect", "session_id", sessionID, "user_id", userID, "error", err)
	}
}

// Cancel ends a session on behalf of its creator and removes it.
func (c *Coordinator) Cancel(ctx context.Context, sessionID, userID string) error {
	if err := c.onRoom(ctx, sessionID, func(rm *room) error { return rm.cancel(userID) }); err != nil {
		return err
	}
	c.removeRoom(sessionID)
	return nil
}

// Snapshot returns the current view of a session.
func (c *Coordinator) Snapshot(ctx context.Context, sessionID string) (domain.SessionSnapshot, error) {
	rm, err := c.registry.findByID(sessionID)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	return c.snapshot(ctx, rm)
}

// FindByCode returns the session that owns a room code.
func (c *Coordinator) FindByCode(ctx context.Context, code string) (domain.SessionSnapshot, error) {
	rm, err := c.registry.findByCode(code)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	return c.snapshot(ctx, rm)
}

// FindByQuizID returns the latest waiting or running session of a quiz.
func (c *Coordinator) FindByQuizID(ctx context.Context, quizID string) (domain.SessionSnapshot, error) {
	rm, err := c.registry.findByQuizID(quizID)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	return c.snapshot(ctx, rm)
}

// Results returns the final results of a finished session, from a room still
// held in memory or from the result store.
func (c *Coordinator) Results(ctx context.Context, sessionID string) (domain.SessionResults, error) {
	if rm, err := c.registry.findByID(sessionID); err == nil {
		var results *domain.SessionResults
		if err := rm.do(ctx, func() { results = rm.results }); err == nil && results != nil {
			return *results, nil
		}
		if rm.Status() != domain.StatusFinished {
			return domain.SessionResults{}, domain.ErrResultsNotFound
		}
	}
	results, err := c.results.GetResults(ctx, sessionID)
	if err != nil {
		return domain.SessionResults{}, err
	}
	return results, nil
}

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// ResultsPage is one page of the finished sessions of a quiz.
type ResultsPage struct {
	QuizID  string                  `json:"quiz_id"`
	Limit   int                     `json:"limit"`
	Offset  int                     `json:"offset"`
	Results []domain.SessionResults `json:"results"`
}

// History lists the stored results of a quiz, newest first. limit falls back
// to 20 and is capped at 100.
func (c *Coordinator) History(ctx context.Context, quizID string, limit, offset int) (ResultsPage, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	results, err := c.results.ListByQuiz(ctx, quizID, limit, offset)
	if err != nil {
		return ResultsPage{}, err
	}
	if results == nil {
		results = []domain.SessionResults{}
	}
	return ResultsPage{QuizID: quizID, Limit: limit, Offset: offset, Results: results}, nil
}

// Close stops every room loop and pending timer.
func (c *Coordinator) Close() {
	for _, rm := range c.registry.all() {
		c.removeRoom(rm.id)
	}
}

func (c *Coordinator) onRoom(ctx context.Context, sessionID string, fn func(rm *room) error) error {
	rm, err := c.registry.findByID(sessionID)
	if err != nil {
		return err
	}
	var opErr error
	if err := rm.do(ctx, func() { opErr = fn(rm) }); err != nil {
		return err
	}
	return opErr
}

func (c *Coordinator) snapshot(ctx context.Context, rm *room) (domain.SessionSnapshot, error) {
	var snap domain.SessionSnapshot
	if err := rm.do(ctx, func() { snap = rm.state.Snapshot() }); err != nil {
		return domain.SessionSnapshot{}, err
	}
	return snap, nil
}

// persist stores and publishes results. It reports whether the store write
// succeeded; publishing is best effort.
func (c *Coordinator) persist(results domain.SessionResults, logger *slog.Logger) bool {
	ctx, cancel := context.WithTimeout(context.Background(), c.persistTimeout)
	defer cancel()

	persisted := true
	if err := c.results.SaveResults(ctx, results); err != nil {
		logger.Error("persist results", "error", err)
		persisted = false
	}
	if c.publisher != nil {
		if err := c.publisher.PublishResults(ctx, results); err != nil {
			logger.Warn("publish results", "error", err)
		}
	}
	return persisted
}

func (c *Coordinator) refreshCode(ctx context.Context, rm *room) {
	held, err := c.registry.refresh(ctx, rm)
	switch {
	case err != nil:
		c.logger.Warn("refresh room code", "session_id", rm.id, "room_code", rm.code, "error", err)
	case !held:
		c.logger.Warn("room code claim lost", "session_id", rm.id, "room_code", rm.code)
	}
}

func (c *Coordinator) scheduleRemoval(sessionID string) {
	if c.finishedRetention <= 0 {
		// Called from the room loop; removal waits on the loop, so hand it off.
		go c.removeRoom(sessionID)
		return
	}
	c.afterFunc(c.finishedRetention, func() { c.removeRoom(sessionID) })
}

func (c *Coordinator) removeRoom(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.persistTimeout)
	defer cancel()
	rm, ok, err := c.registry.remove(ctx, sessionID)
	if !ok {
		return
	}
	if err != nil {
		c.logger.Error("room code reservation left behind", "session_id", sessionID, "error", err)
	}
	_ = rm.do(ctx, rm.shutdown)
	rm.stop()
	subscribers := c.dispatcher.Subscribers(sessionID)
	c.dispatcher.CloseRoom(sessionID)
	c.logger.Info("session removed", "session_id", sessionID, "room_code", rm.code, "subscribers", subscribers)
}
