package app_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"quizroom-service/internal/app"
	"quizroom-service/internal/domain"
	"quizroom-service/internal/infra/memory"
)

// manualTimers replaces time.AfterFunc; tests fire timers by hand.
type manualTimers struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	mu      sync.Mutex
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (m *manualTimers) After(d time.Duration, f func()) app.Stopper {
	t := &manualTimer{d: d, f: f}
	m.mu.Lock()
	m.timers = append(m.timers, t)
	m.mu.Unlock()
	return t
}

func (t *manualTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

// pending returns timers that are neither stopped nor fired, oldest first.
func (m *manualTimers) pending() []*manualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*manualTimer
	for _, t := range m.timers {
		t.mu.Lock()
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
		t.mu.Unlock()
	}
	return out
}

// take claims the oldest pending timer with the given duration and returns
// its callback without running it.
func (m *manualTimers) take(t *testing.T, d time.Duration) func() {
	t.Helper()
	for _, tm := range m.pending() {
		if tm.d != d {
			continue
		}
		tm.mu.Lock()
		tm.fired = true
		f := tm.f
		tm.mu.Unlock()
		return f
	}
	t.Fatalf("no pending timer of %s", d)
	return nil
}

func (m *manualTimers) fireNext(t *testing.T, d time.Duration) {
	t.Helper()
	m.take(t, d)()
}

func (m *manualTimers) pendingOf(d time.Duration) int {
	n := 0
	for _, tm := range m.pending() {
		if tm.d == d {
			n++
		}
	}
	return n
}

// recordingConn captures every event delivered to it.
type recordingConn struct {
	id string

	mu     sync.Mutex
	events []app.Event
}

func newConn(id string) *recordingConn { return &recordingConn{id: id} }

func (c *recordingConn) ID() string { return c.id }

func (c *recordingConn) Send(ev app.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return true
}

func (c *recordingConn) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, ev := range c.events {
		out = append(out, ev.Type)
	}
	return out
}

func (c *recordingConn) count(eventType string) int {
	n := 0
	for _, typ := range c.types() {
		if typ == eventType {
			n++
		}
	}
	return n
}

func (c *recordingConn) last(eventType string) (app.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.events) - 1; i >= 0; i-- {
		if c.events[i].Type == eventType {
			return c.events[i], true
		}
	}
	return app.Event{}, false
}

type fixture struct {
	coord   *app.Coordinator
	timers  *manualTimers
	results *memory.ResultStore
	quiz    domain.Quiz
}

const questionLimit = 10 * time.Second

func newFixture(t *testing.T, questions int, opts ...app.Option) *fixture {
	t.Helper()
	quiz := makeQuiz("quiz-1", questions)
	timers := &manualTimers{}
	results := memory.NewResultStore()
	repo := memory.NewQuizRepository(memory.NewStaticQuizLoader(map[string]domain.Quiz{quiz.ID: quiz}), time.Minute)

	var seq int
	var mu sync.Mutex
	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		seq++
		return clock.Add(time.Duration(seq) * time.Millisecond)
	}

	all := append([]app.Option{
		app.WithClock(now, timers.After),
		app.WithFinishedRetention(time.Hour),
	}, opts...)
	coord := app.NewCoordinator(repo, results, app.NewDispatcher(nil), all...)
	t.Cleanup(coord.Close)
	return &fixture{coord: coord, timers: timers, results: results, quiz: quiz}
}

// makeQuiz builds n questions q1..qn whose correct answer is "<qid>-a".
func makeQuiz(id string, n int) domain.Quiz {
	quiz := domain.Quiz{ID: id, Title: "Quiz " + id}
	for i := 1; i <= n; i++ {
		qid := fmt.Sprintf("q%d", i)
		quiz.Questions = append(quiz.Questions, domain.Question{
			ID:        qid,
			Text:      "Question " + qid,
			TimeLimit: int(questionLimit / time.Second),
			Answers: []domain.AnswerOption{
				{ID: qid + "-a", Text: "right " + qid, IsCorrect: true},
				{ID: qid + "-b", Text: "wrong " + qid},
			},
		})
	}
	return quiz
}

func (f *fixture) create(t *testing.T, creator string) domain.SessionSnapshot {
	t.Helper()
	snap, err := f.coord.CreateSession(context.Background(), f.quiz.ID, creator)
	require.NoError(t, err)
	return snap
}

func (f *fixture) join(t *testing.T, code, userID string) *recordingConn {
	t.Helper()
	conn := newConn("conn-" + userID)
	_, err := f.coord.Join(context.Background(), app.JoinRequest{
		RoomCode: code, UserID: userID, DisplayName: "name-" + userID, Conn: conn,
	})
	require.NoError(t, err)
	return conn
}

func (f *fixture) answer(sessionID, userID, questionID, answerID string) error {
	return f.coord.SubmitAnswer(context.Background(), sessionID, userID, questionID, answerID)
}

// sync waits until every command queued on the room so far has run.
func (f *fixture) sync(t *testing.T, sessionID string) domain.SessionSnapshot {
	t.Helper()
	snap, err := f.coord.Snapshot(context.Background(), sessionID)
	require.NoError(t, err)
	return snap
}

func staticRepo(quizzes ...domain.Quiz) *memory.QuizRepository {
	byID := make(map[string]domain.Quiz, len(quizzes))
	for _, q := range quizzes {
		byID[q.ID] = q
	}
	return memory.NewQuizRepository(memory.NewStaticQuizLoader(byID), time.Minute)
}
