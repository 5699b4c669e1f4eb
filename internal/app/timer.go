package app

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stopper is the part of *time.Timer the question timer needs.
type Stopper interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it once wrapped by
// RealAfterFunc; tests substitute a manual clock.
type AfterFunc func(d time.Duration, f func()) Stopper

// RealAfterFunc schedules on the runtime timer.
func RealAfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}

// QuestionTimer is the countdown of one open question. Expiry does not touch
// session state; it only hands the question index to onExpire, which posts a
// close command onto the room loop.
type QuestionTimer struct {
	index     int
	cancelled atomic.Bool
	once      sync.Once
	stopper   Stopper
}

func startQuestionTimer(after AfterFunc, index int, d time.Duration, onExpire func(index int)) *QuestionTimer {
	t := &QuestionTimer{index: index}
	t.stopper = after(d, func() {
		if t.cancelled.Load() {
			return
		}
		t.once.Do(func() { onExpire(t.index) })
	})
	return t
}

// Index is the question index the timer counts down for.
func (t *QuestionTimer) Index() int { return t.index }

// Cancel stops the timer. A callback already in flight becomes a no-op here
// or, if it slipped past the flag, at the room's close guard.
func (t *QuestionTimer) Cancel() {
	if t == nil {
		return
	}
	t.cancelled.Store(true)
	if t.stopper != nil {
		t.stopper.Stop()
	}
}
