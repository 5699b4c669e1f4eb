package app

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"

	"quizroom-service/internal/domain"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// CodeGenerator produces candidate room codes.
type CodeGenerator func() (string, error)

// RandomCodes returns a generator of n-character uppercase alphanumeric codes.
func RandomCodes(n int) CodeGenerator {
	max := big.NewInt(int64(len(codeAlphabet)))
	return func() (string, error) {
		buf := make([]byte, n)
		for i := range buf {
			idx, err := rand.Int(rand.Reader, max)
			if err != nil {
				return "", err
			}
			buf[i] = codeAlphabet[idx.Int64()]
		}
		return string(buf), nil
	}
}

// RoomRegistry maps room codes and session ids to rooms. A code stays taken
// until the room is removed, so codes of live sessions never collide.
type RoomRegistry struct {
	generate CodeGenerator
	attempts int
	reserver CodeReserver

	mu     sync.RWMutex
	byID   map[string]*room
	byCode map[string]*room
}

func NewRoomRegistry(generate CodeGenerator, attempts int, reserver CodeReserver) *RoomRegistry {
	if attempts <= 0 {
		attempts = 1
	}
	return &RoomRegistry{
		generate: generate,
		attempts: attempts,
		reserver: reserver,
		byID:     make(map[string]*room),
		byCode:   make(map[string]*room),
	}
}

// create allocates a free code and registers the room built for it. Code
// allocation and insertion happen under one lock.
func (r *RoomRegistry) create(ctx context.Context, sessionID string, build func(code string) *room) (*room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < r.attempts; i++ {
		code, err := r.generate()
		if err != nil {
			return nil, fmt.Errorf("generate room code: %w", err)
		}
		if _, taken := r.byCode[code]; taken {
			continue
		}
		if r.reserver != nil {
			ok, err := r.reserver.Reserve(ctx, code, sessionID)
			if err != nil {
				return nil, fmt.Errorf("reserve room code: %w", err)
			}
			if !ok {
				continue
			}
		}
		rm := build(code)
		r.byID[sessionID] = rm
		r.byCode[code] = rm
		return rm, nil
	}
	return nil, domain.ErrCodeSpaceExhausted
}

func (r *RoomRegistry) findByCode(code string) (*room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.byCode[code]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return rm, nil
}

func (r *RoomRegistry) findByID(sessionID string) (*room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.byID[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return rm, nil
}

// findByQuizID returns the most recently created non-finished room of a quiz.
func (r *RoomRegistry) findByQuizID(quizID string) (*room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest *room
	for _, rm := range r.byID {
		if rm.quizID != quizID || rm.Status() == domain.StatusFinished {
			continue
		}
		if latest == nil || rm.createdAt.After(latest.createdAt) {
			latest = rm
		}
	}
	if latest == nil {
		return nil, domain.ErrNoActiveSession
	}
	return latest, nil
}

// remove drops a room; the second result is false if it was not registered.
// The room is dropped even when releasing its code reservation fails; that
// error is returned for the caller to report.
func (r *RoomRegistry) remove(ctx context.Context, sessionID string) (*room, bool, error) {
	r.mu.Lock()
	rm, ok := r.byID[sessionID]
	if ok {
		delete(r.byID, sessionID)
		delete(r.byCode, rm.code)
	}
	r.mu.Unlock()
	if !ok || r.reserver == nil {
		return rm, ok, nil
	}
	if err := r.reserver.Release(ctx, rm.code); err != nil {
		return rm, true, fmt.Errorf("release room code %s: %w", rm.code, err)
	}
	return rm, true, nil
}

// refresh extends the outside claim of a room's code; true when nothing
// needs refreshing.
func (r *RoomRegistry) refresh(ctx context.Context, rm *room) (bool, error) {
	refresher, ok := r.reserver.(CodeRefresher)
	if !ok {
		return true, nil
	}
	return refresher.Refresh(ctx, rm.code, rm.id)
}

func (r *RoomRegistry) all() []*room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*room, 0, len(r.byID))
	for _, rm := range r.byID {
		out = append(out, rm)
	}
	return out
}

// Len returns the number of registered rooms.
func (r *RoomRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
