package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// refreshScript extends a claim only while it still names the same session.
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RoomCodes claims room codes in Redis so that instances sharing the same
// Redis never hand out a live code twice. A claim is a plain key
// quiz:room:{code} holding the session id; the TTL bounds the damage of a
// crashed instance that never released its codes. Live rooms push the TTL
// forward through Refresh on joins, starts and kept finished rooms, so only a
// room idle for longer than the TTL can lose its claim.
type RoomCodes struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRoomCodes(client *redis.Client, ttl time.Duration) *RoomCodes {
	return &RoomCodes{client: client, ttl: ttl}
}

// Reserve claims code for sessionID. It returns false if another session holds it.
func (s *RoomCodes) Reserve(ctx context.Context, code, sessionID string) (bool, error) {
	return s.client.SetNX(ctx, s.key(code), sessionID, s.ttl).Result()
}

// Release frees a claimed code.
func (s *RoomCodes) Release(ctx context.Context, code string) error {
	return s.client.Del(ctx, s.key(code)).Err()
}

// Refresh restarts the TTL of a claim held by sessionID. It returns false when
// the claim expired or belongs to another session.
func (s *RoomCodes) Refresh(ctx context.Context, code, sessionID string) (bool, error) {
	if s.ttl <= 0 {
		owner, err := s.Owner(ctx, code)
		return owner == sessionID, err
	}
	n, err := refreshScript.Run(ctx, s.client, []string{s.key(code)}, sessionID, s.ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Owner returns the session holding a code, or "" if it is free.
func (s *RoomCodes) Owner(ctx context.Context, code string) (string, error) {
	id, err := s.client.Get(ctx, s.key(code)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return id, err
}

func (s *RoomCodes) key(code string) string {
	return "quiz:room:" + code
}
