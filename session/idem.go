package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdemStore keeps caller-supplied idempotency keys in Redis so a resubmitted
// batch is recognized instead of silently re-reserving. The value is the
// serialized response of the original commit; a claim in flight holds a
// placeholder until the outcome is known.
type IdemStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewIdemStore(rdb *redis.Client, ttl time.Duration) *IdemStore {
	return &IdemStore{rdb: rdb, ttl: ttl}
}

const pending = "__pending__"

// ErrInFlight means the same key is mid-commit elsewhere; the outcome is
// not known yet and the caller should try again shortly.
var ErrInFlight = errors.New("submission with this key is in flight")

func idemKey(requesterID, key string) string {
	return fmt.Sprintf("idem:%s:%s", requesterID, key)
}

// Claim attempts to take ownership of the key. On first use it returns
// (true, nil, nil); on a replay it returns the stored response.
func (s *IdemStore) Claim(ctx context.Context, requesterID, key string) (bool, []byte, error) {
	ok, err := s.rdb.SetNX(ctx, idemKey(requesterID, key), pending, s.ttl).Result()
	if err != nil {
		return false, nil, err
	}
	if ok {
		return true, nil, nil
	}
	b, err := s.rdb.Get(ctx, idemKey(requesterID, key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			// expired between SetNX and Get; let the caller retry
			return false, nil, ErrInFlight
		}
		return false, nil, err
	}
	if string(b) == pending {
		return false, nil, ErrInFlight
	}
	return false, b, nil
}

// Complete stores the response for future replays of the same key.
func (s *IdemStore) Complete(ctx context.Context, requesterID, key string, body []byte) error {
	return s.rdb.Set(ctx, idemKey(requesterID, key), body, s.ttl).Err()
}

// Release drops a claim after a failed commit so the caller may retry with
// the same key.
func (s *IdemStore) Release(ctx context.Context, requesterID, key string) error {
	return s.rdb.Del(ctx, idemKey(requesterID, key)).Err()
}
