package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

var ErrIdempotencyConflict = errors.New("idempotency key reused with a different request")

// StoredResponse is the replayable outcome of a request made under an
// Idempotency-Key.
type StoredResponse struct {
	RequestHash string          `json:"requestHash"`
	Status      int             `json:"status"`
	Body        json.RawMessage `json:"body"`
}

func RequestHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

type IdempotencyStore struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewIdempotencyStore(rdb *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{rdb: rdb, ttl: ttl, prefix: "idempotency:"}
}

// Check returns the stored response for key. A stored response for a
// different request hash is ErrIdempotencyConflict.
func (s *IdempotencyStore) Check(ctx context.Context, key, requestHash string) (StoredResponse, bool, error) {
	raw, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return StoredResponse{}, false, nil
	}
	if err != nil {
		return StoredResponse{}, false, err
	}
	var stored StoredResponse
	if err := json.Unmarshal(raw, &stored); err != nil {
		return StoredResponse{}, false, err
	}
	if stored.RequestHash != requestHash {
		return StoredResponse{}, false, ErrIdempotencyConflict
	}
	return stored, true, nil
}

// Save keeps the first response written under key; a later save with another
// hash reports a conflict.
func (s *IdempotencyStore) Save(ctx context.Context, key string, resp StoredResponse) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	created, err := s.rdb.SetNX(ctx, s.prefix+key, raw, s.ttl).Result()
	if err != nil {
		return err
	}
	if created {
		return nil
	}
	_, _, err = s.Check(ctx, key, resp.RequestHash)
	return err
}

func (s *IdempotencyStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
