package actions

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/gmsas95/myrai-care/internal/errors"
)

const (
	redisPendingPrefix = "myrai:pending:"
	redisUserPrefix    = "myrai:pending-user:"
)

// RedisPendingStore keeps pending confirmations in redis with key expiry, so
// several processes can share them
type RedisPendingStore struct {
	rdb redis.Cmdable
}

// NewRedisPendingStore wraps a redis client.
func NewRedisPendingStore(rdb redis.Cmdable) *RedisPendingStore {
	return &RedisPendingStore{rdb: rdb}
}

func (s *RedisPendingStore) Put(ctx context.Context, p *PendingConfirmation) error {
	data, err := json.Marshal(p)
	if err != nil {
		return apperrors.WithCause(apperrors.ErrStoreFailure, err)
	}

	ttl := p.ExpiresAt.Sub(p.CreatedAt)
	if ttl <= 0 {
		ttl = 0
	}

	ok, err := s.rdb.SetNX(ctx, redisPendingPrefix+p.RequestID, data, ttl).Result()
	if err != nil {
		return apperrors.WithCause(apperrors.ErrStoreFailure, err)
	}
	if !ok {
		return apperrors.ErrDuplicateConfirmation
	}

	if err := s.rdb.SAdd(ctx, redisUserPrefix+p.UserID, p.RequestID).Err(); err != nil {
		return apperrors.WithCause(apperrors.ErrStoreFailure, err)
	}
	return nil
}

func (s *RedisPendingStore) Take(ctx context.Context, requestID, userID string, now time.Time) (*PendingConfirmation, error) {
	key := redisPendingPrefix + requestID

	data, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.ErrUnknownConfirmation
	}
	if err != nil {
		return nil, apperrors.WithCause(apperrors.ErrStoreFailure, err)
	}

	var p PendingConfirmation
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, apperrors.WithCause(apperrors.ErrStoreFailure, err)
	}
	if p.UserID != userID || p.Expired(now) {
		return nil, apperrors.ErrUnknownConfirmation
	}

	// only one caller observes the delete
	n, err := s.rdb.Del(ctx, key).Result()
	if err != nil {
		return nil, apperrors.WithCause(apperrors.ErrStoreFailure, err)
	}
	if n == 0 {
		return nil, apperrors.ErrUnknownConfirmation
	}
	s.rdb.SRem(ctx, redisUserPrefix+userID, requestID)

	return &p, nil
}

func (s *RedisPendingStore) List(ctx context.Context, userID string, now time.Time) ([]*PendingConfirmation, error) {
	ids, err := s.rdb.SMembers(ctx, redisUserPrefix+userID).Result()
	if err != nil {
		return nil, apperrors.WithCause(apperrors.ErrStoreFailure, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = redisPendingPrefix + id
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, apperrors.WithCause(apperrors.ErrStoreFailure, err)
	}

	var out []*PendingConfirmation
	var stale []interface{}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var p PendingConfirmation
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, apperrors.WithCause(apperrors.ErrStoreFailure, err)
		}
		if !p.Expired(now) {
			out = append(out, &p)
		}
	}
	if len(stale) > 0 {
		s.rdb.SRem(ctx, redisUserPrefix+userID, stale...)
	}

	sortPending(out)
	return out, nil
}

// Sweep drops index entries whose confirmation has expired. Redis expires
// the entries themselves.
func (s *RedisPendingStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	iter := s.rdb.Scan(ctx, 0, redisUserPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		setKey := iter.Val()
		ids, err := s.rdb.SMembers(ctx, setKey).Result()
		if err != nil {
			return removed, apperrors.WithCause(apperrors.ErrStoreFailure, err)
		}
		for _, id := range ids {
			n, err := s.rdb.Exists(ctx, redisPendingPrefix+id).Result()
			if err != nil {
				return removed, apperrors.WithCause(apperrors.ErrStoreFailure, err)
			}
			if n == 0 {
				s.rdb.SRem(ctx, setKey, id)
				removed++
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, apperrors.WithCause(apperrors.ErrStoreFailure, err)
	}
	return removed, nil
}
