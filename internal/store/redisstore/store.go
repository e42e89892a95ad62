package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

const revokedPrefix = "session:revoked:"

// RevokeSession marks a session id as revoked until its cookie would have
// expired anyway. The cookie itself is the session record, so this set is
// the only server-side state sessions have.
func (s *Store) RevokeSession(ctx context.Context, sessionID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return s.rdb.Set(ctx, revokedPrefix+sessionID, "1", ttl).Err()
}

func (s *Store) IsSessionRevoked(ctx context.Context, sessionID string) (bool, error) {
	_, err := s.rdb.Get(ctx, revokedPrefix+sessionID).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
