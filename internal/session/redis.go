package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var _ Store = (*RedisStore)(nil)

// RedisStore keeps sessions as JSON values under "<prefix>:<id>" with a TTL.
type RedisStore struct {
	client      redis.Cmdable
	prefix      string
	ttl         time.Duration
	rememberTTL time.Duration
	now         func() time.Time
}

// NewRedisStore creates a store. ttl applies to ordinary sessions and
// rememberTTL to sessions created with the remember flag.
func NewRedisStore(client redis.Cmdable, prefix string, ttl, rememberTTL time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "session"
	}
	if rememberTTL < ttl {
		rememberTTL = ttl
	}
	return &RedisStore{
		client:      client,
		prefix:      prefix,
		ttl:         ttl,
		rememberTTL: rememberTTL,
		now:         time.Now,
	}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + ":" + id
}

// Create issues a new random session id for userID.
func (s *RedisStore) Create(ctx context.Context, userID int64, remember bool) (Session, error) {
	ttl := s.ttl
	if remember {
		ttl = s.rememberTTL
	}
	now := s.now().UTC()
	sess := Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Remember:  remember,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	payload, err := json.Marshal(sess)
	if err != nil {
		return Session{}, fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(sess.ID), payload, ttl).Err(); err != nil {
		return Session{}, fmt.Errorf("store session: %w", err)
	}
	return sess, nil
}

// Get loads a session. Unknown, expired and unparsable ids yield ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, id string) (Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Session{}, ErrNotFound
	}
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("load session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return Session{}, ErrNotFound
	}
	return sess, nil
}

// Delete removes a session. Deleting an unknown id is not an error.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
