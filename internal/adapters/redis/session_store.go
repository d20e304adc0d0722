package redis

// Package redis provides Redis-based adapters for CourseLens.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/courselens/courselens-api/internal/domain/auth"
)

// SessionStore is a Redis-based session store keyed by the opaque session
// token. TTLs follow the session's backend-managed ExpiresAt. A secondary
// per-user set supports revoking every session of one identity.
type SessionStore struct {
	client redis.UniversalClient
	prefix string
}

// NewSessionStore creates a new Redis-based session store.
func NewSessionStore(client redis.UniversalClient) *SessionStore {
	return &SessionStore{
		client: client,
		prefix: "session:",
	}
}

// NewSessionStoreWithPrefix creates a Redis session store with a custom key prefix.
func NewSessionStoreWithPrefix(client redis.UniversalClient, prefix string) *SessionStore {
	return &SessionStore{
		client: client,
		prefix: prefix,
	}
}

func (s *SessionStore) sessionKey(token string) string { return s.prefix + token }

func (s *SessionStore) userKey(userID string) string { return s.prefix + "user:" + userID }

func (s *SessionStore) Save(ctx context.Context, sess domainauth.Session) error {
	if sess.Token == "" {
		return errors.New("session token cannot be empty")
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return errors.New("session is expired")
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.sessionKey(sess.Token), data, ttl)
	pipe.SAdd(ctx, s.userKey(sess.Identity.ID), sess.Token)
	// Keep the index alive at least as long as its newest session.
	pipe.Expire(ctx, s.userKey(sess.Identity.ID), ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *SessionStore) Get(ctx context.Context, token string) (domainauth.Session, error) {
	if token == "" {
		return domainauth.Session{}, ErrNotFound
	}

	data, err := s.client.Get(ctx, s.sessionKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domainauth.Session{}, ErrNotFound
		}
		return domainauth.Session{}, fmt.Errorf("redis get: %w", err)
	}

	var sess domainauth.Session
	if unmarshalErr := json.Unmarshal([]byte(data), &sess); unmarshalErr != nil {
		return domainauth.Session{}, fmt.Errorf("unmarshal session: %w", unmarshalErr)
	}

	// Redis TTL should have removed it already, but don't trust clock skew.
	// Remove inline from the decoded owner; going through Delete would read
	// the same expired record again.
	if sess.Expired(time.Now()) {
		if removeErr := s.remove(ctx, token, sess.Identity.ID); removeErr != nil {
			return domainauth.Session{}, fmt.Errorf("cleanup expired session: %w", removeErr)
		}
		return domainauth.Session{}, ErrNotFound
	}

	return sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	// Read the raw record to find the owner so the per-user index stays
	// consistent. Expiry is irrelevant here: the key goes away either way.
	data, err := s.client.Get(ctx, s.sessionKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("redis get: %w", err)
	}

	var sess domainauth.Session
	if unmarshalErr := json.Unmarshal([]byte(data), &sess); unmarshalErr != nil {
		// Undecodable record: drop the key; the orphaned index entry
		// falls out at the index TTL.
		return s.client.Del(ctx, s.sessionKey(token)).Err()
	}
	return s.remove(ctx, token, sess.Identity.ID)
}

// remove drops one session key and its entry in the owner's index.
func (s *SessionStore) remove(ctx context.Context, token, userID string) error {
	pipe := s.client.TxPipeline()
	pipe.SRem(ctx, s.userKey(userID), token)
	pipe.Del(ctx, s.sessionKey(token))
	_, err := pipe.Exec(ctx)
	return err
}

// DeleteByUser removes every stored session for one identity and returns how
// many were removed.
func (s *SessionStore) DeleteByUser(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, nil
	}

	tokens, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("list user sessions: %w", err)
	}
	if len(tokens) == 0 {
		return 0, s.client.Del(ctx, s.userKey(userID)).Err()
	}

	keys := make([]string, 0, len(tokens)+1)
	for _, t := range tokens {
		keys = append(keys, s.sessionKey(t))
	}
	keys = append(keys, s.userKey(userID))

	deleted, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("delete user sessions: %w", err)
	}
	// The index key itself is not a session.
	n := int(deleted) - 1
	if n < 0 {
		n = 0
	}
	return n, nil
}

// ErrNotFound is returned when a session is not found.
type notFoundError struct{}

func (notFoundError) Error() string { return "session not found" }

var ErrNotFound error = notFoundError{}
