package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SessionStore tracks revoked access-token ids in Redis. It is injected
// explicitly instead of living in a process-wide map, so revocations survive
// restarts and are shared across instances.
type SessionStore struct {
	client *redis.Client
	logger *zap.Logger
}

// NewSessionStore constructs the store. A nil client degrades to a no-op
// store that never reports a revocation.
func NewSessionStore(client *redis.Client, logger *zap.Logger) *SessionStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionStore{client: client, logger: logger}
}

// RevokeToken marks an access-token id revoked until its natural expiry.
func (s *SessionStore) RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	if s.client == nil || tokenID == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	if err := s.client.Set(ctx, revocationKey(tokenID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token %s: %w", tokenID, err)
	}
	return nil
}

// IsTokenRevoked reports whether the access-token id has been revoked. Redis
// outages fail open with a warning; the token's own expiry still bounds it.
func (s *SessionStore) IsTokenRevoked(ctx context.Context, tokenID string) bool {
	if s.client == nil || tokenID == "" {
		return false
	}
	exists, err := s.client.Exists(ctx, revocationKey(tokenID)).Result()
	if err != nil {
		s.logger.Warn("revocation lookup failed", zap.Error(err), zap.String("token_id", tokenID))
		return false
	}
	return exists > 0
}

func revocationKey(tokenID string) string {
	return "session:revoked:" + tokenID
}
