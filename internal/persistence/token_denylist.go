package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "auth:revoked:"

// TokenDenylist records revoked token ids in Redis until they would expire anyway.
type TokenDenylist struct {
	client redis.UniversalClient
	prefix string
}

// NewTokenDenylist builds a denylist on top of the configured client.
func NewTokenDenylist(r *Redis) *TokenDenylist {
	if r == nil || r.Client == nil {
		return &TokenDenylist{prefix: revokedKeyPrefix}
	}
	return &TokenDenylist{client: r.Client, prefix: r.Key("auth", "revoked", "")}
}

// NewTokenDenylistWithClient is used when the caller owns the client.
func NewTokenDenylistWithClient(client redis.UniversalClient) *TokenDenylist {
	return &TokenDenylist{client: client, prefix: revokedKeyPrefix}
}

// Revoke marks tokenID as revoked for ttl. Non-positive ttls are a no-op.
func (d *TokenDenylist) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if d.client == nil {
		return errors.New("redis client not configured")
	}
	return d.client.Set(ctx, d.prefix+tokenID, 1, ttl).Err()
}

// IsRevoked reports whether tokenID was revoked.
func (d *TokenDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if d.client == nil {
		return false, nil
	}
	n, err := d.client.Exists(ctx, d.prefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
