package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/recetas/recetas/internal/model"
)

const (
	// profileCachePrefix is the Redis key prefix for profiles resolved from a token.
	profileCachePrefix = "profile:token:"
	// profileUserPrefix indexes the cached token keys of one user.
	profileUserPrefix = "profile:user:"
	// ProfileCacheTTL bounds how stale a cached role may be.
	ProfileCacheTTL = time.Minute
)

// cachedProfile is the profile as stored in Redis.
type cachedProfile struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// GetProfile returns the profile cached for an access token.
// Returns nil on a miss.
func (c *Cache) GetProfile(ctx context.Context, accessToken string) (*model.User, error) {
	data, err := c.client.Get(ctx, profileCachePrefix+hashToken(accessToken)).Bytes()
	if err != nil {
		// Cache miss is not an error
		return nil, nil //nolint:nilerr
	}

	var cached cachedProfile
	if err := json.Unmarshal(data, &cached); err != nil {
		// Corrupted cache entry - treat as miss
		return nil, nil //nolint:nilerr
	}

	return &model.User{
		ID:        cached.ID,
		Email:     cached.Email,
		Role:      model.Role(cached.Role),
		CreatedAt: cached.CreatedAt,
	}, nil
}

// SetProfile caches the profile resolved for an access token.
func (c *Cache) SetProfile(ctx context.Context, accessToken string, user *model.User) error {
	data, err := json.Marshal(cachedProfile{
		ID:        user.ID,
		Email:     user.Email,
		Role:      string(user.Role),
		CreatedAt: user.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	key := profileCachePrefix + hashToken(accessToken)
	index := profileUserPrefix + user.ID

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, key, data, ProfileCacheTTL)
	pipe.SAdd(ctx, index, key)
	pipe.Expire(ctx, index, ProfileCacheTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache profile: %w", err)
	}
	return nil
}

// InvalidateUser drops every cached profile of userID.
func (c *Cache) InvalidateUser(ctx context.Context, userID string) error {
	index := profileUserPrefix + userID

	keys, err := c.client.SMembers(ctx, index).Result()
	if err != nil {
		return fmt.Errorf("list cached profiles: %w", err)
	}
	keys = append(keys, index)
	return c.client.Del(ctx, keys...).Err()
}

// hashToken keeps raw bearer tokens out of Redis.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
