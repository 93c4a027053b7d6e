package database

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const tokenBlacklistPrefix = "authkey:token:blacklist:"

// BlacklistToken marks a JWT as revoked (logout). The entry expires together
// with the token itself so the set stays bounded.
func BlacklistToken(rdb *redis.Client, token string, ttl time.Duration) error {
	if rdb == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return rdb.Set(context.Background(), tokenBlacklistPrefix+token, "1", ttl).Err()
}

// IsTokenBlacklisted reports whether a JWT has been revoked via logout.
// Without Redis there is no blacklist and every structurally valid token is
// accepted until it expires.
func IsTokenBlacklisted(rdb *redis.Client, token string) bool {
	if rdb == nil {
		return false
	}
	n, err := rdb.Exists(context.Background(), tokenBlacklistPrefix+token).Result()
	return err == nil && n > 0
}
