package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dumeirei/member-ledger/internal/common/cache"
)

// Blacklist 基于 Redis 的令牌黑名单，键为 jti
type Blacklist struct {
	rdb *redis.Client
}

// NewBlacklist 创建令牌黑名单，rdb 为 nil 时不做任何吊销
func NewBlacklist(rdb *redis.Client) *Blacklist {
	return &Blacklist{rdb: rdb}
}

// Revoke 吊销 jti，ttl 为令牌剩余有效期
func (b *Blacklist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if b == nil || b.rdb == nil || jti == "" || ttl <= 0 {
		return nil
	}
	return b.rdb.Set(ctx, cache.BuildKey(cache.KeyPrefixTokenBlacklist, jti), 1, ttl).Err()
}

// IsRevoked 实现 middleware.TokenBlacklist
func (b *Blacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if b == nil || b.rdb == nil || jti == "" {
		return false, nil
	}
	n, err := b.rdb.Exists(ctx, cache.BuildKey(cache.KeyPrefixTokenBlacklist, jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
