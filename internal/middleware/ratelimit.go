package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/dumeirei/member-ledger/internal/common/cache"
	"github.com/dumeirei/member-ledger/internal/common/errors"
	"github.com/dumeirei/member-ledger/internal/common/logger"
	"github.com/dumeirei/member-ledger/internal/common/response"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	RedisClient *redis.Client
	Limit       int                       // 窗口内允许次数
	Window      time.Duration             // 固定窗口长度
	KeyFunc     func(*gin.Context) string // 限流键，返回空串表示不限流
	Message     string
}

// RateLimit 固定窗口限流中间件
func RateLimit(config *RateLimitConfig) gin.HandlerFunc {
	if config.KeyFunc == nil {
		config.KeyFunc = func(c *gin.Context) string {
			return cache.BuildKey(cache.KeyPrefixRateLimit, "ip", c.ClientIP())
		}
	}
	if config.Message == "" {
		config.Message = "请求过于频繁，请稍后再试"
	}

	return func(c *gin.Context) {
		key := config.KeyFunc(c)
		if key == "" || config.RedisClient == nil {
			c.Next()
			return
		}

		ctx := c.Request.Context()

		count, err := config.RedisClient.Incr(ctx, key).Result()
		if err != nil {
			// Redis 故障时放行
			logger.Warn("rate limit redis error", logger.Err(err))
			c.Next()
			return
		}
		if count == 1 {
			config.RedisClient.Expire(ctx, key, config.Window)
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(config.Limit))

		if int(count) > config.Limit {
			ttl, _ := config.RedisClient.TTL(ctx, key).Result()
			if ttl < 0 {
				ttl = config.Window
			}
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(ttl).Unix(), 10))
			c.Header("Retry-After", strconv.Itoa(int(ttl.Seconds())))

			response.AbortFail(c, errors.ErrRateLimitExceed.WithMessage(config.Message))
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(config.Limit-int(count)))
		c.Next()
	}
}

// IPRateLimit 按客户端 IP 限流
func IPRateLimit(redisClient *redis.Client, limit int, window time.Duration) gin.HandlerFunc {
	return RateLimit(&RateLimitConfig{
		RedisClient: redisClient,
		Limit:       limit,
		Window:      window,
	})
}

// AdminRateLimit 已登录按管理员限流，否则按 IP
func AdminRateLimit(redisClient *redis.Client, limit int, window time.Duration) gin.HandlerFunc {
	return RateLimit(&RateLimitConfig{
		RedisClient: redisClient,
		Limit:       limit,
		Window:      window,
		KeyFunc: func(c *gin.Context) string {
			if adminID := GetAdminID(c); adminID > 0 {
				return cache.BuildKey(cache.KeyPrefixRateLimit, "admin", strconv.FormatInt(adminID, 10))
			}
			return cache.BuildKey(cache.KeyPrefixRateLimit, "ip", c.ClientIP())
		},
	})
}

// LoginRateLimit 登录接口限流，防止暴力破解
func LoginRateLimit(redisClient *redis.Client, limit int, window time.Duration) gin.HandlerFunc {
	return RateLimit(&RateLimitConfig{
		RedisClient: redisClient,
		Limit:       limit,
		Window:      window,
		Message:     fmt.Sprintf("登录尝试过于频繁，请 %d 秒后再试", int(window.Seconds())),
		KeyFunc: func(c *gin.Context) string {
			return cache.BuildKey(cache.KeyPrefixRateLimit, "login", c.ClientIP())
		},
	})
}
