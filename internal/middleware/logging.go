package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggingConfig 访问日志配置
type LoggingConfig struct {
	Logger *zap.Logger
	// SkipPaths 不记录的路径，默认为探针与指标接口
	SkipPaths []string
	// SlowThreshold 超过该耗时的成功请求按 warn 记录，0 表示不区分
	SlowThreshold time.Duration
}

// DefaultLoggingConfig 默认访问日志配置
func DefaultLoggingConfig(logger *zap.Logger) *LoggingConfig {
	return &LoggingConfig{
		Logger:        logger,
		SkipPaths:     []string{"/health", "/ping", "/ready", "/metrics"},
		SlowThreshold: time.Second,
	}
}

// Logging 请求日志中间件
func Logging(config *LoggingConfig) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(config.SkipPaths))
	for _, p := range config.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if _, ok := skip[path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		fields := []zap.Field{
			zap.String("request_id", GetRequestID(c)),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.Int("bytes", c.Writer.Size()),
			zap.String("ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
		}
		if adminID := GetAdminID(c); adminID > 0 {
			fields = append(fields, zap.Int64("admin_id", adminID), zap.String("username", GetUsername(c)))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		config.Logger.Log(accessLevel(status, latency, config.SlowThreshold), "http request", fields...)
	}
}

func accessLevel(status int, latency, slow time.Duration) zapcore.Level {
	switch {
	case status >= 500:
		return zapcore.ErrorLevel
	case status >= 400:
		return zapcore.WarnLevel
	case slow > 0 && latency > slow:
		return zapcore.WarnLevel
	}
	return zapcore.InfoLevel
}

// AccessLog 使用默认配置的访问日志中间件
func AccessLog(logger *zap.Logger) gin.HandlerFunc {
	return Logging(DefaultLoggingConfig(logger))
}
