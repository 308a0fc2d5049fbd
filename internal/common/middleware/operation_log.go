package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/member-ledger/internal/common/logger"
	"github.com/dumeirei/member-ledger/internal/models"
)

// 上下文键，与认证中间件保持一致
const (
	contextKeyAdminID = "admin_id"
	contextKeyTarget  = "operation_target_id"
)

// maxLoggedBody 超过该大小的请求体不记录（如上传文件）
const maxLoggedBody = 64 << 10

// OperationLogStore 操作日志存储
type OperationLogStore interface {
	Create(ctx context.Context, log *models.OperationLog) error
}

// OperationLogger 操作日志中间件
type OperationLogger struct {
	store   OperationLogStore
	timeout time.Duration
}

// NewOperationLogger 创建操作日志中间件
func NewOperationLogger(store OperationLogStore) *OperationLogger {
	return &OperationLogger{store: store, timeout: 5 * time.Second}
}

// OperationConfig 路由对应的模块与操作
type OperationConfig struct {
	Module     string
	Action     string
	TargetType string
}

// 需要特殊命名的路由，其余按路径与方法推断
var routeActions = map[string]OperationConfig{
	"POST /api/auth/login":         {Module: "auth", Action: "login"},
	"POST /api/auth/logout":        {Module: "auth", Action: "logout"},
	"POST /api/auth/refresh":       {Module: "auth", Action: "refresh"},
	"PUT /api/auth/password":       {Module: "auth", Action: "change_password"},
	"POST /api/auth/2fa/setup":     {Module: "auth", Action: "otp_setup"},
	"POST /api/auth/2fa/enable":    {Module: "auth", Action: "otp_enable"},
	"POST /api/auth/2fa/disable":   {Module: "auth", Action: "otp_disable"},
	"POST /api/members/:id/avatar": {Module: "member", Action: "upload_avatar", TargetType: "member"},
	"POST /api/uploads/image":      {Module: "upload", Action: "upload_image"},
}

// 路径首段到模块名
var resourceModules = map[string]string{
	"members":      "member",
	"packages":     "package",
	"recharges":    "recharge",
	"consumptions": "consumption",
	"uploads":      "upload",
	"auth":         "auth",
}

// 敏感字段，记录时替换为 ***
var sensitiveFields = []string{
	"password", "token", "secret", "otp", "code",
}

// SetOperationTarget 由处理器设置本次操作的目标 ID（如新建记录的 ID）
func SetOperationTarget(c *gin.Context, id int64) {
	c.Set(contextKeyTarget, id)
}

// entry 在请求 goroutine 内采集的日志数据
type entry struct {
	adminID   int64
	config    OperationConfig
	targetID  *int64
	body      []byte
	status    int
	ip        string
	userAgent string
}

// Log 记录管理员的写操作
func (l *OperationLogger) Log() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isWrite(c.Request.Method) {
			c.Next()
			return
		}

		var body []byte
		if c.Request.Body != nil && c.Request.ContentLength <= maxLoggedBody &&
			!strings.HasPrefix(c.ContentType(), "multipart/") {
			body, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
		}

		c.Next()

		e, ok := l.collect(c, body)
		if !ok {
			return
		}
		go l.save(e)
	}
}

// collect 读取 gin.Context 中需要的字段，之后不再访问 c
func (l *OperationLogger) collect(c *gin.Context, body []byte) (*entry, bool) {
	adminID := c.GetInt64(contextKeyAdminID)
	if adminID == 0 {
		return nil, false
	}

	cfg := resolveConfig(c.Request.Method, c.FullPath())
	e := &entry{
		adminID:   adminID,
		config:    cfg,
		body:      body,
		status:    c.Writer.Status(),
		ip:        c.ClientIP(),
		userAgent: c.Request.UserAgent(),
	}

	if v, ok := c.Get(contextKeyTarget); ok {
		if id, ok := v.(int64); ok {
			e.targetID = &id
		}
	} else if id, err := strconv.ParseInt(c.Param("id"), 10, 64); err == nil {
		e.targetID = &id
	}
	return e, true
}

func (l *OperationLogger) save(e *entry) {
	if l.store == nil {
		return
	}

	log := &models.OperationLog{
		AdminID:    e.adminID,
		Module:     e.config.Module,
		Action:     e.config.Action,
		TargetID:   e.targetID,
		StatusCode: e.status,
		IP:         e.ip,
	}
	if e.config.TargetType != "" {
		tt := e.config.TargetType
		log.TargetType = &tt
	}
	if e.userAgent != "" {
		ua := e.userAgent
		if len(ua) > 255 {
			ua = ua[:255]
		}
		log.UserAgent = &ua
	}
	if len(e.body) > 0 {
		var data map[string]interface{}
		if err := json.Unmarshal(e.body, &data); err == nil {
			log.RequestBody = filterSensitiveData(data).(map[string]interface{})
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	if err := l.store.Create(ctx, log); err != nil {
		logger.Warn("save operation log failed",
			logger.AdminID(e.adminID),
			logger.Module(log.Module),
			logger.Action(log.Action),
			logger.Err(err),
		)
	}
}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// resolveConfig 根据路由推断模块与操作
func resolveConfig(method, fullPath string) OperationConfig {
	if cfg, ok := routeActions[method+" "+fullPath]; ok {
		return cfg
	}

	segments := strings.Split(strings.Trim(strings.TrimPrefix(fullPath, "/api"), "/"), "/")
	module := "unknown"
	if len(segments) > 0 {
		if m, ok := resourceModules[segments[0]]; ok {
			module = m
		}
	}

	action := "unknown"
	switch method {
	case http.MethodPost:
		action = "create"
	case http.MethodPut, http.MethodPatch:
		action = "update"
	case http.MethodDelete:
		action = "delete"
	}

	cfg := OperationConfig{Module: module, Action: action}
	if module != "unknown" && module != "auth" && module != "upload" {
		cfg.TargetType = module
	}
	return cfg
}

// filterSensitiveData 过滤敏感数据
func filterSensitiveData(data interface{}) interface{} {
	switch v := data.(type) {
	case map[string]interface{}:
		result := make(map[string]interface{}, len(v))
		for key, value := range v {
			if isSensitive(key) {
				result[key] = "***"
			} else {
				result[key] = filterSensitiveData(value)
			}
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, item := range v {
			result[i] = filterSensitiveData(item)
		}
		return result
	default:
		return data
	}
}

func isSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, sf := range sensitiveFields {
		if strings.Contains(lower, sf) {
			return true
		}
	}
	return false
}
