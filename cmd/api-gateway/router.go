// Package main 是应用程序入口
package main

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/member-ledger/internal/common/config"
	"github.com/dumeirei/member-ledger/internal/common/crypto"
	"github.com/dumeirei/member-ledger/internal/common/handler"
	"github.com/dumeirei/member-ledger/internal/common/jwt"
	"github.com/dumeirei/member-ledger/internal/common/metrics"
	commonMiddleware "github.com/dumeirei/member-ledger/internal/common/middleware"
	adminHandler "github.com/dumeirei/member-ledger/internal/handler/admin"
	authHandler "github.com/dumeirei/member-ledger/internal/handler/auth"
	ledgerHandler "github.com/dumeirei/member-ledger/internal/handler/ledger"
	uploadHandler "github.com/dumeirei/member-ledger/internal/handler/upload"
	"github.com/dumeirei/member-ledger/internal/middleware"
	"github.com/dumeirei/member-ledger/internal/repository"
	"github.com/dumeirei/member-ledger/internal/scheduler"
	adminService "github.com/dumeirei/member-ledger/internal/service/admin"
	authService "github.com/dumeirei/member-ledger/internal/service/auth"
	ledgerService "github.com/dumeirei/member-ledger/internal/service/ledger"
	uploadService "github.com/dumeirei/member-ledger/internal/service/upload"
	"github.com/dumeirei/member-ledger/pkg/mqtt"
	"github.com/dumeirei/member-ledger/pkg/oss"
	"github.com/dumeirei/member-ledger/pkg/sms"
)

// 上传图片上限 10MB，另留表单开销
const maxRequestBody = 12 << 20

// infra 外部依赖
type infra struct {
	db          *gorm.DB
	redisClient *redis.Client
	publisher   mqtt.Publisher
	smsSender   sms.Sender
	uploader    oss.Uploader
}

// app 组装完成的服务
type app struct {
	authService *authService.AuthService
	notifier    *ledgerService.Notifier
	tasks       *scheduler.TaskHandler
}

// setupRouter 组装服务并注册路由
func setupRouter(r *gin.Engine, cfg *config.Config, logger *zap.Logger, in *infra) (*app, error) {
	handler.RegisterValidators()

	// 创建 JWT 管理器
	jwtManager := jwt.NewManager(&jwt.Config{
		Secret:            cfg.JWT.Secret,
		AccessExpireTime:  cfg.JWT.AccessTokenDuration(),
		RefreshExpireTime: cfg.JWT.RefreshTokenDuration(),
		Issuer:            cfg.JWT.Issuer,
	})

	cipher, err := crypto.NewAES(cfg.Crypto.AESKey)
	if err != nil {
		return nil, err
	}

	// 初始化仓储
	adminRepo := repository.NewAdminRepository(in.db)
	memberRepo := repository.NewMemberRepository(in.db)
	packageRepo := repository.NewPackageRepository(in.db)
	rechargeRepo := repository.NewRechargeRepository(in.db)
	consumptionRepo := repository.NewConsumptionRepository(in.db)
	logRepo := repository.NewOperationLogRepository(in.db)

	// 初始化服务
	blacklist := authService.NewBlacklist(in.redisClient)
	authSvc := authService.NewAuthService(adminRepo, jwtManager, blacklist, cipher, authService.Options{
		BcryptCost: cfg.Crypto.BcryptCost,
		TOTPIssuer: cfg.Auth.TOTPIssuer,
	})

	uploadSvc := uploadService.NewUploadService(in.uploader)
	memberSvc := adminService.NewMemberService(memberRepo, uploadSvc)
	packageSvc := adminService.NewPackageService(packageRepo)
	statsSvc := adminService.NewStatsService(memberRepo, packageRepo, rechargeRepo, consumptionRepo, cfg.Ledger.DashboardCacheDuration())
	logSvc := adminService.NewOperationLogService(logRepo)

	notifier := ledgerService.NewNotifier(in.publisher, in.smsSender, cfg.MQTT.TopicPrefix)
	rechargeSvc := ledgerService.NewRechargeService(in.db, memberRepo, packageRepo, rechargeRepo, notifier)
	consumptionSvc := ledgerService.NewConsumptionService(in.db, memberRepo, packageRepo, rechargeRepo, consumptionRepo, notifier, cfg.Business.Member.PointsRate)

	tasks := scheduler.NewTaskHandler(rechargeRepo, notifier, logSvc, cfg.Ledger.ExpiringDays, cfg.Scheduler.LogRetentionDays)

	// 初始化处理器
	authH := authHandler.NewHandler(authSvc)
	uploadH := uploadHandler.NewHandler(uploadSvc)
	memberH := adminHandler.NewMemberHandler(memberSvc)
	packageH := adminHandler.NewPackageHandler(packageSvc)
	statsH := adminHandler.NewStatsHandler(statsSvc)
	logH := adminHandler.NewOperationLogHandler(logSvc)
	rechargeH := ledgerHandler.NewRechargeHandler(rechargeSvc)
	consumptionH := ledgerHandler.NewConsumptionHandler(consumptionSvc)

	// 全局中间件
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RealIP())
	r.Use(middleware.CORS(&cfg.CORS))
	r.Use(middleware.AccessLog(logger))
	if cfg.Tracing.Enabled {
		r.Use(commonMiddleware.Tracing(&commonMiddleware.TracingConfig{
			ServiceName: cfg.Tracing.ServiceName,
			SkipPaths:   []string{"/health", "/ping", "/ready", "/metrics"},
		}))
	}
	if cfg.Metrics.Enabled {
		r.Use(metrics.GetMetrics().Middleware())
		r.GET(cfg.Metrics.Path, metrics.Handler())
	}

	// 健康检查（不需要认证）
	r.GET("/health", healthHandler)
	r.GET("/ping", pingHandler)
	r.GET("/ready", readyHandler(in.db, in.redisClient))

	// Swagger 文档
	if !cfg.IsRelease() {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	opLog := commonMiddleware.NewOperationLogger(logRepo)
	api := r.Group("/api")
	api.Use(middleware.RequestSizeLimiter(maxRequestBody))
	api.Use(opLog.Log())

	// 公开接口
	public := api.Group("/auth")
	{
		login := []gin.HandlerFunc{authH.Login}
		refresh := []gin.HandlerFunc{authH.Refresh}
		if cfg.RateLimit.Enabled && in.redisClient != nil {
			login = append([]gin.HandlerFunc{
				middleware.LoginRateLimit(in.redisClient, cfg.RateLimit.LoginMax, time.Minute),
			}, login...)
			refresh = append([]gin.HandlerFunc{
				middleware.IPRateLimit(in.redisClient, cfg.RateLimit.Limit, time.Duration(cfg.RateLimit.Window)*time.Second),
			}, refresh...)
		}
		public.POST("/login", login...)
		public.POST("/refresh", refresh...)
	}

	// 需要登录
	authed := api.Group("")
	authed.Use(middleware.AdminAuth(jwtManager, blacklist))
	if cfg.RateLimit.Enabled && in.redisClient != nil {
		authed.Use(middleware.AdminRateLimit(in.redisClient, cfg.RateLimit.Limit, time.Duration(cfg.RateLimit.Window)*time.Second))
	}
	{
		authed.POST("/auth/logout", authH.Logout)
		authed.GET("/auth/profile", authH.Profile)
		authed.PUT("/auth/password", authH.ChangePassword)
		authed.POST("/auth/2fa/setup", authH.SetupOTP)
		authed.POST("/auth/2fa/enable", authH.EnableOTP)
		authed.POST("/auth/2fa/disable", authH.DisableOTP)

		members := authed.Group("/members")
		{
			members.GET("", memberH.List)
			members.POST("", memberH.Create)
			members.GET("/by-no/:memberNo", memberH.GetByMemberNo)
			members.GET("/:id", memberH.Get)
			members.PUT("/:id", memberH.Update)
			members.DELETE("/:id", middleware.RequireSuperAdmin(), memberH.Delete)
			members.GET("/:id/qrcode", memberH.QRCode)
			members.POST("/:id/avatar", memberH.UploadAvatar)
		}

		packages := authed.Group("/packages")
		{
			packages.GET("", packageH.List)
			packages.GET("/:id", packageH.Get)
			packages.POST("", middleware.RequireSuperAdmin(), packageH.Create)
			packages.PUT("/:id", middleware.RequireSuperAdmin(), packageH.Update)
			packages.DELETE("/:id", middleware.RequireSuperAdmin(), packageH.Delete)
		}

		recharges := authed.Group("/recharges")
		{
			recharges.GET("", rechargeH.List)
			recharges.POST("", rechargeH.Create)
			recharges.GET("/:id", rechargeH.Get)
			recharges.PUT("/:id", rechargeH.Update)
			recharges.DELETE("/:id", middleware.RequireSuperAdmin(), rechargeH.Delete)
		}

		consumptions := authed.Group("/consumptions")
		{
			consumptions.GET("", consumptionH.List)
			consumptions.POST("", consumptionH.Create)
			consumptions.GET("/:id", consumptionH.Get)
			consumptions.PUT("/:id", consumptionH.Update)
			consumptions.DELETE("/:id", consumptionH.Delete)
		}

		stats := authed.Group("/stats")
		{
			stats.GET("/revenues", statsH.Revenues)
			stats.GET("/weekly/revenues", statsH.WeeklyRevenues)
			stats.GET("/dashboard", statsH.Dashboard)
		}

		authed.POST("/uploads/image", uploadH.UploadImage)
		authed.GET("/operation-logs", middleware.RequireSuperAdmin(), logH.List)
	}

	return &app{authService: authSvc, notifier: notifier, tasks: tasks}, nil
}
