// Package main 是应用程序入口
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dumeirei/member-ledger/internal/common/cache"
	"github.com/dumeirei/member-ledger/internal/common/config"
	"github.com/dumeirei/member-ledger/internal/common/database"
	"github.com/dumeirei/member-ledger/internal/common/idgen"
	"github.com/dumeirei/member-ledger/internal/common/logger"
	"github.com/dumeirei/member-ledger/internal/common/metrics"
	"github.com/dumeirei/member-ledger/internal/common/tracing"
	"github.com/dumeirei/member-ledger/internal/scheduler"
	"github.com/dumeirei/member-ledger/pkg/mqtt"
	"github.com/dumeirei/member-ledger/pkg/oss"
	"github.com/dumeirei/member-ledger/pkg/sms"
)

const version = "1.0.0"

// @title Member Ledger API
// @version 1.0
// @description 会员账务管理后台接口
// @BasePath /
// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
func main() {
	configPath := flag.String("config", "", "配置文件路径")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := logger.Init(&cfg.Logger); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	log := logger.GetLogger()

	log.Info("Starting Member Ledger",
		zap.String("version", version),
		zap.String("env", cfg.Server.Mode),
	)

	if err := idgen.Init(cfg.Ledger.NodeID); err != nil {
		log.Fatal("Failed to init id generator", zap.Error(err))
	}

	if cfg.Metrics.Enabled {
		metrics.Init(cfg.Metrics.Namespace, nil)
	}

	tracer, err := tracing.Init(&tracing.Config{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Server.Mode,
		Endpoint:       cfg.Tracing.Endpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
	})
	if err != nil {
		log.Fatal("Failed to init tracing", zap.Error(err))
	}

	// 初始化数据库连接
	db, err := database.Init(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}
	log.Info("Database connected successfully")

	// 初始化 Redis 连接
	redisClient, err := cache.Init(&cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("Redis connected successfully")

	// 外部服务：MQTT 不可用时仅记录，账务不依赖推送
	var publisher mqtt.Publisher = mqtt.NopPublisher{}
	if cfg.MQTT.Enabled {
		hostname, _ := os.Hostname()
		client := mqtt.NewClient(&mqtt.Config{
			Broker:         cfg.MQTT.Broker,
			ClientID:       cfg.MQTT.ClientIDPrefix + hostname,
			Username:       cfg.MQTT.Username,
			Password:       cfg.MQTT.Password,
			KeepAlive:      cfg.MQTT.KeepAlive,
			AutoReconnect:  cfg.MQTT.AutoReconnect,
			ConnectTimeout: cfg.MQTT.ConnectTimeout,
			QoS:            cfg.MQTT.QoS,
			Retained:       cfg.MQTT.Retained,
		}, log)
		if err := client.Connect(); err != nil {
			log.Warn("MQTT unavailable, ledger events disabled", zap.Error(err))
		} else {
			publisher = client
			defer client.Disconnect()
		}
	}

	smsSender, err := sms.New(&sms.Config{
		Enabled:         cfg.SMS.Enabled,
		Provider:        cfg.SMS.Provider,
		AccessKeyID:     cfg.SMS.AccessKeyID,
		AccessKeySecret: cfg.SMS.AccessKeySecret,
		SignName:        cfg.SMS.SignName,
		RegionID:        cfg.SMS.RegionID,
		Templates:       cfg.SMS.Templates,
	})
	if err != nil {
		log.Fatal("Failed to init sms sender", zap.Error(err))
	}

	uploader, err := oss.New(&oss.Config{
		Provider:        cfg.OSS.Provider,
		Endpoint:        cfg.OSS.Endpoint,
		AccessKeyID:     cfg.OSS.AccessKeyID,
		AccessKeySecret: cfg.OSS.AccessKeySecret,
		Bucket:          cfg.OSS.Bucket,
		CustomDomain:    cfg.OSS.CustomDomain,
		UploadDir:       cfg.OSS.UploadDir,
	})
	if err != nil {
		log.Fatal("Failed to init oss uploader", zap.Error(err))
	}

	// 设置 Gin 模式
	switch cfg.Server.Mode {
	case "release", "production":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	// 创建 Gin 引擎
	engine := gin.New()

	// 设置路由
	application, err := setupRouter(engine, cfg, log, &infra{
		db:          db,
		redisClient: redisClient,
		publisher:   publisher,
		smsSender:   smsSender,
		uploader:    uploader,
	})
	if err != nil {
		log.Fatal("Failed to setup router", zap.Error(err))
	}

	seedCtx, seedCancel := context.WithTimeout(context.Background(), 10*time.Second)
	created, err := application.authService.SeedDefaultAdmin(seedCtx, cfg.Auth.DefaultAdminUsername, cfg.Auth.DefaultAdminPassword)
	seedCancel()
	if err != nil {
		log.Fatal("Failed to seed default admin", zap.Error(err))
	}
	if created {
		log.Warn("Default admin created, change the password after first login",
			zap.String("username", cfg.Auth.DefaultAdminUsername))
	}

	// 定时任务
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.NewScheduler()
		application.tasks.Register(sched, &cfg.Scheduler)
		sched.Start()
	}

	// 创建 HTTP 服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// 在 goroutine 中启动服务器
	go func() {
		log.Info("HTTP server starting",
			zap.String("addr", srv.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// 创建超时上下文用于优雅关闭
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	if sched != nil {
		sched.Stop()
	}

	// 等待已派发的账务通知
	application.notifier.Wait()

	if err := tracer.Shutdown(ctx); err != nil {
		log.Warn("Tracer shutdown failed", zap.Error(err))
	}

	// 关闭数据库连接
	if err := database.Close(); err != nil {
		log.Warn("Close database failed", zap.Error(err))
	}

	log.Info("Server exited")
}
