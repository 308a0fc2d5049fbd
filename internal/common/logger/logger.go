// Package logger 提供结构化日志功能
package logger

import (
	"fmt"
	"os"
	"time"

	"github.com/dumeirei/member-ledger/internal/common/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const timeLayout = "2006-01-02 15:04:05.000"

var log *zap.Logger

func init() {
	// 未调用 Init 前使用开发模式日志器
	log, _ = zap.NewDevelopment()
}

// Init 按配置重建全局日志器
func Init(cfg *config.LoggerConfig) error {
	syncer, err := buildSyncer(cfg)
	if err != nil {
		return err
	}

	core := zapcore.NewCore(buildEncoder(cfg.Format), syncer, parseLevel(cfg.Level))

	options := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.Caller {
		options = append(options, zap.AddCaller(), zap.AddCallerSkip(1))
	}
	log = zap.New(core, options...)
	return nil
}

func buildEncoder(format string) zapcore.Encoder {
	ec := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout(timeLayout),
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if format == "json" {
		return zapcore.NewJSONEncoder(ec)
	}
	ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(ec)
}

// buildSyncer output 取值 stdout / file / both，file 需要 file_path
func buildSyncer(cfg *config.LoggerConfig) (zapcore.WriteSyncer, error) {
	var writers []zapcore.WriteSyncer
	switch cfg.Output {
	case "", "stdout":
		writers = append(writers, zapcore.AddSync(os.Stdout))
	case "file", "both":
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("logger: output %q requires file_path", cfg.Output)
		}
		writers = append(writers, zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
			LocalTime:  true,
		}))
		if cfg.Output == "both" {
			writers = append(writers, zapcore.AddSync(os.Stdout))
		}
	default:
		return nil, fmt.Errorf("logger: unknown output %q", cfg.Output)
	}
	return zapcore.NewMultiWriteSyncer(writers...), nil
}

func parseLevel(level string) zapcore.Level {
	l, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return l
}

// GetLogger 获取原始日志器
func GetLogger() *zap.Logger {
	return log
}

// Sync 同步日志
func Sync() error {
	if log != nil {
		return log.Sync()
	}
	return nil
}

func Info(msg string, fields ...zap.Field) {
	log.Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	log.Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	log.Error(msg, fields...)
}

// With 返回带有字段的日志器
func With(fields ...zap.Field) *zap.Logger {
	return log.With(fields...)
}

// Named 返回命名日志器，如 scheduler、notifier
func Named(name string) *zap.Logger {
	return log.Named(name)
}

var (
	String = zap.String
	Err    = zap.Error
)

// 账务字段
func AdminID(id int64) zap.Field { return zap.Int64("admin_id", id) }
func MemberID(id int64) zap.Field { return zap.Int64("member_id", id) }
func PackageID(id int64) zap.Field { return zap.Int64("package_id", id) }
func RechargeNo(no string) zap.Field { return zap.String("recharge_no", no) }
func ConsumptionNo(no string) zap.Field { return zap.String("consumption_no", no) }
func Amount(v fmt.Stringer) zap.Field { return zap.Stringer("amount", v) }
func Module(name string) zap.Field { return zap.String("module", name) }
func Action(name string) zap.Field { return zap.String("action", name) }
func Latency(d time.Duration) zap.Field { return zap.Duration("latency", d) }
func IP(ip string) zap.Field { return zap.String("ip", ip) }
