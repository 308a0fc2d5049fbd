// Package scheduler 提供定时任务
package scheduler

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/dumeirei/member-ledger/internal/common/cache"
	"github.com/dumeirei/member-ledger/internal/common/config"
	"github.com/dumeirei/member-ledger/internal/common/logger"
	"github.com/dumeirei/member-ledger/internal/common/metrics"
	"github.com/dumeirei/member-ledger/internal/repository"
	"github.com/dumeirei/member-ledger/internal/service/admin"
	"github.com/dumeirei/member-ledger/internal/service/ledger"
)

// 任务名
const (
	TaskSyncExpired    = "sync_expired_recharges"
	TaskRemindExpiring = "remind_expiring_recharges"
	TaskPurgeLogs      = "purge_operation_logs"
)

// TaskHandler 任务处理器
type TaskHandler struct {
	rechargeRepo *repository.RechargeRepository
	notifier     *ledger.Notifier
	logService   *admin.OperationLogService
	expiringDays int
	logRetention time.Duration
	now          func() time.Time
	log          *zap.Logger
}

// NewTaskHandler 创建任务处理器
func NewTaskHandler(
	rechargeRepo *repository.RechargeRepository,
	notifier *ledger.Notifier,
	logService *admin.OperationLogService,
	expiringDays int,
	logRetentionDays int,
) *TaskHandler {
	return &TaskHandler{
		rechargeRepo: rechargeRepo,
		notifier:     notifier,
		logService:   logService,
		expiringDays: expiringDays,
		logRetention: time.Duration(logRetentionDays) * 24 * time.Hour,
		now:          time.Now,
		log:          logger.Named("scheduler.tasks"),
	}
}

// Register 按配置把任务注册到调度器
func (h *TaskHandler) Register(s *Scheduler, cfg *config.SchedulerConfig) {
	s.AddTask(TaskSyncExpired, time.Duration(cfg.ExpireSyncInterval)*time.Second, h.SyncExpiredRecharges)
	if h.expiringDays > 0 {
		s.AddTask(TaskRemindExpiring, time.Duration(cfg.ExpiryRemindInterval)*time.Second, h.RemindExpiringRecharges)
	}
	if h.logRetention > 0 {
		s.AddTask(TaskPurgeLogs, 24*time.Hour, h.PurgeOperationLogs)
	}
}

// SyncExpiredRecharges 同步存储状态：过期套餐置 expired，次数用完置 completed
// 读接口的状态始终实时派生，这里只让按 state 过滤的查询与之保持一致
func (h *TaskHandler) SyncExpiredRecharges(ctx context.Context) error {
	expired, err := h.rechargeRepo.MarkExpired(ctx, h.now())
	if err != nil {
		return err
	}
	exhausted, err := h.rechargeRepo.MarkExhausted(ctx)
	if err != nil {
		return err
	}
	if expired+exhausted == 0 {
		return nil
	}

	h.log.Info("recharge states synced", zap.Int64("expired", expired), zap.Int64("exhausted", exhausted))

	if expired > 0 {
		metrics.GetMetrics().AddRechargesExpired(expired)
		h.notifier.RechargesExpired(expired)
	}
	if cache.GetClient() != nil {
		if err := cache.DeleteByPrefix(ctx, cache.KeyPrefixStats); err != nil {
			h.log.Warn("invalidate stats cache failed", zap.Error(err))
		}
	}
	return nil
}

// RemindExpiringRecharges 对即将到期的套餐发送一次短信提醒
// 去重依赖 Redis，未配置 Redis 时不发送，避免每轮重复提醒
func (h *TaskHandler) RemindExpiringRecharges(ctx context.Context) error {
	if cache.GetClient() == nil {
		return nil
	}

	now := h.now()
	recharges, err := h.rechargeRepo.ListExpiring(ctx, now, now.AddDate(0, 0, h.expiringDays))
	if err != nil {
		return err
	}

	sent := 0
	for _, r := range recharges {
		if ledger.DeriveStatus(now, r) != ledger.StatusActive || r.EndDate == nil {
			continue
		}

		key := cache.BuildKey(cache.KeyPrefixExpiryReminder, strconv.FormatInt(r.ID, 10))
		ok, err := cache.SetNX(ctx, key, now.Unix(), r.EndDate.Sub(now)+24*time.Hour)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		if !h.notifier.RemindExpiring(ctx, r) {
			// 发送失败时释放标记，下一轮重试
			if err := cache.Delete(ctx, key); err != nil {
				h.log.Warn("release reminder key failed", zap.String("key", key), zap.Error(err))
			}
			continue
		}
		sent++
	}

	if sent > 0 {
		h.log.Info("expiry reminders sent", zap.Int("count", sent))
	}
	return nil
}

// PurgeOperationLogs 清理超过保留期的操作日志
func (h *TaskHandler) PurgeOperationLogs(ctx context.Context) error {
	n, err := h.logService.Purge(ctx, h.now(), h.logRetention)
	if err != nil {
		return err
	}
	if n > 0 {
		h.log.Info("operation logs purged", zap.Int64("count", n))
	}
	return nil
}
