package admin

import (
	"context"
	"time"

	"github.com/dumeirei/member-ledger/internal/common/errors"
	"github.com/dumeirei/member-ledger/internal/models"
	"github.com/dumeirei/member-ledger/internal/repository"
)

// OperationLogService 操作日志查询
type OperationLogService struct {
	logRepo *repository.OperationLogRepository
}

// NewOperationLogService 创建操作日志服务
func NewOperationLogService(logRepo *repository.OperationLogRepository) *OperationLogService {
	return &OperationLogService{logRepo: logRepo}
}

// List 操作日志列表
func (s *OperationLogService) List(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.OperationLog, int64, error) {
	logs, total, err := s.logRepo.List(ctx, offset, limit, filters)
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}
	return logs, total, nil
}

// Purge 清理 retention 之前的日志
func (s *OperationLogService) Purge(ctx context.Context, now time.Time, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	n, err := s.logRepo.DeleteBefore(ctx, now.Add(-retention))
	if err != nil {
		return 0, errors.ErrDatabaseError.WithError(err)
	}
	return n, nil
}
