package admin

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/member-ledger/internal/common/handler"
	adminService "github.com/dumeirei/member-ledger/internal/service/admin"
)

// OperationLogHandler 操作日志处理器
type OperationLogHandler struct {
	logService *adminService.OperationLogService
}

// NewOperationLogHandler 创建操作日志处理器
func NewOperationLogHandler(logSvc *adminService.OperationLogService) *OperationLogHandler {
	return &OperationLogHandler{logService: logSvc}
}

// List 操作日志列表
// @Summary 获取操作日志列表
// @Tags 系统
// @Produce json
// @Security Bearer
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(10)
// @Param adminId query int false "管理员ID"
// @Param module query string false "模块"
// @Param action query string false "操作"
// @Param targetType query string false "目标类型"
// @Param targetId query int false "目标ID"
// @Param startDate query string false "开始日期 YYYY-MM-DD"
// @Param endDate query string false "结束日期 YYYY-MM-DD"
// @Success 200 {object} response.Response{data=response.PageData{items=[]models.OperationLog}}
// @Router /api/operation-logs [get]
func (h *OperationLogHandler) List(c *gin.Context) {
	p := handler.BindPagination(c)

	adminID, ok := handler.ParseQueryID(c, "adminId", "管理员")
	if !ok {
		return
	}
	targetID, ok := handler.ParseQueryID(c, "targetId", "目标")
	if !ok {
		return
	}
	start, end, ok := handler.ParseQueryDateRange(c)
	if !ok {
		return
	}

	filters := map[string]interface{}{
		"module":      c.Query("module"),
		"action":      c.Query("action"),
		"target_type": c.Query("targetType"),
	}
	if adminID != nil {
		filters["admin_id"] = *adminID
	}
	if targetID != nil {
		filters["target_id"] = *targetID
	}
	if start != nil {
		filters["start"] = *start
	}
	if end != nil {
		filters["end"] = *end
	}

	list, total, err := h.logService.List(c.Request.Context(), p.GetOffset(), p.Limit, filters)
	handler.MustSucceedPage(c, err, list, total, p.Page, p.Limit)
}
