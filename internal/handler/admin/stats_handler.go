package admin

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/member-ledger/internal/common/handler"
	adminService "github.com/dumeirei/member-ledger/internal/service/admin"
)

// StatsHandler 统计处理器
type StatsHandler struct {
	statsService *adminService.StatsService
	now          func() time.Time
}

// NewStatsHandler 创建统计处理器
func NewStatsHandler(statsSvc *adminService.StatsService) *StatsHandler {
	return &StatsHandler{
		statsService: statsSvc,
		now:          time.Now,
	}
}

// Revenues 营收统计
// @Summary 营收统计
// @Description 按本地日期统计，区间为 [startDate 00:00, endDate 次日 00:00)，不传则统计全部
// @Tags 统计
// @Produce json
// @Security Bearer
// @Param startDate query string false "开始日期 YYYY-MM-DD"
// @Param endDate query string false "结束日期 YYYY-MM-DD"
// @Param memberId query int false "会员ID，仅统计该会员的充值与消费"
// @Success 200 {object} response.Response{data=adminService.Revenues}
// @Router /api/stats/revenues [get]
func (h *StatsHandler) Revenues(c *gin.Context) {
	start, end, ok := handler.ParseQueryDateRange(c)
	if !ok {
		return
	}
	memberID, ok := handler.ParseQueryID(c, "memberId", "会员")
	if !ok {
		return
	}

	result, err := h.statsService.Revenues(c.Request.Context(), start, end, memberID)
	handler.MustSucceed(c, err, result)
}

// WeeklyRevenues 近 7 日营收
// @Summary 近 7 日营收
// @Tags 统计
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=[]adminService.DailyRevenue}
// @Router /api/stats/weekly/revenues [get]
func (h *StatsHandler) WeeklyRevenues(c *gin.Context) {
	result, err := h.statsService.WeeklyRevenues(c.Request.Context(), h.now())
	handler.MustSucceed(c, err, result)
}

// Dashboard 仪表盘
// @Summary 仪表盘
// @Tags 统计
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=adminService.Dashboard}
// @Router /api/stats/dashboard [get]
func (h *StatsHandler) Dashboard(c *gin.Context) {
	result, err := h.statsService.Dashboard(c.Request.Context(), h.now())
	handler.MustSucceed(c, err, result)
}
