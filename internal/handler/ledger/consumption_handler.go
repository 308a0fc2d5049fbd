package ledger

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/member-ledger/internal/common/handler"
	"github.com/dumeirei/member-ledger/internal/common/middleware"
	ledgerService "github.com/dumeirei/member-ledger/internal/service/ledger"
)

// ConsumptionHandler 消费处理器
type ConsumptionHandler struct {
	consumptionService *ledgerService.ConsumptionService
}

// NewConsumptionHandler 创建消费处理器
func NewConsumptionHandler(consumptionSvc *ledgerService.ConsumptionService) *ConsumptionHandler {
	return &ConsumptionHandler{consumptionService: consumptionSvc}
}

// List 消费记录列表
// @Summary 获取消费记录列表
// @Tags 消费
// @Produce json
// @Security Bearer
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(10)
// @Param memberId query int false "会员ID"
// @Param rechargeId query int false "充值记录ID"
// @Param packageId query int false "套餐ID"
// @Param paymentMethod query string false "支付方式" Enums(cash, card, alipay, wechat, balance)
// @Param search query string false "消费单号/描述/会员"
// @Param startDate query string false "开始日期 YYYY-MM-DD"
// @Param endDate query string false "结束日期 YYYY-MM-DD"
// @Success 200 {object} response.Response{data=response.PageData{items=[]models.Consumption}}
// @Router /api/consumptions [get]
func (h *ConsumptionHandler) List(c *gin.Context) {
	p := handler.BindPagination(c)
	rechargeID, ok := handler.ParseQueryID(c, "rechargeId", "充值记录")
	if !ok {
		return
	}
	filters := map[string]interface{}{}
	if rechargeID != nil {
		filters["recharge_id"] = *rechargeID
	}
	if !bindListFilters(c, filters) {
		return
	}

	list, total, err := h.consumptionService.List(c.Request.Context(), p.GetOffset(), p.Limit, filters)
	handler.MustSucceedPage(c, err, list, total, p.Page, p.Limit)
}

// Get 消费记录详情
// @Summary 获取消费记录详情
// @Tags 消费
// @Produce json
// @Security Bearer
// @Param id path int true "消费记录ID"
// @Success 200 {object} response.Response{data=models.Consumption}
// @Router /api/consumptions/{id} [get]
func (h *ConsumptionHandler) Get(c *gin.Context) {
	id, ok := handler.ParseID(c, "消费记录")
	if !ok {
		return
	}

	consumption, err := h.consumptionService.Get(c.Request.Context(), id)
	handler.MustSucceed(c, err, consumption)
}

// Create 创建消费
// @Summary 创建消费
// @Description 关联计次套餐时扣减一次；关联储值套餐时扣减余量；paymentMethod=balance 时扣会员余额
// @Tags 消费
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body ledgerService.CreateConsumptionRequest true "请求参数"
// @Success 201 {object} response.Response{data=models.Consumption}
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/consumptions [post]
func (h *ConsumptionHandler) Create(c *gin.Context) {
	var req ledgerService.CreateConsumptionRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	consumption, err := h.consumptionService.Create(c.Request.Context(), operatorOf(c), &req)
	if err == nil {
		middleware.SetOperationTarget(c, consumption.ID)
	}
	handler.MustCreate(c, err, consumption)
}

// Update 更新消费记录
// @Summary 更新消费记录
// @Tags 消费
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "消费记录ID"
// @Param request body ledgerService.UpdateConsumptionRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.Consumption}
// @Router /api/consumptions/{id} [put]
func (h *ConsumptionHandler) Update(c *gin.Context) {
	id, ok := handler.ParseID(c, "消费记录")
	if !ok {
		return
	}
	var req ledgerService.UpdateConsumptionRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	consumption, err := h.consumptionService.Update(c.Request.Context(), id, &req)
	handler.MustSucceed(c, err, consumption)
}

// Delete 撤销消费
// @Summary 撤销消费
// @Description 回退次数、储值余量、会员余额与积分
// @Tags 消费
// @Produce json
// @Security Bearer
// @Param id path int true "消费记录ID"
// @Success 200 {object} response.Response
// @Router /api/consumptions/{id} [delete]
func (h *ConsumptionHandler) Delete(c *gin.Context) {
	id, ok := handler.ParseID(c, "消费记录")
	if !ok {
		return
	}

	err := h.consumptionService.Delete(c.Request.Context(), id)
	handler.MustSucceedWithMessage(c, err, "删除成功", nil)
}
