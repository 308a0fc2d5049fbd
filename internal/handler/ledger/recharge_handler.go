package ledger

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/member-ledger/internal/common/handler"
	"github.com/dumeirei/member-ledger/internal/common/middleware"
	"github.com/dumeirei/member-ledger/internal/common/response"
	ledgerService "github.com/dumeirei/member-ledger/internal/service/ledger"
)

// RechargeHandler 充值处理器
type RechargeHandler struct {
	rechargeService *ledgerService.RechargeService
}

// NewRechargeHandler 创建充值处理器
func NewRechargeHandler(rechargeSvc *ledgerService.RechargeService) *RechargeHandler {
	return &RechargeHandler{rechargeService: rechargeSvc}
}

// List 充值记录列表
// @Summary 获取充值记录列表
// @Description status 按实时派生状态过滤，state 按存储状态过滤
// @Tags 充值
// @Produce json
// @Security Bearer
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(10)
// @Param memberId query int false "会员ID"
// @Param packageId query int false "套餐ID"
// @Param type query string false "类型" Enums(balance, package)
// @Param state query string false "存储状态" Enums(active, completed, expired, disabled)
// @Param status query string false "派生状态" Enums(active, used, expired, completed, disabled)
// @Param paymentMethod query string false "支付方式"
// @Param search query string false "充值单号/会员姓名/手机号"
// @Param startDate query string false "开始日期 YYYY-MM-DD"
// @Param endDate query string false "结束日期 YYYY-MM-DD"
// @Success 200 {object} response.Response{data=response.PageData{items=[]models.Recharge}}
// @Router /api/recharges [get]
func (h *RechargeHandler) List(c *gin.Context) {
	p := handler.BindPagination(c)
	status := c.Query("status")
	if status != "" && !ledgerService.IsValidStatus(status) {
		response.BadRequest(c, "无效的状态: "+status)
		return
	}
	filters := map[string]interface{}{
		"type":   c.Query("type"),
		"state":  c.Query("state"),
		"status": status,
	}
	if !bindListFilters(c, filters) {
		return
	}

	list, total, err := h.rechargeService.List(c.Request.Context(), p.GetOffset(), p.Limit, filters)
	handler.MustSucceedPage(c, err, list, total, p.Page, p.Limit)
}

// Get 充值记录详情
// @Summary 获取充值记录详情
// @Tags 充值
// @Produce json
// @Security Bearer
// @Param id path int true "充值记录ID"
// @Success 200 {object} response.Response{data=models.Recharge}
// @Router /api/recharges/{id} [get]
func (h *RechargeHandler) Get(c *gin.Context) {
	id, ok := handler.ParseID(c, "充值记录")
	if !ok {
		return
	}

	recharge, err := h.rechargeService.Get(c.Request.Context(), id)
	handler.MustSucceed(c, err, recharge)
}

// Create 创建充值
// @Summary 创建充值
// @Description 余额充值入账到会员余额；套餐充值快照套餐条款，金额缺省按套餐售价
// @Tags 充值
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body ledgerService.CreateRechargeRequest true "请求参数"
// @Success 201 {object} response.Response{data=models.Recharge}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/recharges [post]
func (h *RechargeHandler) Create(c *gin.Context) {
	var req ledgerService.CreateRechargeRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	spec, err := req.Spec()
	if handler.HandleError(c, err) {
		return
	}

	recharge, err := h.rechargeService.Create(c.Request.Context(), operatorOf(c), spec)
	if err == nil {
		middleware.SetOperationTarget(c, recharge.ID)
	}
	handler.MustCreate(c, err, recharge)
}

// Update 更新充值记录
// @Summary 更新充值记录
// @Description 仅备注、支付方式与停用状态可改，提交金额等字段返回 400
// @Tags 充值
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "充值记录ID"
// @Param request body ledgerService.UpdateRechargeRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.Recharge}
// @Router /api/recharges/{id} [put]
func (h *RechargeHandler) Update(c *gin.Context) {
	id, ok := handler.ParseID(c, "充值记录")
	if !ok {
		return
	}
	var req ledgerService.UpdateRechargeRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	recharge, err := h.rechargeService.Update(c.Request.Context(), id, &req)
	handler.MustSucceed(c, err, recharge)
}

// Delete 撤销充值
// @Summary 撤销充值
// @Description 已有消费的充值不能撤销；余额充值撤销时扣回到账金额
// @Tags 充值
// @Produce json
// @Security Bearer
// @Param id path int true "充值记录ID"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/recharges/{id} [delete]
func (h *RechargeHandler) Delete(c *gin.Context) {
	id, ok := handler.ParseID(c, "充值记录")
	if !ok {
		return
	}

	err := h.rechargeService.Delete(c.Request.Context(), id)
	handler.MustSucceedWithMessage(c, err, "删除成功", nil)
}
