// Package ledger 提供充值与消费的 HTTP Handler
package ledger

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/member-ledger/internal/common/handler"
	"github.com/dumeirei/member-ledger/internal/middleware"
	ledgerService "github.com/dumeirei/member-ledger/internal/service/ledger"
)

// operatorOf 从令牌中取经办人
func operatorOf(c *gin.Context) ledgerService.Operator {
	return ledgerService.Operator{
		ID:   middleware.GetAdminID(c),
		Name: middleware.GetUsername(c),
	}
}

// bindListFilters 解析充值与消费列表共用的过滤参数
func bindListFilters(c *gin.Context, filters map[string]interface{}) bool {
	memberID, ok := handler.ParseQueryID(c, "memberId", "会员")
	if !ok {
		return false
	}
	packageID, ok := handler.ParseQueryID(c, "packageId", "套餐")
	if !ok {
		return false
	}
	start, end, ok := handler.ParseQueryDateRange(c)
	if !ok {
		return false
	}

	filters["search"] = c.Query("search")
	filters["payment_method"] = c.Query("paymentMethod")
	if memberID != nil {
		filters["member_id"] = *memberID
	}
	if packageID != nil {
		filters["package_id"] = *packageID
	}
	if start != nil {
		filters["start"] = *start
	}
	if end != nil {
		filters["end"] = *end
	}
	return true
}
