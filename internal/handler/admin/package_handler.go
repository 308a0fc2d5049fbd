package admin

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/member-ledger/internal/common/handler"
	"github.com/dumeirei/member-ledger/internal/common/middleware"
	"github.com/dumeirei/member-ledger/internal/common/utils"
	"github.com/dumeirei/member-ledger/internal/repository"
	adminService "github.com/dumeirei/member-ledger/internal/service/admin"
)

// PackageHandler 套餐管理处理器
type PackageHandler struct {
	packageService *adminService.PackageService
}

// NewPackageHandler 创建套餐管理处理器
func NewPackageHandler(packageSvc *adminService.PackageService) *PackageHandler {
	return &PackageHandler{
		packageService: packageSvc,
	}
}

var defaultPackageSort = utils.Sort{Field: "position", Desc: false}

// List 套餐列表
// @Summary 获取套餐列表
// @Tags 套餐管理
// @Produce json
// @Security Bearer
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(10)
// @Param search query string false "名称"
// @Param state query string false "状态" Enums(saling, closed)
// @Param packType query string false "类型" Enums(amount, times, normal)
// @Param category query string false "分类" Enums(fitness, beauty, entertainment, other)
// @Param sortBy query string false "排序字段" Enums(position, price, salesCount, createdAt)
// @Param sortOrder query string false "排序方向" Enums(asc, desc)
// @Success 200 {object} response.Response{data=response.PageData{items=[]models.Package}}
// @Router /api/packages [get]
func (h *PackageHandler) List(c *gin.Context) {
	p := handler.BindPagination(c)
	sort := handler.BindSort(c, repository.PackageSortFields, defaultPackageSort)

	filters := map[string]interface{}{
		"search":    c.Query("search"),
		"state":     c.Query("state"),
		"pack_type": c.Query("packType"),
		"category":  c.Query("category"),
	}

	list, total, err := h.packageService.List(c.Request.Context(), p.GetOffset(), p.Limit, filters, sort)
	handler.MustSucceedPage(c, err, list, total, p.Page, p.Limit)
}

// Get 套餐详情
// @Summary 获取套餐详情
// @Tags 套餐管理
// @Produce json
// @Security Bearer
// @Param id path int true "套餐ID"
// @Success 200 {object} response.Response{data=models.Package}
// @Router /api/packages/{id} [get]
func (h *PackageHandler) Get(c *gin.Context) {
	id, ok := handler.ParseID(c, "套餐")
	if !ok {
		return
	}

	pkg, err := h.packageService.Get(c.Request.Context(), id)
	handler.MustSucceed(c, err, pkg)
}

// Create 创建套餐
// @Summary 创建套餐
// @Tags 套餐管理
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body adminService.CreatePackageRequest true "请求参数"
// @Success 201 {object} response.Response{data=models.Package}
// @Failure 400 {object} response.Response
// @Router /api/packages [post]
func (h *PackageHandler) Create(c *gin.Context) {
	var req adminService.CreatePackageRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	pkg, err := h.packageService.Create(c.Request.Context(), &req)
	if err == nil {
		middleware.SetOperationTarget(c, pkg.ID)
	}
	handler.MustCreate(c, err, pkg)
}

// Update 更新套餐
// @Summary 更新套餐
// @Description 已售出的充值记录保留购买时的套餐快照，不受修改影响
// @Tags 套餐管理
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "套餐ID"
// @Param request body adminService.UpdatePackageRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.Package}
// @Router /api/packages/{id} [put]
func (h *PackageHandler) Update(c *gin.Context) {
	id, ok := handler.ParseID(c, "套餐")
	if !ok {
		return
	}
	var req adminService.UpdatePackageRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	pkg, err := h.packageService.Update(c.Request.Context(), id, &req)
	handler.MustSucceed(c, err, pkg)
}

// Delete 删除套餐
// @Summary 删除套餐
// @Description 已有充值记录的套餐不能删除，可改为下架
// @Tags 套餐管理
// @Produce json
// @Security Bearer
// @Param id path int true "套餐ID"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/packages/{id} [delete]
func (h *PackageHandler) Delete(c *gin.Context) {
	id, ok := handler.ParseID(c, "套餐")
	if !ok {
		return
	}

	err := h.packageService.Delete(c.Request.Context(), id)
	handler.MustSucceedWithMessage(c, err, "删除成功", nil)
}
