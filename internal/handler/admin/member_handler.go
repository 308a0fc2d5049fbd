// Package admin 管理端 HTTP Handler
package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/member-ledger/internal/common/handler"
	"github.com/dumeirei/member-ledger/internal/common/middleware"
	"github.com/dumeirei/member-ledger/internal/common/utils"
	"github.com/dumeirei/member-ledger/internal/repository"
	adminService "github.com/dumeirei/member-ledger/internal/service/admin"
)

// MemberHandler 会员管理处理器
type MemberHandler struct {
	memberService *adminService.MemberService
}

// NewMemberHandler 创建会员管理处理器
func NewMemberHandler(memberSvc *adminService.MemberService) *MemberHandler {
	return &MemberHandler{
		memberService: memberSvc,
	}
}

var defaultMemberSort = utils.Sort{Field: "created_at", Desc: true}

// List 会员列表
// @Summary 获取会员列表
// @Tags 会员管理
// @Produce json
// @Security Bearer
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(10)
// @Param search query string false "姓名/手机号/会员号"
// @Param state query string false "状态" Enums(active, disabled)
// @Param level query string false "等级" Enums(normal, vip, diamond)
// @Param gender query string false "性别" Enums(male, female, other)
// @Param sortBy query string false "排序字段" Enums(createdAt, registerAt, balance, points, name)
// @Param sortOrder query string false "排序方向" Enums(asc, desc)
// @Success 200 {object} response.Response{data=response.PageData{items=[]models.Member}}
// @Router /api/members [get]
func (h *MemberHandler) List(c *gin.Context) {
	p := handler.BindPagination(c)
	sort := handler.BindSort(c, repository.MemberSortFields, defaultMemberSort)

	filters := map[string]interface{}{
		"search": c.Query("search"),
		"state":  c.Query("state"),
		"level":  c.Query("level"),
		"gender": c.Query("gender"),
	}

	list, total, err := h.memberService.List(c.Request.Context(), p.GetOffset(), p.Limit, filters, sort)
	handler.MustSucceedPage(c, err, list, total, p.Page, p.Limit)
}

// Get 会员详情
// @Summary 获取会员详情
// @Tags 会员管理
// @Produce json
// @Security Bearer
// @Param id path int true "会员ID"
// @Success 200 {object} response.Response{data=models.Member}
// @Failure 404 {object} response.Response
// @Router /api/members/{id} [get]
func (h *MemberHandler) Get(c *gin.Context) {
	id, ok := handler.ParseID(c, "会员")
	if !ok {
		return
	}

	member, err := h.memberService.Get(c.Request.Context(), id)
	handler.MustSucceed(c, err, member)
}

// GetByMemberNo 按会员号查询（扫码）
// @Summary 按会员号查询会员
// @Description 支持直接传入会员卡二维码内容 member:<memberNo>
// @Tags 会员管理
// @Produce json
// @Security Bearer
// @Param memberNo path string true "会员号"
// @Success 200 {object} response.Response{data=models.Member}
// @Router /api/members/by-no/{memberNo} [get]
func (h *MemberHandler) GetByMemberNo(c *gin.Context) {
	member, err := h.memberService.GetByMemberNo(c.Request.Context(), c.Param("memberNo"))
	handler.MustSucceed(c, err, member)
}

// Create 创建会员
// @Summary 创建会员
// @Tags 会员管理
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body adminService.CreateMemberRequest true "请求参数"
// @Success 201 {object} response.Response{data=models.Member}
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/members [post]
func (h *MemberHandler) Create(c *gin.Context) {
	var req adminService.CreateMemberRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	member, err := h.memberService.Create(c.Request.Context(), &req)
	if err == nil {
		middleware.SetOperationTarget(c, member.ID)
	}
	handler.MustCreate(c, err, member)
}

// Update 更新会员
// @Summary 更新会员资料
// @Tags 会员管理
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "会员ID"
// @Param request body adminService.UpdateMemberRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.Member}
// @Router /api/members/{id} [put]
func (h *MemberHandler) Update(c *gin.Context) {
	id, ok := handler.ParseID(c, "会员")
	if !ok {
		return
	}
	var req adminService.UpdateMemberRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	member, err := h.memberService.Update(c.Request.Context(), id, &req)
	handler.MustSucceed(c, err, member)
}

// Delete 删除会员
// @Summary 删除会员
// @Description 有充值或消费记录的会员不能删除
// @Tags 会员管理
// @Produce json
// @Security Bearer
// @Param id path int true "会员ID"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/members/{id} [delete]
func (h *MemberHandler) Delete(c *gin.Context) {
	id, ok := handler.ParseID(c, "会员")
	if !ok {
		return
	}

	err := h.memberService.Delete(c.Request.Context(), id)
	handler.MustSucceedWithMessage(c, err, "删除成功", nil)
}

// QRCode 会员卡二维码
// @Summary 获取会员卡二维码
// @Tags 会员管理
// @Produce png
// @Security Bearer
// @Param id path int true "会员ID"
// @Success 200 {file} binary
// @Router /api/members/{id}/qrcode [get]
func (h *MemberHandler) QRCode(c *gin.Context) {
	id, ok := handler.ParseID(c, "会员")
	if !ok {
		return
	}

	png, err := h.memberService.QRCode(c.Request.Context(), id)
	if handler.HandleError(c, err) {
		return
	}
	c.Header("Cache-Control", "private, max-age=3600")
	c.Data(http.StatusOK, "image/png", png)
}

// UploadAvatar 上传会员头像
// @Summary 上传会员头像
// @Description 支持 jpg/jpeg/png/gif/webp 格式，最大 5MB
// @Tags 会员管理
// @Accept multipart/form-data
// @Produce json
// @Security Bearer
// @Param id path int true "会员ID"
// @Param file formData file true "头像文件"
// @Success 200 {object} response.Response{data=models.Member}
// @Router /api/members/{id}/avatar [post]
func (h *MemberHandler) UploadAvatar(c *gin.Context) {
	id, ok := handler.ParseID(c, "会员")
	if !ok {
		return
	}
	file, closeFile, ok := handler.FormImage(c)
	if !ok {
		return
	}
	defer closeFile()

	member, err := h.memberService.UploadAvatar(c.Request.Context(), id, file)
	handler.MustSucceed(c, err, member)
}
