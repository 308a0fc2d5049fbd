// Package upload 提供文件上传相关的 HTTP Handler
package upload

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/member-ledger/internal/common/handler"
	uploadService "github.com/dumeirei/member-ledger/internal/service/upload"
)

// Handler 上传处理器
type Handler struct {
	uploadService *uploadService.UploadService
}

// NewHandler 创建上传处理器
func NewHandler(uploadSvc *uploadService.UploadService) *Handler {
	return &Handler{
		uploadService: uploadSvc,
	}
}

// UploadImage 上传套餐图标
// @Summary 上传图片
// @Description 上传套餐图标，支持 jpg/jpeg/png/gif/webp 格式，最大 10MB
// @Tags 文件上传
// @Accept multipart/form-data
// @Produce json
// @Security Bearer
// @Param file formData file true "图片文件"
// @Success 200 {object} response.Response{data=uploadService.UploadImageResponse}
// @Router /api/uploads/image [post]
func (h *Handler) UploadImage(c *gin.Context) {
	file, closeFile, ok := handler.FormImage(c)
	if !ok {
		return
	}
	defer closeFile()

	result, err := h.uploadService.UploadImage(c.Request.Context(), uploadService.DirPackageIcon, file)
	handler.MustSucceed(c, err, result)
}
