package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/member-ledger/internal/common/response"
	"github.com/dumeirei/member-ledger/internal/service/upload"
)

// FormImage 读取 multipart 表单中的 file 字段
// 返回的 close 必须在上传结束后调用
func FormImage(c *gin.Context) (*upload.ImageFile, func(), bool) {
	header, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "请选择要上传的文件")
		return nil, nil, false
	}
	f, err := header.Open()
	if err != nil {
		response.BadRequest(c, "无法读取上传的文件")
		return nil, nil, false
	}
	file := &upload.ImageFile{
		Filename: header.Filename,
		Size:     header.Size,
		Reader:   f,
	}
	return file, func() { _ = f.Close() }, true
}
