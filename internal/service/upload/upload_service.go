// Package upload 提供图片上传服务
package upload

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/dumeirei/member-ledger/internal/common/errors"
	"github.com/dumeirei/member-ledger/internal/common/logger"
	"github.com/dumeirei/member-ledger/pkg/oss"
)

const (
	// MaxImageSize 通用图片最大大小（10MB）
	MaxImageSize = 10 * 1024 * 1024
	// MaxAvatarSize 头像最大大小（5MB）
	MaxAvatarSize = 5 * 1024 * 1024
)

// 对象存储目录
const (
	DirAvatar      = "avatars"
	DirPackageIcon = "packages"
)

var dirLimits = map[string]int64{
	DirAvatar:      MaxAvatarSize,
	DirPackageIcon: MaxImageSize,
}

// UploadService 上传服务
type UploadService struct {
	uploader oss.Uploader
}

// NewUploadService 创建上传服务
func NewUploadService(uploader oss.Uploader) *UploadService {
	return &UploadService{uploader: uploader}
}

// ImageFile 待上传的图片
type ImageFile struct {
	Filename string
	Size     int64
	Reader   io.Reader
}

// UploadImageResponse 上传图片响应
type UploadImageResponse struct {
	URL      string `json:"url"`
	Key      string `json:"key"`
	FileName string `json:"fileName"`
	Size     int64  `json:"size"`
}

// UploadImage 校验并上传图片到指定目录
func (s *UploadService) UploadImage(ctx context.Context, dir string, file *ImageFile) (*UploadImageResponse, error) {
	if file == nil || file.Reader == nil {
		return nil, errors.ErrInvalidParams.WithMessage("请选择要上传的文件")
	}
	maxSize, ok := dirLimits[dir]
	if !ok {
		return nil, errors.ErrInvalidParams.WithMessage("不支持的上传目录")
	}

	reader, err := oss.ValidateImageFile(file.Filename, file.Size, maxSize, file.Reader)
	if err != nil {
		return nil, imageError(err, maxSize)
	}

	key := oss.GenerateObjectKey(dir, file.Filename)
	url, err := s.uploader.Upload(ctx, key, reader, oss.GetContentType(file.Filename))
	if err != nil {
		logger.Error("上传图片失败", logger.String("key", key), logger.Err(err))
		return nil, errors.ErrExternalService.WithMessage("上传文件失败").WithError(err)
	}

	return &UploadImageResponse{
		URL:      url,
		Key:      key,
		FileName: file.Filename,
		Size:     file.Size,
	}, nil
}

// Remove 删除已上传的对象，失败只记录日志
func (s *UploadService) Remove(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.uploader.Delete(ctx, key); err != nil {
		logger.Warn("删除对象失败", logger.String("key", key), logger.Err(err))
	}
}

func imageError(err error, maxSize int64) error {
	switch {
	case stderrors.Is(err, oss.ErrFileTooLarge):
		return errors.ErrInvalidParams.WithMessage(fmt.Sprintf("图片大小不能超过 %dMB", maxSize/(1024*1024))).WithError(err)
	case stderrors.Is(err, oss.ErrUnsupportedImage), stderrors.Is(err, oss.ErrInvalidImage):
		return errors.ErrInvalidParams.WithMessage("文件格式不正确：仅支持 jpg/jpeg/png/gif/webp 格式").WithError(err)
	default:
		return errors.ErrInternalError.WithError(err)
	}
}
