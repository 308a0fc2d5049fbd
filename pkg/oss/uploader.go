package oss

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"
)

// Uploader 上传器接口
type Uploader interface {
	Upload(ctx context.Context, objectKey string, reader io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, objectKey string) error
	GetURL(objectKey string) string
}

// 图片校验错误
var (
	ErrUnsupportedImage = errors.New("不支持的图片格式")
	ErrInvalidImage     = errors.New("文件不是有效的图片")
	ErrFileTooLarge     = errors.New("文件过大")
)

// Config 上传器配置
type Config struct {
	Provider        string // aliyun | mock
	Endpoint        string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	CustomDomain    string
	UploadDir       string
}

// New 按配置创建上传器，provider 非 aliyun 时使用 MockUploader
func New(cfg *Config) (Uploader, error) {
	if cfg == nil || cfg.Provider != "aliyun" {
		return NewMockUploader(), nil
	}
	return NewAliyunUploader(&AliyunConfig{
		Endpoint:        cfg.Endpoint,
		AccessKeyID:     cfg.AccessKeyID,
		AccessKeySecret: cfg.AccessKeySecret,
		BucketName:      cfg.Bucket,
		Domain:          cfg.CustomDomain,
		BasePath:        cfg.UploadDir,
	})
}

// GenerateObjectKey 生成对象键 prefix/yyyy/mm/dd/hash.ext
func GenerateObjectKey(prefix, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	now := time.Now()

	hash := md5.Sum([]byte(fmt.Sprintf("%s_%d", filename, now.UnixNano())))
	hashStr := hex.EncodeToString(hash[:])[:16]

	return fmt.Sprintf("%s/%s/%s%s", prefix, now.Format("2006/01/02"), hashStr, ext)
}

var imageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// GetContentType 根据文件扩展名获取 Content-Type
func GetContentType(filename string) string {
	if ct, ok := imageTypes[strings.ToLower(path.Ext(filename))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// ValidateImageFile 校验扩展名、大小与文件头，返回可继续读取完整内容的 reader
func ValidateImageFile(filename string, size, maxSize int64, reader io.Reader) (io.Reader, error) {
	ext := strings.ToLower(path.Ext(filename))
	if _, ok := imageTypes[ext]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, ext)
	}
	if maxSize > 0 && size > maxSize {
		return nil, ErrFileTooLarge
	}

	header := make([]byte, 512)
	n, err := io.ReadFull(reader, header)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("读取文件失败: %w", err)
	}
	header = header[:n]

	contentType := http.DetectContentType(header)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, ErrInvalidImage
	}

	return io.MultiReader(bytes.NewReader(header), reader), nil
}

// MockUploader 模拟上传器（用于开发/测试）
type MockUploader struct {
	mu    sync.Mutex
	files map[string][]byte
}

// NewMockUploader 创建模拟上传器
func NewMockUploader() *MockUploader {
	return &MockUploader{files: make(map[string][]byte)}
}

// Upload 模拟上传
func (u *MockUploader) Upload(_ context.Context, objectKey string, reader io.Reader, _ string) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	u.mu.Lock()
	u.files[objectKey] = data
	u.mu.Unlock()
	return u.GetURL(objectKey), nil
}

// Delete 模拟删除
func (u *MockUploader) Delete(_ context.Context, objectKey string) error {
	u.mu.Lock()
	delete(u.files, objectKey)
	u.mu.Unlock()
	return nil
}

// GetURL 获取模拟 URL
func (u *MockUploader) GetURL(objectKey string) string {
	return fmt.Sprintf("https://mock-oss.example.com/%s", objectKey)
}

// File 读取已上传内容
func (u *MockUploader) File(objectKey string) ([]byte, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	data, ok := u.files[objectKey]
	return data, ok
}
