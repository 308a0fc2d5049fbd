package sms

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Sender 短信发送器接口
type Sender interface {
	Send(ctx context.Context, phone, template string, params map[string]string) error
}

// 业务模板名
const (
	TemplateRechargeSuccess    = "recharge_success"    // 充值成功
	TemplateConsumptionReceipt = "consumption_receipt" // 消费小票
	TemplatePackageExpiring    = "package_expiring"    // 套餐即将到期
)

// ErrTemplateNotConfigured 模板未配置
var ErrTemplateNotConfigured = errors.New("sms template not configured")

// Config 发送器配置
type Config struct {
	Enabled         bool
	Provider        string
	AccessKeyID     string
	AccessKeySecret string
	SignName        string
	RegionID        string
	Templates       map[string]string
}

// New 按配置创建发送器，未启用或非 aliyun 时返回 MockSender
func New(cfg *Config) (Sender, error) {
	if cfg == nil || !cfg.Enabled || cfg.Provider != "aliyun" {
		return NewMockSender(), nil
	}
	return NewAliyunSender(&AliyunConfig{
		AccessKeyID:     cfg.AccessKeyID,
		AccessKeySecret: cfg.AccessKeySecret,
		SignName:        cfg.SignName,
		RegionID:        cfg.RegionID,
		Templates:       cfg.Templates,
	})
}

// MockSender 模拟短信发送器（用于开发/测试）
type MockSender struct {
	mu       sync.Mutex
	messages []MockMessage
	err      error
}

// MockMessage 模拟消息
type MockMessage struct {
	Phone    string
	Template string
	Params   map[string]string
	SentAt   time.Time
}

// NewMockSender 创建模拟发送器
func NewMockSender() *MockSender {
	return &MockSender{}
}

// FailWith 之后的发送均返回 err
func (s *MockSender) FailWith(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Send 记录消息
func (s *MockSender) Send(_ context.Context, phone, template string, params map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, MockMessage{
		Phone:    phone,
		Template: template,
		Params:   params,
		SentAt:   time.Now(),
	})
	return nil
}

// Messages 返回已发送消息的副本
func (s *MockSender) Messages() []MockMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]MockMessage(nil), s.messages...)
}

// LastMessage 获取最后发送的消息
func (s *MockSender) LastMessage() *MockMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return nil
	}
	m := s.messages[len(s.messages)-1]
	return &m
}

// Clear 清空消息记录
func (s *MockSender) Clear() {
	s.mu.Lock()
	s.messages = nil
	s.mu.Unlock()
}
