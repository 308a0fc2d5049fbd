package mqtt

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// ErrNotConnected 客户端未连接
var ErrNotConnected = errors.New("mqtt client not connected")

// 账务事件主题
const (
	TopicRechargeCreated    = "ledger/recharge/created"
	TopicRechargeDeleted    = "ledger/recharge/deleted"
	TopicRechargeExpired    = "ledger/recharge/expired"
	TopicConsumptionCreated = "ledger/consumption/created"
	TopicConsumptionDeleted = "ledger/consumption/deleted"
)

// Event 推送给终端的事件信封
type Event struct {
	Type      string      `json:"type"`
	Timestamp int64       `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// NewEvent 以当前时间创建事件
func NewEvent(eventType string, data interface{}) *Event {
	return &Event{
		Type:      eventType,
		Timestamp: time.Now().Unix(),
		Data:      data,
	}
}

// BuildTopic 拼接主题前缀
func BuildTopic(prefix, topic string) string {
	if prefix == "" {
		return topic
	}
	return strings.TrimSuffix(prefix, "/") + "/" + strings.TrimPrefix(topic, "/")
}

// NopPublisher 丢弃所有消息
type NopPublisher struct{}

// Publish 不做任何事
func (NopPublisher) Publish(context.Context, string, interface{}) error { return nil }

// Published 已发布的消息
type Published struct {
	Topic   string
	Payload interface{}
}

// MockPublisher 记录发布内容（用于测试）
type MockPublisher struct {
	mu       sync.Mutex
	messages []Published
	err      error
}

// NewMockPublisher 创建模拟发布器
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

// FailWith 之后的发布均返回 err
func (p *MockPublisher) FailWith(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

// Publish 记录消息
func (p *MockPublisher) Publish(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, Published{Topic: topic, Payload: payload})
	return nil
}

// Messages 返回已发布消息的副本
func (p *MockPublisher) Messages() []Published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Published(nil), p.messages...)
}

// ByTopic 按主题过滤
func (p *MockPublisher) ByTopic(topic string) []Published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Published
	for _, m := range p.messages {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}
