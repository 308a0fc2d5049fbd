package ledger

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dumeirei/member-ledger/internal/common/crypto"
	"github.com/dumeirei/member-ledger/internal/common/logger"
	"github.com/dumeirei/member-ledger/internal/common/metrics"
	"github.com/dumeirei/member-ledger/internal/common/tracing"
	"github.com/dumeirei/member-ledger/internal/models"
	"github.com/dumeirei/member-ledger/pkg/mqtt"
	"github.com/dumeirei/member-ledger/pkg/sms"
)

const notifyTimeout = 10 * time.Second

// 事件类型
const (
	EventRechargeCreated    = "recharge.created"
	EventRechargeDeleted    = "recharge.deleted"
	EventRechargesExpired   = "recharge.expired"
	EventConsumptionCreated = "consumption.created"
	EventConsumptionDeleted = "consumption.deleted"
)

// RechargeEvent 充值事件内容
type RechargeEvent struct {
	RechargeID     int64   `json:"rechargeId"`
	RechargeNo     string  `json:"rechargeNo"`
	MemberID       int64   `json:"memberId"`
	Type           string  `json:"type"`
	PackageID      *int64  `json:"packageId,omitempty"`
	PackageName    *string `json:"packageName,omitempty"`
	TotalAmount    string  `json:"totalAmount"`
	RemainingTimes *int    `json:"remainingTimes,omitempty"`
	Status         string  `json:"status"`
}

// ConsumptionEvent 消费事件内容
type ConsumptionEvent struct {
	ConsumptionID  int64   `json:"consumptionId"`
	ConsumptionNo  string  `json:"consumptionNo"`
	MemberID       *int64  `json:"memberId,omitempty"`
	RechargeID     *int64  `json:"rechargeId,omitempty"`
	PackageName    *string `json:"packageName,omitempty"`
	Amount         string  `json:"amount"`
	PaymentMethod  string  `json:"paymentMethod"`
	PointsEarned   int64   `json:"pointsEarned"`
	RemainingTimes *int    `json:"remainingTimes,omitempty"`
}

// Notifier 在事务提交后异步推送终端事件与会员短信，失败只记录日志
type Notifier struct {
	publisher   mqtt.Publisher
	sender      sms.Sender
	topicPrefix string
	log         *zap.Logger
	wg          sync.WaitGroup
}

// NewNotifier 创建通知器，publisher/sender 为 nil 时对应通道关闭
func NewNotifier(publisher mqtt.Publisher, sender sms.Sender, topicPrefix string) *Notifier {
	if publisher == nil {
		publisher = mqtt.NopPublisher{}
	}
	return &Notifier{
		publisher:   publisher,
		sender:      sender,
		topicPrefix: topicPrefix,
		log:         logger.Named("ledger.notifier"),
	}
}

// Wait 等待已派发的通知完成
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// RechargeCreated 充值成功
func (n *Notifier) RechargeCreated(r *models.Recharge, member *models.Member) {
	n.publish(mqtt.TopicRechargeCreated, EventRechargeCreated, rechargeEvent(r))

	if member == nil || member.Phone == "" {
		return
	}
	params := map[string]string{
		"name":    member.Name,
		"amount":  r.TotalAmount.StringFixed(2),
		"balance": member.Balance.StringFixed(2),
	}
	if r.PackageName != nil {
		params["package"] = *r.PackageName
	}
	n.sendSMS(member.Phone, sms.TemplateRechargeSuccess, params)
}

// RechargeDeleted 充值撤销
func (n *Notifier) RechargeDeleted(r *models.Recharge) {
	n.publish(mqtt.TopicRechargeDeleted, EventRechargeDeleted, rechargeEvent(r))
}

// RechargesExpired 定时任务标记过期
func (n *Notifier) RechargesExpired(count int64) {
	n.publish(mqtt.TopicRechargeExpired, EventRechargesExpired, map[string]int64{"count": count})
}

// ConsumptionCreated 消费成功
func (n *Notifier) ConsumptionCreated(c *models.Consumption, recharge *models.Recharge, member *models.Member) {
	n.publish(mqtt.TopicConsumptionCreated, EventConsumptionCreated, consumptionEvent(c, recharge))

	if member == nil || member.Phone == "" {
		return
	}
	params := map[string]string{
		"name":    member.Name,
		"amount":  c.Amount.StringFixed(2),
		"balance": member.Balance.StringFixed(2),
	}
	if recharge != nil {
		if remaining := recharge.Remaining(); remaining != nil {
			params["remaining"] = strconv.Itoa(*remaining)
		}
	}
	n.sendSMS(member.Phone, sms.TemplateConsumptionReceipt, params)
}

// ConsumptionDeleted 消费撤销
func (n *Notifier) ConsumptionDeleted(c *models.Consumption) {
	n.publish(mqtt.TopicConsumptionDeleted, EventConsumptionDeleted, consumptionEvent(c, nil))
}

// RemindExpiring 套餐即将到期提醒，同步发送，返回是否成功
func (n *Notifier) RemindExpiring(ctx context.Context, r *models.Recharge) bool {
	if n.sender == nil || r.Member == nil || r.Member.Phone == "" {
		return false
	}
	params := map[string]string{
		"name": r.Member.Name,
	}
	if r.PackageName != nil {
		params["package"] = *r.PackageName
	}
	if r.EndDate != nil {
		params["endDate"] = r.EndDate.Format("2006-01-02")
	}
	return n.doSendSMS(ctx, r.Member.Phone, sms.TemplatePackageExpiring, params) == nil
}

func (n *Notifier) publish(topic, eventType string, data interface{}) {
	fullTopic := mqtt.BuildTopic(n.topicPrefix, topic)
	event := mqtt.NewEvent(eventType, data)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		ctx, span := tracing.StartSpan(ctx, "ledger.notify.mqtt", tracing.AttrMQTTTopic.String(fullTopic))
		err := n.publisher.Publish(ctx, fullTopic, event)
		tracing.EndSpan(span, err)

		if err != nil {
			metrics.GetMetrics().RecordMQTTMessage(topic, "failed")
			n.log.Warn("publish ledger event failed", zap.String("topic", fullTopic), zap.Error(err))
			return
		}
		metrics.GetMetrics().RecordMQTTMessage(topic, "success")
	}()
}

func (n *Notifier) sendSMS(phone, template string, params map[string]string) {
	if n.sender == nil {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		_ = n.doSendSMS(ctx, phone, template, params)
	}()
}

func (n *Notifier) doSendSMS(ctx context.Context, phone, template string, params map[string]string) error {
	if err := n.sender.Send(ctx, phone, template, params); err != nil {
		metrics.GetMetrics().RecordSMS(template, "failed")
		n.log.Warn("send sms failed",
			zap.String("template", template),
			zap.String("phone", crypto.MaskPhone(phone)),
			zap.Error(err),
		)
		return err
	}
	metrics.GetMetrics().RecordSMS(template, "success")
	return nil
}

func rechargeEvent(r *models.Recharge) *RechargeEvent {
	return &RechargeEvent{
		RechargeID:     r.ID,
		RechargeNo:     r.RechargeNo,
		MemberID:       r.MemberID,
		Type:           r.Type,
		PackageID:      r.PackageID,
		PackageName:    r.PackageName,
		TotalAmount:    r.TotalAmount.StringFixed(2),
		RemainingTimes: r.RemainingTimes,
		Status:         r.Status,
	}
}

func consumptionEvent(c *models.Consumption, recharge *models.Recharge) *ConsumptionEvent {
	e := &ConsumptionEvent{
		ConsumptionID: c.ID,
		ConsumptionNo: c.ConsumptionNo,
		MemberID:      c.MemberID,
		RechargeID:    c.RechargeID,
		PackageName:   c.PackageName,
		Amount:        c.Amount.StringFixed(2),
		PaymentMethod: c.PaymentMethod,
		PointsEarned:  c.PointsEarned,
	}
	if recharge != nil {
		e.RemainingTimes = recharge.Remaining()
	}
	return e
}
