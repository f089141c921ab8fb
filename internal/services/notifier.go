package services

import (
	"context"

	"rentdesk/pkg/logger"
	"rentdesk/pkg/metrics"
	"rentdesk/pkg/sms"
)

// Notifier 付款确认通知
type Notifier interface {
	SendPaymentConfirmation(ctx context.Context, phone string, amount int64) error
}

// SMSNotifier 通过短信网关发送付款确认
type SMSNotifier struct {
	client *sms.Client
}

// NewSMSNotifier 创建短信通知
func NewSMSNotifier(client *sms.Client) *SMSNotifier {
	return &SMSNotifier{client: client}
}

// SendPaymentConfirmation 发送付款确认短信，失败返回 *TransportError
func (n *SMSNotifier) SendPaymentConfirmation(ctx context.Context, phone string, amount int64) error {
	if err := n.client.Send(ctx, phone, sms.PaymentConfirmationMessage(amount)); err != nil {
		metrics.NotificationFailures.Inc()
		logger.GetLogger().WithError(err).Warnf("Failed to send payment confirmation to %s", sms.FormatPhone(phone))
		return &TransportError{Err: err}
	}
	return nil
}

// noopNotifier 未配置短信网关时使用
type noopNotifier struct{}

func (noopNotifier) SendPaymentConfirmation(context.Context, string, int64) error { return nil }
