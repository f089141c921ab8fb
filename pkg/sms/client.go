package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"rentdesk/pkg/config"
)

// ErrNotConfigured 未配置短信网关地址
var ErrNotConfigured = errors.New("sms gateway url is not configured")

// Client 短信网关客户端（JSON POST 接口）
type Client struct {
	url        string
	loginID    string
	password   string
	senderID   string
	httpClient *http.Client
}

// NewClient 根据配置创建客户端
func NewClient(cfg config.SMSConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		url:        cfg.APIURL,
		loginID:    cfg.LoginID,
		password:   cfg.Password,
		senderID:   cfg.SenderID,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type sendRequest struct {
	LoginID           string `json:"loginId"`
	LoginPassword     string `json:"loginPassword"`
	Destination       string `json:"Destination"`
	Mask              string `json:"Mask"`
	Message           string `json:"Message"`
	UniCode           string `json:"UniCode"`
	ShortCodePrefered string `json:"ShortCodePrefered"`
}

// Send 发送一条短信
func (c *Client) Send(ctx context.Context, phone, message string) error {
	if c.url == "" {
		return ErrNotConfigured
	}

	body, err := json.Marshal(sendRequest{
		LoginID:           c.loginID,
		LoginPassword:     c.password,
		Destination:       FormatPhone(phone),
		Mask:              c.senderID,
		Message:           message,
		UniCode:           "0",
		ShortCodePrefered: "n",
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}

// PaymentConfirmationMessage 付款确认短信内容
func PaymentConfirmationMessage(amount int64) string {
	return fmt.Sprintf("Your rent payment of %d has been confirmed. Thank you!", amount)
}

// FormatPhone 转换为网关要求的国际格式：03001234567 -> 923001234567
func FormatPhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	number := b.String()
	if strings.HasPrefix(number, "0") {
		return "92" + number[1:]
	}
	return number
}
