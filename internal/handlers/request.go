package handlers

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"rentdesk/internal/services"
)

// wholeAmount 整数金额，兼容数字与数字字符串（"5000"）
type wholeAmount int64

func (a *wholeAmount) UnmarshalJSON(data []byte) error {
	*a = 0
	raw := bytes.TrimSpace(data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return err
		}
		text = strings.TrimSpace(text)
	}
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		*a = wholeAmount(n)
		return nil
	}
	// 小数按整数部分处理，无法解析时视为0，交给后续校验
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		*a = wholeAmount(int64(f))
	}
	return nil
}

// monthClaimRequest 单月认领，字段名兼容 month/Month 与 payment_amount/paymentAmount
type monthClaimRequest struct {
	Month         string
	PaymentAmount wholeAmount
}

func (m *monthClaimRequest) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		// 非对象元素保留为空认领，由服务层给出格式错误
		return nil
	}

	for _, key := range []string{"month", "Month"} {
		if v, ok := fields[key]; ok {
			_ = json.Unmarshal(v, &m.Month)
			break
		}
	}
	for _, key := range []string{"payment_amount", "paymentAmount"} {
		if v, ok := fields[key]; ok {
			_ = m.PaymentAmount.UnmarshalJSON(v)
			break
		}
	}
	return nil
}

// PayRentRequest 付款请求
type PayRentRequest struct {
	LeaseID         wholeAmount     `json:"lease_id"`
	TotalAmountPaid wholeAmount     `json:"total_amount_paid"`
	Months          json.RawMessage `json:"months"`
	PaymentDate     string          `json:"payment_date"`
	ReceiptImage    string          `json:"receipt_image"`
	PaymentMethod   string          `json:"payment_method"`
}

// toPaymentRequest 转换为服务层请求；months 不是数组时保留为空，由服务层拒绝
func (r *PayRentRequest) toPaymentRequest() (*services.PaymentRequest, error) {
	req := &services.PaymentRequest{
		LeaseID:         uint(r.LeaseID),
		TotalAmountPaid: int64(r.TotalAmountPaid),
		ReceiptImage:    r.ReceiptImage,
		PaymentMethod:   r.PaymentMethod,
	}

	var claims []monthClaimRequest
	if len(r.Months) > 0 && json.Unmarshal(r.Months, &claims) == nil {
		req.Months = make([]services.MonthClaim, 0, len(claims))
		for _, c := range claims {
			req.Months = append(req.Months, services.MonthClaim{
				Month:         c.Month,
				PaymentAmount: int64(c.PaymentAmount),
			})
		}
	}

	if r.PaymentDate != "" {
		date, err := time.Parse("2006-01-02", r.PaymentDate)
		if err != nil {
			return nil, &services.ValidationError{Field: "payment_date", Message: "payment_date must be in format YYYY-MM-DD"}
		}
		req.PaymentDate = &date
	}
	return req, nil
}

// MonthQuery 月份查询参数，如 ?month=Mar-2025
type MonthQuery struct {
	Month string `form:"month" binding:"omitempty,month_label"`
}

// MarkPaidRequest 标记已付
type MarkPaidRequest struct {
	PaymentMethod string `json:"payment_method" binding:"omitempty,oneof=cash online"`
}

// AdvanceRequest 登记预付款
type AdvanceRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// UpdateLeaseUnitsRequest 调整租约单元
type UpdateLeaseUnitsRequest struct {
	UnitIDs []uint `json:"unit_ids" binding:"required,min=1"`
}

// RollForwardRequest 手动触发月度滚动
type RollForwardRequest struct {
	Force bool `json:"force"`
}
