package models

import (
	"time"

	"gorm.io/gorm"
)

// Charge 一个计费周期的租金账单（rents 表）
//
// PeriodStart 是账单所属月份的第一天，创建后不再改变，(lease_id, period_start) 唯一；
// PaymentDate 在创建时等于账期日期，付款后改写为实际付款日期。
type Charge struct {
	BaseModel
	LeaseID       uint      `json:"lease_id" gorm:"not null;uniqueIndex:idx_rents_lease_period"`
	PeriodStart   time.Time `json:"period_start" gorm:"type:date;not null;uniqueIndex:idx_rents_lease_period"`
	Amount        int64     `json:"amount" gorm:"not null"`
	AmountPaid    *int64    `json:"amount_paid"`
	PaymentDate   time.Time `json:"payment_date" gorm:"type:date;not null"`
	DueDate       time.Time `json:"due_date" gorm:"type:date;not null"`
	Status        string    `json:"status" gorm:"size:20;not null;index"`
	PaymentMethod string    `json:"payment_method" gorm:"size:20"`
	Name          string    `json:"rent_name" gorm:"column:rent_name;size:20"`
}

// TableName 表名
func (c *Charge) TableName() string {
	return "rents"
}

// 账单状态与付款方式
const (
	ChargeStatusPending = "pending"
	ChargeStatusPaid    = "paid"
	ChargeStatusOverdue = "overdue"

	PaymentMethodCash   = "cash"
	PaymentMethodOnline = "online"
)

// ValidPaymentMethod 付款方式只能是 cash 或 online
func ValidPaymentMethod(method string) bool {
	return method == PaymentMethodCash || method == PaymentMethodOnline
}

// BeforeSave 保存前校验
func (c *Charge) BeforeSave(tx *gorm.DB) error {
	switch {
	case c.LeaseID == 0:
		return invariant("rent", "lease", "must exist")
	case c.Amount <= 0:
		return invariant("rent", "amount", "must be greater than 0")
	case c.PeriodStart.IsZero():
		return invariant("rent", "period_start", "can't be blank")
	case c.PaymentDate.IsZero():
		return invariant("rent", "payment_date", "can't be blank")
	case c.DueDate.IsZero():
		return invariant("rent", "due_date", "can't be blank")
	case c.Status != ChargeStatusPending && c.Status != ChargeStatusPaid && c.Status != ChargeStatusOverdue:
		return invariant("rent", "status", c.Status+" is not a valid status")
	case c.PaymentMethod != "" && !ValidPaymentMethod(c.PaymentMethod):
		return invariant("rent", "payment_method", "must be either 'cash' or 'online'")
	case c.AmountPaid != nil && *c.AmountPaid < 0:
		return invariant("rent", "amount_paid", "must not be negative")
	}
	return nil
}

// IsPaid 是否已结清
func (c *Charge) IsPaid() bool {
	return c.Status == ChargeStatusPaid
}

// PaidAmount 已付金额，未付为0
func (c *Charge) PaidAmount() int64 {
	if c.AmountPaid == nil {
		return 0
	}
	return *c.AmountPaid
}

// ChargeState 账单在某一时刻的快照，用于付款审计
type ChargeState struct {
	ID            uint      `json:"id"`
	Status        string    `json:"status"`
	AmountPaid    *int64    `json:"amount_paid"`
	PaymentMethod string    `json:"payment_method"`
	PaymentDate   time.Time `json:"payment_date"`
}

// Snapshot 生成当前快照
func (c *Charge) Snapshot() ChargeState {
	var paid *int64
	if c.AmountPaid != nil {
		v := *c.AmountPaid
		paid = &v
	}
	return ChargeState{
		ID:            c.ID,
		Status:        c.Status,
		AmountPaid:    paid,
		PaymentMethod: c.PaymentMethod,
		PaymentDate:   c.PaymentDate,
	}
}
