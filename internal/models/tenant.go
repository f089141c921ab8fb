package models

import (
	"fmt"
	"regexp"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	phonePattern = regexp.MustCompile(`^\d{11}$`)
	cnicPattern  = regexp.MustCompile(`^\d{5}-\d{7}-\d$`)
)

// Tenant 租客
//
// Balance 为租客的可用余额（预付/多付形成的信用额），始终 >= 0：
// 付款溢出部分计入余额，月度滚动生成账单时优先用余额抵扣。
// AdvanceCredit 为单独登记的预付款，管理端"标记已付"时优先抵扣。
type Tenant struct {
	BaseModel
	Name          string                      `json:"name" gorm:"not null;size:100"`
	Phone         string                      `json:"phone" gorm:"not null;size:20"`
	CNIC          string                      `json:"cnic" gorm:"column:cnic;not null;size:20"`
	Email         string                      `json:"email" gorm:"size:100"`
	Active        bool                        `json:"active" gorm:"default:false"`
	Balance       int64                       `json:"balance" gorm:"not null;default:0"`
	AdvanceCredit int64                       `json:"advance_credit" gorm:"not null;default:0"`
	ReceiptImages datatypes.JSONSlice[string] `json:"receipt_images" gorm:"type:json"`
}

// TableName 表名
func (t *Tenant) TableName() string {
	return "tenants"
}

// NormalizeCNIC 13位纯数字转换为 XXXXX-XXXXXXX-X 格式
func NormalizeCNIC(value string) string {
	var digits strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) == 13 {
		return d[0:5] + "-" + d[5:12] + "-" + d[12:]
	}
	return value
}

// BeforeSave 保存前校验
func (t *Tenant) BeforeSave(tx *gorm.DB) error {
	t.CNIC = NormalizeCNIC(t.CNIC)
	switch {
	case t.Name == "":
		return invariant("tenant", "name", "can't be blank")
	case !phonePattern.MatchString(t.Phone):
		return invariant("tenant", "phone", "must be exactly 11 digits")
	case !cnicPattern.MatchString(t.CNIC):
		return invariant("tenant", "cnic", "must be in the format XXXXX-XXXXXXX-X")
	case t.Balance < 0:
		return invariant("tenant", "balance", "must be greater than or equal to 0")
	case t.AdvanceCredit < 0:
		return invariant("tenant", "advance_credit", "must be greater than or equal to 0")
	}
	return nil
}

// AddCredit 付款溢出计入余额
func (t *Tenant) AddCredit(amount int64) error {
	if amount < 0 {
		return fmt.Errorf("credit amount must not be negative: %d", amount)
	}
	t.Balance += amount
	return nil
}

// ConsumeCredit 从余额中抵扣
func (t *Tenant) ConsumeCredit(amount int64) error {
	if amount < 0 || amount > t.Balance {
		return invariant("tenant", "balance", fmt.Sprintf("cannot consume %d from balance %d", amount, t.Balance))
	}
	t.Balance -= amount
	return nil
}

// AddAdvancePayment 登记预付款
func (t *Tenant) AddAdvancePayment(amount int64) error {
	if amount <= 0 {
		return invariant("tenant", "advance_credit", "advance payment must be greater than 0")
	}
	t.AdvanceCredit += amount
	return nil
}

// DeductAdvance 扣减预付款
func (t *Tenant) DeductAdvance(amount int64) error {
	if amount < 0 || amount > t.AdvanceCredit {
		return invariant("tenant", "advance_credit", fmt.Sprintf("cannot deduct %d from advance credit %d", amount, t.AdvanceCredit))
	}
	t.AdvanceCredit -= amount
	return nil
}

// AppendReceipt 追加付款凭证
func (t *Tenant) AppendReceipt(ref string) {
	t.ReceiptImages = append(t.ReceiptImages, ref)
}
