package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Lease 租约
type Lease struct {
	BaseModel
	TenantID           uint            `json:"tenant_id" gorm:"not null;index"`
	Tenant             *Tenant         `json:"tenant,omitempty" gorm:"foreignKey:TenantID"`
	PropertyID         uint            `json:"property_id" gorm:"not null;index"`
	Property           *Property       `json:"property,omitempty" gorm:"foreignKey:PropertyID"`
	Units              []Unit          `json:"units,omitempty" gorm:"many2many:lease_units;"`
	StartDate          time.Time       `json:"start_date" gorm:"type:date;not null"`
	EndDate            time.Time       `json:"end_date" gorm:"type:date;not null"`
	RentAmount         int64           `json:"rent_amount" gorm:"not null"`
	SecurityDeposit    int64           `json:"security_deposit" gorm:"not null"`
	AnnualIncrement    decimal.Decimal `json:"annual_increment" gorm:"type:decimal(12,2);not null;default:0"`
	IncrementFrequency string          `json:"increment_frequency" gorm:"size:20;not null"`
	IncrementType      string          `json:"increment_type" gorm:"size:20;not null"`
	Status             string          `json:"status" gorm:"size:20;not null;index"`
	PendingRent        int64           `json:"pending_rent" gorm:"not null;default:0"`
	Charges            []Charge        `json:"charges,omitempty" gorm:"foreignKey:LeaseID"`
}

// TableName 表名
func (l *Lease) TableName() string {
	return "leases"
}

// 租约状态、递增频率与递增方式
const (
	LeaseStatusActive      = "Active"
	LeaseStatusDeactivated = "Deactivated"

	IncrementQuarterly = "quarterly"
	IncrementYearly    = "yearly"

	IncrementFixed      = "fixed"
	IncrementPercentage = "percentage"
)

var hundred = decimal.NewFromInt(100)

// IsDeactivated 是否已停用
func (l *Lease) IsDeactivated() bool {
	return l.Status == LeaseStatusDeactivated
}

// BeforeSave 保存前校验租约不变量
func (l *Lease) BeforeSave(tx *gorm.DB) error {
	switch {
	case l.StartDate.IsZero():
		return invariant("lease", "start_date", "can't be blank")
	case l.EndDate.IsZero():
		return invariant("lease", "end_date", "can't be blank")
	case !l.EndDate.After(l.StartDate):
		return invariant("lease", "end_date", "must be greater than start_date")
	case l.RentAmount <= 0:
		return invariant("lease", "rent_amount", "must be greater than 0")
	case l.SecurityDeposit <= 0:
		return invariant("lease", "security_deposit", "must be greater than 0")
	case l.SecurityDeposit < l.RentAmount:
		return invariant("lease", "security_deposit", "must be at least one month's rent")
	case l.AnnualIncrement.IsNegative():
		return invariant("lease", "annual_increment", "must be greater than or equal to 0")
	case l.IncrementFrequency != IncrementQuarterly && l.IncrementFrequency != IncrementYearly:
		return invariant("lease", "increment_frequency", "must be quarterly or yearly")
	case l.IncrementType != IncrementFixed && l.IncrementType != IncrementPercentage:
		return invariant("lease", "increment_type", "must be fixed or percentage")
	case l.IncrementType == IncrementPercentage && l.AnnualIncrement.GreaterThan(hundred):
		return invariant("lease", "annual_increment", "must not exceed 100 when increment type is percentage")
	case l.Status != LeaseStatusActive && l.Status != LeaseStatusDeactivated:
		return invariant("lease", "status", "is not a valid lease status")
	}
	return nil
}

// IncrementedRent 按递增策略计算下一期的标准租金（取整到元）
// 季度递增按年度幅度的四分之一计算
func (l *Lease) IncrementedRent() int64 {
	current := decimal.NewFromInt(l.RentAmount)

	var increment decimal.Decimal
	switch l.IncrementType {
	case IncrementFixed:
		increment = l.AnnualIncrement
	case IncrementPercentage:
		increment = current.Mul(l.AnnualIncrement).Div(hundred)
	default:
		return l.RentAmount
	}

	switch l.IncrementFrequency {
	case IncrementQuarterly:
		increment = increment.Div(decimal.NewFromInt(4))
	case IncrementYearly:
	default:
		return l.RentAmount
	}

	return current.Add(increment).Round(0).IntPart()
}

// NextIncrementDate 下一次递增日期
func (l *Lease) NextIncrementDate(last time.Time) time.Time {
	switch l.IncrementFrequency {
	case IncrementQuarterly:
		return last.AddDate(0, 3, 0)
	case IncrementYearly:
		return last.AddDate(1, 0, 0)
	default:
		return last.AddDate(0, 0, 30)
	}
}
