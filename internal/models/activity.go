package models

import "gorm.io/datatypes"

// Activity 操作记录（谁对什么做了什么）
type Activity struct {
	BaseModel
	Key           string         `json:"key" gorm:"size:100;not null;index"` // 例如 rent.pay
	OwnerID       uint           `json:"owner_id" gorm:"index"`              // 操作人，0 表示系统
	TrackableType string         `json:"trackable_type" gorm:"size:50;index:idx_activities_trackable"`
	TrackableID   uint           `json:"trackable_id" gorm:"index:idx_activities_trackable"`
	Parameters    datatypes.JSON `json:"parameters" gorm:"type:json"`
}

// TableName 表名
func (a *Activity) TableName() string {
	return "activities"
}

// 操作类型
const (
	ActivityLeaseCreate      = "lease.create"
	ActivityLeaseDeactivate  = "lease.deactivate"
	ActivityLeaseUpdateUnits = "lease.update_units"
	ActivityRentPay          = "rent.pay"
	ActivityRentMarkPaid     = "rent.mark_paid"
	ActivityRentRollForward  = "rent.roll_forward"
	ActivityTenantAdvance    = "tenant.advance"
	ActivityPropertyCreate   = "property.create"
	ActivityUnitCreate       = "unit.create"
)
