package models

// UserLease 移动端用户可查看的租约
type UserLease struct {
	BaseModel
	UserID  uint `json:"user_id" gorm:"not null;uniqueIndex:idx_user_leases_user_lease"`
	LeaseID uint `json:"lease_id" gorm:"not null;uniqueIndex:idx_user_leases_user_lease;index"`
}

// TableName 表名
func (u *UserLease) TableName() string {
	return "user_leases"
}
