package models

import "gorm.io/gorm"

// Unit 物业下的单元
type Unit struct {
	BaseModel
	PropertyID    uint   `json:"property_id" gorm:"not null;index;uniqueIndex:idx_units_property_number"`
	UnitNumber    string `json:"unit_number" gorm:"not null;size:50;uniqueIndex:idx_units_property_number"`
	Floor         string `json:"floor" gorm:"size:20"`
	SquareFootage int    `json:"square_footage"`
	RentalRate    *int64 `json:"rental_rate"`
	SellingRate   *int64 `json:"selling_rate"`
	Status        string `json:"status" gorm:"size:30;default:'available_for_rent';index"`
}

// TableName 表名
func (u *Unit) TableName() string {
	return "units"
}

// 单元状态
const (
	UnitStatusAvailableForRent    = "available_for_rent"
	UnitStatusAvailableForSelling = "available_for_selling"
	UnitStatusSold                = "sold"
	UnitStatusNotAvailable        = "not_available"
	UnitStatusOnRent              = "on_rent"
)

var unitStatuses = map[string]bool{
	UnitStatusAvailableForRent: true, UnitStatusAvailableForSelling: true, UnitStatusSold: true,
	UnitStatusNotAvailable: true, UnitStatusOnRent: true,
}

// BeforeSave 保存前校验
func (u *Unit) BeforeSave(tx *gorm.DB) error {
	if u.UnitNumber == "" {
		return invariant("unit", "unit_number", "can't be blank")
	}
	if u.Status == "" {
		u.Status = UnitStatusAvailableForRent
	}
	if !unitStatuses[u.Status] {
		return invariant("unit", "status", "is not a valid unit status")
	}
	if u.RentalRate != nil && *u.RentalRate <= 0 {
		return invariant("unit", "rental_rate", "must be greater than 0")
	}
	return nil
}

// AfterSave 刷新物业的单元数量
func (u *Unit) AfterSave(tx *gorm.DB) error {
	var count int64
	if err := tx.Model(&Unit{}).Where("property_id = ?", u.PropertyID).Count(&count).Error; err != nil {
		return err
	}
	return tx.Model(&Property{}).Where("id = ?", u.PropertyID).UpdateColumn("units_count", count).Error
}
