package models

import (
	"regexp"

	"gorm.io/gorm"
)

var zipCodePattern = regexp.MustCompile(`^\d{5}(-\d{4})?$`)

// Property 物业
type Property struct {
	BaseModel
	Name         string `json:"name" gorm:"not null;size:200"`
	Description  string `json:"description" gorm:"type:text"`
	PropertyType string `json:"property_type" gorm:"size:20;not null"`
	Address      string `json:"address" gorm:"not null"`
	City         string `json:"city" gorm:"not null;size:100"`
	State        string `json:"state" gorm:"size:100"`
	Country      string `json:"country" gorm:"not null;size:100"`
	ZipCode      string `json:"zip_code" gorm:"size:10"`
	Active       bool   `json:"active" gorm:"default:true"`
	UnitsCount   int    `json:"units_count" gorm:"default:0"`
	Units        []Unit `json:"units,omitempty" gorm:"foreignKey:PropertyID"`
}

// TableName 表名
func (p *Property) TableName() string {
	return "properties"
}

// 物业类型
const (
	PropertyTypeApartment  = "apartment"
	PropertyTypeHouse      = "house"
	PropertyTypeCondo      = "condo"
	PropertyTypeDuplex     = "duplex"
	PropertyTypeTownhouse  = "townhouse"
	PropertyTypeCommercial = "commercial"
	PropertyTypeVilla      = "villa"
	PropertyTypeLoft       = "loft"
	PropertyTypeFarm       = "farm"
)

var propertyTypes = map[string]bool{
	PropertyTypeApartment: true, PropertyTypeHouse: true, PropertyTypeCondo: true,
	PropertyTypeDuplex: true, PropertyTypeTownhouse: true, PropertyTypeCommercial: true,
	PropertyTypeVilla: true, PropertyTypeLoft: true, PropertyTypeFarm: true,
}

// BeforeSave 保存前校验
func (p *Property) BeforeSave(tx *gorm.DB) error {
	switch {
	case p.Name == "":
		return invariant("property", "name", "can't be blank")
	case p.Address == "":
		return invariant("property", "address", "can't be blank")
	case p.City == "":
		return invariant("property", "city", "can't be blank")
	case p.Country == "":
		return invariant("property", "country", "can't be blank")
	case !propertyTypes[p.PropertyType]:
		return invariant("property", "property_type", "is not a valid property type")
	case p.ZipCode != "" && !zipCodePattern.MatchString(p.ZipCode):
		return invariant("property", "zip_code", "should be in 12345 or 12345-6789 format")
	}
	return nil
}
