package services

import (
	"errors"
	"time"

	"rentdesk/internal/models"
	"rentdesk/pkg/logger"
	"rentdesk/pkg/pagination"

	"gorm.io/gorm"
)

// PropertyInput 创建物业参数
type PropertyInput struct {
	Name         string `json:"name" binding:"required,max=200"`
	Description  string `json:"description"`
	PropertyType string `json:"property_type" binding:"required"`
	Address      string `json:"address" binding:"required"`
	City         string `json:"city" binding:"required"`
	State        string `json:"state"`
	Country      string `json:"country" binding:"required"`
	ZipCode      string `json:"zip_code"`
}

// UnitInput 创建单元参数
type UnitInput struct {
	UnitNumber    string `json:"unit_number" binding:"required,max=50"`
	Floor         string `json:"floor"`
	SquareFootage int    `json:"square_footage" binding:"omitempty,gte=0"`
	RentalRate    *int64 `json:"rental_rate"`
	SellingRate   *int64 `json:"selling_rate"`
	Status        string `json:"status"`
}

// PropertyService 物业与单元
type PropertyService struct {
	db *gorm.DB
}

// NewPropertyService 创建物业服务
func NewPropertyService(db *gorm.DB) *PropertyService {
	return &PropertyService{db: db}
}

// Create 创建物业
func (s *PropertyService) Create(input *PropertyInput) (*models.Property, error) {
	property := &models.Property{
		Name:         input.Name,
		Description:  input.Description,
		PropertyType: input.PropertyType,
		Address:      input.Address,
		City:         input.City,
		State:        input.State,
		Country:      input.Country,
		ZipCode:      input.ZipCode,
		Active:       true,
	}
	if err := s.db.Create(property).Error; err != nil {
		return nil, err
	}
	return property, nil
}

// GetByID 按ID获取物业（含单元）
func (s *PropertyService) GetByID(id uint) (*models.Property, error) {
	var property models.Property
	err := s.db.Preload("Units", func(db *gorm.DB) *gorm.DB {
		return db.Order("units.id ASC")
	}).First(&property, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPropertyNotFound
	}
	return &property, err
}

// AddUnit 在物业下创建单元
func (s *PropertyService) AddUnit(propertyID uint, input *UnitInput) (*models.Unit, error) {
	var unit *models.Unit
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Property{}).Where("id = ?", propertyID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrPropertyNotFound
		}

		if err := tx.Model(&models.Unit{}).
			Where("property_id = ? AND unit_number = ?", propertyID, input.UnitNumber).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return validationf("unit_number", "unit %s already exists on this property", input.UnitNumber)
		}

		unit = &models.Unit{
			PropertyID:    propertyID,
			UnitNumber:    input.UnitNumber,
			Floor:         input.Floor,
			SquareFootage: input.SquareFootage,
			RentalRate:    input.RentalRate,
			SellingRate:   input.SellingRate,
			Status:        input.Status,
		}
		return tx.Create(unit).Error
	})
	if err != nil {
		return nil, err
	}
	return unit, nil
}

// DeleteUnit 删除单元；在租或仍关联未停用租约的单元不能删除
func (s *PropertyService) DeleteUnit(propertyID, unitID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var unit models.Unit
		if err := tx.Where("id = ? AND property_id = ?", unitID, propertyID).First(&unit).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return validationf("unit_id", "unit %d not found on property %d", unitID, propertyID)
			}
			return err
		}
		if unit.Status == models.UnitStatusOnRent {
			return validationf("unit_id", "unit %s is on rent and cannot be deleted", unit.UnitNumber)
		}

		var active int64
		if err := tx.Table("lease_units").
			Joins("JOIN leases ON leases.id = lease_units.lease_id").
			Where("lease_units.unit_id = ? AND leases.status <> ?", unit.ID, models.LeaseStatusDeactivated).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return validationf("unit_id", "unit %s belongs to an active lease and cannot be deleted", unit.UnitNumber)
		}

		if err := tx.Exec("DELETE FROM lease_units WHERE unit_id = ?", unit.ID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&unit).Error; err != nil {
			return err
		}
		return tx.Model(&models.Property{}).Where("id = ?", propertyID).
			UpdateColumn("units_count", gorm.Expr("units_count - 1")).Error
	})
}

// userProperties 用户可见租约所在的物业
func (s *PropertyService) userProperties(userID uint) *gorm.DB {
	return s.db.Model(&models.Property{}).
		Where("id IN (?)", s.db.Table("leases").
			Select("leases.property_id").
			Joins("JOIN user_leases ON user_leases.lease_id = leases.id").
			Where("user_leases.user_id = ?", userID))
}

// PropertyListing 物业列表与总额
type PropertyListing struct {
	Properties       []*PropertySummary `json:"properties"`
	TotalRent        int64              `json:"total_rent"`
	TotalPendingRent int64              `json:"total_pending_rent"`
}

// ListForUser 分页列出用户可见的物业及其租金汇总；总额覆盖全部可见物业
func (s *PropertyService) ListForUser(userID uint, month *time.Time, page *pagination.PageParams) (*PropertyListing, int64, error) {
	var all []models.Property
	if err := s.userProperties(userID).Order("id ASC").Find(&all).Error; err != nil {
		return nil, 0, err
	}

	listing := &PropertyListing{Properties: []*PropertySummary{}}
	start := page.Offset()
	for i := range all {
		summary, err := s.summarize(userID, &all[i], month)
		if err != nil {
			return nil, 0, err
		}
		listing.TotalRent += summary.TotalRent
		listing.TotalPendingRent += summary.TotalPendingRent
		if i >= start && i < start+page.PageSize {
			listing.Properties = append(listing.Properties, summary)
		}
	}
	return listing, int64(len(all)), nil
}

// GetForUser 用户可见的单个物业汇总
func (s *PropertyService) GetForUser(userID, propertyID uint, month *time.Time) (*PropertySummary, error) {
	var property models.Property
	err := s.userProperties(userID).Where("id = ?", propertyID).First(&property).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPropertyNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.summarize(userID, &property, month)
}

// VisibleToUser 物业是否对用户可见
func (s *PropertyService) VisibleToUser(userID, propertyID uint) (bool, error) {
	var count int64
	err := s.userProperties(userID).Where("id = ?", propertyID).Count(&count).Error
	return count > 0, err
}

func (s *PropertyService) summarize(userID uint, property *models.Property, month *time.Time) (*PropertySummary, error) {
	var leases []models.Lease
	if err := s.db.Model(&models.Lease{}).
		Joins("JOIN user_leases ON user_leases.lease_id = leases.id").
		Where("user_leases.user_id = ? AND leases.property_id = ?", userID, property.ID).
		Preload("Units").
		Find(&leases).Error; err != nil {
		return nil, err
	}

	charges := make(map[uint][]models.Charge, len(leases))
	if len(leases) > 0 {
		ids := make([]uint, 0, len(leases))
		for _, l := range leases {
			ids = append(ids, l.ID)
		}
		var rows []models.Charge
		if err := s.db.Where("lease_id IN ?", ids).Order("period_start ASC").Find(&rows).Error; err != nil {
			logger.GetLogger().WithError(err).Errorf("Failed to load rents for property %d", property.ID)
			return nil, err
		}
		for _, c := range rows {
			charges[c.LeaseID] = append(charges[c.LeaseID], c)
		}
	}

	return SummarizeProperty(property, leases, charges, month), nil
}
