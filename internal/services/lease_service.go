package services

import (
	"errors"
	"fmt"
	"time"

	"rentdesk/internal/models"
	"rentdesk/pkg/logger"
	"rentdesk/pkg/pagination"
	"rentdesk/pkg/period"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TenantInput 新租客信息
type TenantInput struct {
	Name  string `json:"name" binding:"required,max=100"`
	Phone string `json:"phone" binding:"required"`
	CNIC  string `json:"cnic" binding:"required"`
	Email string `json:"email" binding:"omitempty,email"`
}

// CreateLeaseInput 创建租约参数
type CreateLeaseInput struct {
	TenantID           *uint           `json:"tenant_id"`
	Tenant             *TenantInput    `json:"tenant"`
	PropertyID         uint            `json:"property_id" binding:"required"`
	UnitIDs            []uint          `json:"unit_ids" binding:"required,min=1"`
	StartDate          time.Time       `json:"start_date" binding:"required"`
	EndDate            time.Time       `json:"end_date" binding:"required"`
	RentAmount         int64           `json:"rent_amount" binding:"required,gt=0"`
	SecurityDeposit    int64           `json:"security_deposit" binding:"required,gt=0"`
	AnnualIncrement    decimal.Decimal `json:"annual_increment"`
	IncrementFrequency string          `json:"increment_frequency" binding:"required,oneof=quarterly yearly"`
	IncrementType      string          `json:"increment_type" binding:"required,oneof=fixed percentage"`
	ViewerUserIDs      []uint          `json:"viewer_user_ids"`
}

// LeaseService 租约生命周期
type LeaseService struct {
	db        *gorm.DB
	generator *RentGenerator
	clock     Clock
}

// NewLeaseService 创建租约服务
func NewLeaseService(db *gorm.DB, generator *RentGenerator, clock Clock) *LeaseService {
	return &LeaseService{db: db, generator: generator, clock: clock}
}

// CreateLease 创建租约，同一事务内生成首期折算账单
func (s *LeaseService) CreateLease(input *CreateLeaseInput) (*models.Lease, error) {
	if input.TenantID == nil && input.Tenant == nil {
		return nil, validationf("tenant", "either tenant_id or tenant is required")
	}
	if len(input.UnitIDs) == 0 {
		return nil, validationf("unit_ids", "at least one unit is required")
	}

	var lease *models.Lease
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var property models.Property
		if err := tx.First(&property, input.PropertyID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPropertyNotFound
			}
			return err
		}

		units, err := s.lockUnits(tx, property.ID, input.UnitIDs)
		if err != nil {
			return err
		}
		for _, u := range units {
			if u.Status != models.UnitStatusAvailableForRent {
				return validationf("unit_ids", "unit %s is not available for rent", u.UnitNumber)
			}
		}

		tenant, err := s.resolveTenant(tx, input)
		if err != nil {
			return err
		}

		lease = &models.Lease{
			TenantID:           tenant.ID,
			PropertyID:         property.ID,
			StartDate:          period.Date(input.StartDate),
			EndDate:            period.Date(input.EndDate),
			RentAmount:         input.RentAmount,
			SecurityDeposit:    input.SecurityDeposit,
			AnnualIncrement:    input.AnnualIncrement,
			IncrementFrequency: input.IncrementFrequency,
			IncrementType:      input.IncrementType,
			Status:             models.LeaseStatusActive,
		}
		if err := tx.Omit(clause.Associations).Create(lease).Error; err != nil {
			return err
		}
		if err := tx.Model(lease).Omit("Units.*").Association("Units").Append(units); err != nil {
			return fmt.Errorf("attach units: %w", err)
		}
		if err := tx.Model(&models.Unit{}).Where("id IN ?", input.UnitIDs).
			UpdateColumn("status", models.UnitStatusOnRent).Error; err != nil {
			return err
		}

		for _, userID := range input.ViewerUserIDs {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&models.UserLease{UserID: userID, LeaseID: lease.ID}).Error; err != nil {
				return err
			}
		}

		if _, err := s.generator.InitialCharge(tx, lease, today(s.clock)); err != nil {
			return err
		}

		lease.Tenant = tenant
		lease.Units = units
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.GetLogger().Infof("Lease %d created for tenant %d on property %d", lease.ID, lease.TenantID, lease.PropertyID)
	return lease, nil
}

func (s *LeaseService) lockUnits(tx *gorm.DB, propertyID uint, unitIDs []uint) ([]models.Unit, error) {
	var units []models.Unit
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ? AND property_id = ?", unitIDs, propertyID).
		Order("id ASC").
		Find(&units).Error; err != nil {
		return nil, err
	}
	if len(units) != len(uniqueIDs(unitIDs)) {
		return nil, validationf("unit_ids", "all units must exist and belong to property %d", propertyID)
	}
	return units, nil
}

func (s *LeaseService) resolveTenant(tx *gorm.DB, input *CreateLeaseInput) (*models.Tenant, error) {
	if input.TenantID != nil {
		tenant, err := NewChargeStore(tx).FindTenant(*input.TenantID, true)
		if err != nil {
			return nil, err
		}
		if !tenant.Active {
			tenant.Active = true
			if err := tx.Model(tenant).UpdateColumn("active", true).Error; err != nil {
				return nil, err
			}
		}
		return tenant, nil
	}

	tenant := &models.Tenant{
		Name:   input.Tenant.Name,
		Phone:  input.Tenant.Phone,
		CNIC:   input.Tenant.CNIC,
		Email:  input.Tenant.Email,
		Active: true,
	}
	if err := tx.Create(tenant).Error; err != nil {
		return nil, err
	}
	return tenant, nil
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// UpdateLeaseUnits 调整租约单元：移除的单元恢复可租，新增的单元标记为在租
func (s *LeaseService) UpdateLeaseUnits(leaseID uint, unitIDs []uint) (*models.Lease, error) {
	if len(unitIDs) == 0 {
		return nil, validationf("unit_ids", "at least one unit is required")
	}

	var lease models.Lease
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Preload("Units").First(&lease, leaseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLeaseNotFound
			}
			return err
		}
		if lease.IsDeactivated() {
			return ErrLeaseDeactivated
		}

		units, err := s.lockUnits(tx, lease.PropertyID, unitIDs)
		if err != nil {
			return err
		}

		current := make(map[uint]bool, len(lease.Units))
		for _, u := range lease.Units {
			current[u.ID] = true
		}
		wanted := make(map[uint]bool, len(units))
		var added []uint
		for _, u := range units {
			wanted[u.ID] = true
			if current[u.ID] {
				continue
			}
			if u.Status != models.UnitStatusAvailableForRent {
				return validationf("unit_ids", "unit %s is not available for rent", u.UnitNumber)
			}
			added = append(added, u.ID)
		}
		var removed []uint
		for _, u := range lease.Units {
			if !wanted[u.ID] {
				removed = append(removed, u.ID)
			}
		}

		if err := tx.Model(&lease).Omit("Units.*").Association("Units").Replace(units); err != nil {
			return fmt.Errorf("replace units: %w", err)
		}
		if len(removed) > 0 {
			if err := tx.Model(&models.Unit{}).Where("id IN ?", removed).
				UpdateColumn("status", models.UnitStatusAvailableForRent).Error; err != nil {
				return err
			}
		}
		if len(added) > 0 {
			if err := tx.Model(&models.Unit{}).Where("id IN ?", added).
				UpdateColumn("status", models.UnitStatusOnRent).Error; err != nil {
				return err
			}
		}
		lease.Units = units
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &lease, nil
}

// DeactivateLease 停用租约：释放单元、停用租客、删除全部账单、移除用户可见关系
// 已停用的租约再次停用不做任何操作
func (s *LeaseService) DeactivateLease(leaseID uint) (*models.Lease, error) {
	var lease models.Lease
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Preload("Units").First(&lease, leaseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLeaseNotFound
			}
			return err
		}
		if lease.IsDeactivated() {
			return nil
		}

		unitIDs := make([]uint, 0, len(lease.Units))
		for _, u := range lease.Units {
			unitIDs = append(unitIDs, u.ID)
		}
		if len(unitIDs) > 0 {
			if err := tx.Model(&models.Unit{}).Where("id IN ?", unitIDs).
				UpdateColumn("status", models.UnitStatusAvailableForRent).Error; err != nil {
				return err
			}
		}
		if err := tx.Model(&models.Tenant{}).Where("id = ?", lease.TenantID).
			UpdateColumn("active", false).Error; err != nil {
			return err
		}
		if err := tx.Where("lease_id = ?", lease.ID).Delete(&models.Charge{}).Error; err != nil {
			return err
		}
		if err := tx.Where("lease_id = ?", lease.ID).Delete(&models.UserLease{}).Error; err != nil {
			return err
		}

		lease.Status = models.LeaseStatusDeactivated
		return tx.Model(&lease).UpdateColumn("status", models.LeaseStatusDeactivated).Error
	})
	if err != nil {
		return nil, err
	}

	logger.GetLogger().Infof("Lease %d deactivated", lease.ID)
	return &lease, nil
}

// GetLease 按ID获取租约（含租客、物业、单元）
func (s *LeaseService) GetLease(id uint) (*models.Lease, error) {
	var lease models.Lease
	err := s.db.Preload("Tenant").Preload("Property").Preload("Units").First(&lease, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLeaseNotFound
	}
	return &lease, err
}

// visibleLeases 用户在某物业下可查看的租约
func (s *LeaseService) visibleLeases(userID, propertyID uint) *gorm.DB {
	return s.db.Model(&models.Lease{}).
		Joins("JOIN user_leases ON user_leases.lease_id = leases.id").
		Where("user_leases.user_id = ? AND leases.property_id = ?", userID, propertyID)
}

// ListForUser 分页列出用户在某物业下可查看的租约
func (s *LeaseService) ListForUser(userID, propertyID uint, page *pagination.PageParams) ([]models.Lease, int64, error) {
	var total int64
	if err := s.visibleLeases(userID, propertyID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var leases []models.Lease
	err := s.visibleLeases(userID, propertyID).
		Preload("Tenant").Preload("Units", func(db *gorm.DB) *gorm.DB {
			return db.Order("units.id ASC")
		}).
		Order("leases.id ASC").
		Scopes(page.Scope()).
		Find(&leases).Error
	if err != nil {
		return nil, 0, err
	}
	return leases, total, nil
}

// GetForUser 用户可查看的单个租约
func (s *LeaseService) GetForUser(userID, propertyID, leaseID uint) (*models.Lease, error) {
	var lease models.Lease
	err := s.visibleLeases(userID, propertyID).
		Where("leases.id = ?", leaseID).
		Preload("Tenant").Preload("Units", func(db *gorm.DB) *gorm.DB {
			return db.Order("units.id ASC")
		}).
		First(&lease).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLeaseNotFound
	}
	return &lease, err
}
