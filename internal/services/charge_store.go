package services

import (
	"errors"
	"time"

	"rentdesk/internal/models"
	"rentdesk/pkg/period"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChargeStore 账单、租约、租客的持久化网关
// 通过 Transaction 获得绑定到同一事务的实例
type ChargeStore struct {
	db *gorm.DB
}

// NewChargeStore 创建持久化网关
func NewChargeStore(db *gorm.DB) *ChargeStore {
	return &ChargeStore{db: db}
}

// Transaction 在一个事务内执行，fn 返回错误时整体回滚
func (s *ChargeStore) Transaction(fn func(store *ChargeStore) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&ChargeStore{db: tx})
	})
}

// DB 底层连接
func (s *ChargeStore) DB() *gorm.DB {
	return s.db
}

func (s *ChargeStore) locking(lock bool) *gorm.DB {
	if lock {
		return s.db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return s.db
}

// FindChargeForMonth 查找租约在某月的账单，不存在返回 nil, nil
// lock 为 true 时加行锁（SELECT ... FOR UPDATE），锁持有到事务结束
func (s *ChargeStore) FindChargeForMonth(leaseID uint, month time.Time, lock bool) (*models.Charge, error) {
	var charge models.Charge
	err := s.locking(lock).
		Where("lease_id = ? AND period_start = ?", leaseID, period.MonthStart(month)).
		First(&charge).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &charge, nil
}

// FindChargeByID 按ID查找账单
func (s *ChargeStore) FindChargeByID(id uint, lock bool) (*models.Charge, error) {
	var charge models.Charge
	err := s.locking(lock).First(&charge, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrChargeMissing
	}
	return &charge, err
}

// CreateCharge 创建账单；同一租约同一月份已存在时不插入并返回 false
func (s *ChargeStore) CreateCharge(charge *models.Charge) (bool, error) {
	result := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(charge)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// SaveCharge 保存账单
func (s *ChargeStore) SaveCharge(charge *models.Charge) error {
	return s.db.Omit(clause.Associations).Save(charge).Error
}

// ListCharges 租约的全部账单，按账期升序
func (s *ChargeStore) ListCharges(leaseID uint) ([]models.Charge, error) {
	var charges []models.Charge
	err := s.db.Where("lease_id = ?", leaseID).
		Order("period_start ASC, id ASC").
		Find(&charges).Error
	return charges, err
}

// SumUnpaidBefore 账期早于 before 且状态为 pending/overdue 的账单金额合计
func (s *ChargeStore) SumUnpaidBefore(leaseID uint, before time.Time) (int64, error) {
	var total int64
	err := s.db.Model(&models.Charge{}).
		Where("lease_id = ? AND period_start < ? AND status IN ?", leaseID, before,
			[]string{models.ChargeStatusPending, models.ChargeStatusOverdue}).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}

// FindLease 按ID查找租约（预加载租客）
func (s *ChargeStore) FindLease(id uint, lock bool) (*models.Lease, error) {
	var lease models.Lease
	err := s.locking(lock).First(&lease, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLeaseNotFound
	}
	if err != nil {
		return nil, err
	}

	tenant, err := s.FindTenant(lease.TenantID, lock)
	if err != nil {
		return nil, err
	}
	lease.Tenant = tenant
	return &lease, nil
}

// SaveLease 保存租约（不级联关联）
func (s *ChargeStore) SaveLease(lease *models.Lease) error {
	return s.db.Omit(clause.Associations).Save(lease).Error
}

// FindTenant 按ID查找租客
func (s *ChargeStore) FindTenant(id uint, lock bool) (*models.Tenant, error) {
	var tenant models.Tenant
	err := s.locking(lock).First(&tenant, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTenantNotFound
	}
	return &tenant, err
}

// SaveTenant 保存租客余额、预付款与凭证
func (s *ChargeStore) SaveTenant(tenant *models.Tenant) error {
	return s.db.Omit(clause.Associations).Save(tenant).Error
}
