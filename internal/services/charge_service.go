package services

import (
	"fmt"

	"rentdesk/internal/models"
	"rentdesk/pkg/logger"
	"rentdesk/pkg/period"

	"gorm.io/gorm"
)

// ChargeService 管理端账单操作
type ChargeService struct {
	db        *gorm.DB
	generator *RentGenerator
	clock     Clock
}

// NewChargeService 创建账单服务
func NewChargeService(db *gorm.DB, generator *RentGenerator, clock Clock) *ChargeService {
	return &ChargeService{db: db, generator: generator, clock: clock}
}

// MarkPaidResult 标记已付结果
type MarkPaidResult struct {
	Charge      *models.Charge `json:"rent"`
	AdvanceUsed int64          `json:"advance_used"`
	NextCharge  *models.Charge `json:"next_rent,omitempty"`
}

// MarkPaid 将账单标记为全额已付，优先抵扣租客预付款，随后生成下月账单
func (s *ChargeService) MarkPaid(chargeID uint, method string) (*MarkPaidResult, error) {
	if method == "" {
		method = models.PaymentMethodCash
	}
	if !models.ValidPaymentMethod(method) {
		return nil, validationf("payment_method", "Payment method must be either 'cash' or 'online'")
	}

	result := &MarkPaidResult{}
	err := NewChargeStore(s.db).Transaction(func(store *ChargeStore) error {
		charge, err := store.FindChargeByID(chargeID, false)
		if err != nil {
			return err
		}
		lease, err := store.FindLease(charge.LeaseID, true)
		if err != nil {
			return err
		}
		if lease.IsDeactivated() {
			return ErrLeaseDeactivated
		}
		if charge, err = store.FindChargeByID(chargeID, true); err != nil {
			return err
		}
		if charge.IsPaid() {
			return &ChargeAlreadyPaidError{Month: period.Label(charge.PeriodStart)}
		}

		tenant := lease.Tenant
		if used := min(tenant.AdvanceCredit, charge.Amount); used > 0 {
			if err := tenant.DeductAdvance(used); err != nil {
				return err
			}
			if err := store.SaveTenant(tenant); err != nil {
				return fmt.Errorf("deduct advance: %w", err)
			}
			result.AdvanceUsed = used
		}

		amount := charge.Amount
		charge.Status = models.ChargeStatusPaid
		charge.AmountPaid = &amount
		charge.PaymentMethod = method
		charge.PaymentDate = today(s.clock)
		if err := store.SaveCharge(charge); err != nil {
			return fmt.Errorf("mark rent paid: %w", err)
		}
		result.Charge = charge

		next, err := s.generator.ScheduleNext(store.DB(), charge)
		if err != nil {
			return err
		}
		result.NextCharge = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.GetLogger().Infof("Rent %d marked as paid (advance used %d)", chargeID, result.AdvanceUsed)
	return result, nil
}

// AddAdvance 登记租客预付款
func (s *ChargeService) AddAdvance(tenantID uint, amount int64) (*models.Tenant, error) {
	var tenant *models.Tenant
	err := NewChargeStore(s.db).Transaction(func(store *ChargeStore) error {
		var err error
		if tenant, err = store.FindTenant(tenantID, true); err != nil {
			return err
		}
		if err := tenant.AddAdvancePayment(amount); err != nil {
			return err
		}
		return store.SaveTenant(tenant)
	})
	if err != nil {
		return nil, err
	}
	return tenant, nil
}

// ListForLease 租约的全部账单
func (s *ChargeService) ListForLease(leaseID uint) ([]models.Charge, error) {
	return NewChargeStore(s.db).ListCharges(leaseID)
}
