package services

import (
	"context"
	"fmt"
	"time"

	"rentdesk/internal/models"
	"rentdesk/pkg/logger"
	"rentdesk/pkg/metrics"
	"rentdesk/pkg/period"

	"gorm.io/gorm"
)

// DefaultDueDays 账单到期天数
const DefaultDueDays = 10

// RentGenerator 账单生成：首期折算、月度滚动、付清后生成下期
type RentGenerator struct {
	db      *gorm.DB
	clock   Clock
	dueDays int
}

// NewRentGenerator 创建账单生成器
func NewRentGenerator(db *gorm.DB, clock Clock, dueDays int) *RentGenerator {
	if dueDays <= 0 {
		dueDays = DefaultDueDays
	}
	return &RentGenerator{db: db, clock: clock, dueDays: dueDays}
}

// RollForwardOutcome 单个租约的滚动结果
type RollForwardOutcome string

const (
	RollForwardCreated  RollForwardOutcome = "created"  // 生成了本月账单
	RollForwardCovered  RollForwardOutcome = "covered"  // 余额全额抵扣，未生成账单
	RollForwardExisting RollForwardOutcome = "existing" // 本月账单已存在
	RollForwardSkipped  RollForwardOutcome = "skipped"  // 租约已停用
	RollForwardFailed   RollForwardOutcome = "failed"
)

// RollForwardSummary 月度滚动批次汇总
type RollForwardSummary struct {
	Month     string          `json:"month"`
	Processed int             `json:"processed"`
	Created   int             `json:"created"`
	Covered   int             `json:"covered"`
	Existing  int             `json:"existing"`
	Skipped   int             `json:"skipped"`
	Failed    int             `json:"failed"`
	FailedIDs []uint          `json:"failed_lease_ids,omitempty"`
	Errors    map[uint]string `json:"errors,omitempty"`
}

func (g *RentGenerator) newCharge(leaseID uint, paymentDate time.Time, amount int64) *models.Charge {
	return &models.Charge{
		LeaseID:     leaseID,
		PeriodStart: period.MonthStart(paymentDate),
		Amount:      amount,
		PaymentDate: paymentDate,
		DueDate:     paymentDate.AddDate(0, 0, g.dueDays),
		Status:      models.ChargeStatusPending,
		Name:        period.ChargeName(paymentDate),
	}
}

// InitialCharge 租约创建时生成首期折算账单，tx 为创建租约的事务
// 租约创建即停用时不生成，返回 nil, nil
func (g *RentGenerator) InitialCharge(tx *gorm.DB, lease *models.Lease, effectiveStart time.Time) (*models.Charge, error) {
	if lease.IsDeactivated() {
		return nil, nil
	}
	if lease.StartDate.IsZero() {
		return nil, validationf("start_date", "lease %d has no valid start_date", lease.ID)
	}

	start := period.Date(effectiveStart)
	charge := g.newCharge(lease.ID, start, period.ProRate(lease.RentAmount, start))

	created, err := NewChargeStore(tx).CreateCharge(charge)
	if err != nil {
		return nil, fmt.Errorf("create initial rent: %w", err)
	}
	if !created {
		return nil, fmt.Errorf("rent for %s already exists for lease %d", period.Label(start), lease.ID)
	}

	metrics.ChargesCreatedCounter.WithLabelValues("initial").Inc()
	return charge, nil
}

// ScheduleNext 账单付清后生成下个月账单，金额沿用刚付清的账单
// 下个月账单已存在时不做任何操作
func (g *RentGenerator) ScheduleNext(tx *gorm.DB, paid *models.Charge) (*models.Charge, error) {
	store := NewChargeStore(tx)
	next := period.NextMonthStart(paid.PeriodStart)

	existing, err := store.FindChargeForMonth(paid.LeaseID, next, false)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, nil
	}

	charge := g.newCharge(paid.LeaseID, next, paid.Amount)
	created, err := store.CreateCharge(charge)
	if err != nil {
		return nil, fmt.Errorf("schedule next rent: %w", err)
	}
	if !created {
		return nil, nil
	}

	metrics.ChargesCreatedCounter.WithLabelValues("schedule_next").Inc()
	return charge, nil
}

// applyTenantBalance 用租客余额抵扣标准租金，返回应收金额
func applyTenantBalance(rentAmount, balance int64) int64 {
	switch {
	case balance <= 0:
		return rentAmount
	case balance >= rentAmount:
		return 0
	default:
		return rentAmount - balance
	}
}

// untouched 待付且从未收过款的账单
func untouched(c *models.Charge) bool {
	return c.Status == models.ChargeStatusPending && c.AmountPaid == nil
}

func debitTenant(store *ChargeStore, tenant *models.Tenant, used int64) error {
	if used <= 0 {
		return nil
	}
	if err := tenant.ConsumeCredit(used); err != nil {
		return err
	}
	if err := store.SaveTenant(tenant); err != nil {
		return fmt.Errorf("debit tenant balance: %w", err)
	}
	return nil
}

// creditExisting 用余额抵扣已存在的本月账单
// 全额抵扣时账单直接结清，否则账单金额减去抵扣部分
func (g *RentGenerator) creditExisting(store *ChargeStore, tenant *models.Tenant, charge *models.Charge) error {
	due := applyTenantBalance(charge.Amount, tenant.Balance)
	if err := debitTenant(store, tenant, charge.Amount-due); err != nil {
		return err
	}

	if due == 0 {
		paid := charge.Amount
		charge.AmountPaid = &paid
		charge.Status = models.ChargeStatusPaid
		charge.PaymentDate = today(g.clock)
	} else {
		charge.Amount = due
	}
	if err := store.SaveCharge(charge); err != nil {
		return fmt.Errorf("apply balance to rent: %w", err)
	}
	return nil
}

// RollForward 对单个租约执行当月滚动
func (g *RentGenerator) RollForward(leaseID uint) (RollForwardOutcome, error) {
	return g.RollForwardMonth(leaseID, today(g.clock))
}

// RollForwardMonth 对单个租约执行 month 所在月份的滚动，整个过程在一个事务内
func (g *RentGenerator) RollForwardMonth(leaseID uint, month time.Time) (RollForwardOutcome, error) {
	current := period.MonthStart(month)
	outcome := RollForwardFailed

	err := NewChargeStore(g.db).Transaction(func(store *ChargeStore) error {
		lease, err := store.FindLease(leaseID, true)
		if err != nil {
			return err
		}
		if lease.IsDeactivated() {
			outcome = RollForwardSkipped
			return nil
		}

		// 1. 上月未付账单转为逾期
		previous, err := store.FindChargeForMonth(lease.ID, period.PrevMonthStart(current), true)
		if err != nil {
			return err
		}
		if previous != nil && previous.Status == models.ChargeStatusPending {
			previous.Status = models.ChargeStatusOverdue
			if err := store.SaveCharge(previous); err != nil {
				return fmt.Errorf("mark previous rent overdue: %w", err)
			}
		}

		existing, err := store.FindChargeForMonth(lease.ID, current, true)
		if err != nil {
			return err
		}

		// 2. 余额抵扣：新账单按抵扣后金额生成，已有账单仅在未收过款时抵扣
		rentAmount := lease.RentAmount
		switch {
		case existing == nil:
			rentAmount = applyTenantBalance(lease.RentAmount, lease.Tenant.Balance)
			if err := debitTenant(store, lease.Tenant, lease.RentAmount-rentAmount); err != nil {
				return err
			}
		case untouched(existing) && lease.Tenant.Balance > 0:
			if err := g.creditExisting(store, lease.Tenant, existing); err != nil {
				return err
			}
		}

		// 3. 累计往期未付金额
		unpaid, err := store.SumUnpaidBefore(lease.ID, current)
		if err != nil {
			return err
		}
		if unpaid > 0 {
			lease.PendingRent += unpaid
			if err := store.SaveLease(lease); err != nil {
				return fmt.Errorf("update pending rent: %w", err)
			}
		}

		// 4. 生成本月账单
		switch {
		case existing != nil:
			outcome = RollForwardExisting
		case rentAmount == 0:
			outcome = RollForwardCovered
			logger.GetLogger().Infof("Skipped creating rent for lease %d as amount is 0 (covered by tenant balance)", lease.ID)
		default:
			created, err := store.CreateCharge(g.newCharge(lease.ID, current, rentAmount))
			if err != nil {
				return fmt.Errorf("create rent: %w", err)
			}
			if !created {
				return fmt.Errorf("rent for %s was created concurrently", period.Label(current))
			}
			metrics.ChargesCreatedCounter.WithLabelValues("roll_forward").Inc()
			outcome = RollForwardCreated
		}
		return nil
	})
	if err != nil {
		return RollForwardFailed, err
	}
	return outcome, nil
}

// RollForwardAll 对全部未停用租约执行当月滚动
func (g *RentGenerator) RollForwardAll(ctx context.Context) (*RollForwardSummary, error) {
	return g.RollForwardAllMonth(ctx, today(g.clock))
}

// RollForwardAllMonth 对全部未停用租约执行 month 所在月份的滚动
// 单个租约失败只记录日志并跳过，不影响其它租约
func (g *RentGenerator) RollForwardAllMonth(ctx context.Context, month time.Time) (*RollForwardSummary, error) {
	log := logger.GetLogger()
	summary := &RollForwardSummary{
		Month:  period.Label(month),
		Errors: map[uint]string{},
	}

	var leaseIDs []uint
	if err := g.db.Model(&models.Lease{}).
		Where("status <> ?", models.LeaseStatusDeactivated).
		Order("id ASC").
		Pluck("id", &leaseIDs).Error; err != nil {
		return nil, fmt.Errorf("list leases: %w", err)
	}

	log.Infof("Rent roll-forward for %s started, %d leases", summary.Month, len(leaseIDs))

	for _, id := range leaseIDs {
		if err := ctx.Err(); err != nil {
			log.Warnf("Rent roll-forward interrupted after %d leases: %v", summary.Processed, err)
			return summary, err
		}

		outcome, err := g.RollForwardMonth(id, month)
		summary.Processed++
		metrics.RollForwardLeasesCounter.WithLabelValues(string(outcome)).Inc()

		switch outcome {
		case RollForwardCreated:
			summary.Created++
		case RollForwardCovered:
			summary.Covered++
		case RollForwardExisting:
			summary.Existing++
		case RollForwardSkipped:
			summary.Skipped++
		default:
			summary.Failed++
			summary.FailedIDs = append(summary.FailedIDs, id)
			summary.Errors[id] = err.Error()
			log.WithError(err).WithField("lease_id", id).Error("Rent roll-forward failed for lease")
		}
	}

	log.Infof("Rent roll-forward for %s finished: created=%d covered=%d existing=%d skipped=%d failed=%d",
		summary.Month, summary.Created, summary.Covered, summary.Existing, summary.Skipped, summary.Failed)
	return summary, nil
}
