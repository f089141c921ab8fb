package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"rentdesk/internal/models"
	"rentdesk/pkg/logger"
	"rentdesk/pkg/metrics"
	"rentdesk/pkg/period"

	"gorm.io/gorm"
)

// MonthClaim 付款请求中的单月认领
type MonthClaim struct {
	Month         string `json:"month"`
	PaymentAmount int64  `json:"payment_amount"`
}

// PaymentRequest 一次付款
type PaymentRequest struct {
	LeaseID         uint
	TotalAmountPaid int64
	Months          []MonthClaim
	PaymentDate     *time.Time
	ReceiptImage    string
	PaymentMethod   string
}

// Validate 校验请求格式，任何一项失败整个请求被拒绝
func (r *PaymentRequest) Validate() error {
	if !models.ValidPaymentMethod(r.PaymentMethod) {
		return validationf("payment_method", "Payment method must be either 'cash' or 'online'")
	}
	if len(r.Months) == 0 {
		return validationf("months", "The months parameter is invalid. It should be an array.")
	}

	seen := make(map[string]bool, len(r.Months))
	for _, m := range r.Months {
		if m.PaymentAmount <= 0 || !period.ValidLabel(m.Month) {
			return validationf("months", "Invalid month format in request. Each month object must have 'month' in format 'Mar-2025' and 'payment_amount' must be a positive number.")
		}
		if _, err := period.ParseLabel(m.Month); err != nil {
			return validationf("months", "Invalid month %s in request", m.Month)
		}
		if seen[m.Month] {
			return validationf("months", "Month %s appears more than once in request", m.Month)
		}
		seen[m.Month] = true
	}

	// 累加前与剩余额度比较，claimed 始终不超过 total，不会溢出
	var claimed int64
	for _, m := range r.Months {
		if r.TotalAmountPaid < 0 || m.PaymentAmount > r.TotalAmountPaid-claimed {
			return validationf("total_amount_paid", "The sum of payment amount (%d) exceeds total_amount_paid (%d).", r.ClaimedTotal(), r.TotalAmountPaid)
		}
		claimed += m.PaymentAmount
	}
	return nil
}

// ClaimedTotal 认领金额合计，溢出时封顶为 math.MaxInt64
func (r *PaymentRequest) ClaimedTotal() int64 {
	var total int64
	for _, m := range r.Months {
		if m.PaymentAmount > 0 && total > math.MaxInt64-m.PaymentAmount {
			return math.MaxInt64
		}
		total += m.PaymentAmount
	}
	return total
}

// UpdatedRent 单月账单变更记录
type UpdatedRent struct {
	Status        string             `json:"status"`
	PendingAmount int64              `json:"pending_amount"`
	RentID        uint               `json:"rent_id"`
	Before        models.ChargeState `json:"before"`
	After         models.ChargeState `json:"after"`
}

// PaymentResult 付款结果
type PaymentResult struct {
	Success                    bool                   `json:"success"`
	Message                    string                 `json:"message"`
	PaidMonths                 []string               `json:"paid_months"`
	PendingMonths              []string               `json:"pending_months"`
	PendingRent                int64                  `json:"pending_rent"`
	ExcessAmountAddedToBalance int64                  `json:"excess_amount_added_to_balance"`
	UpdatedRents               map[string]UpdatedRent `json:"updated_rents"`

	// 以下字段不返回给调用方
	LeaseID    uint  `json:"-"`
	TenantID   uint  `json:"-"`
	PaidAmount int64 `json:"-"`
}

func newPaymentResult(leaseID uint) *PaymentResult {
	return &PaymentResult{
		LeaseID:       leaseID,
		PaidMonths:    []string{},
		PendingMonths: []string{},
		UpdatedRents:  map[string]UpdatedRent{},
	}
}

func (r *PaymentResult) composeMessage() {
	var parts []string
	if len(r.PaidMonths) > 0 {
		parts = append(parts, fmt.Sprintf("Rent paid for %s.", strings.Join(r.PaidMonths, ", ")))
	}
	if len(r.PendingMonths) > 0 {
		parts = append(parts, fmt.Sprintf("Partial payment recorded for %s.", strings.Join(r.PendingMonths, ", ")))
	}
	if r.ExcessAmountAddedToBalance > 0 {
		parts = append(parts, fmt.Sprintf("%d added to tenant balance.", r.ExcessAmountAddedToBalance))
	}
	r.Message = strings.Join(parts, " ")
}

// smsFailureNote 短信发送失败时追加到结果消息
const smsFailureNote = " Payment confirmation SMS could not be sent."

// RentPaymentService 付款分配
type RentPaymentService struct {
	db        *gorm.DB
	generator *RentGenerator
	notifier  Notifier
	clock     Clock
}

// NewRentPaymentService 创建付款服务，notifier 为 nil 时不发送通知
func NewRentPaymentService(db *gorm.DB, generator *RentGenerator, notifier Notifier, clock Clock) *RentPaymentService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &RentPaymentService{
		db:        db,
		generator: generator,
		notifier:  notifier,
		clock:     clock,
	}
}

// ProcessPayment 处理一次付款
//
// 返回的错误类型：ErrLeaseNotFound / ErrLeaseDeactivated、*ValidationError（未开启事务），
// *PaymentFailedError（事务已回滚）。通知失败不算错误，只影响结果消息。
func (s *RentPaymentService) ProcessPayment(ctx context.Context, req *PaymentRequest) (*PaymentResult, error) {
	log := logger.GetLogger()

	lease, err := NewChargeStore(s.db).FindLease(req.LeaseID, false)
	if err != nil {
		if !errors.Is(err, ErrLeaseNotFound) {
			log.WithError(err).Errorf("Failed to load lease %d for payment", req.LeaseID)
		}
		metrics.PaymentsCounter.WithLabelValues("rejected").Inc()
		return nil, err
	}
	if lease.IsDeactivated() {
		metrics.PaymentsCounter.WithLabelValues("rejected").Inc()
		return nil, ErrLeaseDeactivated
	}
	if err := req.Validate(); err != nil {
		metrics.PaymentsCounter.WithLabelValues("rejected").Inc()
		return nil, err
	}

	paymentDate := today(s.clock)
	if req.PaymentDate != nil && !req.PaymentDate.IsZero() {
		paymentDate = period.Date(*req.PaymentDate)
	}

	result := newPaymentResult(lease.ID)
	var phone string

	err = NewChargeStore(s.db).Transaction(func(store *ChargeStore) error {
		// 锁顺序与月度滚动一致：租约 -> 租客 -> 账单
		locked, err := store.FindLease(lease.ID, true)
		if err != nil {
			return err
		}
		if locked.IsDeactivated() {
			return ErrLeaseDeactivated
		}
		tenant := locked.Tenant
		result.TenantID = tenant.ID
		phone = tenant.Phone

		for _, claim := range req.Months {
			if err := s.applyClaim(store, locked.ID, claim, req.PaymentMethod, paymentDate, result); err != nil {
				return err
			}
		}

		tenantChanged := false
		if remaining := req.TotalAmountPaid - req.ClaimedTotal(); remaining > 0 {
			if err := tenant.AddCredit(remaining); err != nil {
				return err
			}
			result.ExcessAmountAddedToBalance = remaining
			tenantChanged = true
		}
		if req.ReceiptImage != "" {
			tenant.AppendReceipt(req.ReceiptImage)
			tenantChanged = true
		}
		if tenantChanged {
			if err := store.SaveTenant(tenant); err != nil {
				return fmt.Errorf("update tenant: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.failure(req.LeaseID, err)
	}

	result.Success = true
	result.composeMessage()

	metrics.PaymentsCounter.WithLabelValues("success").Inc()
	metrics.PaymentAmountCounter.WithLabelValues("applied").Add(float64(req.ClaimedTotal()))
	metrics.PaymentAmountCounter.WithLabelValues("excess").Add(float64(result.ExcessAmountAddedToBalance))

	if len(result.PaidMonths) > 0 {
		if err := s.notifier.SendPaymentConfirmation(ctx, phone, result.PaidAmount); err != nil {
			result.Message += smsFailureNote
		}
	}

	log.Infof("Payment for lease %d applied: paid=%v pending=%v excess=%d",
		lease.ID, result.PaidMonths, result.PendingMonths, result.ExcessAmountAddedToBalance)
	return result, nil
}

// applyClaim 对单月账单入账
func (s *RentPaymentService) applyClaim(store *ChargeStore, leaseID uint, claim MonthClaim, method string, paymentDate time.Time, result *PaymentResult) error {
	month, err := period.ParseLabel(claim.Month)
	if err != nil {
		return validationf("months", "Invalid month %s in request", claim.Month)
	}

	charge, err := store.FindChargeForMonth(leaseID, month, true)
	if err != nil {
		return err
	}
	if charge == nil {
		return &ChargeNotFoundError{Month: claim.Month}
	}
	if charge.IsPaid() {
		return &ChargeAlreadyPaidError{Month: claim.Month}
	}

	before := charge.Snapshot()

	status := models.ChargeStatusPaid
	if claim.PaymentAmount < charge.Amount {
		status = models.ChargeStatusPending
	}
	amountPaid := claim.PaymentAmount
	charge.Status = status
	charge.AmountPaid = &amountPaid
	charge.PaymentMethod = method
	charge.PaymentDate = paymentDate
	if err := store.SaveCharge(charge); err != nil {
		return fmt.Errorf("update rent for %s: %w", claim.Month, err)
	}

	pending := charge.Amount - claim.PaymentAmount
	if pending < 0 {
		pending = 0
	}
	result.PendingRent += pending
	result.UpdatedRents[claim.Month] = UpdatedRent{
		Status:        status,
		PendingAmount: pending,
		RentID:        charge.ID,
		Before:        before,
		After:         charge.Snapshot(),
	}

	if status == models.ChargeStatusPaid {
		result.PaidMonths = append(result.PaidMonths, claim.Month)
		result.PaidAmount += claim.PaymentAmount
		if _, err := s.generator.ScheduleNext(store.DB(), charge); err != nil {
			return err
		}
	} else {
		result.PendingMonths = append(result.PendingMonths, claim.Month)
	}
	return nil
}

// failure 将事务错误转换为对外错误，非预期错误只记录日志不透出细节
func (s *RentPaymentService) failure(leaseID uint, err error) error {
	if errors.Is(err, ErrLeaseNotFound) || errors.Is(err, ErrLeaseDeactivated) {
		metrics.PaymentsCounter.WithLabelValues("rejected").Inc()
		return err
	}

	metrics.PaymentsCounter.WithLabelValues("failed").Inc()
	if userFacing(err) {
		logger.GetLogger().Warnf("Payment for lease %d rolled back: %v", leaseID, err)
		return &PaymentFailedError{Message: "Payment processing failed: " + err.Error(), Err: err}
	}

	logger.GetLogger().WithError(err).Errorf("Payment for lease %d failed unexpectedly", leaseID)
	return &PaymentFailedError{Message: "Payment processing failed: an unexpected error occurred", Err: err}
}
