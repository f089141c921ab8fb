package services

import (
	"sort"
	"time"

	"rentdesk/internal/models"
	"rentdesk/pkg/period"

	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

// LedgerEntry 对账单的一行
type LedgerEntry struct {
	Date          string `json:"date"`
	Month         string `json:"month"`
	StandardRent  int64  `json:"standard_rent"`
	AdjustedTotal int64  `json:"adjusted_total"`
	AmountPaid    int64  `json:"amount_paid"`
	AmountPending int64  `json:"amount_pending"`
	TenantBalance int64  `json:"tenant_balance"`
	Status        string `json:"status"`
	Projected     bool   `json:"projected"`
}

// MonthlyHistoryEntry 按月补齐的账单历史
type MonthlyHistoryEntry struct {
	Month         string  `json:"month"`
	RentAmount    int64   `json:"rent_amount"`
	Status        string  `json:"status"`
	PaidDate      *string `json:"paid_date"`
	AmountPaid    int64   `json:"amount_paid"`
	PendingAmount int64   `json:"pending_amount"`
}

// sortedCharges 按账期升序复制一份，不修改入参
func sortedCharges(charges []models.Charge) []models.Charge {
	out := make([]models.Charge, len(charges))
	copy(out, charges)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PeriodStart.Equal(out[j].PeriodStart) {
			return out[i].ID < out[j].ID
		}
		return out[i].PeriodStart.Before(out[j].PeriodStart)
	})
	return out
}

func adjustedTotal(standard, carry int64) int64 {
	if standard-carry < 0 {
		return 0
	}
	return standard - carry
}

// BuildLedger 按账期顺序对账，逐月结转多付金额
//
// target 之后的账单不参与；最后一行早于 target 所在月份时追加一行预估（不落库）。
// 纯函数，相同输入得到相同输出。
func BuildLedger(lease *models.Lease, tenantBalance int64, charges []models.Charge, target time.Time) []LedgerEntry {
	targetMonth := period.MonthStart(target)
	entries := make([]LedgerEntry, 0, len(charges)+1)

	var carry int64
	var lastMonth time.Time
	for _, c := range sortedCharges(charges) {
		if c.PeriodStart.After(targetMonth) {
			break
		}

		adjusted := adjustedTotal(c.Amount, carry)
		var paid int64
		if c.IsPaid() {
			paid = c.PaidAmount()
		}

		var pending int64
		if paid < adjusted {
			pending = adjusted - paid
			carry = 0
		} else {
			carry = paid - adjusted
		}

		entries = append(entries, LedgerEntry{
			Date:          c.PaymentDate.Format(dateLayout),
			Month:         period.Label(c.PeriodStart),
			StandardRent:  c.Amount,
			AdjustedTotal: adjusted,
			AmountPaid:    paid,
			AmountPending: pending,
			TenantBalance: tenantBalance,
			Status:        c.Status,
		})
		lastMonth = c.PeriodStart
	}

	if len(entries) == 0 || lastMonth.Before(targetMonth) {
		adjusted := adjustedTotal(lease.RentAmount, carry)
		entries = append(entries, LedgerEntry{
			Date:          targetMonth.Format(dateLayout),
			Month:         period.Label(targetMonth),
			StandardRent:  lease.RentAmount,
			AdjustedTotal: adjusted,
			AmountPaid:    0,
			AmountPending: adjusted,
			TenantBalance: tenantBalance,
			Status:        models.ChargeStatusPending,
			Projected:     true,
		})
	}
	return entries
}

// BuildMonthlyHistory 从第一笔账单所在月份到 target 所在月份逐月列出
// 没有账单的月份按租约当前租金、pending 补齐
func BuildMonthlyHistory(lease *models.Lease, charges []models.Charge, target time.Time) []MonthlyHistoryEntry {
	sorted := sortedCharges(charges)
	if len(sorted) == 0 {
		return []MonthlyHistoryEntry{}
	}

	byMonth := make(map[string]models.Charge, len(sorted))
	for _, c := range sorted {
		byMonth[period.Label(c.PeriodStart)] = c
	}

	end := period.MonthStart(target)
	history := []MonthlyHistoryEntry{}
	for m := period.MonthStart(sorted[0].PeriodStart); !m.After(end); m = period.NextMonthStart(m) {
		label := period.Label(m)
		entry := MonthlyHistoryEntry{
			Month:         label,
			RentAmount:    lease.RentAmount,
			Status:        models.ChargeStatusPending,
			PendingAmount: lease.RentAmount,
		}
		if c, ok := byMonth[label]; ok {
			entry.RentAmount = c.Amount
			entry.AmountPaid = c.PaidAmount()
			if c.IsPaid() {
				entry.Status = models.ChargeStatusPaid
				paidDate := c.PaymentDate.Format(dateLayout)
				entry.PaidDate = &paidDate
				entry.PendingAmount = 0
			} else {
				entry.PendingAmount = c.Amount - entry.AmountPaid
			}
		}
		history = append(history, entry)
	}
	return history
}

// LedgerService 只读的账单视图
type LedgerService struct {
	db    *gorm.DB
	clock Clock
}

// NewLedgerService 创建对账服务
func NewLedgerService(db *gorm.DB, clock Clock) *LedgerService {
	return &LedgerService{db: db, clock: clock}
}

// LeaseLedger 某租约的对账结果
type LeaseLedger struct {
	LeaseID        uint                  `json:"lease_id"`
	TargetMonth    string                `json:"target_month"`
	TenantBalance  int64                 `json:"tenant_balance"`
	Ledger         []LedgerEntry         `json:"payment_history_ledger"`
	MonthlyHistory []MonthlyHistoryEntry `json:"rent_generation_history"`
}

// TargetMonth 解析月份参数，为空时取本月
func (s *LedgerService) TargetMonth(month string) (time.Time, error) {
	if month == "" {
		return period.MonthStart(today(s.clock)), nil
	}
	if !period.ValidLabel(month) {
		return time.Time{}, validationf("month", "Invalid month %s, expected format like Mar-2025", month)
	}
	t, err := period.ParseLabel(month)
	if err != nil {
		return time.Time{}, validationf("month", "Invalid month %s, expected format like Mar-2025", month)
	}
	return t, nil
}

// Ledger 生成租约的两种历史视图
func (s *LedgerService) Ledger(leaseID uint, month string) (*LeaseLedger, error) {
	target, err := s.TargetMonth(month)
	if err != nil {
		return nil, err
	}

	store := NewChargeStore(s.db)
	lease, err := store.FindLease(leaseID, false)
	if err != nil {
		return nil, err
	}
	charges, err := store.ListCharges(lease.ID)
	if err != nil {
		return nil, err
	}

	return &LeaseLedger{
		LeaseID:        lease.ID,
		TargetMonth:    period.Label(target),
		TenantBalance:  lease.Tenant.Balance,
		Ledger:         BuildLedger(lease, lease.Tenant.Balance, charges, target),
		MonthlyHistory: BuildMonthlyHistory(lease, charges, target),
	}, nil
}
