package services

import (
	"time"

	"rentdesk/internal/models"
	"rentdesk/pkg/period"
)

// LeaseView 移动端租约视图
type LeaseView struct {
	LeaseID               uint                  `json:"lease_id"`
	PropertyID            uint                  `json:"property_id"`
	UnitNames             []string              `json:"unit_names"`
	UnitFloors            []string              `json:"unit_floors"`
	TenantName            string                `json:"tenant_name"`
	TenantNumber          string                `json:"tenant_number"`
	TenantBalance         int64                 `json:"tenant_balance"`
	RentAmount            int64                 `json:"rent_amount"`
	RentStatus            string                `json:"rent_status"`
	PendingAmount         int64                 `json:"pending_amount"`
	DueDate               *string               `json:"due_date"`
	NextRentAmount        int64                 `json:"next_rent_amount"`
	NextIncrementDate     *string               `json:"next_increment_date"`
	PaymentHistoryLedger  []LedgerEntry         `json:"payment_history_ledger"`
	RentGenerationHistory []MonthlyHistoryEntry `json:"rent_generation_history"`
}

// nextIncrement 租约开始后第一个晚于 now 的递增日期；不递增的租约返回 nil
func nextIncrement(lease *models.Lease, now time.Time) *string {
	if lease.StartDate.IsZero() || lease.IncrementedRent() == lease.RentAmount {
		return nil
	}
	next := lease.NextIncrementDate(lease.StartDate)
	for !next.After(now) {
		next = lease.NextIncrementDate(next)
	}
	date := next.Format(dateLayout)
	return &date
}

// relevantCharge 指定月份时取该月账单，否则取到期日最晚的账单
func relevantCharge(charges []models.Charge, month *time.Time) *models.Charge {
	var found *models.Charge
	for i := range charges {
		c := &charges[i]
		if month != nil {
			if period.SameMonth(c.PeriodStart, *month) {
				return c
			}
			continue
		}
		if found == nil || c.DueDate.After(found.DueDate) {
			found = c
		}
	}
	return found
}

// BuildLeaseView 组装租约视图；lease 需预加载 Tenant 与 Units
// month 为 nil 时以 now 所在月份为对账目标
func BuildLeaseView(lease *models.Lease, charges []models.Charge, month *time.Time, now time.Time) *LeaseView {
	view := &LeaseView{
		LeaseID:        lease.ID,
		PropertyID:     lease.PropertyID,
		UnitNames:      make([]string, 0, len(lease.Units)),
		UnitFloors:     make([]string, 0, len(lease.Units)),
		RentAmount:     lease.RentAmount,
		RentStatus:     models.ChargeStatusPending,
		PendingAmount:  lease.PendingRent,
		NextRentAmount: lease.IncrementedRent(),
	}
	view.NextIncrementDate = nextIncrement(lease, now)
	for _, u := range lease.Units {
		view.UnitNames = append(view.UnitNames, u.UnitNumber)
		view.UnitFloors = append(view.UnitFloors, u.Floor)
	}

	var balance int64
	if lease.Tenant != nil {
		view.TenantName = lease.Tenant.Name
		view.TenantNumber = lease.Tenant.Phone
		balance = lease.Tenant.Balance
	}
	view.TenantBalance = balance

	if c := relevantCharge(charges, month); c != nil {
		view.RentStatus = c.Status
		view.RentAmount = c.Amount
		if c.IsPaid() {
			view.RentAmount = 0
		}
		if c.Status == models.ChargeStatusPending {
			due := c.DueDate.Format(dateLayout)
			view.DueDate = &due
		}
	}

	target := period.MonthStart(now)
	if month != nil {
		target = *month
	}
	view.PaymentHistoryLedger = BuildLedger(lease, balance, charges, target)
	view.RentGenerationHistory = BuildMonthlyHistory(lease, charges, target)
	return view
}

// PropertySummary 移动端物业汇总
type PropertySummary struct {
	ID                 uint   `json:"id"`
	Name               string `json:"name"`
	Address            string `json:"address"`
	UnitsCount         int    `json:"units_count"`
	TotalRent          int64  `json:"total_rent"`
	TotalPendingRent   int64  `json:"total_pending_rent"`
	PaidLeasesCount    int    `json:"paid_leases_count"`
	PendingLeasesCount int    `json:"pending_leases_count"`
}

// leaseRentFigures 单个租约对物业汇总的贡献
func leaseRentFigures(lease *models.Lease, charges []models.Charge, month *time.Time) (rent, pending int64, paid, open bool) {
	c := relevantCharge(charges, month)
	if c == nil {
		return 0, 0, false, false
	}
	rent = c.Amount
	if c.IsPaid() {
		return rent, 0, true, false
	}

	switch {
	case month != nil:
		pending = c.Amount
	case lease.PendingRent > 0:
		pending = lease.PendingRent
	case c.Status == models.ChargeStatusPending:
		pending = c.Amount
	}
	return rent, pending, false, true
}

// SummarizeProperty 按用户可见的租约汇总物业的租金情况
func SummarizeProperty(property *models.Property, leases []models.Lease, charges map[uint][]models.Charge, month *time.Time) *PropertySummary {
	summary := &PropertySummary{
		ID:      property.ID,
		Name:    property.Name,
		Address: property.Address,
	}

	units := map[uint]bool{}
	for i := range leases {
		lease := &leases[i]
		for _, u := range lease.Units {
			units[u.ID] = true
		}
		rent, pending, paid, open := leaseRentFigures(lease, charges[lease.ID], month)
		summary.TotalRent += rent
		summary.TotalPendingRent += pending
		if paid {
			summary.PaidLeasesCount++
		}
		if open {
			summary.PendingLeasesCount++
		}
	}
	summary.UnitsCount = len(units)
	return summary
}
