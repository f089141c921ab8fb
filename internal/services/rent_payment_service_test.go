package services

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"rentdesk/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeNotifier struct {
	err    error
	calls  int
	phone  string
	amount int64
}

func (n *fakeNotifier) SendPaymentConfirmation(_ context.Context, phone string, amount int64) error {
	n.calls++
	n.phone = phone
	n.amount = amount
	return n.err
}

func newPaymentService(db *gorm.DB, clock Clock, notifier Notifier) *RentPaymentService {
	return NewRentPaymentService(db, NewRentGenerator(db, clock, 0), notifier, clock)
}

func TestPaymentRequest_Validate(t *testing.T) {
	valid := func() *PaymentRequest {
		return &PaymentRequest{
			LeaseID:         1,
			TotalAmountPaid: 5000,
			Months:          []MonthClaim{{Month: "Mar-2025", PaymentAmount: 3000}},
			PaymentMethod:   models.PaymentMethodCash,
		}
	}

	tests := []struct {
		name   string
		mutate func(r *PaymentRequest)
		field  string
	}{
		{"ok", func(r *PaymentRequest) {}, ""},
		{"bad method", func(r *PaymentRequest) { r.PaymentMethod = "cheque" }, "payment_method"},
		{"missing method", func(r *PaymentRequest) { r.PaymentMethod = "" }, "payment_method"},
		{"empty months", func(r *PaymentRequest) { r.Months = nil }, "months"},
		{"full month name", func(r *PaymentRequest) { r.Months[0].Month = "March-2025" }, "months"},
		{"lowercase month", func(r *PaymentRequest) { r.Months[0].Month = "mar-2025" }, "months"},
		{"unknown abbreviation", func(r *PaymentRequest) { r.Months[0].Month = "Mrz-2025" }, "months"},
		{"missing amount", func(r *PaymentRequest) { r.Months[0].PaymentAmount = 0 }, "months"},
		{"negative amount", func(r *PaymentRequest) { r.Months[0].PaymentAmount = -5 }, "months"},
		{"duplicate month", func(r *PaymentRequest) {
			r.Months = append(r.Months, MonthClaim{Month: "Mar-2025", PaymentAmount: 100})
		}, "months"},
		{"sum exceeds total", func(r *PaymentRequest) { r.TotalAmountPaid = 2000 }, "total_amount_paid"},
		{"claims overflow int64", func(r *PaymentRequest) {
			r.TotalAmountPaid = 1
			r.Months = []MonthClaim{
				{Month: "Mar-2025", PaymentAmount: math.MaxInt64},
				{Month: "Apr-2025", PaymentAmount: math.MaxInt64},
			}
		}, "total_amount_paid"},
		{"negative total", func(r *PaymentRequest) { r.TotalAmountPaid = -1 }, "total_amount_paid"},
		{"claims equal total", func(r *PaymentRequest) {
			r.Months = append(r.Months, MonthClaim{Month: "Apr-2025", PaymentAmount: 2000})
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(req)
			err := req.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestProcessPayment_ExcessGoesToBalance(t *testing.T) {
	db := setupTestDB(t)
	f := seedLease(t, db, 3000, 0)
	mar := seedCharge(t, db, f.Lease.ID, day(2025, time.March, 1), 3000, models.ChargeStatusPending)
	notifier := &fakeNotifier{}
	svc := newPaymentService(db, clockAt(2025, time.March, 8), notifier)

	result, err := svc.ProcessPayment(context.Background(), &PaymentRequest{
		LeaseID:         f.Lease.ID,
		TotalAmountPaid: 5000,
		Months:          []MonthClaim{{Month: "Mar-2025", PaymentAmount: 3000}},
		PaymentMethod:   models.PaymentMethodCash,
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, []string{"Mar-2025"}, result.PaidMonths)
	assert.Empty(t, result.PendingMonths)
	assert.Equal(t, int64(2000), result.ExcessAmountAddedToBalance)
	assert.Equal(t, int64(0), result.PendingRent)
	assert.Equal(t, "Rent paid for Mar-2025. 2000 added to tenant balance.", result.Message)

	updated := result.UpdatedRents["Mar-2025"]
	assert.Equal(t, mar.ID, updated.RentID)
	assert.Equal(t, models.ChargeStatusPending, updated.Before.Status)
	assert.Nil(t, updated.Before.AmountPaid)
	assert.Equal(t, models.ChargeStatusPaid, updated.After.Status)

	charge := reloadCharge(t, db, mar.ID)
	assert.Equal(t, models.ChargeStatusPaid, charge.Status)
	assert.Equal(t, int64(3000), charge.PaidAmount())
	assert.Equal(t, day(2025, time.March, 8), charge.PaymentDate)
	assert.Equal(t, day(2025, time.March, 1), charge.PeriodStart)
	assert.Equal(t, int64(2000), reloadTenant(t, db, f.Tenant.ID).Balance)

	// 付清后生成下月账单，金额沿用本月
	charges := chargesFor(t, db, f.Lease.ID)
	require.Len(t, charges, 2)
	assert.Equal(t, day(2025, time.April, 1), charges[1].PeriodStart)
	assert.Equal(t, int64(3000), charges[1].Amount)

	assert.Equal(t, 1, notifier.calls)
	assert.Equal(t, "03001234567", notifier.phone)
	assert.Equal(t, int64(3000), notifier.amount)
}

func TestProcessPayment_PartialPaymentStaysPending(t *testing.T) {
	db := setupTestDB(t)
	f := seedLease(t, db, 3000, 0)
	mar := seedCharge(t, db, f.Lease.ID, day(2025, time.March, 1), 3000, models.ChargeStatusPending)
	notifier := &fakeNotifier{}
	svc := newPaymentService(db, clockAt(2025, time.March, 8), notifier)

	result, err := svc.ProcessPayment(context.Background(), &PaymentRequest{
		LeaseID:         f.Lease.ID,
		TotalAmountPaid: 1000,
		Months:          []MonthClaim{{Month: "Mar-2025", PaymentAmount: 1000}},
		PaymentMethod:   models.PaymentMethodOnline,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Mar-2025"}, result.PendingMonths)
	assert.Empty(t, result.PaidMonths)
	assert.Equal(t, int64(2000), result.PendingRent)
	assert.Equal(t, "Partial payment recorded for Mar-2025.", result.Message)
	assert.Equal(t, int64(2000), result.UpdatedRents["Mar-2025"].PendingAmount)

	charge := reloadCharge(t, db, mar.ID)
	assert.Equal(t, models.ChargeStatusPending, charge.Status)
	assert.Equal(t, int64(1000), charge.PaidAmount())
	assert.Equal(t, models.PaymentMethodOnline, charge.PaymentMethod)
	assert.Len(t, chargesFor(t, db, f.Lease.ID), 1)
	assert.Zero(t, notifier.calls)
}

func TestProcessPayment_MultipleMonthsInInputOrder(t *testing.T) {
	db := setupTestDB(t)
	f := seedLease(t, db, 2000, 0)
	seedCharge(t, db, f.Lease.ID, day(2025, time.February, 1), 2000, models.ChargeStatusOverdue)
	seedCharge(t, db, f.Lease.ID, day(2025, time.March, 1), 2000, models.ChargeStatusPending)
	svc := newPaymentService(db, clockAt(2025, time.March, 20), nil)

	result, err := svc.ProcessPayment(context.Background(), &PaymentRequest{
		LeaseID:         f.Lease.ID,
		TotalAmountPaid: 3500,
		Months: []MonthClaim{
			{Month: "Mar-2025", PaymentAmount: 2000},
			{Month: "Feb-2025", PaymentAmount: 1500},
		},
		PaymentMethod: models.PaymentMethodCash,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Mar-2025"}, result.PaidMonths)
	assert.Equal(t, []string{"Feb-2025"}, result.PendingMonths)
	assert.Equal(t, int64(500), result.PendingRent)
	assert.Equal(t, int64(0), result.ExcessAmountAddedToBalance)
	assert.Equal(t, "Rent paid for Mar-2025. Partial payment recorded for Feb-2025.", result.Message)
}

func TestProcessPayment_ConservesAmount(t *testing.T) {
	db := setupTestDB(t)
	f := seedLease(t, db, 2000, 300)
	seedCharge(t, db, f.Lease.ID, day(2025, time.February, 1), 2000, models.ChargeStatusOverdue)
	seedCharge(t, db, f.Lease.ID, day(2025, time.March, 1), 2000, models.ChargeStatusPending)
	svc := newPaymentService(db, clockAt(2025, time.March, 20), nil)

	const total = int64(5200)
	result, err := svc.ProcessPayment(context.Background(), &PaymentRequest{
		LeaseID:         f.Lease.ID,
		TotalAmountPaid: total,
		Months: []MonthClaim{
			{Month: "Feb-2025", PaymentAmount: 2000},
			{Month: "Mar-2025", PaymentAmount: 1800},
		},
		PaymentMethod: models.PaymentMethodCash,
	})
	require.NoError(t, err)

	var applied int64
	for _, c := range chargesFor(t, db, f.Lease.ID) {
		applied += c.PaidAmount()
	}
	assert.Equal(t, total, applied+result.ExcessAmountAddedToBalance)
	assert.Equal(t, int64(1400), result.ExcessAmountAddedToBalance)
	assert.Equal(t, int64(1700), reloadTenant(t, db, f.Tenant.ID).Balance)
}

func TestProcessPayment_MissingMonthRollsBackEverything(t *testing.T) {
	db := setupTestDB(t)
	f := seedLease(t, db, 2000, 0)
	mar := seedCharge(t, db, f.Lease.ID, day(2025, time.March, 1), 2000, models.ChargeStatusPending)
	notifier := &fakeNotifier{}
	svc := newPaymentService(db, clockAt(2025, time.March, 20), notifier)

	_, err := svc.ProcessPayment(context.Background(), &PaymentRequest{
		LeaseID:         f.Lease.ID,
		TotalAmountPaid: 6000,
		Months: []MonthClaim{
			{Month: "Mar-2025", PaymentAmount: 2000},
			{Month: "Apr-2025", PaymentAmount: 2000},
		},
		PaymentMethod: models.PaymentMethodCash,
	})

	var failed *PaymentFailedError
	require.ErrorAs(t, err, &failed)
	var notFound *ChargeNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "Apr-2025", notFound.Month)
	assert.Contains(t, failed.Message, "No rent record found for Apr-2025")

	charge := reloadCharge(t, db, mar.ID)
	assert.Equal(t, models.ChargeStatusPending, charge.Status)
	assert.Nil(t, charge.AmountPaid)
	assert.Len(t, chargesFor(t, db, f.Lease.ID), 1)
	assert.Equal(t, int64(0), reloadTenant(t, db, f.Tenant.ID).Balance)
	assert.Zero(t, notifier.calls)
}

func TestProcessPayment_RejectsAlreadyPaid(t *testing.T) {
	db := setupTestDB(t)
	f := seedLease(t, db, 2000, 0)
	seedCharge(t, db, f.Lease.ID, day(2025, time.March, 1), 2000, models.ChargeStatusPaid)
	svc := newPaymentService(db, clockAt(2025, time.March, 20), nil)

	_, err := svc.ProcessPayment(context.Background(), &PaymentRequest{
		LeaseID:         f.Lease.ID,
		TotalAmountPaid: 2000,
		Months:          []MonthClaim{{Month: "Mar-2025", PaymentAmount: 2000}},
		PaymentMethod:   models.PaymentMethodCash,
	})
	var paid *ChargeAlreadyPaidError
	require.ErrorAs(t, err, &paid)
	assert.Equal(t, int64(0), reloadTenant(t, db, f.Tenant.ID).Balance)
}

func TestProcessPayment_ValidationTouchesNothing(t *testing.T) {
	db := setupTestDB(t)
	f := seedLease(t, db, 3000, 0)
	mar := seedCharge(t, db, f.Lease.ID, day(2025, time.March, 1), 3000, models.ChargeStatusPending)
	svc := newPaymentService(db, clockAt(2025, time.March, 20), nil)

	requests := []*PaymentRequest{
		{LeaseID: f.Lease.ID, TotalAmountPaid: 3000, PaymentMethod: "cash",
			Months: []MonthClaim{{Month: "March-2025", PaymentAmount: 3000}}},
		{LeaseID: f.Lease.ID, TotalAmountPaid: 3000, PaymentMethod: "cash",
			Months: []MonthClaim{{Month: "Mar-2025"}}},
		{LeaseID: f.Lease.ID, TotalAmountPaid: 3000, PaymentMethod: "cash",
			Months: []MonthClaim{{Month: "Mar-2025", PaymentAmount: 2000}, {Month: "Apr-2025", PaymentAmount: 2000}}},
	}
	for _, req := range requests {
		_, err := svc.ProcessPayment(context.Background(), req)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
	}

	charge := reloadCharge(t, db, mar.ID)
	assert.Equal(t, models.ChargeStatusPending, charge.Status)
	assert.Nil(t, charge.AmountPaid)
}

func TestProcessPayment_OverflowingClaimsRejected(t *testing.T) {
	db := setupTestDB(t)
	f := seedLease(t, db, 3000, 0)
	mar := seedCharge(t, db, f.Lease.ID, day(2025, time.March, 1), 3000, models.ChargeStatusPending)
	apr := seedCharge(t, db, f.Lease.ID, day(2025, time.April, 1), 3000, models.ChargeStatusPending)
	notifier := &fakeNotifier{}
	svc := newPaymentService(db, clockAt(2025, time.March, 20), notifier)

	_, err := svc.ProcessPayment(context.Background(), &PaymentRequest{
		LeaseID:         f.Lease.ID,
		TotalAmountPaid: 1,
		PaymentMethod:   models.PaymentMethodCash,
		Months: []MonthClaim{
			{Month: "Mar-2025", PaymentAmount: math.MaxInt64},
			{Month: "Apr-2025", PaymentAmount: math.MaxInt64},
		},
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "total_amount_paid", verr.Field)
	assert.Contains(t, verr.Message, "(9223372036854775807)")

	for _, id := range []uint{mar.ID, apr.ID} {
		charge := reloadCharge(t, db, id)
		assert.Equal(t, models.ChargeStatusPending, charge.Status)
		assert.Nil(t, charge.AmountPaid)
	}
	assert.Equal(t, int64(0), reloadTenant(t, db, f.Tenant.ID).Balance)
	assert.Equal(t, 0, notifier.calls)
}

func TestProcessPayment_LeaseNotFound(t *testing.T) {
	db := setupTestDB(t)
	svc := newPaymentService(db, clockAt(2025, time.March, 20), nil)

	_, err := svc.ProcessPayment(context.Background(), &PaymentRequest{
		LeaseID: 999, TotalAmountPaid: 100, PaymentMethod: "cash",
		Months: []MonthClaim{{Month: "Mar-2025", PaymentAmount: 100}},
	})
	assert.ErrorIs(t, err, ErrLeaseNotFound)
}

func TestProcessPayment_ReceiptAndExplicitDate(t *testing.T) {
	db := setupTestDB(t)
	f := seedLease(t, db, 2000, 0)
	mar := seedCharge(t, db, f.Lease.ID, day(2025, time.March, 1), 2000, models.ChargeStatusPending)
	svc := newPaymentService(db, clockAt(2025, time.March, 20), nil)

	paidOn := day(2025, time.March, 12)
	_, err := svc.ProcessPayment(context.Background(), &PaymentRequest{
		LeaseID:         f.Lease.ID,
		TotalAmountPaid: 2000,
		Months:          []MonthClaim{{Month: "Mar-2025", PaymentAmount: 2000}},
		PaymentDate:     &paidOn,
		ReceiptImage:    "receipts/2025/03/ali.jpg",
		PaymentMethod:   models.PaymentMethodOnline,
	})
	require.NoError(t, err)

	assert.Equal(t, paidOn, reloadCharge(t, db, mar.ID).PaymentDate)
	tenant := reloadTenant(t, db, f.Tenant.ID)
	assert.Equal(t, []string{"receipts/2025/03/ali.jpg"}, []string(tenant.ReceiptImages))
}

func TestProcessPayment_NotificationFailureIsNotFatal(t *testing.T) {
	db := setupTestDB(t)
	f := seedLease(t, db, 2000, 0)
	mar := seedCharge(t, db, f.Lease.ID, day(2025, time.March, 1), 2000, models.ChargeStatusPending)
	notifier := &fakeNotifier{err: &TransportError{Err: errors.New("gateway timeout")}}
	svc := newPaymentService(db, clockAt(2025, time.March, 20), notifier)

	result, err := svc.ProcessPayment(context.Background(), &PaymentRequest{
		LeaseID:         f.Lease.ID,
		TotalAmountPaid: 2000,
		Months:          []MonthClaim{{Month: "Mar-2025", PaymentAmount: 2000}},
		PaymentMethod:   models.PaymentMethodCash,
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "Rent paid for Mar-2025. Payment confirmation SMS could not be sent.", result.Message)
	assert.Equal(t, models.ChargeStatusPaid, reloadCharge(t, db, mar.ID).Status)
}

func TestProcessPayment_OverdueCanBePaid(t *testing.T) {
	db := setupTestDB(t)
	f := seedLease(t, db, 2000, 0)
	feb := seedCharge(t, db, f.Lease.ID, day(2025, time.February, 1), 2000, models.ChargeStatusOverdue)
	seedCharge(t, db, f.Lease.ID, day(2025, time.March, 1), 2000, models.ChargeStatusPending)
	svc := newPaymentService(db, clockAt(2025, time.March, 20), nil)

	result, err := svc.ProcessPayment(context.Background(), &PaymentRequest{
		LeaseID:         f.Lease.ID,
		TotalAmountPaid: 2000,
		Months:          []MonthClaim{{Month: "Feb-2025", PaymentAmount: 2000}},
		PaymentMethod:   models.PaymentMethodCash,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Feb-2025"}, result.PaidMonths)
	assert.Equal(t, models.ChargeStatusPaid, reloadCharge(t, db, feb.ID).Status)
	// 三月账单已存在，不重复生成
	assert.Len(t, chargesFor(t, db, f.Lease.ID), 2)
}
