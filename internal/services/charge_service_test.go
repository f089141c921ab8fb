package services

import (
	"testing"
	"time"

	"rentdesk/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkPaid_UsesAdvanceFirst(t *testing.T) {
	db := setupTestDB(t)
	f := seedLease(t, db, 2000, 0)
	mar := seedCharge(t, db, f.Lease.ID, day(2025, time.March, 1), 2000, models.ChargeStatusPending)
	clock := clockAt(2025, time.March, 9)
	svc := NewChargeService(db, NewRentGenerator(db, clock, 0), clock)

	_, err := svc.AddAdvance(f.Tenant.ID, 1500)
	require.NoError(t, err)

	result, err := svc.MarkPaid(mar.ID, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1500), result.AdvanceUsed)
	require.NotNil(t, result.NextCharge)
	assert.Equal(t, day(2025, time.April, 1), result.NextCharge.PeriodStart)

	charge := reloadCharge(t, db, mar.ID)
	assert.Equal(t, models.ChargeStatusPaid, charge.Status)
	assert.Equal(t, int64(2000), charge.PaidAmount())
	assert.Equal(t, models.PaymentMethodCash, charge.PaymentMethod)
	assert.Equal(t, day(2025, time.March, 9), charge.PaymentDate)
	assert.Equal(t, int64(0), reloadTenant(t, db, f.Tenant.ID).AdvanceCredit)
}

func TestMarkPaid_AdvanceLargerThanRent(t *testing.T) {
	db := setupTestDB(t)
	f := seedLease(t, db, 2000, 0)
	mar := seedCharge(t, db, f.Lease.ID, day(2025, time.March, 1), 2000, models.ChargeStatusOverdue)
	clock := clockAt(2025, time.April, 2)
	svc := NewChargeService(db, NewRentGenerator(db, clock, 0), clock)

	_, err := svc.AddAdvance(f.Tenant.ID, 5000)
	require.NoError(t, err)

	result, err := svc.MarkPaid(mar.ID, models.PaymentMethodOnline)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), result.AdvanceUsed)
	assert.Equal(t, int64(3000), reloadTenant(t, db, f.Tenant.ID).AdvanceCredit)
}

func TestMarkPaid_Rejections(t *testing.T) {
	db := setupTestDB(t)
	f := seedLease(t, db, 2000, 0)
	paid := seedCharge(t, db, f.Lease.ID, day(2025, time.March, 1), 2000, models.ChargeStatusPaid)
	clock := clockAt(2025, time.March, 9)
	svc := NewChargeService(db, NewRentGenerator(db, clock, 0), clock)

	_, err := svc.MarkPaid(paid.ID, "cash")
	var already *ChargeAlreadyPaidError
	assert.ErrorAs(t, err, &already)

	_, err = svc.MarkPaid(paid.ID, "cheque")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = svc.MarkPaid(12345, "cash")
	assert.ErrorIs(t, err, ErrChargeMissing)
}

func TestAddAdvance_RejectsNonPositive(t *testing.T) {
	db := setupTestDB(t)
	f := seedLease(t, db, 2000, 0)
	clock := clockAt(2025, time.March, 9)
	svc := NewChargeService(db, NewRentGenerator(db, clock, 0), clock)

	_, err := svc.AddAdvance(f.Tenant.ID, 0)
	assert.True(t, IsInvariantViolation(err))

	_, err = svc.AddAdvance(999, 100)
	assert.ErrorIs(t, err, ErrTenantNotFound)
}
