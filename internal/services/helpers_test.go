package services

import (
	"testing"
	"time"

	"rentdesk/internal/database"
	"rentdesk/internal/models"
	"rentdesk/pkg/period"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.MigrateDB(db))
	return db
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func clockAt(year int, month time.Month, d int) FixedClock {
	return FixedClock{T: time.Date(year, month, d, 9, 30, 0, 0, time.UTC)}
}

type fixture struct {
	Property *models.Property
	Unit     *models.Unit
	Tenant   *models.Tenant
	Lease    *models.Lease
}

var cnicSeq = 0

// seedLease 直接写库创建 物业/单元/租客/租约，不生成账单
func seedLease(t *testing.T, db *gorm.DB, rent int64, balance int64) *fixture {
	t.Helper()
	cnicSeq++

	property := &models.Property{
		Name: "Gulberg Heights", PropertyType: models.PropertyTypeApartment,
		Address: "12 Main Blvd", City: "Lahore", Country: "Pakistan", Active: true,
	}
	require.NoError(t, db.Create(property).Error)

	unit := &models.Unit{PropertyID: property.ID, UnitNumber: "A-1", Floor: "1", Status: models.UnitStatusOnRent}
	require.NoError(t, db.Create(unit).Error)

	tenant := &models.Tenant{
		Name:    "Ali Raza",
		Phone:   "03001234567",
		CNIC:    "3520212345" + string(rune('0'+cnicSeq%10)) + "67",
		Active:  true,
		Balance: balance,
	}
	require.NoError(t, db.Create(tenant).Error)

	lease := &models.Lease{
		TenantID:           tenant.ID,
		PropertyID:         property.ID,
		StartDate:          day(2025, time.January, 1),
		EndDate:            day(2026, time.January, 1),
		RentAmount:         rent,
		SecurityDeposit:    rent * 2,
		AnnualIncrement:    decimal.NewFromInt(10),
		IncrementFrequency: models.IncrementYearly,
		IncrementType:      models.IncrementPercentage,
		Status:             models.LeaseStatusActive,
	}
	require.NoError(t, db.Create(lease).Error)
	require.NoError(t, db.Model(lease).Omit("Units.*").Association("Units").Append(unit))

	return &fixture{Property: property, Unit: unit, Tenant: tenant, Lease: lease}
}

// seedCharge 为租约创建某月账单
func seedCharge(t *testing.T, db *gorm.DB, leaseID uint, month time.Time, amount int64, status string) *models.Charge {
	t.Helper()
	start := period.MonthStart(month)
	charge := &models.Charge{
		LeaseID:     leaseID,
		PeriodStart: start,
		Amount:      amount,
		PaymentDate: start,
		DueDate:     start.AddDate(0, 0, DefaultDueDays),
		Status:      status,
		Name:        period.ChargeName(start),
	}
	if status == models.ChargeStatusPaid {
		paid := amount
		charge.AmountPaid = &paid
		charge.PaymentMethod = models.PaymentMethodCash
	}
	require.NoError(t, db.Create(charge).Error)
	return charge
}

func reloadCharge(t *testing.T, db *gorm.DB, id uint) *models.Charge {
	t.Helper()
	var c models.Charge
	require.NoError(t, db.First(&c, id).Error)
	return &c
}

func reloadTenant(t *testing.T, db *gorm.DB, id uint) *models.Tenant {
	t.Helper()
	var tenant models.Tenant
	require.NoError(t, db.First(&tenant, id).Error)
	return &tenant
}

func reloadLease(t *testing.T, db *gorm.DB, id uint) *models.Lease {
	t.Helper()
	var lease models.Lease
	require.NoError(t, db.First(&lease, id).Error)
	return &lease
}

func chargesFor(t *testing.T, db *gorm.DB, leaseID uint) []models.Charge {
	t.Helper()
	charges, err := NewChargeStore(db).ListCharges(leaseID)
	require.NoError(t, err)
	return charges
}
