package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rentdesk/internal/database"
	"rentdesk/internal/models"
	"rentdesk/internal/services"
	"rentdesk/pkg/config"
	"rentdesk/pkg/jwt"
	"rentdesk/pkg/metrics"
	"rentdesk/pkg/period"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type testEnv struct {
	db     *gorm.DB
	router *gin.Engine
	jwt    *jwt.JWTManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.MigrateDB(db))

	cfg := &config.Config{
		CORS: config.CORSConfig{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{"GET", "POST", "PUT", "DELETE"},
			AllowHeaders: []string{"Authorization", "Content-Type"},
		},
	}
	manager := jwt.NewJWTManager("test-secret", time.Hour)

	r := SetupRouter(&Dependencies{
		Config: cfg,
		DB:     db,
		Clock:  services.FixedClock{T: time.Date(2025, time.March, 8, 10, 0, 0, 0, time.UTC)},
		JWT:    manager,
	})
	return &testEnv{db: db, router: r, jwt: manager}
}

func (e *testEnv) token(t *testing.T, userID uint, admin bool) string {
	t.Helper()
	token, err := e.jwt.GenerateToken(userID, fmt.Sprintf("user%d", userID), admin)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

type seeded struct {
	property *models.Property
	tenant   *models.Tenant
	lease    *models.Lease
	march    *models.Charge
}

// seedLease 物业、单元、租客、租约与三月账单，viewer 为可查看租约的用户
func seedLease(t *testing.T, db *gorm.DB, viewer uint) *seeded {
	t.Helper()
	property := &models.Property{
		Name: "Gulberg Heights", PropertyType: models.PropertyTypeApartment,
		Address: "12 Main Blvd", City: "Lahore", Country: "Pakistan", Active: true,
	}
	require.NoError(t, db.Create(property).Error)
	unit := &models.Unit{PropertyID: property.ID, UnitNumber: "A-1", Status: models.UnitStatusOnRent}
	require.NoError(t, db.Create(unit).Error)

	tenant := &models.Tenant{Name: "Ali Raza", Phone: "03001234567", CNIC: "35202-1234567-1", Active: true}
	require.NoError(t, db.Create(tenant).Error)

	lease := &models.Lease{
		TenantID:           tenant.ID,
		PropertyID:         property.ID,
		StartDate:          time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		EndDate:            time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		RentAmount:         3000,
		SecurityDeposit:    6000,
		AnnualIncrement:    decimal.NewFromInt(10),
		IncrementFrequency: models.IncrementYearly,
		IncrementType:      models.IncrementPercentage,
		Status:             models.LeaseStatusActive,
	}
	require.NoError(t, db.Create(lease).Error)
	require.NoError(t, db.Model(lease).Omit("Units.*").Association("Units").Append(unit))
	require.NoError(t, db.Create(&models.UserLease{UserID: viewer, LeaseID: lease.ID}).Error)

	start := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	march := &models.Charge{
		LeaseID:     lease.ID,
		PeriodStart: start,
		Amount:      3000,
		PaymentDate: start,
		DueDate:     start.AddDate(0, 0, services.DefaultDueDays),
		Status:      models.ChargeStatusPending,
		Name:        period.ChargeName(start),
	}
	require.NoError(t, db.Create(march).Error)

	return &seeded{property: property, tenant: tenant, lease: lease, march: march}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "ok", data["status"])
	checks := data["checks"].(map[string]interface{})
	assert.Equal(t, "up", checks["database"])
	// 无 Redis 时核心接口照常服务，调度器不运行
	assert.Equal(t, "disabled", checks["redis"])

	w = env.do(t, http.MethodGet, "/api/v1/admin/schedulers", env.token(t, 1, true), nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := decode(t, w)["data"].(map[string]interface{})["rent_roll_forward"].(map[string]interface{})
	assert.Equal(t, false, status["running"])
}

func TestMetricsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics.Register()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	r := SetupRouter(&Dependencies{
		Config: &config.Config{
			CORS:    config.CORSConfig{AllowOrigins: []string{"*"}},
			Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
		},
		DB:     db,
		Clock:  services.NewClock(time.UTC),
		JWT:    jwt.NewJWTManager("test-secret", time.Hour),
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/v1/ping")
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/rent/pay", "", map[string]interface{}{})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/rent/pay", "not-a-token", map[string]interface{}{})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/admin/activities", env.token(t, 1, false), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/admin/activities", env.token(t, 1, true), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// 未配置 Redis 时不注册手动滚动接口
	w = env.do(t, http.MethodPost, "/api/v1/admin/rent/roll-forward", env.token(t, 1, true), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPayRent_Success(t *testing.T) {
	env := newTestEnv(t)
	s := seedLease(t, env.db, 7)

	w := env.do(t, http.MethodPost, "/api/v1/rent/pay", env.token(t, 7, false), map[string]interface{}{
		"lease_id":          s.lease.ID,
		"total_amount_paid": "5000",
		"months":            []map[string]interface{}{{"Month": "Mar-2025", "paymentAmount": "3000"}},
		"payment_method":    "cash",
		"receipt_image":     "receipts/mar.jpg",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, []interface{}{"Mar-2025"}, body["paid_months"])
	assert.Equal(t, []interface{}{}, body["pending_months"])
	assert.Equal(t, float64(2000), body["excess_amount_added_to_balance"])
	assert.Equal(t, "Rent paid for Mar-2025. 2000 added to tenant balance.", body["message"])
	assert.Contains(t, body["updated_rents"], "Mar-2025")

	var tenant models.Tenant
	require.NoError(t, env.db.First(&tenant, s.tenant.ID).Error)
	assert.Equal(t, int64(2000), tenant.Balance)
	assert.Equal(t, []string{"receipts/mar.jpg"}, []string(tenant.ReceiptImages))

	var activities int64
	env.db.Model(&models.Activity{}).Where("key = ?", models.ActivityRentPay).Count(&activities)
	assert.Equal(t, int64(1), activities)
}

func TestPayRent_Errors(t *testing.T) {
	env := newTestEnv(t)
	s := seedLease(t, env.db, 7)
	token := env.token(t, 7, false)

	tests := []struct {
		name   string
		body   interface{}
		status int
		errMsg string
	}{
		{
			name:   "malformed json",
			body:   `{"lease_id":`,
			status: http.StatusBadRequest,
			errMsg: "Invalid request body",
		},
		{
			name: "unknown lease",
			body: map[string]interface{}{
				"lease_id": 9999, "total_amount_paid": 3000, "payment_method": "cash",
				"months": []map[string]interface{}{{"month": "Mar-2025", "payment_amount": 3000}},
			},
			status: http.StatusNotFound,
			errMsg: "Lease agreement not found",
		},
		{
			name: "bad payment method",
			body: map[string]interface{}{
				"lease_id": s.lease.ID, "total_amount_paid": 3000, "payment_method": "cheque",
				"months": []map[string]interface{}{{"month": "Mar-2025", "payment_amount": 3000}},
			},
			status: http.StatusUnprocessableEntity,
			errMsg: "Payment method must be either 'cash' or 'online'",
		},
		{
			name: "months not an array",
			body: map[string]interface{}{
				"lease_id": s.lease.ID, "total_amount_paid": 3000, "payment_method": "cash", "months": "Mar-2025",
			},
			status: http.StatusBadRequest,
			errMsg: "The months parameter is invalid. It should be an array.",
		},
		{
			name: "claims exceed total",
			body: map[string]interface{}{
				"lease_id": s.lease.ID, "total_amount_paid": 1000, "payment_method": "cash",
				"months": []map[string]interface{}{{"month": "Mar-2025", "payment_amount": 3000}},
			},
			status: http.StatusBadRequest,
			errMsg: "The sum of payment amount (3000) exceeds total_amount_paid (1000).",
		},
		{
			name: "claims overflow int64",
			body: map[string]interface{}{
				"lease_id": s.lease.ID, "total_amount_paid": 1, "payment_method": "cash",
				"months": []map[string]interface{}{
					{"month": "Mar-2025", "payment_amount": "9223372036854775807"},
					{"month": "Apr-2025", "payment_amount": "9223372036854775807"},
				},
			},
			status: http.StatusBadRequest,
			errMsg: "The sum of payment amount (9223372036854775807) exceeds total_amount_paid (1).",
		},
		{
			name: "bad payment date",
			body: map[string]interface{}{
				"lease_id": s.lease.ID, "total_amount_paid": 3000, "payment_method": "cash", "payment_date": "08/03/2025",
				"months": []map[string]interface{}{{"month": "Mar-2025", "payment_amount": 3000}},
			},
			status: http.StatusBadRequest,
			errMsg: "payment_date must be in format YYYY-MM-DD",
		},
		{
			name: "no charge for month",
			body: map[string]interface{}{
				"lease_id": s.lease.ID, "total_amount_paid": 3000, "payment_method": "cash",
				"months": []map[string]interface{}{{"month": "Jul-2025", "payment_amount": 3000}},
			},
			status: http.StatusUnprocessableEntity,
			errMsg: "Payment processing failed: No rent record found for Jul-2025",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/v1/rent/pay", token, tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.errMsg, decode(t, w)["error"])
		})
	}

	// 失败请求不改动账单
	var charge models.Charge
	require.NoError(t, env.db.First(&charge, s.march.ID).Error)
	assert.Equal(t, models.ChargeStatusPending, charge.Status)
	assert.Nil(t, charge.AmountPaid)
}

func TestPayRent_DeactivatedLease(t *testing.T) {
	env := newTestEnv(t)
	s := seedLease(t, env.db, 7)
	require.NoError(t, env.db.Model(s.lease).UpdateColumn("status", models.LeaseStatusDeactivated).Error)

	w := env.do(t, http.MethodPost, "/api/v1/rent/pay", env.token(t, 7, false), map[string]interface{}{
		"lease_id": s.lease.ID, "total_amount_paid": 3000, "payment_method": "cash",
		"months": []map[string]interface{}{{"month": "Mar-2025", "payment_amount": 3000}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestLeaseViews(t *testing.T) {
	env := newTestEnv(t)
	s := seedLease(t, env.db, 7)
	base := fmt.Sprintf("/api/v1/leases/%d", s.property.ID)

	w := env.do(t, http.MethodGet, base, env.token(t, 7, false), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Len(t, body["data"], 1)
	assert.Equal(t, float64(1), body["page_info"].(map[string]interface{})["total"])

	w = env.do(t, http.MethodGet, base+"?month=March-2025", env.token(t, 7, false), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, base+"?month=Mar-2025", env.token(t, 7, false), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// 其他用户看不到该物业
	w = env.do(t, http.MethodGet, base, env.token(t, 8, false), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, fmt.Sprintf("%s/%d", base, s.lease.ID), env.token(t, 7, false), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestAdminMarkPaid(t *testing.T) {
	env := newTestEnv(t)
	s := seedLease(t, env.db, 7)
	admin := env.token(t, 1, true)
	path := fmt.Sprintf("/api/v1/admin/rents/%d/mark-paid", s.march.ID)

	w := env.do(t, http.MethodPut, path, admin, map[string]string{"payment_method": "cheque"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPut, path, admin, map[string]string{"payment_method": "online"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var charges []models.Charge
	require.NoError(t, env.db.Where("lease_id = ?", s.lease.ID).Order("period_start").Find(&charges).Error)
	require.Len(t, charges, 2)
	assert.Equal(t, models.ChargeStatusPaid, charges[0].Status)
	assert.Equal(t, models.PaymentMethodOnline, charges[0].PaymentMethod)
	assert.Equal(t, time.April, charges[1].PeriodStart.Month())

	// 重复标记返回冲突
	w = env.do(t, http.MethodPut, path, admin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodPut, "/api/v1/admin/rents/abc/mark-paid", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminLedger(t *testing.T) {
	env := newTestEnv(t)
	s := seedLease(t, env.db, 7)
	admin := env.token(t, 1, true)

	w := env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/admin/leases/%d/ledger?month=Mar-2025", s.lease.ID), admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "Mar-2025", data["target_month"])

	w = env.do(t, http.MethodGet, "/api/v1/admin/leases/9999/ledger", admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
