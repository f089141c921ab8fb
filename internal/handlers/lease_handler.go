package handlers

import (
	"time"

	"rentdesk/internal/models"
	"rentdesk/internal/services"
	"rentdesk/pkg/pagination"
	"rentdesk/pkg/period"
	"rentdesk/pkg/response"

	"github.com/gin-gonic/gin"
)

// LeaseHandler 租约接口
type LeaseHandler struct {
	leases     *services.LeaseService
	properties *services.PropertyService
	charges    *services.ChargeService
	ledger     *services.LedgerService
	activities *services.ActivityService
	clock      services.Clock
}

// NewLeaseHandler 创建租约处理器
func NewLeaseHandler(leases *services.LeaseService, properties *services.PropertyService, charges *services.ChargeService,
	ledger *services.LedgerService, activities *services.ActivityService, clock services.Clock) *LeaseHandler {
	return &LeaseHandler{
		leases:     leases,
		properties: properties,
		charges:    charges,
		ledger:     ledger,
		activities: activities,
		clock:      clock,
	}
}

// bindMonth 解析 ?month=Mar-2025，未传时返回 nil
func bindMonth(c *gin.Context) (*time.Time, bool) {
	var q MonthQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, bindingMessage(err))
		return nil, false
	}
	if q.Month == "" {
		return nil, true
	}
	month, err := period.ParseLabel(q.Month)
	if err != nil {
		response.BadRequest(c, "Invalid month "+q.Month+", expected format like Mar-2025")
		return nil, false
	}
	return &month, true
}

func (h *LeaseHandler) view(lease *models.Lease, month *time.Time) (*services.LeaseView, error) {
	charges, err := h.charges.ListForLease(lease.ID)
	if err != nil {
		return nil, err
	}
	return services.BuildLeaseView(lease, charges, month, h.clock.Now()), nil
}

// List 用户在某物业下可查看的租约
func (h *LeaseHandler) List(c *gin.Context) {
	propertyID, ok := paramID(c, "property_id")
	if !ok {
		return
	}
	month, ok := bindMonth(c)
	if !ok {
		return
	}

	userID := currentUserID(c)
	visible, err := h.properties.VisibleToUser(userID, propertyID)
	if err != nil {
		writeServiceError(c, err, "查询物业失败")
		return
	}
	if !visible {
		response.NotFound(c, "Property not found")
		return
	}

	pageParams := pagination.ParsePageParams(c)
	leases, total, err := h.leases.ListForUser(userID, propertyID, pageParams)
	if err != nil {
		writeServiceError(c, err, "查询租约失败")
		return
	}

	views := make([]*services.LeaseView, 0, len(leases))
	for i := range leases {
		v, err := h.view(&leases[i], month)
		if err != nil {
			writeServiceError(c, err, "查询账单失败")
			return
		}
		views = append(views, v)
	}

	response.SuccessWithPage(c, views, pagination.NewPageInfo(pageParams.Page, pageParams.PageSize, total))
}

// Get 单个租约
func (h *LeaseHandler) Get(c *gin.Context) {
	propertyID, ok := paramID(c, "property_id")
	if !ok {
		return
	}
	leaseID, ok := paramID(c, "id")
	if !ok {
		return
	}
	month, ok := bindMonth(c)
	if !ok {
		return
	}

	lease, err := h.leases.GetForUser(currentUserID(c), propertyID, leaseID)
	if err != nil {
		writeServiceError(c, err, "查询租约失败")
		return
	}
	v, err := h.view(lease, month)
	if err != nil {
		writeServiceError(c, err, "查询账单失败")
		return
	}
	response.Success(c, v)
}

// Create 创建租约（管理端）
func (h *LeaseHandler) Create(c *gin.Context) {
	var input services.CreateLeaseInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.BadRequest(c, bindingMessage(err))
		return
	}

	lease, err := h.leases.CreateLease(&input)
	if err != nil {
		writeServiceError(c, err, "创建租约失败")
		return
	}

	h.activities.RecordActivity(c.Request.Context(), currentUserID(c), models.ActivityLeaseCreate, "Lease", lease.ID, map[string]interface{}{
		"property_id": lease.PropertyID,
		"tenant_id":   lease.TenantID,
		"rent_amount": lease.RentAmount,
	})
	response.Success(c, lease)
}

// UpdateUnits 调整租约单元（管理端）
func (h *LeaseHandler) UpdateUnits(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req UpdateLeaseUnitsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, bindingMessage(err))
		return
	}

	lease, err := h.leases.UpdateLeaseUnits(id, req.UnitIDs)
	if err != nil {
		writeServiceError(c, err, "更新租约单元失败")
		return
	}

	h.activities.RecordActivity(c.Request.Context(), currentUserID(c), models.ActivityLeaseUpdateUnits, "Lease", lease.ID, map[string]interface{}{
		"unit_ids": req.UnitIDs,
	})
	response.Success(c, lease)
}

// Deactivate 停用租约（管理端）
func (h *LeaseHandler) Deactivate(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	lease, err := h.leases.DeactivateLease(id)
	if err != nil {
		writeServiceError(c, err, "停用租约失败")
		return
	}

	h.activities.RecordActivity(c.Request.Context(), currentUserID(c), models.ActivityLeaseDeactivate, "Lease", lease.ID, nil)
	response.SuccessWithMessage(c, "租约已停用", lease)
}

// Ledger 租约对账视图（管理端）
func (h *LeaseHandler) Ledger(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var q MonthQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, bindingMessage(err))
		return
	}

	ledger, err := h.ledger.Ledger(id, q.Month)
	if err != nil {
		writeServiceError(c, err, "生成对账失败")
		return
	}
	response.Success(c, ledger)
}
