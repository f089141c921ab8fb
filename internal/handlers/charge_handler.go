package handlers

import (
	"rentdesk/internal/models"
	"rentdesk/internal/services"
	"rentdesk/pkg/response"

	"github.com/gin-gonic/gin"
)

// ChargeHandler 管理端账单操作
type ChargeHandler struct {
	service    *services.ChargeService
	activities *services.ActivityService
}

// NewChargeHandler 创建账单处理器
func NewChargeHandler(service *services.ChargeService, activities *services.ActivityService) *ChargeHandler {
	return &ChargeHandler{service: service, activities: activities}
}

// MarkPaid 标记账单已付
func (h *ChargeHandler) MarkPaid(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req MarkPaidRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, bindingMessage(err))
			return
		}
	}

	result, err := h.service.MarkPaid(id, req.PaymentMethod)
	if err != nil {
		writeServiceError(c, err, "标记已付失败")
		return
	}

	params := map[string]interface{}{
		"payment_method": result.Charge.PaymentMethod,
		"advance_used":   result.AdvanceUsed,
	}
	if result.NextCharge != nil {
		params["next_rent_id"] = result.NextCharge.ID
	}
	h.activities.RecordActivity(c.Request.Context(), currentUserID(c), models.ActivityRentMarkPaid, "Rent", result.Charge.ID, params)
	response.SuccessWithMessage(c, "Rent marked as paid", result)
}

// AddAdvance 登记租客预付款
func (h *ChargeHandler) AddAdvance(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req AdvanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, bindingMessage(err))
		return
	}

	tenant, err := h.service.AddAdvance(id, req.Amount)
	if err != nil {
		writeServiceError(c, err, "登记预付款失败")
		return
	}

	h.activities.RecordActivity(c.Request.Context(), currentUserID(c), models.ActivityTenantAdvance, "Tenant", tenant.ID, map[string]interface{}{
		"amount": req.Amount,
	})
	response.Success(c, tenant)
}

// ListForLease 租约的全部账单
func (h *ChargeHandler) ListForLease(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	charges, err := h.service.ListForLease(id)
	if err != nil {
		writeServiceError(c, err, "查询账单失败")
		return
	}
	response.Success(c, charges)
}
