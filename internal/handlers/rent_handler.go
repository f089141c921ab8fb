package handlers

import (
	"net/http"

	"rentdesk/internal/models"
	"rentdesk/internal/services"
	"rentdesk/pkg/response"

	"github.com/gin-gonic/gin"
)

// RentHandler 移动端付款
type RentHandler struct {
	payments   *services.RentPaymentService
	activities *services.ActivityService
}

// NewRentHandler 创建付款处理器
func NewRentHandler(payments *services.RentPaymentService, activities *services.ActivityService) *RentHandler {
	return &RentHandler{payments: payments, activities: activities}
}

// Pay 按月认领付款
// 成功返回付款结果原文；失败返回 { "error": "..." }，404 租约不存在，422 付款方式或事务失败，400 其它格式错误
func (h *RentHandler) Pay(c *gin.Context) {
	var req PayRentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	payment, err := req.toPaymentRequest()
	if err != nil {
		writePaymentError(c, err)
		return
	}

	result, err := h.payments.ProcessPayment(c.Request.Context(), payment)
	if err != nil {
		writePaymentError(c, err)
		return
	}

	h.activities.RecordActivity(c.Request.Context(), currentUserID(c), models.ActivityRentPay, "Lease", result.LeaseID, map[string]interface{}{
		"total_amount_paid": payment.TotalAmountPaid,
		"payment_method":    payment.PaymentMethod,
		"paid_months":       result.PaidMonths,
		"pending_months":    result.PendingMonths,
		"excess":            result.ExcessAmountAddedToBalance,
	})

	c.JSON(http.StatusOK, result)
}
