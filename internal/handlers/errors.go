package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"rentdesk/internal/models"
	"rentdesk/internal/services"
	"rentdesk/pkg/logger"
	"rentdesk/pkg/response"

	"github.com/gin-gonic/gin"
)

// writeServiceError 管理端接口的统一错误映射
func writeServiceError(c *gin.Context, err error, fallback string) {
	var (
		invalid  *services.ValidationError
		inv      *models.InvariantError
		paid     *services.ChargeAlreadyPaidError
		notFound *services.ChargeNotFoundError
	)
	switch {
	case errors.As(err, &invalid):
		response.BadRequest(c, invalid.Message)
	case errors.As(err, &inv):
		response.Unprocessable(c, inv.Error())
	case errors.Is(err, services.ErrLeaseNotFound),
		errors.Is(err, services.ErrPropertyNotFound),
		errors.Is(err, services.ErrTenantNotFound),
		errors.Is(err, services.ErrChargeMissing):
		response.NotFound(c, err.Error())
	case errors.As(err, &notFound):
		response.NotFound(c, notFound.Error())
	case errors.Is(err, services.ErrLeaseDeactivated), errors.As(err, &paid):
		response.Conflict(c, err.Error())
	default:
		logger.GetLogger().WithError(err).Error(fallback)
		response.ServerError(c, fallback)
	}
}

// writePaymentError 付款接口的错误映射，返回 { "error": "..." }
func writePaymentError(c *gin.Context, err error) {
	var (
		invalid *services.ValidationError
		failed  *services.PaymentFailedError
	)
	switch {
	case errors.Is(err, services.ErrLeaseNotFound):
		response.Fail(c, http.StatusNotFound, "Lease agreement not found")
	case errors.Is(err, services.ErrLeaseDeactivated):
		response.Fail(c, http.StatusUnprocessableEntity, "Lease agreement is deactivated")
	case errors.As(err, &invalid):
		status := http.StatusBadRequest
		if invalid.Field == "payment_method" {
			status = http.StatusUnprocessableEntity
		}
		response.Fail(c, status, invalid.Message)
	case errors.As(err, &failed):
		response.Fail(c, http.StatusUnprocessableEntity, failed.Message)
	default:
		logger.GetLogger().WithError(err).Error("Unexpected payment error")
		response.Fail(c, http.StatusInternalServerError, "Payment processing failed: an unexpected error occurred")
	}
}

// paramID 解析路径中的ID参数
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, "ID格式错误")
		return 0, false
	}
	return uint(id), true
}

// currentUserID 登录用户ID，由 RequireLogin 写入
func currentUserID(c *gin.Context) uint {
	id, _ := c.Get("user_id")
	if v, ok := id.(uint); ok {
		return v
	}
	return 0
}
