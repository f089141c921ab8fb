package services

import (
	"errors"
	"fmt"

	"rentdesk/internal/models"
)

var (
	// ErrLeaseNotFound 租约不存在
	ErrLeaseNotFound = errors.New("lease agreement not found")
	// ErrLeaseDeactivated 租约已停用
	ErrLeaseDeactivated = errors.New("lease agreement is deactivated")
	// ErrChargeMissing 账单不存在（按ID查找）
	ErrChargeMissing = errors.New("rent record not found")
	// ErrTenantNotFound 租客不存在
	ErrTenantNotFound = errors.New("tenant not found")
	// ErrPropertyNotFound 物业不存在
	ErrPropertyNotFound = errors.New("property not found")
)

// ValidationError 请求格式错误，在任何写操作之前返回
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationf(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ChargeNotFoundError 付款月份没有对应账单，整个事务回滚
type ChargeNotFoundError struct {
	Month string
}

func (e *ChargeNotFoundError) Error() string {
	return "No rent record found for " + e.Month
}

// ChargeAlreadyPaidError 已结清的账单不再接受付款
type ChargeAlreadyPaidError struct {
	Month string
}

func (e *ChargeAlreadyPaidError) Error() string {
	return "Rent for " + e.Month + " is already paid"
}

// TransportError 通知发送失败，不影响付款结果
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "notification transport failed: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsInvariantViolation 是否为模型不变量校验失败
func IsInvariantViolation(err error) bool {
	var inv *models.InvariantError
	return errors.As(err, &inv)
}

// userFacing 可直接展示给调用方的错误（不含内部细节）
func userFacing(err error) bool {
	var (
		notFound *ChargeNotFoundError
		paid     *ChargeAlreadyPaidError
		invalid  *ValidationError
	)
	return errors.As(err, &notFound) || errors.As(err, &paid) || errors.As(err, &invalid) ||
		IsInvariantViolation(err) || errors.Is(err, ErrLeaseNotFound) || errors.Is(err, ErrLeaseDeactivated)
}

// PaymentFailedError 付款事务失败，事务已整体回滚
// Message 可直接返回给调用方，Err 为原始错误
type PaymentFailedError struct {
	Message string
	Err     error
}

func (e *PaymentFailedError) Error() string {
	return e.Message
}

func (e *PaymentFailedError) Unwrap() error {
	return e.Err
}
