package handlers

import (
	"sync"

	"rentdesk/pkg/period"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators 在 gin 的校验引擎上注册自定义规则
//
//	month_label: 形如 Mar-2025 的月份
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("month_label", func(fl validator.FieldLevel) bool {
			label := fl.Field().String()
			if !period.ValidLabel(label) {
				return false
			}
			_, err := period.ParseLabel(label)
			return err == nil
		})
	})
}

// bindingMessage 将校验错误转为可读消息
func bindingMessage(err error) string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return "参数错误: " + err.Error()
	}
	fe := errs[0]
	switch fe.Tag() {
	case "month_label":
		return "Invalid month " + fe.Value().(string) + ", expected format like Mar-2025"
	case "required":
		return fe.Field() + " is required"
	case "oneof":
		return fe.Field() + " must be one of: " + fe.Param()
	default:
		return fe.Field() + " is invalid (" + fe.Tag() + ")"
	}
}
