package handlers

import (
	"rentdesk/internal/services"
	"rentdesk/pkg/pagination"
	"rentdesk/pkg/response"

	"github.com/gin-gonic/gin"
)

// ActivityHandler 操作记录
type ActivityHandler struct {
	service *services.ActivityService
}

// NewActivityHandler 创建操作记录处理器
func NewActivityHandler(service *services.ActivityService) *ActivityHandler {
	return &ActivityHandler{service: service}
}

// List 分页查询，支持 key / trackable_type 筛选
func (h *ActivityHandler) List(c *gin.Context) {
	pageParams := pagination.ParsePageParams(c)

	activities, total, err := h.service.List(c.Query("key"), c.Query("trackable_type"), pageParams)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}
	response.SuccessWithPage(c, activities, pagination.NewPageInfo(pageParams.Page, pageParams.PageSize, total))
}
