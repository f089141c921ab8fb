package handlers

import (
	"rentdesk/internal/models"
	"rentdesk/internal/services"
	"rentdesk/pkg/pagination"
	"rentdesk/pkg/response"

	"github.com/gin-gonic/gin"
)

// PropertyHandler 物业接口
type PropertyHandler struct {
	service    *services.PropertyService
	activities *services.ActivityService
}

// NewPropertyHandler 创建物业处理器
func NewPropertyHandler(service *services.PropertyService, activities *services.ActivityService) *PropertyHandler {
	return &PropertyHandler{service: service, activities: activities}
}

// List 用户可见的物业及租金汇总
func (h *PropertyHandler) List(c *gin.Context) {
	month, ok := bindMonth(c)
	if !ok {
		return
	}
	pageParams := pagination.ParsePageParams(c)

	listing, total, err := h.service.ListForUser(currentUserID(c), month, pageParams)
	if err != nil {
		writeServiceError(c, err, "查询物业失败")
		return
	}
	response.SuccessWithPage(c, listing, pagination.NewPageInfo(pageParams.Page, pageParams.PageSize, total))
}

// Get 单个物业汇总
func (h *PropertyHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	month, ok := bindMonth(c)
	if !ok {
		return
	}

	summary, err := h.service.GetForUser(currentUserID(c), id, month)
	if err != nil {
		writeServiceError(c, err, "查询物业失败")
		return
	}
	response.Success(c, summary)
}

// Create 创建物业（管理端）
func (h *PropertyHandler) Create(c *gin.Context) {
	var input services.PropertyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.BadRequest(c, bindingMessage(err))
		return
	}

	property, err := h.service.Create(&input)
	if err != nil {
		writeServiceError(c, err, "创建物业失败")
		return
	}

	h.activities.RecordActivity(c.Request.Context(), currentUserID(c), models.ActivityPropertyCreate, "Property", property.ID, nil)
	response.Success(c, property)
}

// AddUnit 新增单元（管理端）
func (h *PropertyHandler) AddUnit(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input services.UnitInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.BadRequest(c, bindingMessage(err))
		return
	}

	unit, err := h.service.AddUnit(id, &input)
	if err != nil {
		writeServiceError(c, err, "创建单元失败")
		return
	}

	h.activities.RecordActivity(c.Request.Context(), currentUserID(c), models.ActivityUnitCreate, "Unit", unit.ID, map[string]interface{}{
		"property_id": id,
		"unit_number": unit.UnitNumber,
	})
	response.Success(c, unit)
}

// DeleteUnit 删除单元（管理端）
func (h *PropertyHandler) DeleteUnit(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	unitID, ok := paramID(c, "unit_id")
	if !ok {
		return
	}

	if err := h.service.DeleteUnit(id, unitID); err != nil {
		writeServiceError(c, err, "删除单元失败")
		return
	}
	response.SuccessWithMessage(c, "删除成功", nil)
}
