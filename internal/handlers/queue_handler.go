package handlers

import (
	"context"

	"rentdesk/pkg/response"

	"github.com/gin-gonic/gin"
)

// RollForwardTrigger 投递月度滚动任务
type RollForwardTrigger interface {
	Enqueue(ctx context.Context, source string, force bool) (string, error)
}

// JobStatusReader 查询任务状态
type JobStatusReader interface {
	GetJobStatus(ctx context.Context, jobID string) (map[string]string, error)
}

// QueueHandler 任务队列处理器
type QueueHandler struct {
	trigger RollForwardTrigger
	jobs    JobStatusReader
}

// NewQueueHandler 创建队列处理器
func NewQueueHandler(trigger RollForwardTrigger, jobs JobStatusReader) *QueueHandler {
	return &QueueHandler{trigger: trigger, jobs: jobs}
}

// TriggerRollForward 手动触发本月滚动，force 为 true 时忽略本月已执行标记
func (h *QueueHandler) TriggerRollForward(c *gin.Context) {
	var req RollForwardRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, bindingMessage(err))
			return
		}
	}
	if c.Query("force") == "true" {
		req.Force = true
	}

	jobID, err := h.trigger.Enqueue(c.Request.Context(), "api", req.Force)
	if err != nil {
		response.ServerError(c, "投递任务失败")
		return
	}
	response.SuccessWithMessage(c, "任务已投递", gin.H{"job_id": jobID, "force": req.Force})
}

// GetJobStatus 获取任务状态
func (h *QueueHandler) GetJobStatus(c *gin.Context) {
	jobID := c.Param("id")
	if jobID == "" {
		response.BadRequest(c, "任务ID不能为空")
		return
	}

	status, err := h.jobs.GetJobStatus(c.Request.Context(), jobID)
	if err != nil {
		response.ServerError(c, "获取任务状态失败")
		return
	}
	if len(status) == 0 {
		response.NotFound(c, "任务不存在")
		return
	}
	response.Success(c, status)
}
