package handlers

import (
	"context"
	"time"

	"rentdesk/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Pinger 依赖连通性检查（Redis）
type Pinger interface {
	Ping(ctx context.Context) error
}

// SchedulerStatus 调度器运行状态
type SchedulerStatus interface {
	IsRunning() bool
}

// SystemHandler 系统处理器
type SystemHandler struct {
	db        *gorm.DB
	redis     Pinger
	scheduler SchedulerStatus
}

// NewSystemHandler 创建系统处理器，redis 与 scheduler 可为 nil
func NewSystemHandler(db *gorm.DB, redis Pinger, scheduler SchedulerStatus) *SystemHandler {
	return &SystemHandler{db: db, redis: redis, scheduler: scheduler}
}

// Health 健康检查
func (h *SystemHandler) Health(c *gin.Context) {
	data := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now(),
		"service":   "rentdesk",
	}

	checks := map[string]string{}
	if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		checks["database"] = "down"
		data["status"] = "degraded"
	} else {
		checks["database"] = "up"
	}
	switch {
	case h.redis == nil:
		checks["redis"] = "disabled"
	case h.redis.Ping(c.Request.Context()) != nil:
		checks["redis"] = "down"
		data["status"] = "degraded"
	default:
		checks["redis"] = "up"
	}
	data["checks"] = checks
	response.Success(c, data)
}

// Ping 存活检查
func (h *SystemHandler) Ping(c *gin.Context) {
	response.SuccessWithMessage(c, "pong", nil)
}

// SchedulerStatus 月度滚动调度器状态
func (h *SystemHandler) SchedulerStatus(c *gin.Context) {
	running := false
	if h.scheduler != nil {
		running = h.scheduler.IsRunning()
	}
	response.Success(c, gin.H{"rent_roll_forward": gin.H{"running": running}})
}
