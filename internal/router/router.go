package router

import (
	"rentdesk/internal/handlers"
	"rentdesk/internal/middleware"
	"rentdesk/internal/services"
	"rentdesk/pkg/config"
	"rentdesk/pkg/jwt"
	"rentdesk/pkg/metrics"
	"rentdesk/pkg/queue"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Dependencies 路由所需的依赖，由 main 组装
type Dependencies struct {
	Config    *config.Config
	DB        *gorm.DB
	Queue     *queue.RedisQueue // 可为 nil（无 Redis 时不推送、不支持手动触发）
	Scheduler *services.RentScheduler
	Notifier  services.Notifier
	Clock     services.Clock
	JWT       *jwt.JWTManager
}

// SetupRouter 设置路由
func SetupRouter(deps *Dependencies) *gin.Engine {
	handlers.RegisterValidators()
	if deps.JWT == nil {
		deps.JWT = jwt.GetJWTManager()
	}

	router := gin.New()

	// 中间件
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.SetupCORS(deps.Config.CORS))
	if deps.Config.Metrics.Enabled {
		router.Use(metrics.Middleware())
		router.GET(deps.Config.Metrics.Path, gin.WrapH(metrics.Handler()))
	}

	registerRoutes(router, deps)
	return router
}

// 注册所有路由
func registerRoutes(router *gin.Engine, deps *Dependencies) {
	db := deps.DB
	auth := middleware.NewAuthMiddleware(deps.JWT)

	var publisher services.Publisher
	if deps.Queue != nil {
		publisher = deps.Queue
	}

	generator := services.NewRentGenerator(db, deps.Clock, deps.Config.Billing.DueDays)
	activityService := services.NewActivityService(db, publisher)
	propertyService := services.NewPropertyService(db)
	leaseService := services.NewLeaseService(db, generator, deps.Clock)
	chargeService := services.NewChargeService(db, generator, deps.Clock)
	ledgerService := services.NewLedgerService(db, deps.Clock)
	paymentService := services.NewRentPaymentService(db, generator, deps.Notifier, deps.Clock)

	var (
		pinger    handlers.Pinger
		scheduler handlers.SchedulerStatus
	)
	if deps.Queue != nil {
		pinger = deps.Queue
	}
	if deps.Scheduler != nil {
		scheduler = deps.Scheduler
	}
	systemHandler := handlers.NewSystemHandler(db, pinger, scheduler)

	api := router.Group("/api/v1")
	{
		// 健康检查接口
		api.GET("/health", systemHandler.Health)
		api.GET("/ping", systemHandler.Ping)

		// 移动端付款
		rentHandler := handlers.NewRentHandler(paymentService, activityService)
		api.POST("/rent/pay", auth.RequireLogin(), rentHandler.Pay)

		// 移动端租约（按用户可见范围）
		leaseHandler := handlers.NewLeaseHandler(leaseService, propertyService, chargeService, ledgerService, activityService, deps.Clock)
		leases := api.Group("/leases", auth.RequireLogin())
		{
			leases.GET("/:property_id", leaseHandler.List)
			leases.GET("/:property_id/:id", leaseHandler.Get)
		}

		propertyHandler := handlers.NewPropertyHandler(propertyService, activityService)
		properties := api.Group("/properties", auth.RequireLogin())
		{
			properties.GET("", propertyHandler.List)
			properties.GET("/:id", propertyHandler.Get)
		}

		// 管理端
		chargeHandler := handlers.NewChargeHandler(chargeService, activityService)
		activityHandler := handlers.NewActivityHandler(activityService)
		admin := api.Group("/admin", auth.CombineAdminMiddleware()...)
		{
			admin.POST("/properties", propertyHandler.Create)
			admin.POST("/properties/:id/units", propertyHandler.AddUnit)
			admin.DELETE("/properties/:id/units/:unit_id", propertyHandler.DeleteUnit)

			admin.POST("/leases", leaseHandler.Create)
			admin.PUT("/leases/:id/units", leaseHandler.UpdateUnits)
			admin.POST("/leases/:id/deactivate", leaseHandler.Deactivate)
			admin.GET("/leases/:id/ledger", leaseHandler.Ledger)
			admin.GET("/leases/:id/rents", chargeHandler.ListForLease)

			admin.PUT("/rents/:id/mark-paid", chargeHandler.MarkPaid)
			admin.POST("/tenants/:id/advance", chargeHandler.AddAdvance)

			admin.GET("/activities", activityHandler.List)
			admin.GET("/schedulers", systemHandler.SchedulerStatus)

			if deps.Queue != nil && deps.Scheduler != nil {
				queueHandler := handlers.NewQueueHandler(deps.Scheduler, deps.Queue)
				admin.POST("/rent/roll-forward", queueHandler.TriggerRollForward)
				admin.GET("/jobs/:id", queueHandler.GetJobStatus)
			}
		}

		// WebSocket连接不能使用常规的中间件，认证通过query参数处理
		var subscriber handlers.Subscriber
		if deps.Queue != nil {
			subscriber = deps.Queue
		}
		wsHandler := handlers.NewWebSocketHandler(subscriber, deps.JWT, deps.Config.CORS.AllowOrigins)
		api.GET("/ws/activities", wsHandler.Activities)
	}
}
