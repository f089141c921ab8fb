package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rentdesk/internal/database"
	"rentdesk/internal/router"
	"rentdesk/internal/services"
	"rentdesk/pkg/config"
	"rentdesk/pkg/jwt"
	"rentdesk/pkg/logger"
	"rentdesk/pkg/metrics"
	"rentdesk/pkg/sms"

	"github.com/gin-gonic/gin"
)

func main() {
	// 加载配置
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	if err := logger.Initialize(cfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	appLogger := logger.GetLogger()
	appLogger.Info("Starting rentdesk...")

	// 初始化数据库
	if err := database.Initialize(cfg); err != nil {
		appLogger.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			appLogger.Error("Failed to close database:", err)
		}
		if err := database.CloseRedisQueue(); err != nil {
			appLogger.Error("Failed to close Redis:", err)
		}
	}()

	if err := database.Migrate(); err != nil {
		appLogger.Fatalf("Failed to migrate database: %v", err)
	}

	if cfg.Metrics.Enabled {
		metrics.Register()
	}

	gin.SetMode(cfg.Server.Mode)

	loc := cfg.Billing.Location()
	clock := services.NewClock(loc)
	db := database.GetDB()

	// Redis 不可达时不启用推送与调度器，付款等核心接口照常服务
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
	redisQueue, err := database.ReachableRedisQueue(pingCtx, database.GetRedisQueue())
	cancelPing()
	if err != nil {
		appLogger.Warnf("Redis不可用，已禁用活动推送与月度滚动调度器: %v", err)
	}

	var rentScheduler *services.RentScheduler
	if redisQueue != nil {
		generator := services.NewRentGenerator(db, clock, cfg.Billing.DueDays)
		activities := services.NewActivityService(db, redisQueue)
		rentScheduler = services.NewRentScheduler(generator, redisQueue, activities, clock, cfg.Billing.RollForwardCron, loc)
		if err := rentScheduler.Start(); err != nil {
			appLogger.Errorf("Failed to start rent scheduler: %v", err)
			// 不影响主服务启动
		}
		defer rentScheduler.Stop()
	}

	var notifier services.Notifier
	if cfg.SMS.APIURL != "" {
		notifier = services.NewSMSNotifier(sms.NewClient(cfg.SMS))
	} else {
		appLogger.Warn("SMS gateway not configured, payment confirmations disabled")
	}

	r := router.SetupRouter(&router.Dependencies{
		Config:    cfg,
		DB:        db,
		Queue:     redisQueue,
		Scheduler: rentScheduler,
		Notifier:  notifier,
		Clock:     clock,
		JWT:       jwt.GetJWTManager(),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatalf("Failed to start server: %v", err)
		}
	}()

	appLogger.Infof("Server started on port %s", cfg.Server.Port)

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown:", err)
	}
	appLogger.Info("Server exited")
}
