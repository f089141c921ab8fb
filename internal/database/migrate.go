package database

import (
	"rentdesk/internal/models"
	"rentdesk/pkg/logger"

	"gorm.io/gorm"
)

// Models 需要迁移的全部模型
func Models() []interface{} {
	return []interface{}{
		&models.Property{},
		&models.Unit{},
		&models.Tenant{},
		&models.Lease{},
		&models.Charge{},
		&models.UserLease{},
		&models.Activity{},
	}
}

// Migrate 执行数据库迁移
func Migrate() error {
	return MigrateDB(DB)
}

// MigrateDB 对指定连接执行迁移（测试中传入SQLite连接）
func MigrateDB(db *gorm.DB) error {
	appLogger := logger.GetLogger()
	appLogger.Info("Starting database migration...")

	if err := db.AutoMigrate(Models()...); err != nil {
		appLogger.Errorf("Database migration failed: %v", err)
		return err
	}

	appLogger.Info("Database migration completed successfully")
	return nil
}
