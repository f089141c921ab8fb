package main

import (
	"errors"
	"fmt"

	"rentdesk/internal/database"
	"rentdesk/internal/models"
	"rentdesk/pkg/logger"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// SeedCmd 初始化演示数据
func SeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create a demo property with rentable units",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := bootstrap(); err != nil {
				return err
			}
			defer database.Close()
			if err := database.Migrate(); err != nil {
				return fmt.Errorf("failed to migrate database: %v", err)
			}
			return seedData(database.GetDB())
		},
	}
}

// seedData 初始化种子数据，重复执行时跳过已存在的记录
func seedData(db *gorm.DB) error {
	appLogger := logger.GetLogger()
	appLogger.Info("Starting seed data initialization...")

	property, err := createDemoProperty(db)
	if err != nil {
		return fmt.Errorf("创建演示物业失败: %v", err)
	}
	if err := createDemoUnits(db, property.ID); err != nil {
		return fmt.Errorf("创建演示单元失败: %v", err)
	}

	appLogger.Info("Seed data initialization completed successfully")
	return nil
}

// createDemoProperty 创建演示物业
func createDemoProperty(db *gorm.DB) (*models.Property, error) {
	var property models.Property
	err := db.Where("name = ?", "Demo Residency").First(&property).Error
	if err == nil {
		logger.GetLogger().Info("演示物业已存在，跳过创建")
		return &property, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	property = models.Property{
		Name:         "Demo Residency",
		PropertyType: models.PropertyTypeApartment,
		Address:      "12 Canal View Road",
		City:         "Lahore",
		Country:      "Pakistan",
		ZipCode:      "54000",
		Active:       true,
	}
	if err := db.Create(&property).Error; err != nil {
		return nil, err
	}
	logger.GetLogger().Info("演示物业创建成功")
	return &property, nil
}

// createDemoUnits 创建演示单元
func createDemoUnits(db *gorm.DB, propertyID uint) error {
	rates := map[string]int64{"A-101": 45000, "A-102": 45000, "B-201": 60000}
	for number, rate := range rates {
		var count int64
		db.Model(&models.Unit{}).Where("property_id = ? AND unit_number = ?", propertyID, number).Count(&count)
		if count > 0 {
			continue
		}

		rate := rate
		unit := &models.Unit{
			PropertyID: propertyID,
			UnitNumber: number,
			Floor:      number[:1],
			RentalRate: &rate,
			Status:     models.UnitStatusAvailableForRent,
		}
		if err := db.Create(unit).Error; err != nil {
			return err
		}
		logger.GetLogger().Infof("演示单元 %s 创建成功", number)
	}
	return nil
}
