package database

import (
	"gorm.io/gorm"

	"github.com/dumeirei/member-ledger/internal/models"
)

// AllModels 返回需要迁移的全部模型
func AllModels() []interface{} {
	return []interface{}{
		&models.Admin{},
		&models.Member{},
		&models.Package{},
		&models.Recharge{},
		&models.Consumption{},
		&models.OperationLog{},
	}
}

// Migrate 自动迁移表结构
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}
