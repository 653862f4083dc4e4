package db

import (
	"bookstore/internal/domain/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect はDBに接続して *gorm.DB を返す。
func Connect(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{
		//一意制約違反を gorm.ErrDuplicatedKey にする
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
}

// 注文まわりのテーブルを作成・更新する
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Product{},
		&model.Order{},
		&model.OrderLine{},
		&model.AuditLog{},
	)
}
