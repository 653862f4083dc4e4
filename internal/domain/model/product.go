package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 書籍（カタログ側の最小限の項目）
type Product struct {
	ID          string          `gorm:"type:varchar(64);primaryKey" json:"id"`
	Title       string          `gorm:"type:varchar(255);not null" json:"title"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Stock       int64           `gorm:"not null" json:"stock"`
	IsAvailable bool            `gorm:"not null;default:false" json:"is_available"`
	CreatedAt   time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
