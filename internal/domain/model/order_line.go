package model

import "github.com/shopspring/decimal"

// 注文明細（注文×商品）。価格は注文時点のスナップショット。
type OrderLine struct {
	OrderID   string          `gorm:"type:varchar(36);primaryKey" json:"order_id"`
	ProductID string          `gorm:"type:varchar(64);primaryKey" json:"product_id"`
	Quantity  int64           `gorm:"not null" json:"quantity"`
	Price     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
}

// 小計（price * quantity）
func (l OrderLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(l.Quantity))
}

// 明細の合計。注文作成時に一度だけ計算する。
func SumLines(lines []OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}
