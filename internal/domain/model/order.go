package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	//決済待ち（セッション作成済み）
	OrderStatusPending OrderStatus = "PENDING"
	//決済確定、発送準備中
	OrderStatusPreparing OrderStatus = "PREPARING"
	OrderStatusInTransit OrderStatus = "IN_TRANSIT"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCanceled  OrderStatus = "CANCELED"

	//返金フロー
	OrderStatusRefundRequested OrderStatus = "REFUND_REQUESTED"
	OrderStatusRefundAccepted  OrderStatus = "REFUND_ACCEPTED"
	OrderStatusRefundDenied    OrderStatus = "REFUND_DENIED"
)

// 表示ラベル（固定の列挙）
var orderStatusLabels = map[OrderStatus]string{
	OrderStatusPending:         "Awaiting payment",
	OrderStatusPreparing:       "Preparing",
	OrderStatusInTransit:       "In transit",
	OrderStatusDelivered:       "Delivered",
	OrderStatusCanceled:        "Canceled",
	OrderStatusRefundRequested: "Refund requested",
	OrderStatusRefundAccepted:  "Refund accepted",
	OrderStatusRefundDenied:    "Refund denied",
}

// 許可される遷移。PENDINGの削除（∅）はここに含めない。
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:         {OrderStatusPreparing},
	OrderStatusPreparing:       {OrderStatusInTransit, OrderStatusRefundRequested, OrderStatusCanceled},
	OrderStatusInTransit:       {OrderStatusDelivered, OrderStatusRefundRequested},
	OrderStatusRefundRequested: {OrderStatusRefundAccepted, OrderStatusRefundDenied},
}

func ParseOrderStatus(s string) (OrderStatus, bool) {
	st := OrderStatus(s)
	_, ok := orderStatusLabels[st]
	return st, ok
}

func (s OrderStatus) Label() string {
	return orderStatusLabels[s]
}

// 終端状態ならtrue（以降statusの書き込み禁止）
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusDelivered, OrderStatusCanceled, OrderStatusRefundAccepted, OrderStatusRefundDenied:
		return true
	}
	return false
}

func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Order struct {
	ID         string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	SessionID  string          `gorm:"type:varchar(255);not null;uniqueIndex" json:"session_id"`
	UserID     string          `gorm:"type:varchar(255);not null;index" json:"user_id"`
	Status     OrderStatus     `gorm:"type:varchar(32);not null;index" json:"status"`
	TotalPrice decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_price"`
	CreatedAt  time.Time       `gorm:"not null;index" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"not null" json:"updated_at"`
}
