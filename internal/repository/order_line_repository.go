package repository

import (
	"context"

	"bookstore/internal/domain/model"
)

type OrderLineRepository interface {
	CreateBulk(ctx context.Context, orderID string, lines []model.OrderLine) error
	ListByOrderID(ctx context.Context, orderID string) ([]model.OrderLine, error)
	//注文の明細を全削除。削除件数を返す
	DeleteByOrderID(ctx context.Context, orderID string) (int64, error)
}
