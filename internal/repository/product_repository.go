package repository

import (
	"context"
	"errors"

	"bookstore/internal/domain/model"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound = errors.New("not found")
	//一意制約違反など
	ErrConflict = errors.New("conflict")
)

// GET /productsの検索条件
type ProductListQuery struct {
	Page     int
	Limit    int
	Q        string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Sort     string // new | price_asc | price_desc
}

type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (model.Product, error)
	FindByIDs(ctx context.Context, ids []string) ([]model.Product, error)
	//確定時の再チェック用（行ロック）
	FindByIDsForUpdate(ctx context.Context, ids []string) ([]model.Product, error)
	//公開中の商品だけ
	ListPublic(ctx context.Context, q ProductListQuery) ([]model.Product, int64, error)
	//idが重複したらErrConflict
	Create(ctx context.Context, p model.Product) error

	DecreaseStock(ctx context.Context, productID string, qty int64) error
	// 在庫戻し（キャンセルなど）
	IncreaseStock(ctx context.Context, productID string, qty int64) error
	//管理者による在庫の上書き
	SetStock(ctx context.Context, productID string, stock int64) error
}
