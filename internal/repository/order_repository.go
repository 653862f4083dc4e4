package repository

import (
	"context"
	"time"

	"bookstore/internal/domain/model"
)

type AdminOrderListFilter struct {
	Page   int
	Limit  int
	Status string
	UserID *string
	From   *time.Time
	To     *time.Time
}

type OrderRepository interface {
	//session_idが重複したらErrConflict
	Create(ctx context.Context, order model.Order) error
	FindByID(ctx context.Context, orderID string) (model.Order, error)
	FindBySessionID(ctx context.Context, sessionID string) (model.Order, error)
	//行ロック（SELECT ... FOR UPDATE）付きで取得
	FindByIDForUpdate(ctx context.Context, orderID string) (model.Order, error)
	ListByUserID(ctx context.Context, userID string, page int, limit int) ([]model.Order, int64, error)
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)

	//created_atがbeforeより古いPENDING注文をid順に返す（afterIDより後）
	ListPendingBefore(ctx context.Context, before time.Time, afterID string, limit int) ([]model.Order, error)

	//statusがfromのときだけtoに更新する。更新できたらtrue
	CompareAndSetStatus(ctx context.Context, orderID string, from model.OrderStatus, to model.OrderStatus) (bool, error)
	//PENDINGのときだけ削除する。削除できたらtrue
	DeletePending(ctx context.Context, orderID string) (bool, error)
}
