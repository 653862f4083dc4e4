package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"

	"github.com/shopspring/decimal"
)

type OrderUsecase struct {
	tx    repo.TransactionManager
	clock Clock
}

func NewOrderUsecase(tx repo.TransactionManager, clock Clock) *OrderUsecase {
	return &OrderUsecase{tx: tx, clock: clock}
}

type OrderLineOutput struct {
	ProductID string          `json:"product_id"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type OrderOutput struct {
	ID          string            `json:"id"`
	UserID      string            `json:"user_id"`
	Status      string            `json:"status"`
	StatusLabel string            `json:"status_label"`
	TotalPrice  decimal.Decimal   `json:"total_price"`
	CreatedAt   time.Time         `json:"created_at"`
	Lines       []OrderLineOutput `json:"lines"`
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID string) ([]OrderOutput, error) {
	if strings.TrimSpace(userID) == "" {
		return []OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	//ページングでまずは固定で取る
	var outs []OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, _, err := r.Orders().ListByUserID(ctx, userID, 1, 50)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		outs, err = withLines(ctx, r, orders)
		return err
	})

	if err != nil {
		return []OrderOutput{}, err
	}
	return outs, nil
}

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, userID string, orderID string) (OrderOutput, error) {
	if strings.TrimSpace(userID) == "" {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if strings.TrimSpace(orderID) == "" {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := ownedOrder(ctx, r, userID, orderID, false)
		if err != nil {
			return err
		}

		lines, err := r.OrderLines().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = toOrderOutput(o, lines)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// 返金申請（発送準備中・配送中のみ）
func (u *OrderUsecase) RequestRefund(ctx context.Context, userID string, orderID string) (OrderOutput, error) {
	if strings.TrimSpace(userID) == "" {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if strings.TrimSpace(orderID) == "" {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := ownedOrder(ctx, r, userID, orderID, true)
		if err != nil {
			return err
		}

		//申請済みなら同じ結果を返す
		if o.Status == model.OrderStatusRefundRequested {
			lines, err := r.OrderLines().ListByOrderID(ctx, orderID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			out = toOrderOutput(o, lines)
			return nil
		}
		if !model.CanTransition(o.Status, model.OrderStatusRefundRequested) {
			return NewHTTPError(http.StatusBadRequest, "refund not available for "+string(o.Status))
		}

		ok, err := r.Orders().CompareAndSetStatus(ctx, orderID, o.Status, model.OrderStatusRefundRequested)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if !ok {
			return NewHTTPError(http.StatusConflict, "order status changed")
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  userID,
			Action:       model.AuditActionRequestRefund,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			BeforeJSON:   `{"status":"` + string(o.Status) + `"}`,
			AfterJSON:    `{"status":"` + string(model.OrderStatusRefundRequested) + `"}`,
			CreatedAt:    u.clock.Now().UTC(),
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		lines, err := r.OrderLines().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		o.Status = model.OrderStatusRefundRequested
		out = toOrderOutput(o, lines)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// 本人の注文だけ返す。他人の注文は「存在しない扱い」にする
func ownedOrder(ctx context.Context, r repo.TxRepos, userID, orderID string, forUpdate bool) (model.Order, error) {
	var (
		o   model.Order
		err error
	)
	if forUpdate {
		o, err = r.Orders().FindByIDForUpdate(ctx, orderID)
	} else {
		o, err = r.Orders().FindByID(ctx, orderID)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return model.Order{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return model.Order{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if o.UserID != userID {
		return model.Order{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	return o, nil
}

func withLines(ctx context.Context, r repo.TxRepos, orders []model.Order) ([]OrderOutput, error) {
	outs := make([]OrderOutput, 0, len(orders))
	for _, o := range orders {
		lines, err := r.OrderLines().ListByOrderID(ctx, o.ID)
		if err != nil {
			return nil, NewHTTPError(http.StatusInternalServerError, "db error")
		}
		outs = append(outs, toOrderOutput(o, lines))
	}
	return outs, nil
}

func toOrderOutput(o model.Order, lines []model.OrderLine) OrderOutput {
	outLines := make([]OrderLineOutput, 0, len(lines))
	for _, l := range lines {
		outLines = append(outLines, OrderLineOutput{
			ProductID: l.ProductID,
			Price:     l.Price,
			Quantity:  l.Quantity,
			Subtotal:  l.Subtotal(),
		})
	}

	return OrderOutput{
		ID:          o.ID,
		UserID:      o.UserID,
		Status:      string(o.Status),
		StatusLabel: o.Status.Label(),
		TotalPrice:  o.TotalPrice,
		CreatedAt:   o.CreatedAt,
		Lines:       outLines,
	}
}
