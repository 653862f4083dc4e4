package usecase

import (
	"context"
	"errors"
	"fmt"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"
)

// 1回の状態遷移の結果
type TransitionOutcome string

const (
	TransitionApplied TransitionOutcome = "applied"
	//他の経路（webhook / reconcile / cancel）が先に確定させていた
	TransitionAlreadyResolved TransitionOutcome = "already_resolved"
	TransitionNotFound        TransitionOutcome = "not_found"
)

var errResolvedConcurrently = errors.New("order resolved concurrently")

// 決済確定と破棄。webhook・reconcile・cancelの3経路が共通で使う。
// どちらも注文1行に閉じたトランザクションで、ゲートウェイ呼び出しは含まない。
type OrderLifecycle struct {
	tx repo.TransactionManager
}

func NewOrderLifecycle(tx repo.TransactionManager) *OrderLifecycle {
	return &OrderLifecycle{tx: tx}
}

// PENDING → PREPARING。遷移できたときだけ在庫を減らす（同じTx）
func (l *OrderLifecycle) ConfirmPayment(ctx context.Context, orderID string) (TransitionOutcome, error) {
	var outcome TransitionOutcome

	err := l.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		ok, err := r.Orders().CompareAndSetStatus(ctx, orderID, model.OrderStatusPending, model.OrderStatusPreparing)
		if err != nil {
			return fmt.Errorf("set status: %w", err)
		}
		if !ok {
			outcome, err = resolvedOrMissing(ctx, r, orderID)
			return err
		}

		lines, err := r.OrderLines().ListByOrderID(ctx, orderID)
		if err != nil {
			return fmt.Errorf("list lines: %w", err)
		}
		for _, line := range lines {
			if err := r.Products().DecreaseStock(ctx, line.ProductID, line.Quantity); err != nil {
				return fmt.Errorf("decrease stock %s: %w", line.ProductID, err)
			}
		}

		outcome = TransitionApplied
		return nil
	})
	if err != nil {
		return "", err
	}
	return outcome, nil
}

// PENDINGの注文を明細ごと削除する（明細→注文の順）
func (l *OrderLifecycle) DiscardPending(ctx context.Context, orderID string) (TransitionOutcome, error) {
	var outcome TransitionOutcome

	err := l.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			outcome = TransitionNotFound
			return nil
		}
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}
		if o.Status != model.OrderStatusPending {
			outcome = TransitionAlreadyResolved
			return nil
		}

		if _, err := r.OrderLines().DeleteByOrderID(ctx, orderID); err != nil {
			return fmt.Errorf("delete lines: %w", err)
		}
		deleted, err := r.Orders().DeletePending(ctx, orderID)
		if err != nil {
			return fmt.Errorf("delete order: %w", err)
		}
		if !deleted {
			//明細の削除も巻き戻す
			return errResolvedConcurrently
		}

		outcome = TransitionApplied
		return nil
	})
	if errors.Is(err, errResolvedConcurrently) {
		return TransitionAlreadyResolved, nil
	}
	if err != nil {
		return "", err
	}
	return outcome, nil
}

func resolvedOrMissing(ctx context.Context, r repo.TxRepos, orderID string) (TransitionOutcome, error) {
	_, err := r.Orders().FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return TransitionNotFound, nil
	}
	if err != nil {
		return "", fmt.Errorf("find order: %w", err)
	}
	return TransitionAlreadyResolved, nil
}
