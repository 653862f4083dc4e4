package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"bookstore/internal/domain/model"
	"bookstore/internal/metrics"
	"bookstore/internal/payment"
	repo "bookstore/internal/repository"

	"golang.org/x/sync/errgroup"
)

// 多重起動防止のロック。取れなかったらacquired=false
type SweepLock interface {
	Acquire(ctx context.Context) (release func(), acquired bool, err error)
}

type ReconcileOptions struct {
	//作成からこの時間が経ったPENDINGだけ見る
	Grace       time.Duration
	Concurrency int
	BatchSize   int
}

type ReconcileSummary struct {
	Reconciled int  `json:"reconciled"`
	Expired    int  `json:"expired"`
	Unchanged  int  `json:"unchanged"`
	Errored    int  `json:"errored"`
	Skipped    bool `json:"skipped"`
}

type reconcileOutcome string

const (
	outcomeReconciled reconcileOutcome = "reconciled"
	outcomeExpired    reconcileOutcome = "expired"
	outcomeUnchanged  reconcileOutcome = "unchanged"
	outcomeErrored    reconcileOutcome = "errored"
)

type ReconcileUsecase struct {
	orders    repo.OrderRepository
	gateway   payment.Gateway
	lifecycle *OrderLifecycle
	lock      SweepLock
	clock     Clock
	opts      ReconcileOptions
	log       *slog.Logger
	metrics   *metrics.Metrics
}

// lockはnil可（ロックなし）
func NewReconcileUsecase(
	orders repo.OrderRepository,
	gateway payment.Gateway,
	lifecycle *OrderLifecycle,
	lock SweepLock,
	clock Clock,
	opts ReconcileOptions,
	log *slog.Logger,
	m *metrics.Metrics,
) *ReconcileUsecase {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	return &ReconcileUsecase{
		orders:    orders,
		gateway:   gateway,
		lifecycle: lifecycle,
		lock:      lock,
		clock:     clock,
		opts:      opts,
		log:       log,
		metrics:   m,
	}
}

// webhookが届かなかった注文をプロバイダの状態に合わせる。
// 1件の失敗で全体を止めない。DBが読めないときだけエラーを返す。
func (u *ReconcileUsecase) ReconcileAll(ctx context.Context) (ReconcileSummary, error) {
	if u.lock != nil {
		release, ok, err := u.lock.Acquire(ctx)
		if err != nil {
			return ReconcileSummary{}, fmt.Errorf("acquire sweep lock: %w", err)
		}
		if !ok {
			u.log.InfoContext(ctx, "reconcile skipped, another sweep is running")
			return ReconcileSummary{Skipped: true}, nil
		}
		defer release()
	}

	start := time.Now()
	defer func() { u.metrics.ObserveReconcileDuration(time.Since(start)) }()

	cutoff := u.clock.Now().UTC().Add(-u.opts.Grace)

	var (
		mu      sync.Mutex
		summary ReconcileSummary
		afterID string
	)
	record := func(o reconcileOutcome) {
		mu.Lock()
		defer mu.Unlock()
		switch o {
		case outcomeReconciled:
			summary.Reconciled++
		case outcomeExpired:
			summary.Expired++
		case outcomeUnchanged:
			summary.Unchanged++
		default:
			summary.Errored++
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		batch, err := u.orders.ListPendingBefore(ctx, cutoff, afterID, u.opts.BatchSize)
		if err != nil {
			return summary, fmt.Errorf("list pending orders: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		var g errgroup.Group
		g.SetLimit(u.opts.Concurrency)
		for _, o := range batch {
			g.Go(func() error {
				record(u.reconcileOne(ctx, o))
				return nil
			})
		}
		_ = g.Wait()

		afterID = batch[len(batch)-1].ID
		if len(batch) < u.opts.BatchSize {
			break
		}
	}

	u.metrics.ObserveReconcile(string(outcomeReconciled), summary.Reconciled)
	u.metrics.ObserveReconcile(string(outcomeExpired), summary.Expired)
	u.metrics.ObserveReconcile(string(outcomeUnchanged), summary.Unchanged)
	u.metrics.ObserveReconcile(string(outcomeErrored), summary.Errored)

	u.log.InfoContext(ctx, "reconcile finished",
		"reconciled", summary.Reconciled,
		"expired", summary.Expired,
		"unchanged", summary.Unchanged,
		"errored", summary.Errored,
		"cutoff", cutoff,
	)
	return summary, nil
}

func (u *ReconcileUsecase) reconcileOne(ctx context.Context, o model.Order) reconcileOutcome {
	log := u.log.With("order_id", o.ID, "session_id", o.SessionID)

	state, err := u.gateway.RetrieveSession(ctx, o.SessionID)
	notFound := errors.Is(err, payment.ErrSessionNotFound)
	if err != nil && !notFound {
		log.WarnContext(ctx, "retrieve session failed", "err", err)
		return outcomeErrored
	}

	switch {
	case !notFound && state.Paid():
		outcome, err := u.lifecycle.ConfirmPayment(ctx, o.ID)
		if err != nil {
			log.ErrorContext(ctx, "confirm payment failed", "err", err)
			return outcomeErrored
		}
		if outcome != TransitionApplied {
			return outcomeUnchanged
		}
		log.InfoContext(ctx, "order reconciled as paid")
		return outcomeReconciled

	case notFound || state.NonPayable():
		outcome, err := u.lifecycle.DiscardPending(ctx, o.ID)
		if err != nil {
			log.ErrorContext(ctx, "discard order failed", "err", err)
			return outcomeErrored
		}
		if outcome != TransitionApplied {
			return outcomeUnchanged
		}
		log.InfoContext(ctx, "stale order discarded", "session_status", string(state.Status))
		return outcomeExpired

	default:
		return outcomeUnchanged
	}
}
