package usecase

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"bookstore/internal/metrics"
	"bookstore/internal/payment"
	repo "bookstore/internal/repository"
)

type WebhookResult string

const (
	WebhookConfirmed      WebhookResult = "confirmed"
	WebhookDuplicate      WebhookResult = "duplicate"
	WebhookIgnored        WebhookResult = "ignored"
	WebhookUnknownOrder   WebhookResult = "unknown_order"
	WebhookPendingPayment WebhookResult = "pending_payment"
)

type WebhookUsecase struct {
	orders    repo.OrderRepository
	gateway   payment.Gateway
	lifecycle *OrderLifecycle
	log       *slog.Logger
	metrics   *metrics.Metrics
}

func NewWebhookUsecase(
	orders repo.OrderRepository,
	gateway payment.Gateway,
	lifecycle *OrderLifecycle,
	log *slog.Logger,
	m *metrics.Metrics,
) *WebhookUsecase {
	return &WebhookUsecase{
		orders:    orders,
		gateway:   gateway,
		lifecycle: lifecycle,
		log:       log,
		metrics:   m,
	}
}

// プロバイダからの通知を処理する。
// エラーを返したとき（RetryableError）だけ再送してもらう。
func (u *WebhookUsecase) Handle(ctx context.Context, payload []byte, signature string) (WebhookResult, error) {
	res, err := u.handle(ctx, payload, signature)
	switch {
	case errors.Is(err, payment.ErrInvalidSignature):
		u.metrics.ObserveWebhook("invalid_signature")
	case err != nil:
		u.metrics.ObserveWebhook("error")
	default:
		u.metrics.ObserveWebhook(string(res))
	}
	return res, err
}

func (u *WebhookUsecase) handle(ctx context.Context, payload []byte, signature string) (WebhookResult, error) {
	ev, err := u.gateway.VerifyWebhook(payload, signature)
	if errors.Is(err, payment.ErrInvalidSignature) {
		u.log.WarnContext(ctx, "webhook signature rejected", "err", err)
		return "", err
	}
	if err != nil {
		//署名は正しいが中身が読めない。再送しても同じなので受け取って終わり
		u.log.WarnContext(ctx, "webhook payload unusable", "err", err)
		return WebhookIgnored, nil
	}

	if ev.Kind != payment.EventSessionCompleted {
		u.log.DebugContext(ctx, "webhook ignored", "event_id", ev.ID, "type", ev.Type)
		return WebhookIgnored, nil
	}

	//非同期決済の途中。成功イベントか照合ジョブが後で確定させる
	if !ev.PaymentStatus.Settled() {
		u.log.InfoContext(ctx, "session completed without payment", "event_id", ev.ID, "session_id", ev.SessionID, "payment_status", string(ev.PaymentStatus))
		return WebhookPendingPayment, nil
	}

	o, err := u.orders.FindBySessionID(ctx, ev.SessionID)
	if errors.Is(err, repo.ErrNotFound) {
		//支払い済みなのに注文がない（セッション作成後に注文の保存が失敗した）。返金など手作業が要る
		u.log.ErrorContext(ctx, "paid session has no order", "event_id", ev.ID, "session_id", ev.SessionID, "payment_status", string(ev.PaymentStatus))
		return WebhookUnknownOrder, nil
	}
	if err != nil {
		return "", &RetryableError{Op: "find order", Err: err}
	}

	outcome, err := u.lifecycle.ConfirmPayment(ctx, o.ID)
	if err != nil {
		u.log.ErrorContext(ctx, "confirm payment failed", "event_id", ev.ID, "order_id", o.ID, "err", err)
		return "", &RetryableError{Op: "confirm payment", Err: err}
	}

	switch outcome {
	case TransitionApplied:
		u.log.InfoContext(ctx, "payment confirmed", "event_id", ev.ID, "order_id", o.ID, "session_id", ev.SessionID)
		return WebhookConfirmed, nil
	case TransitionNotFound:
		//キャンセルで消えた直後
		u.log.ErrorContext(ctx, "paid order vanished before confirmation", "event_id", ev.ID, "order_id", o.ID, "session_id", ev.SessionID)
		return WebhookUnknownOrder, nil
	default:
		u.log.InfoContext(ctx, "order already resolved", "event_id", ev.ID, "order_id", o.ID, "outcome", string(outcome))
		return WebhookDuplicate, nil
	}
}

// ハンドラ用：署名エラーは400、それ以外の失敗は500
func WebhookHTTPError(err error) error {
	if errors.Is(err, payment.ErrInvalidSignature) {
		return NewHTTPError(http.StatusBadRequest, "invalid signature")
	}
	return NewHTTPError(http.StatusInternalServerError, "temporary failure")
}
