// 外部決済プロバイダとの窓口（port）
package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	//一時的な失敗（ネットワーク・5xx・429）。リトライ可
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	//リクエスト自体が不正。リトライしない
	ErrInvalidRequest     = errors.New("payment gateway rejected request")
	//webhook署名の検証失敗
	ErrInvalidSignature   = errors.New("invalid webhook signature")
	ErrSessionNotFound    = errors.New("payment session not found")
)

type SessionStatus string

const (
	SessionOpen     SessionStatus = "OPEN"
	SessionComplete SessionStatus = "COMPLETE"
	SessionExpired  SessionStatus = "EXPIRED"
)

type PaymentStatus string

const (
	PaymentPaid              PaymentStatus = "PAID"
	PaymentUnpaid            PaymentStatus = "UNPAID"
	PaymentNoPaymentRequired PaymentStatus = "NO_PAYMENT_REQUIRED"
	PaymentFailed            PaymentStatus = "FAILED"
)

// 支払い済み（または支払い不要）
func (s PaymentStatus) Settled() bool {
	return s == PaymentPaid || s == PaymentNoPaymentRequired
}

type LineItem struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int64
}

type SessionRequest struct {
	OrderID    string
	Lines      []LineItem
	SuccessURL string
	CancelURL  string
}

type Session struct {
	ID  string
	URL string
}

type SessionState struct {
	Status        SessionStatus
	PaymentStatus PaymentStatus
}

func (s SessionState) Paid() bool {
	return s.Status == SessionComplete && s.PaymentStatus.Settled()
}

// もう支払いに進めないセッション
func (s SessionState) NonPayable() bool {
	return s.Status == SessionExpired || s.PaymentStatus == PaymentFailed
}

type EventKind string

const (
	EventSessionCompleted EventKind = "SESSION_COMPLETED"
	EventIgnored          EventKind = "IGNORED"
)

type Event struct {
	ID            string
	Type          string
	Kind          EventKind
	SessionID     string
	PaymentStatus PaymentStatus
}

// 決済セッションAPIの約束
type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
	RetrieveSession(ctx context.Context, sessionID string) (SessionState, error)
	//ベストエフォート。失敗してもリモート側は自然に期限切れになる
	ExpireSession(ctx context.Context, sessionID string) error
	VerifyWebhook(payload []byte, signatureHeader string) (Event, error)
}
