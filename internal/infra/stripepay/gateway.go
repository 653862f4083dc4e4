package stripepay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"bookstore/internal/payment"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

const (
	eventCheckoutCompleted           = "checkout.session.completed"
	eventCheckoutAsyncPaymentSuccess = "checkout.session.async_payment_succeeded"
)

// 小数点なし通貨（最小単位＝1）
var zeroDecimalCurrencies = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true, "krw": true,
	"mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true, "vuv": true, "xaf": true,
	"xof": true, "xpf": true,
}

type Config struct {
	SecretKey     string
	WebhookSecret string
	Currency      string

	//テスト用（空なら本番API）
	APIURL string
	//webhookのタイムスタンプ許容幅（0ならstripeのデフォルト）
	Tolerance time.Duration
}

type Gateway struct {
	api           *client.API
	webhookSecret string
	currency      string
	tolerance     time.Duration
}

func NewGateway(cfg Config) (*Gateway, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" || strings.TrimSpace(cfg.WebhookSecret) == "" {
		return nil, fmt.Errorf("stripe config incomplete")
	}
	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "usd"
	}

	var backends *stripe.Backends
	if cfg.APIURL != "" {
		b := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			URL:               stripe.String(cfg.APIURL),
			MaxNetworkRetries: stripe.Int64(0),
		})
		backends = &stripe.Backends{API: b, Connect: b, Uploads: b}
	}

	return &Gateway{
		api:           client.New(cfg.SecretKey, backends),
		webhookSecret: cfg.WebhookSecret,
		currency:      currency,
		tolerance:     cfg.Tolerance,
	}, nil
}

func (g *Gateway) CreateSession(ctx context.Context, req payment.SessionRequest) (payment.Session, error) {
	if len(req.Lines) == 0 {
		return payment.Session{}, fmt.Errorf("no line items: %w", payment.ErrInvalidRequest)
	}

	items := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Lines))
	for _, l := range req.Lines {
		if l.Quantity <= 0 || l.UnitPrice.IsNegative() {
			return payment.Session{}, fmt.Errorf("line %s: %w", l.ProductID, payment.ErrInvalidRequest)
		}
		items = append(items, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(g.currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(l.Name),
				},
				UnitAmount: stripe.Int64(MinorUnits(l.UnitPrice, g.currency)),
			},
			Quantity: stripe.Int64(l.Quantity),
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:         items,
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.OrderID),
	}
	params.Context = ctx
	params.AddMetadata("order_id", req.OrderID)
	//同じ注文IDで二重にセッションを作らない
	params.SetIdempotencyKey("checkout-" + req.OrderID)

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return payment.Session{}, mapError("create session", err)
	}
	return payment.Session{ID: s.ID, URL: s.URL}, nil
}

func (g *Gateway) RetrieveSession(ctx context.Context, sessionID string) (payment.SessionState, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("payment_intent")

	s, err := g.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return payment.SessionState{}, mapError("retrieve session", err)
	}
	return toSessionState(s), nil
}

func (g *Gateway) ExpireSession(ctx context.Context, sessionID string) error {
	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx

	if _, err := g.api.CheckoutSessions.Expire(sessionID, params); err != nil {
		return mapError("expire session", err)
	}
	return nil
}

func (g *Gateway) VerifyWebhook(payload []byte, signatureHeader string) (payment.Event, error) {
	if strings.TrimSpace(signatureHeader) == "" {
		return payment.Event{}, fmt.Errorf("missing signature header: %w", payment.ErrInvalidSignature)
	}

	ev, err := webhook.ConstructEventWithOptions(payload, signatureHeader, g.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                g.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return payment.Event{}, fmt.Errorf("%v: %w", err, payment.ErrInvalidSignature)
	}

	out := payment.Event{
		ID:   ev.ID,
		Type: string(ev.Type),
		Kind: payment.EventIgnored,
	}

	switch string(ev.Type) {
	case eventCheckoutCompleted, eventCheckoutAsyncPaymentSuccess:
		if ev.Data == nil {
			return payment.Event{}, fmt.Errorf("event %s has no data: %w", ev.ID, payment.ErrInvalidRequest)
		}
		var s stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
			return payment.Event{}, fmt.Errorf("decode session: %v: %w", err, payment.ErrInvalidRequest)
		}
		out.Kind = payment.EventSessionCompleted
		out.SessionID = s.ID
		out.PaymentStatus = toPaymentStatus(&s)
	}

	return out, nil
}

// 金額を通貨の最小単位に変換する（usd: 10.5 -> 1050, jpy: 1000 -> 1000）
func MinorUnits(amount decimal.Decimal, currency string) int64 {
	if zeroDecimalCurrencies[strings.ToLower(currency)] {
		return amount.Round(0).IntPart()
	}
	return amount.Shift(2).Round(0).IntPart()
}

func toSessionState(s *stripe.CheckoutSession) payment.SessionState {
	st := payment.SessionState{PaymentStatus: toPaymentStatus(s)}
	switch s.Status {
	case stripe.CheckoutSessionStatusComplete:
		st.Status = payment.SessionComplete
	case stripe.CheckoutSessionStatusExpired:
		st.Status = payment.SessionExpired
	default:
		st.Status = payment.SessionOpen
	}
	return st
}

func toPaymentStatus(s *stripe.CheckoutSession) payment.PaymentStatus {
	switch s.PaymentStatus {
	case stripe.CheckoutSessionPaymentStatusPaid:
		return payment.PaymentPaid
	case stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		return payment.PaymentNoPaymentRequired
	}

	//完了済みなのに未払い：非同期決済の失敗を判定する
	if s.Status == stripe.CheckoutSessionStatusComplete && s.PaymentIntent != nil {
		switch s.PaymentIntent.Status {
		case stripe.PaymentIntentStatusCanceled, stripe.PaymentIntentStatusRequiresPaymentMethod:
			return payment.PaymentFailed
		}
	}
	return payment.PaymentUnpaid
}

func mapError(op string, err error) error {
	var se *stripe.Error
	if !errors.As(err, &se) {
		//ネットワークエラーなど
		return fmt.Errorf("%s: %v: %w", op, err, payment.ErrGatewayUnavailable)
	}

	switch {
	case se.HTTPStatusCode >= http.StatusInternalServerError,
		se.HTTPStatusCode == http.StatusTooManyRequests,
		se.Type == stripe.ErrorTypeAPI:
		return fmt.Errorf("%s: %s: %w", op, se.Msg, payment.ErrGatewayUnavailable)
	case se.HTTPStatusCode == http.StatusNotFound, se.Code == stripe.ErrorCodeResourceMissing:
		return fmt.Errorf("%s: %s: %w", op, se.Msg, payment.ErrSessionNotFound)
	default:
		return fmt.Errorf("%s: %s: %w", op, se.Msg, payment.ErrInvalidRequest)
	}
}
