package usecase

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"bookstore/internal/domain/model"
	"bookstore/internal/metrics"
	"bookstore/internal/payment"
	repo "bookstore/internal/repository"
)

// 決済プロバイダがセッションIDに置き換えるプレースホルダ
const SessionIDPlaceholder = "{CHECKOUT_SESSION_ID}"

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID() string
}

// 決済後の戻り先
type CheckoutURLs struct {
	Success  string
	Cancel   string
	Canceled string
}

func NewCheckoutURLs(feURL string) CheckoutURLs {
	base := strings.TrimRight(feURL, "/")
	return CheckoutURLs{
		Success:  base + "/checkout/success?session_id=" + SessionIDPlaceholder,
		Cancel:   base + "/checkout/cancel/" + SessionIDPlaceholder,
		Canceled: base + "/checkout/canceled",
	}
}

func (u CheckoutURLs) SuccessFor(sessionID string) string {
	return strings.ReplaceAll(u.Success, SessionIDPlaceholder, sessionID)
}

type CheckoutUsecase struct {
	tx        repo.TransactionManager
	products  repo.ProductRepository
	orders    repo.OrderRepository
	gateway   payment.Gateway
	lifecycle *OrderLifecycle
	urls      CheckoutURLs
	idGen     IDGenerator
	clock     Clock
	log       *slog.Logger
	metrics   *metrics.Metrics
}

func NewCheckoutUsecase(
	tx repo.TransactionManager,
	products repo.ProductRepository,
	orders repo.OrderRepository,
	gateway payment.Gateway,
	lifecycle *OrderLifecycle,
	urls CheckoutURLs,
	idGen IDGenerator,
	clock Clock,
	log *slog.Logger,
	m *metrics.Metrics,
) *CheckoutUsecase {
	return &CheckoutUsecase{
		tx:        tx,
		products:  products,
		orders:    orders,
		gateway:   gateway,
		lifecycle: lifecycle,
		urls:      urls,
		idGen:     idGen,
		clock:     clock,
		log:       log,
		metrics:   m,
	}
}

// クライアントが持っているカート（サーバー側のカート状態は見ない）
type CartLineInput struct {
	ID       string `json:"id"`
	Quantity int64  `json:"quantity"`
}

type CheckoutInput struct {
	Products []CartLineInput `json:"products"`
}

type CheckoutOutput struct {
	OrderID string `json:"order_id"`
	URL     string `json:"url"`
}

func (u *CheckoutUsecase) Checkout(ctx context.Context, userID string, in CheckoutInput) (CheckoutOutput, error) {
	out, err := u.checkout(ctx, userID, in)
	if err != nil {
		u.metrics.ObserveCheckout(checkoutResult(err))
		return CheckoutOutput{}, err
	}
	u.metrics.ObserveCheckout("ok")
	return out, nil
}

func (u *CheckoutUsecase) checkout(ctx context.Context, userID string, in CheckoutInput) (CheckoutOutput, error) {
	if strings.TrimSpace(userID) == "" {
		return CheckoutOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	cart, issues := normalizeCart(in.Products)
	if len(issues) > 0 {
		return CheckoutOutput{}, NewValidationError("invalid cart", issues)
	}

	ids := make([]string, 0, len(cart))
	for _, c := range cart {
		ids = append(ids, c.ID)
	}

	//価格スナップショットはここで取る（この金額で決済する）
	products, err := u.products.FindByIDs(ctx, ids)
	if err != nil {
		return CheckoutOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if issues := validatePurchasable(cart, products); len(issues) > 0 {
		return CheckoutOutput{}, NewValidationError("some products cannot be purchased", issues)
	}

	byID := indexProducts(products)
	lines := make([]model.OrderLine, 0, len(cart))
	items := make([]payment.LineItem, 0, len(cart))
	for _, c := range cart {
		p := byID[c.ID]
		lines = append(lines, model.OrderLine{
			ProductID: p.ID,
			Quantity:  c.Quantity,
			Price:     p.Price,
		})
		items = append(items, payment.LineItem{
			ProductID: p.ID,
			Name:      p.Title,
			UnitPrice: p.Price,
			Quantity:  c.Quantity,
		})
	}

	orderID := u.idGen.NewID()

	//セッション作成はTxの外（ネットワーク呼び出し中にロックを持たない）
	session, err := u.gateway.CreateSession(ctx, payment.SessionRequest{
		OrderID:    orderID,
		Lines:      items,
		SuccessURL: u.urls.Success,
		CancelURL:  u.urls.Cancel,
	})
	if err != nil {
		u.log.WarnContext(ctx, "create payment session failed", "order_id", orderID, "err", err)
		return CheckoutOutput{}, gatewayHTTPError(err)
	}

	now := u.clock.Now().UTC()
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//確定時に再チェック（クライアントのカートは信用しない）
		locked, err := r.Products().FindByIDsForUpdate(ctx, ids)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if issues := validatePurchasable(cart, locked); len(issues) > 0 {
			return NewValidationError("some products cannot be purchased", issues)
		}

		err = r.Orders().Create(ctx, model.Order{
			ID:         orderID,
			SessionID:  session.ID,
			UserID:     userID,
			Status:     model.OrderStatusPending,
			TotalPrice: model.SumLines(lines),
			CreatedAt:  now,
			UpdatedAt:  now,
		})
		if errors.Is(err, repo.ErrConflict) {
			return NewHTTPError(http.StatusConflict, "payment session already used")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if err := r.OrderLines().CreateBulk(ctx, orderID, lines); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		return nil
	})
	if err != nil {
		//注文が作れなかったのでセッションを払えない状態にする
		u.expireQuietly(ctx, orderID, session.ID)
		return CheckoutOutput{}, err
	}

	u.log.InfoContext(ctx, "checkout started", "order_id", orderID, "session_id", session.ID, "user_id", userID)
	return CheckoutOutput{OrderID: orderID, URL: session.URL}, nil
}

type CancelResult string

const (
	CancelResultCanceled CancelResult = "CANCELED"
	//別タブなどで支払い済みだった
	CancelResultPaid CancelResult = "PAID"
)

type CancelOutput struct {
	Result CancelResult `json:"result"`
	URL    string       `json:"url"`
}

// 決済画面の「戻る」から来たときの処理。
// セッションが本当に払えない状態かを確認してから注文を消す。
func (u *CheckoutUsecase) CancelCheckout(ctx context.Context, userID string, sessionID string) (CancelOutput, error) {
	if strings.TrimSpace(userID) == "" {
		return CancelOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return CancelOutput{}, NewHTTPError(http.StatusBadRequest, "invalid session id")
	}

	o, err := u.orders.FindBySessionID(ctx, sessionID)
	if errors.Is(err, repo.ErrNotFound) {
		return CancelOutput{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return CancelOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	//他人の注文は「存在しない扱い」にする
	if o.UserID != userID {
		return CancelOutput{}, NewHTTPError(http.StatusNotFound, "not found")
	}

	paid := CancelOutput{Result: CancelResultPaid, URL: u.urls.SuccessFor(sessionID)}
	canceled := CancelOutput{Result: CancelResultCanceled, URL: u.urls.Canceled}
	switch o.Status {
	case model.OrderStatusPending:
	case model.OrderStatusPreparing, model.OrderStatusInTransit, model.OrderStatusDelivered:
		return paid, nil
	default:
		//取消・返金済みは支払い完了扱いにしない
		return canceled, nil
	}

	state, err := u.gateway.RetrieveSession(ctx, sessionID)
	switch {
	case errors.Is(err, payment.ErrSessionNotFound):
		state = payment.SessionState{Status: payment.SessionExpired}
	case err != nil:
		u.log.WarnContext(ctx, "retrieve session failed", "order_id", o.ID, "session_id", sessionID, "err", err)
		return CancelOutput{}, gatewayHTTPError(err)
	}

	//完了済み（非同期決済の処理中も含む）は消さない
	if state.Status == payment.SessionComplete && !state.NonPayable() {
		return paid, nil
	}

	outcome, err := u.lifecycle.DiscardPending(ctx, o.ID)
	if err != nil {
		u.log.ErrorContext(ctx, "discard order failed", "order_id", o.ID, "err", err)
		return CancelOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if outcome == TransitionAlreadyResolved {
		//webhookが先に確定させた
		return paid, nil
	}

	if outcome == TransitionApplied && state.Status == payment.SessionOpen {
		u.expireQuietly(ctx, o.ID, sessionID)
	}

	u.log.InfoContext(ctx, "checkout canceled", "order_id", o.ID, "session_id", sessionID, "outcome", string(outcome))
	return canceled, nil
}

func (u *CheckoutUsecase) expireQuietly(ctx context.Context, orderID, sessionID string) {
	if err := u.gateway.ExpireSession(ctx, sessionID); err != nil {
		u.log.WarnContext(ctx, "expire session failed", "order_id", orderID, "session_id", sessionID, "err", err)
	}
}

// 数量チェックと同一商品のまとめ
func normalizeCart(in []CartLineInput) ([]CartLineInput, []Issue) {
	if len(in) == 0 {
		return nil, []Issue{{Index: -1, Field: "products", Message: "cart is empty"}}
	}

	var issues []Issue
	merged := make([]CartLineInput, 0, len(in))
	pos := make(map[string]int, len(in))

	for i, line := range in {
		id := strings.TrimSpace(line.ID)
		if id == "" {
			issues = append(issues, Issue{Index: i, Field: "id", Message: "id is required"})
			continue
		}
		if line.Quantity <= 0 {
			issues = append(issues, Issue{Index: i, Field: "quantity", Message: "quantity must be positive"})
			continue
		}
		if j, ok := pos[id]; ok {
			//まとめた数量がint64を超えないように
			if line.Quantity > math.MaxInt64-merged[j].Quantity {
				issues = append(issues, Issue{Index: i, Field: "quantity", Message: "quantity too large"})
				continue
			}
			merged[j].Quantity += line.Quantity
			continue
		}
		pos[id] = len(merged)
		merged = append(merged, CartLineInput{ID: id, Quantity: line.Quantity})
	}

	for _, m := range merged {
		if m.Quantity <= 0 {
			issues = append(issues, Issue{Index: pos[m.ID], Field: "quantity", Message: "quantity must be positive"})
		}
	}

	return merged, issues
}

// 存在・公開中・在庫をチェック
func validatePurchasable(cart []CartLineInput, products []model.Product) []Issue {
	byID := indexProducts(products)

	var issues []Issue
	for i, c := range cart {
		p, ok := byID[c.ID]
		switch {
		case !ok:
			issues = append(issues, Issue{Index: i, Field: "id", Message: "product not found"})
		case !p.IsAvailable:
			issues = append(issues, Issue{Index: i, Field: "id", Message: "product is not available"})
		case p.Stock < c.Quantity:
			issues = append(issues, Issue{Index: i, Field: "quantity", Message: "insufficient stock"})
		}
	}
	return issues
}

func indexProducts(products []model.Product) map[string]model.Product {
	m := make(map[string]model.Product, len(products))
	for _, p := range products {
		m[p.ID] = p
	}
	return m
}

func gatewayHTTPError(err error) error {
	if errors.Is(err, payment.ErrInvalidRequest) {
		return NewHTTPError(http.StatusBadRequest, "payment request rejected")
	}
	return NewHTTPError(http.StatusServiceUnavailable, "payment service unavailable")
}

func checkoutResult(err error) string {
	he, ok := AsHTTPError(err)
	if !ok {
		return "error"
	}
	switch he.Status {
	case http.StatusBadRequest:
		return "invalid"
	case http.StatusServiceUnavailable:
		return "gateway_unavailable"
	default:
		return "error"
	}
}
