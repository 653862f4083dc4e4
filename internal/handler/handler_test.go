package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bookstore/internal/config"
	"bookstore/internal/domain/model"
	"bookstore/internal/handler"
	infraRepo "bookstore/internal/infra/repository"
	"bookstore/internal/logging"
	"bookstore/internal/payment"
	repo "bookstore/internal/repository"
	"bookstore/internal/testutil"
	"bookstore/internal/usecase"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type gatewayMock struct{ mock.Mock }

func (m *gatewayMock) CreateSession(ctx context.Context, req payment.SessionRequest) (payment.Session, error) {
	args := m.Called(ctx, req)
	s, _ := args.Get(0).(payment.Session)
	return s, args.Error(1)
}

func (m *gatewayMock) RetrieveSession(ctx context.Context, sessionID string) (payment.SessionState, error) {
	args := m.Called(ctx, sessionID)
	s, _ := args.Get(0).(payment.SessionState)
	return s, args.Error(1)
}

func (m *gatewayMock) ExpireSession(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

func (m *gatewayMock) VerifyWebhook(payload []byte, signatureHeader string) (payment.Event, error) {
	args := m.Called(payload, signatureHeader)
	ev, _ := args.Get(0).(payment.Event)
	return ev, args.Error(1)
}

type fixedClock struct{}

func (fixedClock) Now() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

type staticID struct{}

func (staticID) NewID() string { return "order-1" }

var testCfg = config.Config{JWTSecret: "test-secret", FEURL: "https://shop.example", CronSecret: "cron-secret"}

type server struct {
	e  *echo.Echo
	gw *gatewayMock
	tx *infraRepo.TxManagerGorm
}

func newServer(t *testing.T) *server {
	t.Helper()

	gdb := testutil.NewTestDB(t)
	testutil.SeedProduct(t, gdb, "b1", "10", 5)

	gw := new(gatewayMock)
	tx := infraRepo.NewTxManagerGorm(gdb)
	orders := infraRepo.NewOrderGormRepository(gdb)
	products := infraRepo.NewProductGormRepository(gdb)
	lifecycle := usecase.NewOrderLifecycle(tx)
	log := logging.Discard()

	e := echo.New()
	handler.NewCheckoutHandler(usecase.NewCheckoutUsecase(tx, products, orders, gw, lifecycle,
		usecase.NewCheckoutURLs(testCfg.FEURL), staticID{}, fixedClock{}, log, nil)).RegisterRoutes(e, testCfg)
	handler.NewWebhookHandler(usecase.NewWebhookUsecase(orders, gw, lifecycle, log, nil)).RegisterRoutes(e)
	handler.NewReconcileHandler(usecase.NewReconcileUsecase(orders, gw, lifecycle, nil, fixedClock{},
		usecase.ReconcileOptions{Grace: 10 * time.Minute}, log, nil), log).RegisterRoutes(e, testCfg.CronSecret)
	handler.NewOrderHandler(usecase.NewOrderUsecase(tx, fixedClock{})).RegisterRoutes(e, testCfg)

	return &server{e: e, gw: gw, tx: tx}
}

func (s *server) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func signToken(t *testing.T, sub string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(testCfg.JWTSecret))
	require.NoError(t, err)
	return s
}

func jsonRequest(method, path, body, bearer string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	return req
}

func TestCheckout_RequiresAuth(t *testing.T) {
	s := newServer(t)

	rec := s.do(jsonRequest(http.MethodPost, "/checkout", `{"products":[{"id":"b1","quantity":1}]}`, ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheckout_ValidationIssues(t *testing.T) {
	s := newServer(t)

	rec := s.do(jsonRequest(http.MethodPost, "/checkout", `{"products":[{"id":"b1","quantity":0}]}`, signToken(t, "user_1")))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body handler.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Error)
	require.Len(t, body.Issues, 1)
	assert.Equal(t, 0, body.Issues[0].Index)
	s.gw.AssertNotCalled(t, "CreateSession", mock.Anything, mock.Anything)
}

func TestCheckout_Success(t *testing.T) {
	s := newServer(t)
	s.gw.On("CreateSession", mock.Anything, mock.Anything).
		Return(payment.Session{ID: "cs_1", URL: "https://pay.example/cs_1"}, nil).Once()

	rec := s.do(jsonRequest(http.MethodPost, "/checkout", `{"products":[{"id":"b1","quantity":2}]}`, signToken(t, "user_1")))
	require.Equal(t, http.StatusOK, rec.Code)

	var body handler.CheckoutResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "order-1", body.OrderID)
	assert.Equal(t, "https://pay.example/cs_1", body.URL)
}

func TestWebhook_InvalidSignature(t *testing.T) {
	s := newServer(t)
	s.gw.On("VerifyWebhook", mock.Anything, "bad").Return(nil, payment.ErrInvalidSignature).Once()

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "bad")
	rec := s.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhook_PayloadTooLarge(t *testing.T) {
	s := newServer(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(strings.Repeat("x", 600<<10)))
	req.Header.Set("Stripe-Signature", "sig")
	rec := s.do(req)

	//切り詰めて検証せず413で返す
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	s.gw.AssertNotCalled(t, "VerifyWebhook", mock.Anything, mock.Anything)
}

func TestWebhook_Acknowledged(t *testing.T) {
	s := newServer(t)
	s.gw.On("VerifyWebhook", mock.Anything, "sig").
		Return(payment.Event{ID: "evt_1", Type: "customer.created", Kind: payment.EventIgnored}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "sig")
	rec := s.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true,"result":"ignored"}`, rec.Body.String())
}

func TestReconcile_SchedulerAuth(t *testing.T) {
	s := newServer(t)

	rec := s.do(jsonRequest(http.MethodPost, "/internal/reconcile", "", ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(jsonRequest(http.MethodPost, "/internal/reconcile", "", "wrong"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(jsonRequest(http.MethodPost, "/internal/reconcile", "", testCfg.CronSecret))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"reconciled":0,"expired":0,"unchanged":0,"errored":0,"skipped":false}`, rec.Body.String())
}

func TestOrders_OtherUserIsNotFound(t *testing.T) {
	s := newServer(t)
	var orderID string
	require.NoError(t, s.tx.WithinTx(context.Background(), func(r repo.TxRepos) error {
		orderID = "o1"
		return r.Orders().Create(context.Background(), model.Order{
			ID: orderID, SessionID: "cs_1", UserID: "user_1", Status: model.OrderStatusPreparing,
			TotalPrice: decimal.NewFromInt(10), CreatedAt: fixedClock{}.Now(), UpdatedAt: fixedClock{}.Now(),
		})
	}))

	rec := s.do(jsonRequest(http.MethodGet, "/orders/"+orderID, "", signToken(t, "user_2")))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(jsonRequest(http.MethodGet, "/orders/"+orderID, "", signToken(t, "user_1")))
	assert.Equal(t, http.StatusOK, rec.Code)
}
