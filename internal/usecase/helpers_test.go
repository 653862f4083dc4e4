package usecase_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	infraRepo "bookstore/internal/infra/repository"
	"bookstore/internal/logging"
	"bookstore/internal/payment"
	"bookstore/internal/testutil"
	"bookstore/internal/usecase"

	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"
)

// =====================
// Gateway mock
// =====================

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
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

func (m *gatewayMock) VerifyWebhook(payload []byte, signatureHeader string) (payment.Event, error) {
	args := m.Called(payload, signatureHeader)
	ev, _ := args.Get(0).(payment.Event)
	return ev, args.Error(1)
}

var _ payment.Gateway = (*gatewayMock)(nil)

// =====================
// Clock / ID
// =====================

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type seqIDs struct{ n atomic.Int64 }

func (g *seqIDs) NewID() string {
	return fmt.Sprintf("order-%03d", g.n.Add(1))
}

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// =====================
// 実ストア（SQLite）＋モックゲートウェイ
// =====================

type env struct {
	db        *gorm.DB
	gw        *gatewayMock
	tx        *infraRepo.TxManagerGorm
	orders    *infraRepo.OrderGormRepository
	products  *infraRepo.ProductGormRepository
	audit     *infraRepo.AuditLogGormRepository
	lifecycle *usecase.OrderLifecycle
	clock     fixedClock
	urls      usecase.CheckoutURLs
}

func newEnv(t *testing.T) *env {
	t.Helper()

	gdb := testutil.NewTestDB(t)
	tx := infraRepo.NewTxManagerGorm(gdb)
	return &env{
		db:        gdb,
		gw:        new(gatewayMock),
		tx:        tx,
		orders:    infraRepo.NewOrderGormRepository(gdb),
		products:  infraRepo.NewProductGormRepository(gdb),
		audit:     infraRepo.NewAuditLogGormRepository(gdb),
		lifecycle: usecase.NewOrderLifecycle(tx),
		clock:     fixedClock{now: testNow},
		urls:      usecase.NewCheckoutURLs("https://shop.example"),
	}
}

func (e *env) checkoutUC() *usecase.CheckoutUsecase {
	return usecase.NewCheckoutUsecase(e.tx, e.products, e.orders, e.gw, e.lifecycle, e.urls,
		&seqIDs{}, e.clock, logging.Discard(), nil)
}

func (e *env) webhookUC() *usecase.WebhookUsecase {
	return usecase.NewWebhookUsecase(e.orders, e.gw, e.lifecycle, logging.Discard(), nil)
}

func (e *env) reconcileUC(lock usecase.SweepLock, opts usecase.ReconcileOptions) *usecase.ReconcileUsecase {
	return usecase.NewReconcileUsecase(e.orders, e.gw, e.lifecycle, lock, e.clock, opts, logging.Discard(), nil)
}

func httpStatus(err error) int {
	if he, ok := usecase.AsHTTPError(err); ok {
		return he.Status
	}
	return 0
}

func countOrders(t *testing.T, gdb *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := gdb.Table("orders").Count(&n).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	return n
}

func completedEvent(id, sessionID string) payment.Event {
	return payment.Event{
		ID:            id,
		Type:          "checkout.session.completed",
		Kind:          payment.EventSessionCompleted,
		SessionID:     sessionID,
		PaymentStatus: payment.PaymentPaid,
	}
}
