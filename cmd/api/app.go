package main

import (
	"fmt"
	"log/slog"
	"time"

	"bookstore/internal/config"
	"bookstore/internal/handler"
	"bookstore/internal/infra/db"
	"bookstore/internal/infra/lock"
	infraRepo "bookstore/internal/infra/repository"
	"bookstore/internal/infra/stripepay"
	"bookstore/internal/metrics"
	"bookstore/internal/server"
	"bookstore/internal/usecase"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type uuidGenerator struct{}

func (g *uuidGenerator) NewID() string {
	return uuid.NewString()
}

type realClock struct{}

func (c *realClock) Now() time.Time {
	return time.Now().UTC()
}

// 起動ごとに組み立てる部品一式
type app struct {
	db      *gorm.DB
	redis   *redis.Client
	log     *slog.Logger
	metrics *metrics.Metrics

	checkout  *usecase.CheckoutUsecase
	webhook   *usecase.WebhookUsecase
	reconcile *usecase.ReconcileUsecase
	orders    *usecase.OrderUsecase
	admin     *usecase.AdminOrderUsecase
	products  *usecase.ProductUsecase
}

func newApp(cfg config.Config, log *slog.Logger) (*app, error) {
	//DB接続
	gormDB, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	gateway, err := stripepay.NewGateway(stripepay.Config{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		Currency:      cfg.Currency,
	})
	if err != nil {
		return nil, err
	}

	//Repository（GORM実装）生成
	txm := infraRepo.NewTxManagerGorm(gormDB)
	orderRepo := infraRepo.NewOrderGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	auditRepo := infraRepo.NewAuditLogGormRepository(gormDB)

	//usecaseに渡す部品
	idGen := &uuidGenerator{}
	clock := &realClock{}
	m := metrics.New()
	lifecycle := usecase.NewOrderLifecycle(txm)

	a := &app{db: gormDB, log: log, metrics: m}

	//REDIS_ADDRがあるときだけsweepロックを使う
	var sweepLock usecase.SweepLock
	if cfg.RedisAddr != "" {
		a.redis = lock.NewRedisClient(cfg.RedisAddr)
		sweepLock = lock.NewRedisLock(a.redis, lock.Key("bookstore", "reconcile"), 15*time.Minute, log)
	}

	//Usecase生成
	a.checkout = usecase.NewCheckoutUsecase(txm, productRepo, orderRepo, gateway, lifecycle,
		usecase.NewCheckoutURLs(cfg.FEURL), idGen, clock, log, m)
	a.webhook = usecase.NewWebhookUsecase(orderRepo, gateway, lifecycle, log, m)
	a.reconcile = usecase.NewReconcileUsecase(orderRepo, gateway, lifecycle, sweepLock, clock,
		usecase.ReconcileOptions{
			Grace:       cfg.ReconcileGrace,
			Concurrency: cfg.ReconcileConcurrency,
			BatchSize:   cfg.ReconcileBatch,
		}, log, m)
	a.orders = usecase.NewOrderUsecase(txm, clock)
	a.admin = usecase.NewAdminOrderUsecase(txm, auditRepo, clock)
	a.products = usecase.NewProductUsecase(productRepo, txm, clock)

	return a, nil
}

func (a *app) handlers() server.Handlers {
	return server.Handlers{
		Checkout:     handler.NewCheckoutHandler(a.checkout),
		Webhook:      handler.NewWebhookHandler(a.webhook),
		Reconcile:    handler.NewReconcileHandler(a.reconcile, a.log),
		Order:        handler.NewOrderHandler(a.orders),
		AdminOrder:   handler.NewAdminOrderHandler(a.admin),
		Product:      handler.NewProductHandler(a.products),
		AdminProduct: handler.NewAdminProductHandler(a.products),
		Metrics:      a.metrics.Handler(),
	}
}

func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
