package server

import (
	"net/http"

	"bookstore/internal/config"
	"bookstore/internal/handler"

	"github.com/labstack/echo/v4"
)

type Handlers struct {
	Checkout     *handler.CheckoutHandler
	Webhook      *handler.WebhookHandler
	Reconcile    *handler.ReconcileHandler
	Order        *handler.OrderHandler
	AdminOrder   *handler.AdminOrderHandler
	Product      *handler.ProductHandler
	AdminProduct *handler.AdminProductHandler
	Metrics      http.Handler
}

func RegisterRoutes(e *echo.Echo, cfg config.Config, h Handlers) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if h.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(h.Metrics))
	}

	h.Product.RegisterRoutes(e)
	h.Checkout.RegisterRoutes(e, cfg)
	h.Webhook.RegisterRoutes(e)
	h.Reconcile.RegisterRoutes(e, cfg.CronSecret)
	h.Order.RegisterRoutes(e, cfg)
	h.AdminOrder.RegisterRoutes(e, cfg)
	h.AdminProduct.RegisterRoutes(e, cfg)
}
