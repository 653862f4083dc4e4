package handler

import (
	"log/slog"
	"net/http"

	"bookstore/internal/middleware"
	"bookstore/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 定期実行（cron）から呼ばれる照合ジョブ
type ReconcileHandler struct {
	uc  *usecase.ReconcileUsecase
	log *slog.Logger
}

func NewReconcileHandler(uc *usecase.ReconcileUsecase, log *slog.Logger) *ReconcileHandler {
	return &ReconcileHandler{uc: uc, log: log}
}

func (h *ReconcileHandler) RegisterRoutes(e *echo.Echo, cronSecret string) {
	g := e.Group("/internal")
	g.Use(middleware.SchedulerAuth(cronSecret))

	g.POST("/reconcile", h.run)
}

func (h *ReconcileHandler) run(c echo.Context) error {
	ctx := c.Request().Context()

	summary, err := h.uc.ReconcileAll(ctx)
	if err != nil {
		h.log.ErrorContext(ctx, "reconcile failed", "err", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "reconcile failed"})
	}
	return c.JSON(http.StatusOK, summary)
}
