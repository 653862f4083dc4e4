package handler

import (
	"errors"
	"io"
	"net/http"

	"bookstore/internal/usecase"

	"github.com/labstack/echo/v4"
)

const signatureHeader = "Stripe-Signature"

// 署名検証のためbodyは生のまま読む。途中で切ると署名が合わないので超えたら413
const maxWebhookBody = 512 << 10

type WebhookHandler struct {
	uc *usecase.WebhookUsecase
}

func NewWebhookHandler(uc *usecase.WebhookUsecase) *WebhookHandler {
	return &WebhookHandler{uc: uc}
}

type WebhookResponse struct {
	Received bool   `json:"received"`
	Result   string `json:"result,omitempty"`
}

func (h *WebhookHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/webhooks/payment", h.receive)
}

func (h *WebhookHandler) receive(c echo.Context) error {
	body := http.MaxBytesReader(c.Response(), c.Request().Body, maxWebhookBody)
	payload, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "payload too large"})
		}
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	res, err := h.uc.Handle(c.Request().Context(), payload, c.Request().Header.Get(signatureHeader))
	if err != nil {
		return writeError(c, usecase.WebhookHTTPError(err))
	}

	return c.JSON(http.StatusOK, WebhookResponse{Received: true, Result: string(res)})
}
