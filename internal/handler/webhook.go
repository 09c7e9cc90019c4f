package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/storefront/internal/middleware"
	"github.com/iliyamo/storefront/internal/payment"
	"github.com/iliyamo/storefront/internal/rpc"
)

// maxWebhookBody caps the payload read from the gateway.
const maxWebhookBody = 65536

// PaymentConfirmer applies verified gateway events.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, ev payment.Event) (string, error)
}

// WebhookHandler receives the payment gateway's event deliveries.
type WebhookHandler struct {
	verifier payment.Verifier
	svc      PaymentConfirmer
	log      *logrus.Logger
}

func NewWebhookHandler(verifier payment.Verifier, svc PaymentConfirmer, log *logrus.Logger) *WebhookHandler {
	return &WebhookHandler{verifier: verifier, svc: svc, log: log}
}

// Stripe handles POST /api/webhooks/stripe.  Deliveries that fail the
// signature check get 400 so the gateway reports them; oversized bodies get
// 413 and are never verified; processing errors get 5xx so the gateway
// retries.
func (h *WebhookHandler) Stripe(c echo.Context) error {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Response(), c.Request().Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return h.reject(c, http.StatusRequestEntityTooLarge, "payload too large", err)
		}
		return h.reject(c, http.StatusServiceUnavailable, "could not read body", err)
	}
	ev, err := h.verifier.Verify(payload, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, payment.ErrNotConfigured) {
			return h.reject(c, http.StatusServiceUnavailable, "webhook secret not configured", err)
		}
		return h.reject(c, http.StatusBadRequest, "invalid signature", err)
	}

	ctx, cancel := withTimeout(c)
	defer cancel()
	result, err := h.svc.ConfirmPayment(ctx, ev)
	if err != nil {
		e := rpc.From(err)
		if e.Cause != nil {
			c.Set(middleware.CtxErrorCause, e.Cause)
		}
		h.log.WithError(err).WithFields(logrus.Fields{"event_id": ev.ID, "type": ev.Type}).Error("webhook event failed")
		return c.JSON(e.Code.HTTPStatus(), echo.Map{"error": e})
	}
	return c.JSON(http.StatusOK, echo.Map{"received": true, "result": result})
}

func (h *WebhookHandler) reject(c echo.Context, status int, msg string, err error) error {
	c.Set(middleware.CtxErrorCause, err)
	return c.JSON(status, echo.Map{"error": rpc.NewError(rpc.CodeFromStatus(status), msg, err)})
}
