package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront/internal/middleware"
	"github.com/iliyamo/storefront/internal/rpc"
)

// PaymentProcedures is implemented by service.PaymentService.
type PaymentProcedures interface {
	CreateSession(ctx context.Context, userID uint64, in rpc.CreateSessionInput) (rpc.CreateSessionOutput, error)
	PollOrderStatus(ctx context.Context, orderID string) (rpc.OrderStatusOutput, error)
}

// PaymentHandler serves the payment procedures.  Both routes run behind
// JWTAuth.
type PaymentHandler struct {
	svc PaymentProcedures
}

func NewPaymentHandler(svc PaymentProcedures) *PaymentHandler { return &PaymentHandler{svc: svc} }

// CreateSession handles payment.createSession.
func (h *PaymentHandler) CreateSession(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return fail(c, rpc.ProcCreateSession, rpc.Unauthorized("", nil))
	}
	var in rpc.CreateSessionInput
	if err := c.Bind(&in); err != nil {
		return fail(c, rpc.ProcCreateSession, rpc.BadRequest("invalid body", err))
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	out, err := h.svc.CreateSession(ctx, uid, in)
	if err != nil {
		return fail(c, rpc.ProcCreateSession, err)
	}
	return c.JSON(http.StatusOK, out)
}

// PollOrderStatus handles payment.pollOrderStatus?orderId=.
func (h *PaymentHandler) PollOrderStatus(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	out, err := h.svc.PollOrderStatus(ctx, c.QueryParam("orderId"))
	if err != nil {
		return fail(c, rpc.ProcPollOrderStatus, err)
	}
	return c.JSON(http.StatusOK, out)
}
