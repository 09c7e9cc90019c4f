package service

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/storefront/internal/metrics"
	"github.com/iliyamo/storefront/internal/model"
	"github.com/iliyamo/storefront/internal/payment"
	"github.com/iliyamo/storefront/internal/queue"
	"github.com/iliyamo/storefront/internal/repository"
	"github.com/iliyamo/storefront/internal/rpc"
)

// Products loads products by id.
type Products interface {
	FindByIDs(ctx context.Context, ids []string) ([]model.Product, error)
}

// Orders persists orders.
type Orders interface {
	Create(ctx context.Context, userID uint64, productIDs []string) (model.Order, error)
	GetByID(ctx context.Context, id string) (model.Order, error)
	MarkPaid(ctx context.Context, id string) error
}

// WebhookEvents records processed gateway deliveries.
type WebhookEvents interface {
	Record(ctx context.Context, eventID, eventType string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// PaymentOptions configures checkout sessions.
type PaymentOptions struct {
	// ServerURL is the public base URL the gateway redirects back to.
	ServerURL string
	// SupplementaryPriceID is the fixed line item added to every session.
	SupplementaryPriceID string
}

// PaymentService implements payment.createSession, payment.pollOrderStatus
// and the confirmation of paid checkout sessions.
type PaymentService struct {
	products Products
	orders   Orders
	events   WebhookEvents
	gateway  payment.Gateway
	pub      queue.Publisher
	log      *logrus.Logger
	opts     PaymentOptions
}

func NewPaymentService(products Products, orders Orders, events WebhookEvents, gateway payment.Gateway,
	pub queue.Publisher, log *logrus.Logger, opts PaymentOptions) *PaymentService {
	opts.ServerURL = strings.TrimRight(opts.ServerURL, "/")
	return &PaymentService{products: products, orders: orders, events: events, gateway: gateway, pub: pub, log: log, opts: opts}
}

// CreateSession creates an unpaid order for the priced products among
// productIDs and asks the gateway for a hosted checkout session.  A gateway
// failure is logged and answered with a nil URL.
func (s *PaymentService) CreateSession(ctx context.Context, userID uint64, in rpc.CreateSessionInput) (rpc.CreateSessionOutput, error) {
	if len(in.ProductIDs) == 0 {
		metrics.RecordCheckoutSession("rejected")
		return rpc.CreateSessionOutput{}, rpc.BadRequest("productIds must not be empty", nil)
	}

	products, err := s.products.FindByIDs(ctx, dedupe(in.ProductIDs))
	if err != nil {
		return rpc.CreateSessionOutput{}, rpc.Internal(err)
	}
	priced := make([]model.Product, 0, len(products))
	for _, p := range products {
		if p.HasPrice() {
			priced = append(priced, p)
		}
	}
	orderProducts := make([]string, 0, len(priced))
	for _, p := range priced {
		orderProducts = append(orderProducts, p.ID)
	}

	order, err := s.orders.Create(ctx, userID, orderProducts)
	if err != nil {
		return rpc.CreateSessionOutput{}, rpc.Internal(err)
	}

	params := s.checkoutParams(order, priced)
	sessionURL, err := s.gateway.CreateCheckoutSession(ctx, params)
	if err != nil || sessionURL == "" {
		metrics.RecordCheckoutSession("gateway_error")
		s.log.WithError(err).WithFields(logrus.Fields{
			"order_id": order.ID,
			"user_id":  userID,
		}).Error("checkout session not created")
		return rpc.CreateSessionOutput{URL: nil}, nil
	}
	metrics.RecordCheckoutSession("created")
	return rpc.CreateSessionOutput{URL: &sessionURL}, nil
}

func (s *PaymentService) checkoutParams(order model.Order, priced []model.Product) payment.CheckoutParams {
	items := make([]payment.LineItem, 0, len(priced)+1)
	for _, p := range priced {
		items = append(items, payment.LineItem{PriceID: p.PriceID, Quantity: 1})
	}
	items = append(items, payment.LineItem{PriceID: s.opts.SupplementaryPriceID, Quantity: 1, FixedQuantity: true})

	return payment.CheckoutParams{
		LineItems:          items,
		SuccessURL:         s.opts.ServerURL + "/thank-you?orderId=" + url.QueryEscape(order.ID),
		CancelURL:          s.opts.ServerURL + "/cart",
		PaymentMethodTypes: []string{"card"},
		Mode:               "payment",
		Metadata: map[string]string{
			"userId":  strconv.FormatUint(order.UserID, 10),
			"orderId": order.ID,
		},
	}
}

// PollOrderStatus reports whether the order has been paid.
func (s *PaymentService) PollOrderStatus(ctx context.Context, orderID string) (rpc.OrderStatusOutput, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return rpc.OrderStatusOutput{}, rpc.BadRequest("orderId is required", nil)
	}
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return rpc.OrderStatusOutput{}, rpc.NotFound("order not found", err)
		}
		return rpc.OrderStatusOutput{}, rpc.Internal(err)
	}
	return rpc.OrderStatusOutput{IsPaid: o.IsPaid}, nil
}

// Webhook results reported by ConfirmPayment.
const (
	WebhookProcessed = "processed"
	WebhookDuplicate = "duplicate"
	WebhookIgnored   = "ignored"
)

// ConfirmPayment applies a verified gateway event.  A completed checkout
// session marks its order paid and publishes order.paid exactly once per
// event id; other event types are ignored.
func (s *PaymentService) ConfirmPayment(ctx context.Context, ev payment.Event) (string, error) {
	if ev.Type != payment.EventCheckoutCompleted {
		metrics.RecordWebhookEvent(ev.Type, WebhookIgnored)
		return WebhookIgnored, nil
	}
	sessionID := payment.SessionID(ev.Object)
	orderID, userID, err := payment.CheckoutMetadata(ev.Object)
	if err != nil {
		metrics.RecordWebhookEvent(ev.Type, "rejected")
		s.log.WithError(err).WithFields(logrus.Fields{"event_id": ev.ID, "session_id": sessionID}).Warn("checkout session without order metadata")
		return "", rpc.BadRequest("checkout session metadata incomplete", err)
	}

	first, err := s.events.Record(ctx, ev.ID, ev.Type)
	if err != nil {
		return "", rpc.Internal(err)
	}
	if !first {
		metrics.RecordWebhookEvent(ev.Type, WebhookDuplicate)
		return WebhookDuplicate, nil
	}

	order, err := s.applyPaid(ctx, orderID, userID)
	if err != nil {
		// let the gateway redeliver
		if ferr := s.events.Forget(ctx, ev.ID); ferr != nil {
			s.log.WithError(ferr).WithField("event_id", ev.ID).Error("webhook event not released")
		}
		return "", err
	}

	paid := queue.OrderPaidEvent{
		OrderID:    order.ID,
		UserID:     order.UserID,
		ProductIDs: order.ProductIDs,
		EventID:    ev.ID,
		PaidAt:     time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.pub.Publish(ctx, queue.QueueOrderPaid, paid); err != nil {
		s.log.WithError(err).WithField("order_id", order.ID).Warn("order.paid not published")
	}
	metrics.RecordWebhookEvent(ev.Type, WebhookProcessed)
	s.log.WithFields(logrus.Fields{"order_id": order.ID, "event_id": ev.ID, "session_id": sessionID}).Info("order paid")
	return WebhookProcessed, nil
}

func (s *PaymentService) applyPaid(ctx context.Context, orderID string, userID uint64) (model.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return model.Order{}, rpc.NotFound("order not found", err)
		}
		return model.Order{}, rpc.Internal(err)
	}
	if order.UserID != userID {
		return model.Order{}, rpc.BadRequest("order does not belong to user", nil)
	}
	if err := s.orders.MarkPaid(ctx, orderID); err != nil {
		return model.Order{}, rpc.Internal(err)
	}
	order.IsPaid = true
	return order, nil
}

// dedupe drops repeated ids.  Ids are opaque: blank or padded ones are kept
// and simply match no product.
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
