// Package queue defines message payloads exchanged over the message broker,
// the publisher used by request handlers and the background consumer.
package queue

// Queue names.  Each event type travels on its own durable queue through
// the default exchange.
const (
	QueueVerificationRequested = "user.verification_requested"
	QueueOrderPaid             = "order.paid"
)

// VerificationRequestedEvent is published after an account is created.  It
// carries the raw verification token; only its hash is stored.
type VerificationRequestedEvent struct {
	UserID      uint64 `json:"user_id"`
	Email       string `json:"email"`
	Token       string `json:"token"`
	VerifyURL   string `json:"verify_url"`
	RequestedAt string `json:"requested_at"`
}

// OrderPaidEvent is published once per order when the payment gateway
// confirms a checkout session.
type OrderPaidEvent struct {
	OrderID    string   `json:"order_id"`
	UserID     uint64   `json:"user_id"`
	ProductIDs []string `json:"product_ids"`
	EventID    string   `json:"event_id"`
	PaidAt     string   `json:"paid_at"`
}
