// Package payment adapts the hosted payment gateway: checkout session
// creation and verification of its signed event deliveries.
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// ErrNotConfigured is returned by a gateway built without credentials.
var ErrNotConfigured = errors.New("payment gateway not configured")

// LineItem is one priced entry of a checkout session.
type LineItem struct {
	PriceID  string
	Quantity int64
	// FixedQuantity disables quantity adjustment on the hosted page.
	FixedQuantity bool
}

// CheckoutParams describes a hosted checkout session.
type CheckoutParams struct {
	LineItems          []LineItem
	SuccessURL         string
	CancelURL          string
	PaymentMethodTypes []string
	Mode               string
	Metadata           map[string]string
}

// Gateway creates hosted checkout sessions.  The returned string is the
// URL the buyer is redirected to; it may be empty when the gateway
// returned no URL.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (string, error)
}

// StripeGateway implements Gateway with the Stripe API.
type StripeGateway struct {
	sc *client.API
}

// NewStripeGateway returns a gateway authenticated with secretKey.  An
// empty key yields a gateway that always fails with ErrNotConfigured.
func NewStripeGateway(secretKey string) Gateway {
	if secretKey == "" {
		return disabledGateway{}
	}
	return &StripeGateway{sc: client.New(secretKey, nil)}
}

// NewStripeGatewayWithBackend is NewStripeGateway with explicit backends.
func NewStripeGatewayWithBackend(secretKey string, backends *stripe.Backends) *StripeGateway {
	return &StripeGateway{sc: client.New(secretKey, backends)}
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (string, error) {
	params := &stripe.CheckoutSessionParams{
		SuccessURL:         stripe.String(p.SuccessURL),
		CancelURL:          stripe.String(p.CancelURL),
		PaymentMethodTypes: stripe.StringSlice(p.PaymentMethodTypes),
		Mode:               stripe.String(p.Mode),
	}
	params.Context = ctx
	for _, li := range p.LineItems {
		item := &stripe.CheckoutSessionLineItemParams{
			Price:    stripe.String(li.PriceID),
			Quantity: stripe.Int64(li.Quantity),
		}
		if li.FixedQuantity {
			item.AdjustableQuantity = &stripe.CheckoutSessionLineItemAdjustableQuantityParams{
				Enabled: stripe.Bool(false),
			}
		}
		params.LineItems = append(params.LineItems, item)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	s, err := g.sc.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create checkout session: %w", err)
	}
	return s.URL, nil
}

type disabledGateway struct{}

func (disabledGateway) CreateCheckoutSession(context.Context, CheckoutParams) (string, error) {
	return "", ErrNotConfigured
}
