package payment

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v76/webhook"
	"github.com/tidwall/gjson"
)

// EventCheckoutCompleted is the event type sent when a checkout session
// has been paid.
const EventCheckoutCompleted = "checkout.session.completed"

var (
	// ErrInvalidSignature is returned for deliveries that fail signature
	// or timestamp checks.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrMissingMetadata is returned when a completed session lacks the
	// order or user reference.
	ErrMissingMetadata = errors.New("checkout session metadata incomplete")
)

// Event is a verified gateway delivery.  Object is the raw JSON of the
// object the event is about.
type Event struct {
	ID     string
	Type   string
	Object []byte
}

// Verifier authenticates a webhook delivery.
type Verifier interface {
	Verify(payload []byte, signatureHeader string) (Event, error)
}

// StripeVerifier checks the Stripe-Signature header against the endpoint
// secret.
type StripeVerifier struct {
	secret string
}

func NewStripeVerifier(secret string) *StripeVerifier { return &StripeVerifier{secret: secret} }

func (v *StripeVerifier) Verify(payload []byte, signatureHeader string) (Event, error) {
	if v.secret == "" {
		return Event{}, ErrNotConfigured
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	out := Event{ID: ev.ID, Type: string(ev.Type)}
	if ev.Data != nil {
		out.Object = ev.Data.Raw
	}
	return out, nil
}

// CheckoutMetadata reads metadata.orderId and metadata.userId from a
// checkout session object.
func CheckoutMetadata(object []byte) (orderID string, userID uint64, err error) {
	res := gjson.GetManyBytes(object, "metadata.orderId", "metadata.userId")
	if !res[0].Exists() || res[0].String() == "" || !res[1].Exists() {
		return "", 0, ErrMissingMetadata
	}
	userID, err = strconv.ParseUint(res[1].String(), 10, 64)
	if err != nil || userID == 0 {
		return "", 0, fmt.Errorf("%w: userId %q", ErrMissingMetadata, res[1].String())
	}
	return res[0].String(), userID, nil
}

// SessionID returns the id field of an event object, if any.
func SessionID(object []byte) string {
	return gjson.GetBytes(object, "id").String()
}
