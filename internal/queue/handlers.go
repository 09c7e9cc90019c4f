package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/iliyamo/storefront/internal/mail"
	"github.com/iliyamo/storefront/internal/model"
)

// UserLookup resolves the account an order belongs to.
type UserLookup interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// VerificationMailHandler mails the verification link carried by a
// VerificationRequestedEvent.
func VerificationMailHandler(m mail.Mailer) Handler {
	return func(ctx context.Context, body []byte) error {
		var ev VerificationRequestedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		if ev.Email == "" || ev.VerifyURL == "" {
			return fmt.Errorf("verification event for user %d is incomplete", ev.UserID)
		}
		return m.Send(ctx, mail.Message{
			To:      ev.Email,
			Subject: "Verify your account",
			Body: "Welcome!\n\nClick the link below to verify your email address:\n\n" +
				ev.VerifyURL + "\n\nIf you did not create an account you can ignore this mail.\n",
		})
	}
}

// OrderReceiptHandler mails a receipt to the owner of a paid order.
func OrderReceiptHandler(m mail.Mailer, users UserLookup) Handler {
	return func(ctx context.Context, body []byte) error {
		var ev OrderPaidEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		if ev.OrderID == "" || ev.UserID == 0 {
			return fmt.Errorf("order paid event is incomplete")
		}
		u, err := users.GetByID(ctx, ev.UserID)
		if err != nil {
			return fmt.Errorf("load user %d: %w", ev.UserID, err)
		}
		items := "-"
		if len(ev.ProductIDs) > 0 {
			items = strings.Join(ev.ProductIDs, ", ")
		}
		return m.Send(ctx, mail.Message{
			To:      u.Email,
			Subject: "Thank you for your order",
			Body: fmt.Sprintf("Your payment was received.\n\nOrder: %s\nProducts: %s\nPaid at: %s\n",
				ev.OrderID, items, ev.PaidAt),
		})
	}
}
