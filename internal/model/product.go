package model

import "time"

// Approval states stored in products.approved_for_sale.
const (
    ApprovalPending  = "pending"
    ApprovalApproved = "approved"
    ApprovalDenied   = "denied"
)

// Product mirrors the `products` table.  PriceID is the payment
// gateway's price identifier; products without one cannot be sold.
type Product struct {
    ID              string    // products.id
    UserID          uint64    // products.user_id (seller)
    Name            string    // products.name
    Description     string    // products.description
    Category        string    // products.category
    PriceCents      int64     // products.price_cents
    PriceID         string    // products.price_id (empty when NULL)
    ApprovedForSale string    // products.approved_for_sale
    CreatedAt       time.Time // products.created_at
}

// HasPrice reports whether the product can be turned into a checkout line item.
func (p Product) HasPrice() bool { return p.PriceID != "" }
