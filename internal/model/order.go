package model

import "time"

// Order links a user to the products they are paying for.  It is
// created unpaid before the checkout session is requested; IsPaid is
// flipped only by the payment confirmation webhook.
//
// Fields:
//  ID         – UUID string primary key.
//  UserID     – buyer.
//  IsPaid     – payment completion flag.
//  ProductIDs – products.id values from order_products.
//  CreatedAt  – creation timestamp.
//  UpdatedAt  – last update timestamp.
type Order struct {
    ID         string    // orders.id
    UserID     uint64    // orders.user_id
    IsPaid     bool      // orders.is_paid
    ProductIDs []string  // order_products.product_id
    CreatedAt  time.Time // orders.created_at
    UpdatedAt  time.Time // orders.updated_at
}
