package rpc

import "time"

// Prefix is the mount point of every procedure route.
const Prefix = "/api/rpc"

// Procedure names.  The route of a procedure is Prefix + "/" + name.
const (
	ProcCreatePayloadUser   = "auth.createPayloadUser"
	ProcVerifyEmail         = "auth.verifyEmail"
	ProcSignIn              = "auth.signIn"
	ProcSignOut             = "auth.signOut"
	ProcRefresh             = "auth.refresh"
	ProcMe                  = "auth.me"
	ProcCreateSession       = "payment.createSession"
	ProcPollOrderStatus     = "payment.pollOrderStatus"
	ProcGetInfiniteProducts = "getInfiniteProducts"
)

// Path returns the route path of a procedure.
func Path(proc string) string { return Prefix + "/" + proc }

// Credentials is the input of auth.createPayloadUser and auth.signIn.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreateAccountOutput is returned by auth.createPayloadUser.
type CreateAccountOutput struct {
	Success     bool   `json:"success"`
	SendToEmail string `json:"sendToEmail"`
}

// SuccessOutput is returned by procedures with no other payload.
type SuccessOutput struct {
	Success bool `json:"success"`
}

// MeOutput is returned by auth.me.
type MeOutput struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// CreateSessionInput is the input of payment.createSession.
type CreateSessionInput struct {
	ProductIDs []string `json:"productIds"`
}

// CreateSessionOutput carries the hosted checkout URL, nil when the
// gateway could not create a session.
type CreateSessionOutput struct {
	URL *string `json:"url"`
}

// OrderStatusOutput is returned by payment.pollOrderStatus.
type OrderStatusOutput struct {
	IsPaid bool `json:"isPaid"`
}

// ProductQuery filters the product listing.
type ProductQuery struct {
	Category string `json:"category,omitempty"`
	Sort     string `json:"sort,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// InfiniteProductsInput is the input of getInfiniteProducts.  Cursor is the
// 1-based page to fetch; zero means the first page.
type InfiniteProductsInput struct {
	Limit  int          `json:"limit"`
	Cursor int          `json:"cursor,omitempty"`
	Query  ProductQuery `json:"query"`
}

// Product is the public shape of a product.
type Product struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	PriceCents int64     `json:"priceCents"`
	CreatedAt  time.Time `json:"createdAt"`
}

// InfiniteProductsOutput is one page of products.  NextPage is nil on the
// last page.
type InfiniteProductsOutput struct {
	Items    []Product `json:"items"`
	NextPage *int      `json:"nextPage"`
}
