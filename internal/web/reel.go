package web

import (
	"context"
	"errors"

	"github.com/iliyamo/storefront/internal/rpc"
)

// FallbackLimit is the page size used when the query names none.
const FallbackLimit = 4

// ProductReel accumulates the pages of one product listing.  While the
// first page is outstanding the reel is pending and shows one empty slot
// per requested product.
type ProductReel struct {
	Title string
	Query rpc.ProductQuery

	pending bool
	pages   []rpc.InfiniteProductsOutput
	err     error
}

// NewProductReel returns a pending reel for query.
func NewProductReel(title string, query rpc.ProductQuery) *ProductReel {
	return &ProductReel{Title: title, Query: query, pending: true}
}

// Limit is the page size the reel requests.
func (r *ProductReel) Limit() int {
	if r.Query.Limit > 0 {
		return r.Query.Limit
	}
	return FallbackLimit
}

// Resolve appends a fetched page and ends the pending state.
func (r *ProductReel) Resolve(page rpc.InfiniteProductsOutput) {
	r.pages = append(r.pages, page)
	r.pending = false
}

// Fail records a fetch error.  Pages already fetched are kept.
func (r *ProductReel) Fail(err error) {
	r.err = err
	r.pending = false
}

func (r *ProductReel) Pending() bool { return r.pending }
func (r *ProductReel) Err() error    { return r.err }

// Slots returns what the reel displays: every fetched product in page
// order, or Limit nil placeholders while pending.  A settled reel with no
// products yields nothing.
func (r *ProductReel) Slots() []*rpc.Product {
	var out []*rpc.Product
	for i := range r.pages {
		for j := range r.pages[i].Items {
			out = append(out, &r.pages[i].Items[j])
		}
	}
	if len(out) > 0 {
		return out
	}
	if r.pending {
		return make([]*rpc.Product, r.Limit())
	}
	return nil
}

// NextPage is the cursor of the page after the last fetched one; ok is
// false on the last page or before anything was fetched.
func (r *ProductReel) NextPage() (int, bool) {
	if len(r.pages) == 0 {
		return 0, false
	}
	next := r.pages[len(r.pages)-1].NextPage
	if next == nil {
		return 0, false
	}
	return *next, true
}

// ProductLister is the part of the procedure client the reel needs.
type ProductLister interface {
	GetInfiniteProducts(ctx context.Context, in rpc.InfiniteProductsInput) (rpc.InfiniteProductsOutput, error)
}

// Load fetches up to n pages, following nextPage.  A deadline hit before
// the first page arrives leaves the reel pending.
func (r *ProductReel) Load(ctx context.Context, client ProductLister, n int) {
	cursor := 0
	for i := 0; i < n; i++ {
		page, err := client.GetInfiniteProducts(ctx, rpc.InfiniteProductsInput{
			Limit:  r.Limit(),
			Cursor: cursor,
			Query:  r.Query,
		})
		if err != nil {
			if r.pending && errors.Is(err, context.DeadlineExceeded) {
				return
			}
			r.Fail(err)
			return
		}
		r.Resolve(page)
		next, ok := r.NextPage()
		if !ok {
			return
		}
		cursor = next
	}
}
