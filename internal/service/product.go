package service

import (
	"context"
	"strings"

	"github.com/iliyamo/storefront/internal/model"
	"github.com/iliyamo/storefront/internal/repository"
	"github.com/iliyamo/storefront/internal/rpc"
)

// Listing limits.  DefaultProductLimit matches the reel's fallback page size.
const (
	DefaultProductLimit = 4
	MaxProductLimit     = 100
)

// ProductLister pages through approved products.
type ProductLister interface {
	ListApproved(ctx context.Context, q repository.ProductListQuery) ([]model.Product, bool, error)
}

// ProductService implements getInfiniteProducts.
type ProductService struct {
	products ProductLister
}

func NewProductService(products ProductLister) *ProductService {
	return &ProductService{products: products}
}

// InfiniteProducts returns the page at in.Cursor (1-based, 0 = first) and
// the number of the next page, nil on the last one.
func (s *ProductService) InfiniteProducts(ctx context.Context, in rpc.InfiniteProductsInput) (rpc.InfiniteProductsOutput, error) {
	limit := in.Query.Limit
	if limit <= 0 {
		limit = in.Limit
	}
	limit = clampLimit(limit)

	sort := strings.ToLower(strings.TrimSpace(in.Query.Sort))
	switch sort {
	case "", "desc":
		sort = "desc"
	case "asc":
	default:
		return rpc.InfiniteProductsOutput{}, rpc.BadRequest("sort must be asc or desc", nil)
	}
	if in.Cursor < 0 {
		return rpc.InfiniteProductsOutput{}, rpc.BadRequest("cursor must not be negative", nil)
	}
	page := in.Cursor
	if page == 0 {
		page = 1
	}

	items, hasNext, err := s.products.ListApproved(ctx, repository.ProductListQuery{
		Category: strings.TrimSpace(in.Query.Category),
		Sort:     sort,
		Limit:    limit,
		Page:     page,
	})
	if err != nil {
		return rpc.InfiniteProductsOutput{}, rpc.Internal(err)
	}

	out := rpc.InfiniteProductsOutput{Items: make([]rpc.Product, 0, len(items))}
	for _, p := range items {
		out.Items = append(out.Items, rpc.Product{
			ID:         p.ID,
			Name:       p.Name,
			Category:   p.Category,
			PriceCents: p.PriceCents,
			CreatedAt:  p.CreatedAt,
		})
	}
	if hasNext {
		next := page + 1
		out.NextPage = &next
	}
	return out, nil
}

func clampLimit(n int) int {
	if n <= 0 {
		return DefaultProductLimit
	}
	if n > MaxProductLimit {
		return MaxProductLimit
	}
	return n
}
