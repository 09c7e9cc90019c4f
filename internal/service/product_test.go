package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/storefront/internal/model"
	"github.com/iliyamo/storefront/internal/rpc"
)

func catalogOf(n int) *fakeCatalog {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := &fakeCatalog{}
	for i := 0; i < n; i++ {
		c.products = append(c.products, model.Product{
			ID:              string(rune('a' + i)),
			Category:        "icons",
			ApprovedForSale: model.ApprovalApproved,
			CreatedAt:       base.Add(time.Duration(i) * time.Hour),
		})
	}
	c.products = append(c.products, model.Product{ID: "pending", ApprovedForSale: model.ApprovalPending, CreatedAt: base.Add(100 * time.Hour)})
	return c
}

func ids(items []rpc.Product) []string {
	out := make([]string, 0, len(items))
	for _, p := range items {
		out = append(out, p.ID)
	}
	return out
}

func TestInfiniteProductsPages(t *testing.T) {
	svc := NewProductService(catalogOf(5))
	ctx := context.Background()

	first, err := svc.InfiniteProducts(ctx, rpc.InfiniteProductsInput{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"e", "d"}, ids(first.Items), "newest first, pending excluded")
	require.NotNil(t, first.NextPage)
	assert.Equal(t, 2, *first.NextPage)

	last, err := svc.InfiniteProducts(ctx, rpc.InfiniteProductsInput{Limit: 2, Cursor: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(last.Items))
	assert.Nil(t, last.NextPage)
}

func TestInfiniteProductsQuery(t *testing.T) {
	cat := catalogOf(3)
	svc := NewProductService(cat)

	out, err := svc.InfiniteProducts(context.Background(), rpc.InfiniteProductsInput{
		Limit: 50,
		Query: rpc.ProductQuery{Category: "icons", Sort: "ASC", Limit: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(out.Items))
	assert.Equal(t, 2, cat.lastList.Limit, "query limit wins")
	assert.Equal(t, "asc", cat.lastList.Sort)

	_, err = svc.InfiniteProducts(context.Background(), rpc.InfiniteProductsInput{Query: rpc.ProductQuery{Sort: "sideways"}})
	assert.Equal(t, rpc.CodeBadRequest, rpc.CodeOf(err))
	_, err = svc.InfiniteProducts(context.Background(), rpc.InfiniteProductsInput{Cursor: -1})
	assert.Equal(t, rpc.CodeBadRequest, rpc.CodeOf(err))
}

func TestInfiniteProductsClampsLimit(t *testing.T) {
	cat := catalogOf(1)
	svc := NewProductService(cat)

	_, err := svc.InfiniteProducts(context.Background(), rpc.InfiniteProductsInput{})
	require.NoError(t, err)
	assert.Equal(t, DefaultProductLimit, cat.lastList.Limit)
	assert.Equal(t, 1, cat.lastList.Page)

	_, err = svc.InfiniteProducts(context.Background(), rpc.InfiniteProductsInput{Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, MaxProductLimit, cat.lastList.Limit)
}
