package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront/internal/rpc"
)

// ProductProcedures is implemented by service.ProductService.
type ProductProcedures interface {
	InfiniteProducts(ctx context.Context, in rpc.InfiniteProductsInput) (rpc.InfiniteProductsOutput, error)
}

// ProductHandler serves the public product listing.
type ProductHandler struct {
	svc ProductProcedures
}

func NewProductHandler(svc ProductProcedures) *ProductHandler { return &ProductHandler{svc: svc} }

// GetInfiniteProducts handles
// GET getInfiniteProducts?limit=&cursor=&category=&sort=.
func (h *ProductHandler) GetInfiniteProducts(c echo.Context) error {
	limit, err := intParam(c, "limit")
	if err != nil {
		return fail(c, rpc.ProcGetInfiniteProducts, rpc.BadRequest("limit must be an integer", err))
	}
	cursor, err := intParam(c, "cursor")
	if err != nil {
		return fail(c, rpc.ProcGetInfiniteProducts, rpc.BadRequest("cursor must be an integer", err))
	}
	in := rpc.InfiniteProductsInput{
		Limit:  limit,
		Cursor: cursor,
		Query: rpc.ProductQuery{
			Category: c.QueryParam("category"),
			Sort:     c.QueryParam("sort"),
		},
	}

	ctx, cancel := withTimeout(c)
	defer cancel()
	out, err := h.svc.InfiniteProducts(ctx, in)
	if err != nil {
		return fail(c, rpc.ProcGetInfiniteProducts, err)
	}
	return c.JSON(http.StatusOK, out)
}

// intParam parses an optional integer query parameter; absent means 0.
func intParam(c echo.Context, name string) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
