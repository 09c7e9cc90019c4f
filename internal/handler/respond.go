package handler

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront/internal/metrics"
	"github.com/iliyamo/storefront/internal/middleware"
	"github.com/iliyamo/storefront/internal/rpc"
)

// requestTimeout bounds the store and gateway work of one procedure.
const requestTimeout = 5 * time.Second

func withTimeout(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// fail writes the error envelope for a failed procedure.  The cause is
// handed to the request logger, never to the client.
func fail(c echo.Context, proc string, err error) error {
	e := rpc.From(err)
	if e.Cause != nil {
		c.Set(middleware.CtxErrorCause, e.Cause)
	}
	metrics.RecordProcedureError(proc, string(e.Code))
	return c.JSON(e.Code.HTTPStatus(), echo.Map{"error": e})
}
