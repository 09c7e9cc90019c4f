// Package router wires handlers and middleware onto the Echo instance.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/storefront/internal/handler"
	"github.com/iliyamo/storefront/internal/metrics"
	"github.com/iliyamo/storefront/internal/middleware"
	"github.com/iliyamo/storefront/internal/rpc"
)

// Auth names what the JWT middleware needs to find and check a session.
type Auth struct {
	Secret string
	Cookie string
}

// New returns an Echo instance with the server-wide middleware installed.
func New(log *logrus.Logger, allowOrigins []string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	// X-Forwarded-For is honoured only from loopback and private-network
	// peers: the pages' own procedure calls and a fronting proxy.
	e.IPExtractor = echo.ExtractIPFromXFFHeader()

	e.Use(echomw.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(middleware.Metrics())
	e.Use(echomw.BodyLimit("1M"))
	if len(allowOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins:     allowOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost},
			AllowCredentials: true,
		}))
	}
	return e
}

// RegisterRoutes registers the unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
}

// RegisterAuth registers the auth procedures.  Account creation, sign-in
// and the session cookie exchange are open; auth.me needs a session.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, auth Auth, limit echo.MiddlewareFunc) {
	g := e.Group(rpc.Prefix, limit)
	g.POST("/"+rpc.ProcCreatePayloadUser, a.CreatePayloadUser)
	g.GET("/"+rpc.ProcVerifyEmail, a.VerifyEmail)
	g.POST("/"+rpc.ProcSignIn, a.SignIn)
	g.POST("/"+rpc.ProcRefresh, a.Refresh)
	g.POST("/"+rpc.ProcSignOut, a.SignOut)

	g.GET("/"+rpc.ProcMe, a.Me,
		middleware.JWTAuth(auth.Secret, auth.Cookie),
		middleware.RequireRole("user", "admin"),
	)
}

// RegisterPayment registers the payment procedures, which all require a
// session, and the gateway webhook, which authenticates by signature.
func RegisterPayment(e *echo.Echo, p *handler.PaymentHandler, w *handler.WebhookHandler, auth Auth, limit echo.MiddlewareFunc) {
	g := e.Group(rpc.Prefix, middleware.JWTAuth(auth.Secret, auth.Cookie), limit)
	g.POST("/"+rpc.ProcCreateSession, p.CreateSession)
	g.GET("/"+rpc.ProcPollOrderStatus, p.PollOrderStatus)

	e.POST("/api/webhooks/stripe", w.Stripe)
}

// RegisterProducts registers the public product listing.  The optional
// session only affects rate-limit keys; cache wraps the handler itself.
func RegisterProducts(e *echo.Echo, h *handler.ProductHandler, auth Auth, limit, cache echo.MiddlewareFunc) {
	e.GET(rpc.Path(rpc.ProcGetInfiniteProducts), h.GetInfiniteProducts,
		middleware.OptionalJWT(auth.Secret, auth.Cookie),
		limit,
		cache,
	)
}
