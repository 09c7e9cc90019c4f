package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront/internal/identity"
	"github.com/iliyamo/storefront/internal/middleware"
	"github.com/iliyamo/storefront/internal/rpc"
)

// AuthProcedures is implemented by service.AuthService.
type AuthProcedures interface {
	CreateAccount(ctx context.Context, in rpc.Credentials) (rpc.CreateAccountOutput, error)
	VerifyEmail(ctx context.Context, token string) (rpc.SuccessOutput, error)
	SignIn(ctx context.Context, in rpc.Credentials) (identity.Session, error)
	Refresh(ctx context.Context, refreshToken string) (identity.Session, error)
	SignOut(ctx context.Context, refreshToken string) (rpc.SuccessOutput, error)
	Me(ctx context.Context, userID uint64) (rpc.MeOutput, error)
}

// CookieConfig names and scopes the session cookies.
type CookieConfig struct {
	Session string
	Refresh string
	Secure  bool
}

// AuthHandler bundles dependencies for the auth procedures.
type AuthHandler struct {
	svc     AuthProcedures
	cookies CookieConfig
}

func NewAuthHandler(svc AuthProcedures, cookies CookieConfig) *AuthHandler {
	return &AuthHandler{svc: svc, cookies: cookies}
}

// CreatePayloadUser handles auth.createPayloadUser.
func (h *AuthHandler) CreatePayloadUser(c echo.Context) error {
	var in rpc.Credentials
	if err := c.Bind(&in); err != nil {
		return fail(c, rpc.ProcCreatePayloadUser, rpc.BadRequest("invalid body", err))
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	out, err := h.svc.CreateAccount(ctx, in)
	if err != nil {
		return fail(c, rpc.ProcCreatePayloadUser, err)
	}
	return c.JSON(http.StatusOK, out)
}

// VerifyEmail handles auth.verifyEmail?token=.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	out, err := h.svc.VerifyEmail(ctx, c.QueryParam("token"))
	if err != nil {
		return fail(c, rpc.ProcVerifyEmail, err)
	}
	return c.JSON(http.StatusOK, out)
}

// SignIn handles auth.signIn.  The session travels in HttpOnly cookies;
// the body only reports success.
func (h *AuthHandler) SignIn(c echo.Context) error {
	var in rpc.Credentials
	if err := c.Bind(&in); err != nil {
		return fail(c, rpc.ProcSignIn, rpc.BadRequest("invalid body", err))
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	sess, err := h.svc.SignIn(ctx, in)
	if err != nil {
		return fail(c, rpc.ProcSignIn, err)
	}
	h.setSession(c, sess)
	return c.JSON(http.StatusOK, rpc.SuccessOutput{Success: true})
}

// Refresh handles auth.refresh: rotates the refresh cookie and re-issues
// the session cookie.
func (h *AuthHandler) Refresh(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	sess, err := h.svc.Refresh(ctx, h.cookieValue(c, h.cookies.Refresh))
	if err != nil {
		h.clearSession(c)
		return fail(c, rpc.ProcRefresh, err)
	}
	h.setSession(c, sess)
	return c.JSON(http.StatusOK, rpc.SuccessOutput{Success: true})
}

// SignOut handles auth.signOut.
func (h *AuthHandler) SignOut(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	out, err := h.svc.SignOut(ctx, h.cookieValue(c, h.cookies.Refresh))
	h.clearSession(c)
	if err != nil {
		return fail(c, rpc.ProcSignOut, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Me handles auth.me.  It runs behind JWTAuth.
func (h *AuthHandler) Me(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return fail(c, rpc.ProcMe, rpc.Unauthorized("", nil))
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	out, err := h.svc.Me(ctx, uid)
	if err != nil {
		return fail(c, rpc.ProcMe, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AuthHandler) cookieValue(c echo.Context, name string) string {
	ck, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	return ck.Value
}

func (h *AuthHandler) setSession(c echo.Context, sess identity.Session) {
	c.SetCookie(h.cookie(h.cookies.Session, sess.Access.Token, sess.Access.Exp))
	c.SetCookie(h.cookie(h.cookies.Refresh, sess.Refresh.Raw, sess.Refresh.Exp))
}

func (h *AuthHandler) clearSession(c echo.Context) {
	for _, name := range []string{h.cookies.Session, h.cookies.Refresh} {
		ck := h.cookie(name, "", time.Unix(0, 0))
		ck.MaxAge = -1
		c.SetCookie(ck)
	}
}

func (h *AuthHandler) cookie(name, value string, exp time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
