package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront/internal/rpc"
	"github.com/iliyamo/storefront/internal/utils"
)

// JWTAuth returns an Echo middleware that validates the access token and
// stores its subject, email and role in the request context.  The token is
// read from a Bearer Authorization header, falling back to the session
// cookie set by auth.signIn.
func JWTAuth(secret, cookieName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := bearerOrCookie(c.Request(), cookieName)
			if raw == "" {
				return deny(c, rpc.Unauthorized("missing access token", nil))
			}
			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return deny(c, rpc.Unauthorized("invalid access token", err))
			}
			c.Set(ctxUserID, claims.UserID)
			c.Set(ctxRole, claims.Role)
			return next(c)
		}
	}
}

// OptionalJWT is JWTAuth without the rejection: anonymous and invalid
// tokens pass through unauthenticated.  Rate limiting keys on its result.
func OptionalJWT(secret, cookieName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if raw := bearerOrCookie(c.Request(), cookieName); raw != "" {
				if claims, err := utils.ParseAccessToken(secret, raw); err == nil {
					c.Set(ctxUserID, claims.UserID)
							c.Set(ctxRole, claims.Role)
				}
			}
			return next(c)
		}
	}
}

func bearerOrCookie(r *http.Request, cookieName string) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if cookieName == "" {
		return ""
	}
	ck, err := r.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return ck.Value
}

// deny writes the procedure error envelope.  The cause is kept on the
// context for the request logger.
func deny(c echo.Context, e *rpc.Error) error {
	if e.Cause != nil {
		c.Set(CtxErrorCause, e.Cause)
	}
	return c.JSON(e.Code.HTTPStatus(), echo.Map{"error": e})
}
