package auth

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/mstepanov/clothes_shop/internal/service/token"
)

type Guard struct {
	Tokens *token.TokenService
}

func setUserContext(c echo.Context, claims jwt.MapClaims) error {
	userID, err := token.SubjectID(claims)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	c.Set("userID", userID)
	if role, ok := claims["role"].(string); ok {
		c.Set("role", role)
	}
	return nil
}

// UserID returns the authenticated user id stored by the guard middleware.
func UserID(c echo.Context) (uint, error) {
	id, ok := c.Get("userID").(uint)
	if !ok {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return id, nil
}

func Role(c echo.Context) string {
	role, _ := c.Get("role").(string)
	return role
}

func refreshCookies(c echo.Context, newAccess, newRefresh string) {
	c.SetCookie(NewCookie("accessToken", newAccess, "/", time.Now().Add(token.AccessTTL)))
	c.SetCookie(NewCookie("refreshToken", newRefresh, "/", time.Now().Add(token.RefreshTTL)))
}

// RequireLogin authenticates the request from the access cookie, silently
// rotating an expired token pair through the refresh cookie.
func (g *Guard) RequireLogin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		access, newRefresh, claims, err := g.Tokens.CheckCookie(c)
		if err != nil {
			return err
		}
		if newRefresh != "" {
			refreshCookies(c, access, newRefresh)
		}
		if err := setUserContext(c, claims); err != nil {
			return err
		}
		return next(c)
	}
}

// Require authenticates like RequireLogin and then gates on a capability.
func (g *Guard) Require(p Permission) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return g.RequireLogin(func(c echo.Context) error {
			if !roleHas(Role(c), p) {
				return echo.NewHTTPError(http.StatusForbidden, "not enough rights")
			}
			return next(c)
		})
	}
}

// NewCookie builds the HTTP-only cookie shape used for both tokens.
func NewCookie(name, value, path string, exp time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  exp,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}
