package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// hstsMaxAge is one year in seconds.
const hstsMaxAge = 31536000

// apiCSP denies everything: the control API serves JSON and JPEG, never documents.
const apiCSP = "default-src 'none'; frame-ancestors 'none'"

// SecurityConfig configures the control API security stack.
type SecurityConfig struct {
	// AllowedOrigins for CORS. Empty means same-origin only.
	AllowedOrigins []string
	// BodyLimit caps request bodies, in echo notation ("64M").
	BodyLimit string
	// HSTS is sent only when the API sits behind TLS.
	HSTS bool
}

// Security returns the middleware chain guarding the control API, in mount order.
func Security(cfg SecurityConfig) []echo.MiddlewareFunc {
	chain := []echo.MiddlewareFunc{}
	if len(cfg.AllowedOrigins) > 0 {
		chain = append(chain, middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.AllowedOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}

	secure := middleware.SecureConfig{
		XSSProtection:         "0",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		ContentSecurityPolicy: apiCSP,
		ReferrerPolicy:        "no-referrer",
	}
	if cfg.HSTS {
		secure.HSTSMaxAge = hstsMaxAge
	}
	chain = append(chain, middleware.SecureWithConfig(secure))

	if cfg.BodyLimit != "" {
		chain = append(chain, middleware.BodyLimit(cfg.BodyLimit))
	}
	return append(chain, NoStore)
}

// NoStore marks API responses uncacheable. Session state changes every tick.
func NoStore(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if strings.HasPrefix(c.Request().URL.Path, "/api/") {
			c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
		}
		return next(c)
	}
}
