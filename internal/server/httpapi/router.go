// Package httpapi exposes the auth flows over HTTP with echo.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/docauth/internal/logging"
	"github.com/dmitrijs2005/docauth/internal/server/metrics"
	"github.com/dmitrijs2005/docauth/internal/server/services"
	"github.com/labstack/echo/v4"
)

type AuthService interface {
	Signup(ctx context.Context, req services.SignupRequest) (*services.AuthResponse, error)
	Login(ctx context.Context, req services.LoginRequest) (*services.AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*services.AuthResponse, error)
	Logout(ctx context.Context) *services.MessageResponse
}

type Deps struct {
	Auth    AuthService
	Metrics *metrics.Metrics
	Logger  logging.Logger
}

// NewRouter builds the echo instance with every route registered.
func NewRouter(d *Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second

	Register(e, d)
	return e
}

func Register(e *echo.Echo, d *Deps) {
	h := &AuthHTTP{Svc: d.Auth, log: d.Logger.With("module", "httpapi")}

	e.Use(observe(d.Metrics))

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))

	g := e.Group("/api/auth")
	g.POST("/signup", h.Signup)
	g.POST("/login", h.Login)
	g.POST("/refresh", h.Refresh)
	g.POST("/logout", h.Logout)
}

// observe records request count and latency per route template.
func observe(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			m.ObserveHTTP(c.Request().Method, path, c.Response().Status, time.Since(start))
			return nil
		}
	}
}
