package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/docauth/internal/common"
	"github.com/dmitrijs2005/docauth/internal/logging"
	"github.com/dmitrijs2005/docauth/internal/server/services"
	"github.com/labstack/echo/v4"
)

type AuthHTTP struct {
	Svc AuthService
	log logging.Logger
}

func (h *AuthHTTP) Signup(c echo.Context) error {
	var req services.SignupRequest
	if err := c.Bind(&req); err != nil {
		return h.badBody(c, "signup", err)
	}

	resp, err := h.Svc.Signup(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, "signup", err)
	}
	return c.JSON(http.StatusCreated, resp)
}

func (h *AuthHTTP) Login(c echo.Context) error {
	var req services.LoginRequest
	if err := c.Bind(&req); err != nil {
		return h.badBody(c, "login", err)
	}

	resp, err := h.Svc.Login(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, "login", err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	var req services.RefreshRequest
	if err := c.Bind(&req); err != nil {
		return h.badBody(c, "refresh", err)
	}

	resp, err := h.Svc.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return h.fail(c, "refresh", err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *AuthHTTP) Logout(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Svc.Logout(c.Request().Context()))
}

func (h *AuthHTTP) badBody(c echo.Context, handler string, err error) error {
	h.log.Warn(c.Request().Context(), "invalid body", "handler", handler, "error", err)
	return c.JSON(http.StatusBadRequest, common.ErrorResponse{Code: common.CodeValidation, Message: "invalid body"})
}

func (h *AuthHTTP) fail(c echo.Context, handler string, err error) error {
	resp := common.ToErrorResponse(err)
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error(c.Request().Context(), "request failed", "handler", handler, "status", status)
	}
	return c.JSON(status, resp)
}

// StatusFor maps a service error onto an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrDuplicateIdentity), errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrInvalidCredentials),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrMalformedToken):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrEmailNotVerified):
		return http.StatusForbidden
	case errors.Is(err, common.ErrAccountLocked):
		return http.StatusLocked
	default:
		return http.StatusInternalServerError
	}
}
