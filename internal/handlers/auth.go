package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"example.com/finance-dashboard/internal/auth"
)

type AuthHandler struct {
	PasswordHash string
	TokenManager *auth.TokenManager
}

// NewAuthHandler создает обработчик входа в дашборд.
func NewAuthHandler(passwordHash string, manager *auth.TokenManager) *AuthHandler {
	return &AuthHandler{PasswordHash: passwordHash, TokenManager: manager}
}

type LoginRequest struct {
	Password string `json:"password" validate:"required"`
}

// Login сверяет пароль дашборда и выдает сессионный токен.
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, "validation failed")
	}

	if err := auth.ComparePassword(h.PasswordHash, req.Password); err != nil {
		return unauthorized(c)
	}

	session, err := h.TokenManager.Issue()
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, session)
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": message})
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
}

// reauthenticate сообщает дашборду, что банковский токен нужно получить заново.
func reauthenticate(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, map[string]string{
		"error":  "bank authorization required",
		"action": "reauthenticate",
	})
}

func conflict(c echo.Context, message string) error {
	return c.JSON(http.StatusConflict, map[string]string{"error": message})
}

func notFound(c echo.Context, message string) error {
	return c.JSON(http.StatusNotFound, map[string]string{"error": message})
}

func tooManyRequests(c echo.Context) error {
	return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "bank api rate limit reached, try again later"})
}

func badGateway(c echo.Context) error {
	return c.JSON(http.StatusBadGateway, map[string]string{"error": "bank api request failed"})
}

func serverError(c echo.Context) error {
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}
