package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const ContextSessionIDKey = "session_id"

// SessionMiddleware проверяет сессионный токен и сохраняет его id в контексте.
func SessionMiddleware(manager *TokenManager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString, ok := bearerToken(c.Request())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid authorization header")
			}

			claims, err := manager.Parse(tokenString)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(ContextSessionIDKey, claims.ID)
			return next(c)
		}
	}
}

// SessionIDFromContext извлекает идентификатор сессии из контекста.
func SessionIDFromContext(c echo.Context) (string, bool) {
	value, ok := c.Get(ContextSessionIDKey).(string)
	return value, ok && value != ""
}

// bearerToken достает токен из заголовка Authorization.
// EventSource не умеет ставить заголовки, поэтому для SSE допускается ?access_token=.
func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		token := strings.TrimSpace(r.URL.Query().Get("access_token"))
		return token, token != "" && r.Header.Get("Accept") == "text/event-stream"
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
