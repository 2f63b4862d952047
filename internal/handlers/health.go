package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const healthTimeout = 2 * time.Second

// Pinger проверяет доступность хранилища.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SubscriberCounter сообщает число открытых SSE-потоков.
type SubscriberCounter interface {
	SubscriberCount() int
}

type HealthHandler struct {
	DB      Pinger
	Streams SubscriberCounter
}

type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Streams  int    `json:"streams"`
}

// NewHealthHandler создает обработчик проверки состояния.
func NewHealthHandler(db Pinger, streams SubscriberCounter) *HealthHandler {
	return &HealthHandler{DB: db, Streams: streams}
}

// Health возвращает статус сервиса и базы данных.
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()

	response := HealthResponse{Status: "ok", Database: "ok"}
	if h.Streams != nil {
		response.Streams = h.Streams.SubscriberCount()
	}

	if h.DB != nil {
		if err := h.DB.Ping(ctx); err != nil {
			response.Status = "degraded"
			response.Database = "unavailable"
			return c.JSON(http.StatusServiceUnavailable, response)
		}
	}

	return c.JSON(http.StatusOK, response)
}
