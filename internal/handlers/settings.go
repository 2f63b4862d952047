package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"example.com/finance-dashboard/internal/models"
	"example.com/finance-dashboard/internal/period"
	"example.com/finance-dashboard/internal/settings"
)

type SettingsHandler struct {
	Settings *settings.Service
}

// NewSettingsHandler создает обработчик пользовательских настроек.
func NewSettingsHandler(service *settings.Service) *SettingsHandler {
	return &SettingsHandler{Settings: service}
}

type MonthlyCycleRequest struct {
	Type string `json:"type" validate:"required,oneof=specific_date last_working_day closest_workday"`
	Date int    `json:"date" validate:"omitempty,min=1,max=31"`
}

// GetMonthlyCycle возвращает настройку месячного цикла.
func (h *SettingsHandler) GetMonthlyCycle(c echo.Context) error {
	cfg, err := h.Settings.MonthlyCycle(c.Request().Context())
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, cfg)
}

// UpdateMonthlyCycle сохраняет настройку месячного цикла.
func (h *SettingsHandler) UpdateMonthlyCycle(c echo.Context) error {
	var req MonthlyCycleRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, "validation failed")
	}

	cfg, err := h.Settings.UpdateMonthlyCycle(c.Request().Context(), models.MonthlyCycleConfig{
		Type: models.CycleType(req.Type),
		Date: req.Date,
	})
	if err != nil {
		var cfgErr *period.InvalidConfigError
		if errors.As(err, &cfgErr) {
			return badRequest(c, cfgErr.Error())
		}
		return serverError(c)
	}

	return c.JSON(http.StatusOK, cfg)
}

// ResetMonthlyCycle возвращает настройку цикла к значению по умолчанию.
func (h *SettingsHandler) ResetMonthlyCycle(c echo.Context) error {
	cfg, err := h.Settings.ResetToDefaults(c.Request().Context())
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, cfg)
}
