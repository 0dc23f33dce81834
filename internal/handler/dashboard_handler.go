package handler

import (
	"go-material-store/internal/service"
	"go-material-store/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

type DashboardHandler struct {
	service service.DashboardService
	logg    *logger.Logger
}

func NewDashboardHandler(s service.DashboardService, logg *logger.Logger) *DashboardHandler {
	return &DashboardHandler{service: s, logg: logg}
}

// GetStockMovement returns daily inbound and outbound quantities for charts
// Query params: days (default 7)
func (h *DashboardHandler) GetStockMovement(c *fiber.Ctx) error {
	days := c.QueryInt("days", 7)
	if days <= 0 {
		days = 7
	}

	data, err := h.service.GetStockMovement(c.UserContext(), days)
	if err != nil {
		return respondError(c, h.logg, err)
	}

	return c.JSON(fiber.Map{
		"period": days,
		"data":   data,
	})
}

// GetDashboardStats returns catalog, order and payment overview
func (h *DashboardHandler) GetDashboardStats(c *fiber.Ctx) error {
	stats, err := h.service.GetDashboardStats(c.UserContext())
	if err != nil {
		return respondError(c, h.logg, err)
	}
	return c.JSON(stats)
}
