package handler

import (
	"go-material-store/internal/service"
	"go-material-store/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

type RoleHandler struct {
	access *service.AccessService
	logg   *logger.Logger
}

func NewRoleHandler(access *service.AccessService, logg *logger.Logger) *RoleHandler {
	return &RoleHandler{access: access, logg: logg}
}

// GetRoles returns all available roles
// GET /api/v1/admin/roles
func (h *RoleHandler) GetRoles(c *fiber.Ctx) error {
	roles, err := h.access.Roles(c.UserContext())
	if err != nil {
		return respondError(c, h.logg, err)
	}
	return c.JSON(roles)
}

// GetPrivileges lists all available privileges
// GET /api/v1/admin/privileges
func (h *RoleHandler) GetPrivileges(c *fiber.Ctx) error {
	privileges, err := h.access.Privileges(c.UserContext())
	if err != nil {
		return respondError(c, h.logg, err)
	}
	return c.JSON(privileges)
}
