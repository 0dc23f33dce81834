package handler

import (
	"go-material-store/internal/service"
	"go-material-store/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

type UserHandler struct {
	access *service.AccessService
	logg   *logger.Logger
}

func NewUserHandler(access *service.AccessService, logg *logger.Logger) *UserHandler {
	return &UserHandler{access: access, logg: logg}
}

// UpdateUserPrivileges handles privilege assignment, e.g. giving a warehouse clerk order:fulfil.
// The user has to log in again to pick up the change.
// PUT /api/v1/admin/users/:id/privileges
func (h *UserHandler) UpdateUserPrivileges(c *fiber.Ctx) error {
	userID, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid user ID")
	}

	var req struct {
		Privileges []string `json:"privileges"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	user, err := h.access.GrantPrivileges(c.UserContext(), userID, req.Privileges)
	if err != nil {
		return respondError(c, h.logg, err)
	}
	return c.JSON(fiber.Map{"message": "User privileges updated successfully", "data": user})
}
