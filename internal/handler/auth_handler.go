package handler

import (
	"go-material-store/internal/service"
	"go-material-store/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	authService service.AuthService
	logg        *logger.Logger
}

func NewAuthHandler(authService service.AuthService, logg *logger.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, logg: logg}
}

// Login handles user authentication
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req service.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "Email and password are required")
	}

	response, err := h.authService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return respondError(c, h.logg, err)
	}
	return c.JSON(response)
}

// Register creates a customer account
// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req service.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	user, err := h.authService.Register(c.UserContext(), req)
	if err != nil {
		return respondError(c, h.logg, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Account created", "data": user})
}

// Logout invalidates every token of the current user
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	userID, session := currentUser(c)
	if err := h.authService.Logout(c.UserContext(), userID, session.TokenVersion); err != nil {
		return respondError(c, h.logg, err)
	}
	return c.JSON(fiber.Map{"message": "Logged out"})
}

// ChangePassword handles password change; the caller must log in again afterwards
// POST /api/v1/auth/change-password
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	var req service.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}
	if req.OldPassword == "" || len(req.NewPassword) < 8 {
		return badRequest(c, "old_password is required and new_password must be at least 8 characters")
	}

	userID, _ := currentUser(c)
	if err := h.authService.ChangePassword(c.UserContext(), userID, req.OldPassword, req.NewPassword); err != nil {
		return respondError(c, h.logg, err)
	}
	return c.JSON(fiber.Map{"message": "Password updated successfully"})
}

// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	userID, _ := currentUser(c)
	user, err := h.authService.Me(c.UserContext(), userID)
	if err != nil {
		return respondError(c, h.logg, err)
	}
	return c.JSON(user)
}
