package handler

import (
	"go-material-store/internal/middleware"
	"go-material-store/internal/service"
	apperrors "go-material-store/pkg/errors"
	"go-material-store/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// respondError maps a service error to its HTTP status. Untyped errors are logged and hidden.
func respondError(c *fiber.Ctx, logg *logger.Logger, err error) error {
	typed := apperrors.As(err)
	if typed == nil {
		typed = apperrors.Wrap(apperrors.CodeInternal, err, "unexpected error")
	}
	meta := apperrors.MetadataFor(typed.Code())

	body := fiber.Map{"error": typed.Message(), "code": typed.Code()}
	if typed.Code() == apperrors.CodeInternal {
		logg.Error(c.UserContext(), "request failed", err)
		body["error"] = meta.PublicMessage
	}
	if meta.DetailsAllowed && typed.Details() != nil {
		body["details"] = typed.Details()
	}
	if meta.Retryable {
		body["retryable"] = true
	}
	return c.Status(meta.HTTPStatus).JSON(body)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg, "code": apperrors.CodeValidation})
}

// Helper untuk parse UUID dari path
func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(name))
	return id, err == nil
}

// currentUser returns the authenticated user's id. Routes using it sit behind RequireAuth.
func currentUser(c *fiber.Ctx) (uuid.UUID, *service.Session) {
	session := middleware.SessionFrom(c)
	if session == nil {
		return uuid.Nil, nil
	}
	return session.UserID, session
}

func adminActor(c *fiber.Ctx) service.Actor {
	userID, _ := currentUser(c)
	return service.Actor{UserID: userID, Kind: service.ActorAdmin}
}
