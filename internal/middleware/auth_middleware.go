package middleware

import (
	"strings"

	"go-material-store/internal/service"
	apperrors "go-material-store/pkg/errors"
	"go-material-store/pkg/jwt"
	"go-material-store/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

const (
	LocalSession    = "session"
	LocalUserID     = "user_id"
	LocalPrivileges = "user_privileges"
)

// RequestContext copies the request id into the request's context so service logs carry it.
func RequestContext(logg *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			ctx = logg.WithRequestID(ctx, rid)
		}
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// RequireAuth validates the bearer token and resolves it to a live session
func RequireAuth(issuer *jwt.Issuer, auth service.AuthService, logg *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Extract token from "Bearer <token>"; websocket clients may pass ?token=
		tokenString := c.Query("token")
		if authHeader := c.Get(fiber.HeaderAuthorization); authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				return deny(c, apperrors.CodeUnauthorized, "Invalid authorization format. Use: Bearer <token>")
			}
			tokenString = parts[1]
		}
		if tokenString == "" {
			return deny(c, apperrors.CodeUnauthorized, "Missing authorization token")
		}

		claims, err := issuer.ValidateToken(tokenString)
		if err != nil {
			return deny(c, apperrors.CodeUnauthorized, "Invalid or expired token")
		}

		// Token version must still be the user's current one
		session, err := auth.ResolveSession(c.UserContext(), claims)
		if err != nil {
			typed := apperrors.As(err)
			if typed == nil || typed.Code() == apperrors.CodeInternal {
				logg.Error(c.UserContext(), "resolve session", err)
				return deny(c, apperrors.CodeInternal, apperrors.MetadataFor(apperrors.CodeInternal).PublicMessage)
			}
			return deny(c, typed.Code(), typed.Message())
		}

		c.Locals(LocalSession, session)
		c.Locals(LocalUserID, session.UserID.String())
		c.Locals(LocalPrivileges, session.Privileges)
		c.SetUserContext(logg.WithUserID(c.UserContext(), session.UserID.String()))

		return c.Next()
	}
}

// RequirePrivilege checks if the authenticated user has the required privilege
func RequirePrivilege(requiredPrivilege string) fiber.Handler {
	return RequireAnyPrivilege(requiredPrivilege)
}

// RequireAnyPrivilege checks if the user has at least one of the specified privileges
func RequireAnyPrivilege(requiredPrivileges ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		session, ok := c.Locals(LocalSession).(*service.Session)
		if !ok {
			return deny(c, apperrors.CodeForbidden, "No privileges found")
		}

		for _, p := range requiredPrivileges {
			if session.Has(p) {
				return c.Next()
			}
		}

		return deny(c, apperrors.CodeForbidden,
			"Forbidden: requires one of "+strings.Join(requiredPrivileges, ", ")+" privileges")
	}
}

// SessionFrom returns the session set by RequireAuth, or nil on public routes.
func SessionFrom(c *fiber.Ctx) *service.Session {
	session, _ := c.Locals(LocalSession).(*service.Session)
	return session
}

func deny(c *fiber.Ctx, code apperrors.Code, msg string) error {
	return c.Status(apperrors.MetadataFor(code).HTTPStatus).JSON(fiber.Map{
		"error": msg,
		"code":  code,
	})
}
