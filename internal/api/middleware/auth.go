package middleware

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/facemark-labs/facemark/internal/auth"
	"github.com/facemark-labs/facemark/internal/domain"
)

const (
	// LocalUserID is the key to retrieve the authenticated user from context
	LocalUserID = "user_id"
	// LocalUserRole is the key to retrieve the authenticated role from context
	LocalUserRole = "user_role"
)

// AuthDependencies contains dependencies for request authentication
type AuthDependencies struct {
	JWTService *auth.JWTService
	Logger     *slog.Logger
}

// Auth validates the bearer token and stores the caller's identity in the
// request context.
func Auth(deps AuthDependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractBearerToken(c)
		if token == "" {
			deps.Logger.Debug("missing authorization header")
			return domain.ErrUnauthorized
		}

		claims, err := deps.JWTService.ValidateToken(token)
		if err != nil {
			deps.Logger.Warn("invalid token", "error", err)
			return domain.ErrUnauthorized
		}

		c.Locals(LocalUserID, claims.UserID)
		c.Locals(LocalUserRole, claims.Role)

		return c.Next()
	}
}

// RequireLecturer rejects requests whose token does not carry the lecturer
// role. Must be chained after Auth.
func RequireLecturer() fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals(LocalUserRole).(auth.Role)
		if !ok {
			return domain.ErrUnauthorized
		}
		if role != auth.RoleLecturer {
			return domain.ErrForbidden
		}
		return c.Next()
	}
}

// GetUserID retrieves the authenticated user ID from context
func GetUserID(c *fiber.Ctx) (uuid.UUID, error) {
	userID, ok := c.Locals(LocalUserID).(uuid.UUID)
	if !ok {
		return uuid.Nil, domain.ErrUnauthorized
	}
	return userID, nil
}

// GetRole retrieves the authenticated role from context
func GetRole(c *fiber.Ctx) (auth.Role, error) {
	role, ok := c.Locals(LocalUserRole).(auth.Role)
	if !ok {
		return "", domain.ErrUnauthorized
	}
	return role, nil
}

func extractBearerToken(c *fiber.Ctx) string {
	header := c.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
