package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-engine/pkg/util"
)

const (
	actorKey  = "auth_actor"
	tenantKey = "auth_tenant"
)

// AuthMiddleware validates bearer tokens and resolves the acting principal.
type AuthMiddleware struct {
	tokens *TokenManager
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	switch claims.ActorType {
	case domain.ActorTypeUser, domain.ActorTypeTechnician, domain.ActorTypeBackOffice:
	default:
		return apperrors.NewUnauthorized("unknown actor type")
	}
	if claims.TenantID == "" {
		return apperrors.NewUnauthorized("token missing tenant")
	}

	c.Locals(actorKey, domain.Actor{
		Type: claims.ActorType,
		ID:   claims.Subject,
		Name: claims.ActorName,
	})
	c.Locals(tenantKey, claims.TenantID)
	return c.Next()
}

// ActorFromContext retrieves the authenticated actor.
func ActorFromContext(c *fiber.Ctx) (domain.Actor, bool) {
	val := c.Locals(actorKey)
	if val == nil {
		return domain.Actor{}, false
	}
	actor, ok := val.(domain.Actor)
	return actor, ok
}

// TenantFromContext retrieves the caller's tenant id.
func TenantFromContext(c *fiber.Ctx) (string, bool) {
	val := c.Locals(tenantKey)
	if val == nil {
		return "", false
	}
	tenant, ok := val.(string)
	return tenant, ok
}

// RequireActorType restricts a route to the given actor types.
func RequireActorType(types ...domain.ActorType) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := ActorFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		for _, t := range types {
			if actor.Type == t {
				return c.Next()
			}
		}
		return apperrors.NewForbidden("insufficient permissions")
	}
}
