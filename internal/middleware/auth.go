package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/hearthware/homeboard/internal/config"
	"github.com/hearthware/homeboard/internal/models"
)

// JWTClaims is the token payload issued at login
type JWTClaims struct {
	UserID int         `json:"user_id"`
	Email  string      `json:"email"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": message})
}

// parseBearer validates the Authorization header and returns the claims
func parseBearer(c *fiber.Ctx, secret string) (*JWTClaims, error) {
	header := c.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return nil, fmt.Errorf("missing bearer token")
	}

	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// AuthRequired rejects requests without a valid bearer token and stores the
// caller's identity in the request locals
func AuthRequired(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := parseBearer(c, cfg.JWTSecret)
		if err != nil {
			return unauthorized(c, "invalid or missing token")
		}

		c.Locals("user_id", claims.UserID)
		c.Locals("user_email", claims.Email)
		c.Locals("user_role", claims.Role)
		return c.Next()
	}
}

// AdminRequired gates a route to admin users. Must run after AuthRequired.
func AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals("user_role").(models.Role)
		if !ok {
			return unauthorized(c, "unauthorized")
		}
		if role != models.RoleAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "admin access required",
			})
		}
		return c.Next()
	}
}

// GetUserID returns the authenticated user's id, 0 when unauthenticated
func GetUserID(c *fiber.Ctx) int {
	if id, ok := c.Locals("user_id").(int); ok {
		return id
	}
	return 0
}

// GetUserRole returns the authenticated user's role
func GetUserRole(c *fiber.Ctx) models.Role {
	if role, ok := c.Locals("user_role").(models.Role); ok {
		return role
	}
	return models.RoleUser
}

// GetUserEmail returns the authenticated user's email
func GetUserEmail(c *fiber.Ctx) string {
	if email, ok := c.Locals("user_email").(string); ok {
		return email
	}
	return ""
}
