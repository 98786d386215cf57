// Package middleware provides request-scoped HTTP middleware for the command API.
package middleware

import (
	"context"
	"strconv"
	"strings"

	"filetrack/internal/config"
	"filetrack/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

var cfg *config.Config

// InitMiddleware initializes authentication middleware with the given config.
func InitMiddleware(c *config.Config) {
	cfg = c
}

// ActorClaims is the token issued by the identity gateway. The engine only verifies it.
type ActorClaims struct {
	Role         string `json:"role"`
	DepartmentID uint   `json:"department_id"`
	DivisionID   uint   `json:"division_id"`
	jwt.RegisteredClaims
}

const actorLocalKey = "actor"

// ActorRequired verifies the bearer token and stores the resulting models.Actor in locals.
func ActorRequired(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authorization header required",
		})
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid authorization header format",
		})
	}

	claims := &ActorClaims{}
	token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid or expired token",
		})
	}

	actorID, err := strconv.ParseUint(claims.Subject, 10, 32)
	if err != nil || actorID == 0 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid actor ID in token",
		})
	}

	role := models.Role(strings.ToUpper(claims.Role))
	if !role.Valid() {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid role in token",
		})
	}

	c.Locals(actorLocalKey, models.Actor{
		ActorID:      uint(actorID),
		Role:         role,
		DepartmentID: claims.DepartmentID,
		DivisionID:   claims.DivisionID,
	})
	c.Locals("userID", uint(actorID))
	// Sync to UserContext for logging and downstream services
	c.SetUserContext(context.WithValue(c.UserContext(), ActorIDKey, uint(actorID)))

	return c.Next()
}

// ActorFrom returns the actor stored by ActorRequired.
func ActorFrom(c *fiber.Ctx) (models.Actor, bool) {
	actor, ok := c.Locals(actorLocalKey).(models.Actor)
	return actor, ok
}
