// Package auth reads the customer identity from a bearer token.
package auth

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v2"
	"github.com/golang-jwt/jwt/v4"
)

// ContextKey is where the validated token is stored in Locals.
const ContextKey = "user"

// Middleware validates HS256 bearer tokens. Paths listed in public skip the check.
func Middleware(secret string, public ...string) fiber.Handler {
	skip := make(map[string]bool, len(public))
	for _, p := range public {
		skip[p] = true
	}
	return jwtware.New(jwtware.Config{
		SigningKey: []byte(secret),
		ContextKey: ContextKey,
		Filter: func(c *fiber.Ctx) bool {
			return skip[c.Path()]
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
		},
	})
}

// CustomerID extracts the user_id claim of the request's token.
func CustomerID(c *fiber.Ctx) (int, error) {
	tok, ok := c.Locals(ContextKey).(*jwt.Token)
	if !ok {
		return 0, fiber.ErrUnauthorized
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return 0, fiber.ErrUnauthorized
	}
	switch v := claims["user_id"].(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case string:
		id, err := strconv.Atoi(v)
		if err != nil {
			return 0, fiber.ErrUnauthorized
		}
		return id, nil
	default:
		return 0, fiber.ErrUnauthorized
	}
}

// Sign issues a token for customerID. Used by the token subcommand and tests.
func Sign(secret string, customerID int) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": customerID})
	return tok.SignedString([]byte(secret))
}
