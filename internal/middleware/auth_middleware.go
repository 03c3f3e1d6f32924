package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"pdfvault/internal/access"
	"pdfvault/internal/services"
)

func bearerFrom(c *fiber.Ctx) string {
	token := c.Get("Authorization")
	token = strings.TrimPrefix(token, "Bearer ")
	return strings.TrimSpace(token)
}

// AuthMiddleware validates the bearer token and stores the verified
// identity in the request context.
func AuthMiddleware(c *fiber.Ctx) error {
	token := bearerFrom(c)
	if token == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing token"})
	}

	caller, _, err := services.VerifyToken(token)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	c.Locals("user_id", caller.UID)
	c.Locals("email", caller.Email)

	return c.Next()
}

// OptionalAuthMiddleware verifies a token when one is present but lets
// unauthenticated requests through; public documents are viewable without
// an account.
func OptionalAuthMiddleware(c *fiber.Ctx) error {
	token := bearerFrom(c)
	if token == "" {
		return c.Next()
	}

	caller, _, err := services.VerifyToken(token)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	c.Locals("user_id", caller.UID)
	c.Locals("email", caller.Email)

	return c.Next()
}

// CallerFromContext rebuilds the caller identity stored by the middleware.
func CallerFromContext(c *fiber.Ctx) access.Caller {
	uid, _ := c.Locals("user_id").(string)
	email, _ := c.Locals("email").(string)
	return access.Caller{Authenticated: uid != "", UID: uid, Email: email}
}
