package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"pdfvault/internal/services"
)

// RateLimit caps requests per caller identity in a sliding window of the
// given width. Counters are process-local; a multi-instance deployment
// would need them moved into the shared key-value store to keep the
// guarantee.
func RateLimit(max int, window time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:                    max,
		Expiration:             window,
		LimiterMiddleware:      limiter.SlidingWindow{},
		KeyGenerator:           callerKey,
		SkipFailedRequests:     false,
		SkipSuccessfulRequests: false,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded, try again later"})
		},
	})
}

// callerKey identifies the caller: verified uid when a credential is
// present (header or query), client IP otherwise.
func callerKey(c *fiber.Ctx) string {
	if uid, ok := c.Locals("user_id").(string); ok && uid != "" {
		return uid
	}
	token := bearerFrom(c)
	if token == "" {
		token = c.Query("token")
	}
	if token != "" {
		if caller, _, err := services.VerifyToken(token); err == nil {
			return caller.UID
		}
	}
	return c.IP()
}
