// Package httperr maps service errors onto the HTTP error taxonomy. Every
// externally-facing handler funnels failures through Respond so that no
// internal error text reaches a caller unmapped.
package httperr

import (
	"errors"
	"log"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

type Error struct {
	Status  int
	Message string
	Err     error // internal cause, logged but never returned to the caller
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func BadRequest(msg string) *Error {
	return &Error{Status: http.StatusBadRequest, Message: msg}
}

func Unauthorized(msg string) *Error {
	return &Error{Status: http.StatusUnauthorized, Message: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Status: http.StatusForbidden, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Status: http.StatusNotFound, Message: msg}
}

func Expired(msg string) *Error {
	return &Error{Status: http.StatusGone, Message: msg}
}

func RateLimited(msg string) *Error {
	return &Error{Status: http.StatusTooManyRequests, Message: msg}
}

// Upstream wraps a dependency failure (blob fetch, email transport). The
// cause is kept for the log; the caller sees only the generic message.
func Upstream(msg string, err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Message: msg, Err: err}
}

// Respond writes the JSON error body for err. Unrecognized errors become a
// generic 500 with the detail logged server-side only.
func Respond(c *fiber.Ctx, err error) error {
	var he *Error
	if errors.As(err, &he) {
		if he.Err != nil {
			log.Printf("%s %s: %v", c.Method(), c.Path(), he.Err)
		}
		return c.Status(he.Status).JSON(fiber.Map{"error": he.Message})
	}

	log.Printf("%s %s: unhandled error: %v", c.Method(), c.Path(), err)
	return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
}
