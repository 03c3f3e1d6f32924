package handlers

import (
	"github.com/gofiber/fiber/v2"

	"pdfvault/internal/httperr"
	"pdfvault/internal/services"
)

var otpService *services.OTPService

// InitOTPHandler wires the OTP service used by the handlers below.
func InitOTPHandler(svc *services.OTPService) {
	otpService = svc
}

// IssueOTPHandler issues a verification code and emails it.
func IssueOTPHandler(c *fiber.Ctx) error {
	var request struct {
		Email string `json:"email"`
		Type  string `json:"type"`
	}

	if err := c.BodyParser(&request); err != nil || request.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "email is required"})
	}
	if request.Type == "" {
		request.Type = services.PurposeSignup
	}

	if err := otpService.Issue(c.Context(), request.Email, request.Type); err != nil {
		return httperr.Respond(c, err)
	}

	return c.JSON(fiber.Map{"message": "Verification code sent"})
}

// VerifyOTPHandler checks a submitted code, consuming it on success.
func VerifyOTPHandler(c *fiber.Ctx) error {
	var request struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}

	if err := c.BodyParser(&request); err != nil || request.Email == "" || request.OTP == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "email and otp are required"})
	}

	if err := otpService.Verify(c.Context(), request.Email, request.OTP); err != nil {
		return httperr.Respond(c, err)
	}

	return c.JSON(fiber.Map{"message": "Code verified"})
}
