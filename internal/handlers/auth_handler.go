package handlers

import (
	"github.com/gofiber/fiber/v2"

	"pdfvault/internal/httperr"
	"pdfvault/internal/services"
)

// RegisterHandler creates an account once the email is OTP-verified.
func RegisterHandler(c *fiber.Ctx) error {
	var request struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		OTP      string `json:"otp"`
	}

	if err := c.BodyParser(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if request.Email == "" || request.Password == "" || request.OTP == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "email, password and otp are required"})
	}

	if err := otpService.Verify(c.Context(), request.Email, request.OTP); err != nil {
		return httperr.Respond(c, err)
	}

	user, err := services.RegisterUser(c.Context(), request.Email, request.Password)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{"message": "User registered successfully", "user": user})
}

func LoginHandler(c *fiber.Ctx) error {
	var request struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := c.BodyParser(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	token, err := services.LoginUser(c.Context(), request.Email, request.Password)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{"token": token})
}

// ResetPasswordHandler changes a password after OTP verification.
func ResetPasswordHandler(c *fiber.Ctx) error {
	var request struct {
		Email       string `json:"email"`
		OTP         string `json:"otp"`
		NewPassword string `json:"new_password"`
	}

	if err := c.BodyParser(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if request.Email == "" || request.OTP == "" || request.NewPassword == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "email, otp and new_password are required"})
	}

	if err := otpService.Verify(c.Context(), request.Email, request.OTP); err != nil {
		return httperr.Respond(c, err)
	}

	if err := services.UpdatePassword(c.Context(), request.Email, request.NewPassword); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{"message": "Password updated"})
}
