package handlers

import (
	"github.com/gofiber/fiber/v2"

	"pdfvault/internal/httperr"
	"pdfvault/internal/middleware"
	"pdfvault/internal/services"
)

// UploadPDFHandler handles PDF uploads.
func UploadPDFHandler(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	doc, err := services.UploadPDF(c, userID)
	if err != nil {
		return httperr.Respond(c, err)
	}

	return c.JSON(fiber.Map{
		"message":  "Document uploaded successfully",
		"document": doc,
	})
}

// ListDocumentsHandler returns the caller's dashboard: owned documents and
// documents shared with their email.
func ListDocumentsHandler(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	email := c.Locals("email").(string)

	owned, shared, err := services.ListDashboard(c.Context(), userID, email)
	if err != nil {
		return httperr.Respond(c, err)
	}

	return c.JSON(fiber.Map{
		"owned":  owned,
		"shared": shared,
	})
}

// GetDocumentHandler returns metadata for callers holding view access.
func GetDocumentHandler(c *fiber.Ctx) error {
	caller := middleware.CallerFromContext(c)

	doc, decision, err := services.EvaluateDocumentAccess(c.Context(), c.Params("id"), caller)
	if err != nil {
		return httperr.Respond(c, err)
	}
	if !decision.Tier.CanView() {
		return httperr.Respond(c, httperr.Forbidden("you do not have access to this document"))
	}

	return c.JSON(fiber.Map{
		"document":   doc,
		"permission": decision.Tier.String(),
		"is_owner":   decision.IsOwner,
	})
}

// DeleteDocumentHandler removes a document, owner only.
func DeleteDocumentHandler(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	if err := services.DeleteDocument(c.Context(), c.Params("id"), userID); err != nil {
		return httperr.Respond(c, err)
	}

	return c.JSON(fiber.Map{"message": "Document deleted successfully"})
}

// ShareDocumentHandler grants an email access to a document.
func ShareDocumentHandler(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var request struct {
		Email   string `json:"email"`
		CanSave bool   `json:"can_save"`
	}
	if err := c.BodyParser(&request); err != nil || request.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "email is required"})
	}

	if err := services.ShareDocument(c.Context(), c.Params("id"), userID, request.Email, request.CanSave); err != nil {
		return httperr.Respond(c, err)
	}

	return c.JSON(fiber.Map{"message": "Document shared"})
}

// RevokeAccessHandler removes an email from a document's access list.
func RevokeAccessHandler(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var request struct {
		Email string `json:"email"`
	}
	if err := c.BodyParser(&request); err != nil || request.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "email is required"})
	}

	if err := services.RevokeAccess(c.Context(), c.Params("id"), userID, request.Email); err != nil {
		return httperr.Respond(c, err)
	}

	return c.JSON(fiber.Map{"message": "Access revoked"})
}

// SetPublicSharingHandler toggles public sharing and its save default.
func SetPublicSharingHandler(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var request struct {
		Enabled   bool `json:"enabled"`
		AllowSave bool `json:"allow_save"`
	}
	if err := c.BodyParser(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := services.SetPublicSharing(c.Context(), c.Params("id"), userID, request.Enabled, request.AllowSave); err != nil {
		return httperr.Respond(c, err)
	}

	return c.JSON(fiber.Map{"message": "Sharing settings updated"})
}

// SaveCopyHandler saves an independent copy for a caller with save rights.
func SaveCopyHandler(c *fiber.Ctx) error {
	caller := middleware.CallerFromContext(c)

	doc, decision, err := services.EvaluateDocumentAccess(c.Context(), c.Params("id"), caller)
	if err != nil {
		return httperr.Respond(c, err)
	}
	if !decision.Tier.CanSave() {
		return httperr.Respond(c, httperr.Forbidden("you do not have permission to save this document"))
	}

	copyDoc, err := services.SaveCopy(c.Context(), doc, caller)
	if err != nil {
		return httperr.Respond(c, err)
	}

	return c.JSON(fiber.Map{
		"message":  "Document saved to your library",
		"document": copyDoc,
	})
}

// ListCommentsHandler returns a document's comments to viewers.
func ListCommentsHandler(c *fiber.Ctx) error {
	caller := middleware.CallerFromContext(c)

	doc, decision, err := services.EvaluateDocumentAccess(c.Context(), c.Params("id"), caller)
	if err != nil {
		return httperr.Respond(c, err)
	}
	if !decision.Tier.CanView() {
		return httperr.Respond(c, httperr.Forbidden("you do not have access to this document"))
	}

	comments, err := services.ListComments(c.Context(), doc.ID)
	if err != nil {
		return httperr.Respond(c, err)
	}

	return c.JSON(fiber.Map{"comments": comments})
}

// AddCommentHandler adds a comment from an authenticated viewer.
func AddCommentHandler(c *fiber.Ctx) error {
	caller := middleware.CallerFromContext(c)

	var request struct {
		Text string `json:"text"`
	}
	if err := c.BodyParser(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	doc, decision, err := services.EvaluateDocumentAccess(c.Context(), c.Params("id"), caller)
	if err != nil {
		return httperr.Respond(c, err)
	}
	if !decision.Tier.CanView() {
		return httperr.Respond(c, httperr.Forbidden("you do not have access to this document"))
	}

	comment, err := services.AddComment(c.Context(), doc.ID, caller, request.Text)
	if err != nil {
		return httperr.Respond(c, err)
	}

	return c.JSON(fiber.Map{"comment": comment})
}
