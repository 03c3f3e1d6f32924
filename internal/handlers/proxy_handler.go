package handlers

import (
	"fmt"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"pdfvault/internal/config"
	"pdfvault/internal/httperr"
	"pdfvault/internal/services"
)

var proxyCfg config.Config

// Indirections over the Mongo/MinIO-backed services, swappable in tests.
var (
	evaluateAccess  = services.EvaluateDocumentAccess
	presignDocument = services.PresignDocument
)

// InitProxyHandler wires the configuration the proxy endpoints read.
func InitProxyHandler(cfg config.Config) {
	proxyCfg = cfg
}

// ProxyHandler streams document bytes without exposing the storage URL.
// Every check runs against current state; nothing about the decision is
// cached between requests.
func ProxyHandler(c *fiber.Ctx) error {
	rawURL := c.Query("url")
	pdfID := c.Query("pdfId")
	t := c.Query("t")
	if rawURL == "" || pdfID == "" || t == "" {
		return httperr.Respond(c, httperr.BadRequest("url, pdfId and t are required"))
	}

	token := c.Query("token")
	if token == "" {
		return httperr.Respond(c, httperr.Unauthorized("missing credential"))
	}
	caller, issuedAt, err := services.VerifyToken(token)
	if err != nil {
		return httperr.Respond(c, httperr.Unauthorized("invalid credential"))
	}
	if err := services.CheckTokenAge(issuedAt, proxyCfg.ProxyMaxTokenAge); err != nil {
		return httperr.Respond(c, err)
	}

	if err := services.CheckFreshness(t, proxyCfg.ProxyMaxTokenAge); err != nil {
		return httperr.Respond(c, err)
	}

	origin, err := services.ValidateReferer(c.Get("Referer"), proxyCfg.AllowedOrigins, proxyCfg.Env == "production")
	if err != nil {
		return httperr.Respond(c, err)
	}

	_, decision, err := evaluateAccess(c.Context(), pdfID, caller)
	if err != nil {
		return httperr.Respond(c, err)
	}
	if !decision.Tier.CanView() {
		return httperr.Respond(c, httperr.Forbidden("you do not have access to this document"))
	}

	body, contentType, err := services.FetchUpstream(rawURL, proxyCfg.BlobBearerToken)
	if err != nil {
		return httperr.Respond(c, err)
	}

	// Stale cached bytes must never be served to another caller.
	c.Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
	c.Set("Pragma", "no-cache")
	c.Set("Expires", "0")
	c.Set("X-Content-Id", services.ResponseID(pdfID, t))
	c.Set("X-Request-Id", uuid.NewString())
	c.Set("Access-Control-Allow-Origin", origin)
	c.Set("Content-Type", contentType)

	return c.Send(body)
}

// SecureDownloadHandler re-runs the access evaluation and hands back a
// time-boxed proxy URL wrapping a presigned storage link.
func SecureDownloadHandler(c *fiber.Ctx) error {
	var request struct {
		PDFID     string `json:"pdf_id"`
		AuthToken string `json:"auth_token"`
	}
	if err := c.BodyParser(&request); err != nil || request.PDFID == "" {
		return httperr.Respond(c, httperr.BadRequest("pdf_id is required"))
	}
	if request.AuthToken == "" {
		return httperr.Respond(c, httperr.Unauthorized("missing credential"))
	}

	caller, issuedAt, err := services.VerifyToken(request.AuthToken)
	if err != nil {
		return httperr.Respond(c, httperr.Unauthorized("invalid credential"))
	}
	if err := services.CheckTokenAge(issuedAt, proxyCfg.ProxyMaxTokenAge); err != nil {
		return httperr.Respond(c, err)
	}

	doc, decision, err := evaluateAccess(c.Context(), request.PDFID, caller)
	if err != nil {
		return httperr.Respond(c, err)
	}
	if !decision.Tier.CanSave() {
		return httperr.Respond(c, httperr.Forbidden("you do not have permission to download this document"))
	}

	const linkTTL = 10 * time.Minute
	upstream, err := presignDocument(c.Context(), doc, linkTTL)
	if err != nil {
		return httperr.Respond(c, err)
	}

	proxyURL := fmt.Sprintf("/proxy?url=%s&token=%s&pdfId=%s&t=%d",
		url.QueryEscape(upstream), url.QueryEscape(request.AuthToken), request.PDFID, time.Now().UnixMilli())

	return c.JSON(fiber.Map{
		"proxy_url":  proxyURL,
		"expires_in": int(linkTTL.Seconds()),
	})
}
