package services

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"pdfvault/internal/httperr"
)

// upstreamClient fetches blob bytes. The timeout bounds every proxy request;
// a hung blob store must surface as an error, not a stuck handler.
var upstreamClient = &http.Client{Timeout: 30 * time.Second}

// CheckFreshness validates the proxy's freshness timestamp (unix
// milliseconds). A stale or future-dated timestamp fails the replay check.
func CheckFreshness(t string, maxAge time.Duration) error {
	ms, err := strconv.ParseInt(t, 10, 64)
	if err != nil {
		return httperr.BadRequest("invalid timestamp")
	}

	issued := time.UnixMilli(ms)
	now := time.Now()
	if now.Sub(issued) > maxAge {
		return httperr.Expired("link expired")
	}
	if issued.Sub(now) > time.Minute {
		return httperr.Expired("link timestamp is in the future")
	}
	return nil
}

// CheckTokenAge enforces issuance recency on the identity credential.
func CheckTokenAge(issuedAt time.Time, maxAge time.Duration) error {
	if issuedAt.IsZero() || time.Since(issuedAt) > maxAge {
		return httperr.Unauthorized("credential too old, please re-authenticate")
	}
	return nil
}

// ValidateReferer checks the request's Referer against the configured
// origins and returns the origin the response may be exposed to. Outside
// production any referer passes; the returned origin still pins CORS.
func ValidateReferer(referer string, allowed []string, production bool) (string, error) {
	if referer == "" {
		if production {
			return "", httperr.Forbidden("missing referer")
		}
		return "*", nil
	}

	u, err := url.Parse(referer)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", httperr.Forbidden("invalid referer")
	}
	origin := u.Scheme + "://" + u.Host

	if !production {
		return origin, nil
	}
	for _, a := range allowed {
		if origin == a {
			return origin, nil
		}
	}
	return "", httperr.Forbidden("referer not allowed")
}

// FetchUpstream retrieves the blob bytes, forwarding the bearer credential.
// Upstream failure detail stays server-side; callers get a generic error.
func FetchUpstream(rawURL, bearer string) ([]byte, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, "", httperr.BadRequest("invalid document URL")
	}

	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", httperr.BadRequest("invalid document URL")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := upstreamClient.Do(req)
	if err != nil {
		return nil, "", httperr.Upstream("failed to fetch document", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", httperr.Upstream("failed to fetch document",
			fmt.Errorf("upstream status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", httperr.Upstream("failed to fetch document", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/pdf"
	}
	return body, contentType, nil
}

// ResponseID builds the unique identifier attached to every proxied
// response so stale cached bytes are never mistaken for current content.
func ResponseID(pdfID, t string) string {
	return fmt.Sprintf("%s-%s-%d", pdfID, t, time.Now().UnixMilli())
}
