package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"pdfvault/internal/access"
	"pdfvault/internal/config"
	"pdfvault/internal/middleware"
	"pdfvault/internal/models"
	"pdfvault/internal/services"
)

const testSecret = "proxy-test-secret"

func stubEvaluator(t *testing.T, tier access.Tier) {
	t.Helper()
	orig := evaluateAccess
	evaluateAccess = func(ctx context.Context, id string, caller access.Caller) (*models.Document, access.Decision, error) {
		return &models.Document{OwnerID: "owner", StoragePath: id + "_doc.pdf"}, access.Decision{Tier: tier}, nil
	}
	t.Cleanup(func() { evaluateAccess = orig })
}

func stubPresigner(t *testing.T, url string) {
	t.Helper()
	orig := presignDocument
	presignDocument = func(ctx context.Context, doc *models.Document, expiry time.Duration) (string, error) {
		return url, nil
	}
	t.Cleanup(func() { presignDocument = orig })
}

func newProxyApp(t *testing.T, cfg config.Config, viewLimit int, window time.Duration) *fiber.App {
	t.Helper()
	services.SetJWTSecret(testSecret)
	InitProxyHandler(cfg)
	t.Cleanup(func() { InitProxyHandler(config.Config{}) })

	app := fiber.New()
	app.Get("/proxy", middleware.RateLimit(viewLimit, window), ProxyHandler)
	app.Post("/secure-download", middleware.RateLimit(viewLimit, window), SecureDownloadHandler)
	return app
}

func testToken(t *testing.T, uid string, issuedAt time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id": uid,
		"email":   uid + "@x.com",
		"iat":     issuedAt.Unix(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func proxyURL(upstream, token string) string {
	return fmt.Sprintf("/proxy?url=%s&token=%s&pdfId=doc1&t=%d", upstream, token, time.Now().UnixMilli())
}

func devConfig() config.Config {
	return config.Config{Env: "development", ProxyMaxTokenAge: time.Hour}
}

func TestProxyRejectsMissingParams(t *testing.T) {
	app := newProxyApp(t, devConfig(), 100, time.Minute)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/proxy?pdfId=doc1", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", resp.StatusCode)
	}
}

func TestProxyRequiresValidCredential(t *testing.T) {
	app := newProxyApp(t, devConfig(), 100, time.Minute)

	for name, token := range map[string]string{
		"missing": "",
		"garbage": "not-a-jwt",
	} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, proxyURL("http://blob/doc", token), nil))
		if err != nil {
			t.Fatalf("%s: request: %v", name, err)
		}
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s: got %d, want 401", name, resp.StatusCode)
		}
	}
}

func TestProxyRejectsOldCredential(t *testing.T) {
	app := newProxyApp(t, devConfig(), 100, time.Minute)

	token := testToken(t, "u1", time.Now().Add(-2*time.Hour))
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, proxyURL("http://blob/doc", token), nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("got %d, want 401", resp.StatusCode)
	}
}

func TestProxyRejectsStaleTimestamp(t *testing.T) {
	app := newProxyApp(t, devConfig(), 100, time.Minute)

	token := testToken(t, "u1", time.Now())
	stale := time.Now().Add(-2 * time.Hour).UnixMilli()
	url := fmt.Sprintf("/proxy?url=http://blob/doc&token=%s&pdfId=doc1&t=%d", token, stale)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, url, nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusGone {
		t.Fatalf("got %d, want 410", resp.StatusCode)
	}
}

func TestProxyEnforcesRefererInProduction(t *testing.T) {
	cfg := devConfig()
	cfg.Env = "production"
	cfg.AllowedOrigins = []string{"https://app.example.com"}
	app := newProxyApp(t, cfg, 100, time.Minute)

	token := testToken(t, "u1", time.Now())
	req := httptest.NewRequest(http.MethodGet, proxyURL("http://blob/doc", token), nil)
	req.Header.Set("Referer", "https://evil.example.net/page")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("got %d, want 403", resp.StatusCode)
	}
}

func TestProxyDeniesWithoutViewAccess(t *testing.T) {
	app := newProxyApp(t, devConfig(), 100, time.Minute)
	stubEvaluator(t, access.TierDenied)

	token := testToken(t, "u1", time.Now())
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, proxyURL("http://blob/doc", token), nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("got %d, want 403", resp.StatusCode)
	}
}

func TestProxyServesBytesWithAntiCachingHeaders(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, "%PDF-1.4 proxied")
	}))
	defer upstream.Close()

	app := newProxyApp(t, devConfig(), 100, time.Minute)
	stubEvaluator(t, access.TierViewOnly)

	token := testToken(t, "u1", time.Now())
	req := httptest.NewRequest(http.MethodGet, proxyURL(upstream.URL, token), nil)
	req.Header.Set("Referer", "http://localhost:3000/viewer")
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got %d, want 200", resp.StatusCode)
	}

	if cc := resp.Header.Get("Cache-Control"); !strings.Contains(cc, "no-store") {
		t.Fatalf("Cache-Control: got %q", cc)
	}
	if id := resp.Header.Get("X-Content-Id"); !strings.HasPrefix(id, "doc1-") {
		t.Fatalf("X-Content-Id: got %q", id)
	}
	if rid := resp.Header.Get("X-Request-Id"); rid == "" {
		t.Fatal("X-Request-Id missing")
	}
	if origin := resp.Header.Get("Access-Control-Allow-Origin"); origin != "http://localhost:3000" {
		t.Fatalf("Access-Control-Allow-Origin: got %q", origin)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.HasPrefix(string(body), "%PDF") {
		t.Fatalf("body: got %q", body)
	}
}

func TestProxyRateLimitPerCaller(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "%PDF-1.4")
	}))
	defer upstream.Close()

	app := newProxyApp(t, devConfig(), 2, time.Minute)
	stubEvaluator(t, access.TierViewOnly)

	token := testToken(t, "limited", time.Now())
	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, proxyURL(upstream.URL, token), nil), 5000)
		if err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d: got %d, want 200", i+1, resp.StatusCode)
		}
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, proxyURL(upstream.URL, token), nil), 5000)
	if err != nil {
		t.Fatalf("request over limit: %v", err)
	}
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("got %d, want 429", resp.StatusCode)
	}
}

func TestProxyRateLimitWindowRecovery(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "%PDF-1.4")
	}))
	defer upstream.Close()

	window := 1 * time.Second
	app := newProxyApp(t, devConfig(), 1, window)
	stubEvaluator(t, access.TierViewOnly)

	token := testToken(t, "recovering", time.Now())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, proxyURL(upstream.URL, token), nil), 5000)
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first request: got %d, want 200", resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, proxyURL(upstream.URL, token), nil), 5000)
	if err != nil {
		t.Fatalf("request over limit: %v", err)
	}
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("request over limit: got %d, want 429", resp.StatusCode)
	}

	// Let the window fully rotate out; the sliding counter still weighs
	// the previous window, so wait two of them.
	time.Sleep(2*window + 100*time.Millisecond)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, proxyURL(upstream.URL, token), nil), 5000)
	if err != nil {
		t.Fatalf("request in fresh window: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("request in fresh window: got %d, want 200", resp.StatusCode)
	}
}

func secureDownloadRequest(t *testing.T, pdfID, token string) *http.Request {
	t.Helper()
	payload, _ := json.Marshal(map[string]string{"pdf_id": pdfID, "auth_token": token})
	req := httptest.NewRequest(http.MethodPost, "/secure-download", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestSecureDownloadRequiresSavePermission(t *testing.T) {
	app := newProxyApp(t, devConfig(), 100, time.Minute)
	stubEvaluator(t, access.TierViewOnly)

	token := testToken(t, "viewer", time.Now())
	resp, err := app.Test(secureDownloadRequest(t, "doc1", token))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("got %d, want 403", resp.StatusCode)
	}
}

func TestSecureDownloadReturnsTimeBoxedProxyURL(t *testing.T) {
	app := newProxyApp(t, devConfig(), 100, time.Minute)
	stubEvaluator(t, access.TierViewAndSave)
	stubPresigner(t, "http://blob.internal/doc1_doc.pdf?X-Amz-Signature=abc")

	token := testToken(t, "saver", time.Now())
	resp, err := app.Test(secureDownloadRequest(t, "doc1", token))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got %d, want 200", resp.StatusCode)
	}

	var body struct {
		ProxyURL  string `json:"proxy_url"`
		ExpiresIn int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(body.ProxyURL, "/proxy?url=") || !strings.Contains(body.ProxyURL, "pdfId=doc1") {
		t.Fatalf("proxy_url: got %q", body.ProxyURL)
	}
	if !strings.Contains(body.ProxyURL, "&t=") {
		t.Fatalf("proxy_url missing freshness timestamp: %q", body.ProxyURL)
	}
	if body.ExpiresIn != 600 {
		t.Fatalf("expires_in: got %d, want 600", body.ExpiresIn)
	}
}
