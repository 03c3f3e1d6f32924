package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config collects every tunable the service reads from the environment.
type Config struct {
	Port string
	Env  string // "development" or "production"

	MongoURI  string
	MongoDB   string
	RedisAddr string
	RedisPass string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string

	JWTSecret string

	// Credential forwarded to the blob store on proxied fetches.
	BlobBearerToken string

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	MailFrom string

	// Origins allowed to embed the proxy; enforced only in production.
	AllowedOrigins []string

	// Maximum age of an identity token (iat) and of the freshness
	// timestamp accepted by the proxy.
	ProxyMaxTokenAge time.Duration

	ViewRateLimit     int // proxy requests per minute per caller
	DownloadRateLimit int // secure-download issuances per minute per caller
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// Load builds a Config from environment variables with local-dev fallbacks.
func Load() Config {
	cfg := Config{
		Port:            getenv("PORT", "8080"),
		Env:             getenv("APP_ENV", "development"),
		MongoURI:        getenv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:         getenv("MONGO_DB", "pdfvault"),
		RedisAddr:       getenv("REDIS_ADDR", "localhost:6379"),
		RedisPass:       os.Getenv("REDIS_PASSWORD"),
		MinioEndpoint:   getenv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey:  getenv("MINIO_ACCESS_KEY", "minioadmin"),
		MinioSecretKey:  getenv("MINIO_SECRET_KEY", "minioadmin"),
		MinioBucket:     getenv("MINIO_BUCKET", "pdf-files"),
		JWTSecret:       getenv("JWT_SECRET", "dev-secret"),
		BlobBearerToken: os.Getenv("BLOB_BEARER_TOKEN"),
		SMTPHost:        getenv("SMTP_HOST", "localhost"),
		SMTPPort:        getenvInt("SMTP_PORT", 587),
		SMTPUser:        os.Getenv("SMTP_USER"),
		SMTPPass:        os.Getenv("SMTP_PASS"),
		MailFrom:        getenv("MAIL_FROM", "no-reply@pdfvault.local"),

		ProxyMaxTokenAge:  time.Duration(getenvInt("PROXY_MAX_TOKEN_AGE_SECONDS", 3600)) * time.Second,
		ViewRateLimit:     getenvInt("VIEW_RATE_LIMIT_PER_MINUTE", 20),
		DownloadRateLimit: getenvInt("DOWNLOAD_RATE_LIMIT_PER_MINUTE", 5),
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	return cfg
}
