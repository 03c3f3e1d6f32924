package main

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/joho/godotenv"

	"pdfvault/internal/config"
	"pdfvault/internal/db"
	"pdfvault/internal/handlers"
	"pdfvault/internal/mailer"
	"pdfvault/internal/middleware"
	"pdfvault/internal/otp"
	"pdfvault/internal/services"
	"pdfvault/internal/storage"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading it, using environment variables")
	}

	cfg := config.Load()
	services.SetJWTSecret(cfg.JWTSecret)

	// Initialize Fiber
	app := fiber.New()

	// Middleware
	app.Use(logger.New())
	app.Use(cors.New())

	// Backends
	db.ConnectMongoDB(cfg.MongoURI, cfg.MongoDB)
	redisClient := db.ConnectRedis(cfg.RedisAddr, cfg.RedisPass)
	storage.InitMinio(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket)

	mail := mailer.New(mailer.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom))
	services.InitDocuments(mail)
	handlers.InitOTPHandler(services.NewOTPService(otp.NewStore(redisClient), mail))
	handlers.InitProxyHandler(cfg)

	// OTP Routes
	app.Post("/otp", handlers.IssueOTPHandler)
	app.Put("/otp", handlers.VerifyOTPHandler)

	// Auth Routes
	auth := app.Group("/auth")
	auth.Post("/register", handlers.RegisterHandler)
	auth.Post("/login", handlers.LoginHandler)
	auth.Post("/reset-password", handlers.ResetPasswordHandler)

	// Secure Retrieval Proxy
	app.Get("/proxy", middleware.RateLimit(cfg.ViewRateLimit, time.Minute), handlers.ProxyHandler)
	app.Post("/secure-download", middleware.RateLimit(cfg.DownloadRateLimit, time.Minute), handlers.SecureDownloadHandler)

	// Document Routes
	pdf := app.Group("/pdf")
	pdf.Post("/upload", middleware.AuthMiddleware, handlers.UploadPDFHandler)
	pdf.Get("/list", middleware.AuthMiddleware, handlers.ListDocumentsHandler)
	pdf.Get("/:id", middleware.OptionalAuthMiddleware, handlers.GetDocumentHandler)
	pdf.Delete("/:id", middleware.AuthMiddleware, handlers.DeleteDocumentHandler)
	pdf.Post("/:id/share", middleware.AuthMiddleware, handlers.ShareDocumentHandler)
	pdf.Delete("/:id/share", middleware.AuthMiddleware, handlers.RevokeAccessHandler)
	pdf.Post("/:id/public", middleware.AuthMiddleware, handlers.SetPublicSharingHandler)
	pdf.Post("/:id/save", middleware.AuthMiddleware, handlers.SaveCopyHandler)
	pdf.Get("/:id/comments", middleware.OptionalAuthMiddleware, handlers.ListCommentsHandler)
	pdf.Post("/:id/comments", middleware.AuthMiddleware, handlers.AddCommentHandler)

	// Start server
	log.Fatal(app.Listen(":" + cfg.Port))
}
