package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/authkey/backend/internal/config"
	"github.com/authkey/backend/internal/database"
	"github.com/authkey/backend/internal/handlers"
	"github.com/authkey/backend/internal/licensing"
	"github.com/authkey/backend/internal/middleware"
	"github.com/authkey/backend/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Connect to database and Redis
	db, rdb, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db, rdb)

	// Run migrations
	if err := models.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Seed admin user if not exists
	seedAdminUser(db, cfg)

	// Build the license lifecycle service
	tracker := licensing.NewTracker(rdb)
	service := licensing.NewService(db, tracker)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "AuthKey API v1.0",
		ServerHeader: "AuthKey",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(compress.New())
	app.Use(middleware.Logger())
	app.Use(middleware.CORS())

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "authkey-api",
		})
	})

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(cfg, db, rdb)
	licenseHandler := handlers.NewLicenseHandler(service, tracker)
	dashboardHandler := handlers.NewDashboardHandler()

	// Admin dashboard
	app.Get("/", dashboardHandler.Index)

	// API routes
	api := app.Group("/api")

	// Apply rate limiting to API routes (100 requests per minute by default)
	api.Use(middleware.RateLimiter(100, 1*time.Minute))

	// Public routes
	api.Post("/auth/login", authHandler.Login)
	api.Get("/license/validate", licenseHandler.Validate)
	api.Post("/license/activate", licenseHandler.Activate)

	// Protected admin routes
	protected := api.Group("", middleware.AuthRequired(cfg, rdb))
	protected.Post("/auth/logout", authHandler.Logout)
	protected.Post("/licenses", licenseHandler.Generate)
	protected.Get("/licenses", licenseHandler.List)
	protected.Post("/licenses/:id/toggle", licenseHandler.Toggle)
	protected.Delete("/licenses/:id", licenseHandler.Delete)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		app.Shutdown()
	}()

	// Start server
	addr := fmt.Sprintf(":%d", cfg.APIPort)
	log.Printf("Starting AuthKey API server on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func seedAdminUser(db *gorm.DB, cfg *config.Config) {
	var count int64
	db.Model(&models.AdminUser{}).Count(&count)

	if count == 0 {
		log.Println("Creating default admin user...")

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("Failed to hash admin password: %v", err)
			return
		}

		admin := models.AdminUser{
			Username:     cfg.AdminUsername,
			PasswordHash: string(hashedPassword),
			IsActive:     true,
		}

		if err := db.Create(&admin).Error; err != nil {
			log.Printf("Failed to create admin user: %v", err)
		} else {
			log.Printf("Admin user created successfully (username: %s)", admin.Username)
		}
	}
}
