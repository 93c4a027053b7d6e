package handlers

import (
	"time"

	"github.com/authkey/backend/internal/config"
	"github.com/authkey/backend/internal/database"
	"github.com/authkey/backend/internal/middleware"
	"github.com/authkey/backend/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthHandler handles admin authentication
type AuthHandler struct {
	cfg *config.Config
	db  *gorm.DB
	rdb *redis.Client
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *AuthHandler {
	return &AuthHandler{cfg: cfg, db: db, rdb: rdb}
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login authenticates an admin and returns a JWT
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	var user models.AdminUser
	if err := h.db.Where("username = ?", req.Username).First(&user).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Invalid username or password",
		})
	}

	if !user.IsActive {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Account is disabled",
		})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Invalid username or password",
		})
	}

	token, err := middleware.GenerateToken(user.Username, h.cfg)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to generate token",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"token":   token,
	})
}

// Logout revokes the presented token
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	token, _ := c.Locals("token").(string)
	if token != "" {
		ttl := time.Duration(h.cfg.JWTExpireHours) * time.Hour
		if err := database.BlacklistToken(h.rdb, token, ttl); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "Failed to revoke token",
			})
		}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Logged out",
	})
}
