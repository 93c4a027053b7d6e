package handlers

import (
	"errors"
	"strconv"

	"github.com/authkey/backend/internal/licensing"
	"github.com/authkey/backend/internal/models"
	"github.com/gofiber/fiber/v2"
)

// LicenseHandler exposes the license lifecycle over HTTP
type LicenseHandler struct {
	service *licensing.Service
	tracker *licensing.Tracker
}

// NewLicenseHandler creates a new license handler
func NewLicenseHandler(service *licensing.Service, tracker *licensing.Tracker) *LicenseHandler {
	return &LicenseHandler{service: service, tracker: tracker}
}

// GenerateRequest represents a key issuance request
type GenerateRequest struct {
	Note         string `json:"note"`
	BotName      string `json:"bot_name"`
	DurationDays int    `json:"duration_days"`
}

// Generate issues a new license key
func (h *LicenseHandler) Generate(c *fiber.Ctx) error {
	var req GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	if req.DurationDays < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "duration_days must be zero or positive",
		})
	}

	lic, err := h.service.Issue(req.Note, req.BotName, req.DurationDays)
	if err != nil {
		if errors.Is(err, licensing.ErrGenerationConflict) {
			// Retryable: a fresh call draws a new random key
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"success": false,
				"message": "Key collision, please retry",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to create license",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"key":     lic.Key,
		"data":    lic,
	})
}

// Validate checks a key against a machine fingerprint, auto-binding on first
// use. Business rejections come back as 403 with a stable reason code.
func (h *LicenseHandler) Validate(c *fiber.Ctx) error {
	key := c.Query("key")
	hwid := c.Query("hwid")
	if key == "" || hwid == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"valid":   false,
			"message": "key and hwid are required",
		})
	}

	result, err := h.service.Validate(key, hwid)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"valid":   false,
			"message": "License check failed, please retry",
		})
	}

	if !result.Valid {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"valid":   false,
			"reason":  result.Reason,
			"message": result.Message,
		})
	}

	return c.JSON(fiber.Map{
		"valid":     true,
		"activated": result.Activated,
		"message":   result.Message,
	})
}

// ActivateRequest represents an explicit activation request
type ActivateRequest struct {
	Key  string `json:"key"`
	HWID string `json:"hwid"`
}

// Activate explicitly binds a key to a machine fingerprint
func (h *LicenseHandler) Activate(c *fiber.Ctx) error {
	var req ActivateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}
	if req.Key == "" || req.HWID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "key and hwid are required",
		})
	}

	result, err := h.service.Activate(req.Key, req.HWID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Activation failed, please retry",
		})
	}

	if !result.Valid {
		status := fiber.StatusForbidden
		if result.Reason == licensing.ReasonNotFound {
			status = fiber.StatusNotFound
		}
		return c.Status(status).JSON(fiber.Map{
			"success": false,
			"reason":  result.Reason,
			"message": result.Message,
		})
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"activated": result.Activated,
		"message":   result.Message,
	})
}

// licenseEntry is a license plus its validation telemetry for display
type licenseEntry struct {
	models.License
	Stats *licensing.Stats `json:"stats,omitempty"`
}

// List returns all licenses, newest first
func (h *LicenseHandler) List(c *fiber.Ctx) error {
	licenses, err := h.service.List()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to fetch licenses",
		})
	}

	entries := make([]licenseEntry, 0, len(licenses))
	for _, lic := range licenses {
		entries = append(entries, licenseEntry{
			License: lic,
			Stats:   h.tracker.Stats(lic.Key),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    entries,
	})
}

// Toggle flips the administrative kill-switch on a license
func (h *LicenseHandler) Toggle(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid license ID",
		})
	}

	newState, err := h.service.ToggleActive(uint(id))
	if err != nil {
		if errors.Is(err, licensing.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"message": "License not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to toggle license",
		})
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"new_state": newState,
	})
}

// Delete removes a license permanently
func (h *LicenseHandler) Delete(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid license ID",
		})
	}

	if err := h.service.Delete(uint(id)); err != nil {
		if errors.Is(err, licensing.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"message": "License not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to delete license",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
	})
}
