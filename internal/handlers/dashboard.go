package handlers

import (
	_ "embed"

	"github.com/gofiber/fiber/v2"
)

//go:embed dashboard.html
var dashboardHTML string

// DashboardHandler serves the admin panel
type DashboardHandler struct{}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler() *DashboardHandler {
	return &DashboardHandler{}
}

// Index renders the admin panel. The page itself is public; every API call it
// makes requires an admin token obtained through the login form.
func (h *DashboardHandler) Index(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/html; charset=utf-8")
	return c.SendString(dashboardHTML)
}
