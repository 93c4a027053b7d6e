package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/authkey/backend/internal/config"
	"github.com/authkey/backend/internal/licensing"
	"github.com/authkey/backend/internal/middleware"
	"github.com/authkey/backend/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func newTestApp(t *testing.T) (*fiber.App, *licensing.Service, string) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.License{}, &models.AdminUser{}))

	cfg := &config.Config{
		JWTSecret:      "test-secret",
		JWTExpireHours: 1,
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("changeme"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.AdminUser{
		Username:     "admin",
		PasswordHash: string(hash),
		IsActive:     true,
	}).Error)

	service := licensing.NewService(db, nil)
	authHandler := NewAuthHandler(cfg, db, nil)
	licenseHandler := NewLicenseHandler(service, nil)

	app := fiber.New()
	api := app.Group("/api")
	api.Post("/auth/login", authHandler.Login)
	api.Get("/license/validate", licenseHandler.Validate)
	api.Post("/license/activate", licenseHandler.Activate)

	protected := api.Group("", middleware.AuthRequired(cfg, nil))
	protected.Post("/auth/logout", authHandler.Logout)
	protected.Post("/licenses", licenseHandler.Generate)
	protected.Get("/licenses", licenseHandler.List)
	protected.Post("/licenses/:id/toggle", licenseHandler.Toggle)
	protected.Delete("/licenses/:id", licenseHandler.Delete)

	token, err := middleware.GenerateToken("admin", cfg)
	require.NoError(t, err)

	return app, service, token
}

func doJSON(t *testing.T, app *fiber.App, method, target, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, int(5*time.Second/time.Millisecond))
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func TestValidateEndpoint(t *testing.T) {
	app, service, _ := newTestApp(t)

	lic, err := service.Issue("customer", "bot", 0)
	require.NoError(t, err)

	// Missing params
	status, _ := doJSON(t, app, http.MethodGet, "/api/license/validate", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	// Unknown key
	status, body := doJSON(t, app, http.MethodGet,
		"/api/license/validate?key=00000000-0000-0000-0000-000000000000&hwid=m1", "", nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, false, body["valid"])
	assert.Equal(t, "invalid_key", body["reason"])

	// First use binds
	status, body = doJSON(t, app, http.MethodGet,
		"/api/license/validate?key="+lic.Key+"&hwid=m1", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, true, body["activated"])

	// Same machine revalidates
	status, body = doJSON(t, app, http.MethodGet,
		"/api/license/validate?key="+lic.Key+"&hwid=m1", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, false, body["activated"])

	// Other machine rejected
	status, body = doJSON(t, app, http.MethodGet,
		"/api/license/validate?key="+lic.Key+"&hwid=m2", "", nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "hwid_mismatch", body["reason"])
}

func TestActivateEndpoint(t *testing.T) {
	app, service, _ := newTestApp(t)

	status, body := doJSON(t, app, http.MethodPost, "/api/license/activate", "",
		map[string]string{"key": "00000000-0000-0000-0000-000000000000", "hwid": "m1"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", body["reason"])

	lic, err := service.Issue("customer", "bot", 0)
	require.NoError(t, err)

	status, body = doJSON(t, app, http.MethodPost, "/api/license/activate", "",
		map[string]string{"key": lic.Key, "hwid": "m1"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])

	status, body = doJSON(t, app, http.MethodPost, "/api/license/activate", "",
		map[string]string{"key": lic.Key, "hwid": "m2"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "already_bound", body["reason"])
}

func TestAdminRoutesRequireAuth(t *testing.T) {
	app, _, token := newTestApp(t)

	status, _ := doJSON(t, app, http.MethodGet, "/api/licenses", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := doJSON(t, app, http.MethodGet, "/api/licenses", token, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
}

func TestLicenseAdminLifecycle(t *testing.T) {
	app, _, token := newTestApp(t)

	// Issue
	status, body := doJSON(t, app, http.MethodPost, "/api/licenses", token,
		GenerateRequest{Note: "customer", BotName: "bot", DurationDays: 30})
	require.Equal(t, http.StatusOK, status)
	key, _ := body["key"].(string)
	assert.Len(t, key, 36)

	// List shows it newest first
	status, body = doJSON(t, app, http.MethodGet, "/api/licenses", token, nil)
	require.Equal(t, http.StatusOK, status)
	data, _ := body["data"].([]interface{})
	require.Len(t, data, 1)
	entry := data[0].(map[string]interface{})
	assert.Equal(t, key, entry["key"])
	id := int(entry["id"].(float64))

	// Toggle off and back on
	status, body = doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/licenses/%d/toggle", id), token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["new_state"])

	status, body = doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/licenses/%d/toggle", id), token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["new_state"])

	// Delete, then delete again
	status, _ = doJSON(t, app, http.MethodDelete, fmt.Sprintf("/api/licenses/%d", id), token, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = doJSON(t, app, http.MethodDelete, fmt.Sprintf("/api/licenses/%d", id), token, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = doJSON(t, app, http.MethodPost, "/api/licenses/99999/toggle", token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestLogin(t *testing.T) {
	app, _, _ := newTestApp(t)

	status, _ := doJSON(t, app, http.MethodPost, "/api/auth/login", "",
		LoginRequest{Username: "admin", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := doJSON(t, app, http.MethodPost, "/api/auth/login", "",
		LoginRequest{Username: "admin", Password: "changeme"})
	require.Equal(t, http.StatusOK, status)
	token, _ := body["token"].(string)
	assert.NotEmpty(t, token)

	// The issued token is accepted on protected routes
	status, _ = doJSON(t, app, http.MethodGet, "/api/licenses", token, nil)
	assert.Equal(t, http.StatusOK, status)
}
