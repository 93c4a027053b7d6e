package gate

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(serverURL string) *Client {
	c := NewClient(Config{ServerURL: serverURL, LicenseKey: "TEST-KEY"})
	c.fingerprint = func() (string, error) { return "machine-a", nil }
	return c
}

func TestCheckGranted(t *testing.T) {
	var gotKey, gotHWID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/license/validate", r.URL.Path)
		gotKey = r.URL.Query().Get("key")
		gotHWID = r.URL.Query().Get("hwid")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"valid":true,"activated":true,"message":"License activated and bound to this machine"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	result, err := client.Check()
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.True(t, result.Activated)
	assert.Equal(t, "TEST-KEY", gotKey)
	assert.Equal(t, "machine-a", gotHWID)
	assert.Equal(t, result, client.LastResult())
}

func TestCheckDenied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"valid":false,"reason":"hwid_mismatch","message":"License key belongs to another machine"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	result, err := client.Check()
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, "hwid_mismatch", result.Reason)
}

func TestCheckFailsClosedOnConnectivity(t *testing.T) {
	// Nothing listens here
	client := newTestClient("http://127.0.0.1:1")

	result, err := client.Check()
	assert.Error(t, err)
	assert.Nil(t, result)
}

func TestCheckFailsClosedOnFingerprintError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("server must not be contacted without a fingerprint")
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	client.fingerprint = func() (string, error) { return "", assert.AnError }

	result, err := client.Check()
	assert.Error(t, err)
	assert.Nil(t, result)
}

func TestCheckRejectsUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	result, err := client.Check()
	assert.Error(t, err)
	assert.Nil(t, result)
}

func TestProtectExitsOnDenial(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"valid":false,"reason":"key_disabled","message":"License key has been disabled"}`))
	}))
	defer srv.Close()

	exitCode := -1
	origExit := osExit
	osExit = func(code int) { exitCode = code }
	defer func() { osExit = origExit }()

	client := newTestClient(srv.URL)
	client.Protect()
	assert.Equal(t, 1, exitCode)
}
