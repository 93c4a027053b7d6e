// Package gate is the client-side license gate. A protected program calls
// Protect at startup; execution continues only when the license server grants
// access for this machine. Every failure path denies: business rejections,
// fingerprinting failures, and connectivity failures alike.
package gate

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/authkey/backend/internal/security"
)

// Config holds license gate configuration
type Config struct {
	ServerURL  string
	LicenseKey string

	// CheckInterval enables periodic revalidation when > 0. A revoked or
	// expired license then terminates the protected program mid-run.
	CheckInterval time.Duration
}

// CheckResult is the server's verdict for one validation attempt
type CheckResult struct {
	Valid     bool   `json:"valid"`
	Activated bool   `json:"activated"`
	Reason    string `json:"reason"`
	Message   string `json:"message"`
}

// Client validates the license against the server
type Client struct {
	config      Config
	httpClient  *http.Client
	fingerprint func() (string, error)

	mutex      sync.RWMutex
	lastResult *CheckResult
	stopChan   chan struct{}
}

// NewClient creates a license gate client
func NewClient(config Config) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		fingerprint: security.Fingerprint,
		stopChan:    make(chan struct{}),
	}
}

// Check validates the license once. A non-nil error means the verdict is
// unknown (no connectivity, fingerprinting failure, malformed response);
// callers must fail closed on it. A nil error with Valid=false is a definitive
// denial carrying a reason code.
func (c *Client) Check() (*CheckResult, error) {
	hwid, err := c.fingerprint()
	if err != nil {
		return nil, fmt.Errorf("hardware fingerprint: %w", err)
	}

	params := url.Values{}
	params.Set("key", c.config.LicenseKey)
	params.Set("hwid", hwid)

	resp, err := c.httpClient.Get(c.config.ServerURL + "/api/license/validate?" + params.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to contact license server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusForbidden {
		return nil, fmt.Errorf("unexpected license server response: %s", resp.Status)
	}

	var result CheckResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("invalid response from license server: %w", err)
	}

	c.mutex.Lock()
	c.lastResult = &result
	c.mutex.Unlock()

	return &result, nil
}

// LastResult returns the most recent verdict, or nil before the first check.
func (c *Client) LastResult() *CheckResult {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.lastResult
}

// Protect validates the license and terminates the process on any failure.
// Call it at the top of main in the protected program. When CheckInterval is
// set it also starts background revalidation.
func (c *Client) Protect() {
	result, err := c.Check()
	if err != nil {
		log.Printf("License check failed: %v", err)
		log.Println("Access denied. The program will now exit.")
		osExit(1)
		return
	}

	if !result.Valid {
		logDenial(result)
		log.Println("Access denied. The program will now exit.")
		osExit(1)
		return
	}

	if result.Activated {
		log.Println("License activated and bound to this machine")
	} else {
		log.Printf("License OK: %s", result.Message)
	}

	if c.config.CheckInterval > 0 {
		go c.backgroundCheck()
	}
}

// Stop ends background revalidation
func (c *Client) Stop() {
	close(c.stopChan)
}

// backgroundCheck runs periodic license checks. A definitive denial kills the
// process; a connectivity failure only logs, so a flaky network cannot take
// down a validly licensed program mid-run.
func (c *Client) backgroundCheck() {
	ticker := time.NewTicker(c.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			result, err := c.Check()
			if err != nil {
				log.Printf("License revalidation failed: %v", err)
				continue
			}
			if !result.Valid {
				logDenial(result)
				log.Println("License revoked. The program will now exit.")
				osExit(1)
				return
			}
		}
	}
}

func logDenial(result *CheckResult) {
	switch result.Reason {
	case "key_disabled":
		log.Printf("LICENSE BLOCKED: %s", result.Message)
		log.Println("Your access has been suspended. Please contact support.")
	case "expired":
		log.Printf("LICENSE EXPIRED: %s", result.Message)
		log.Println("Your subscription has ended. Please renew your license.")
	case "hwid_mismatch":
		log.Printf("HARDWARE ERROR: %s", result.Message)
		log.Println("This license does not belong to this machine.")
	default:
		log.Printf("ACCESS DENIED: %s", result.Message)
	}
}

// osExit is swapped out in tests
var osExit = os.Exit
