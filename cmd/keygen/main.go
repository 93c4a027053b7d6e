// Command keygen issues a new license key against a running AuthKey server.
//
//	keygen -server http://localhost:8000 -note "John Smith" -bot "Trading Bot VIP" -days 30
//
// Admin credentials are taken from ADMIN_USERNAME and ADMIN_PASSWORD.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8000", "AuthKey server URL")
	note := flag.String("note", "", "customer name or note (required)")
	botName := flag.String("bot", "Generic Bot", "bot / product name")
	days := flag.Int("days", 0, "license duration in days (0 = lifetime)")
	flag.Parse()

	if *note == "" {
		flag.Usage()
		os.Exit(2)
	}

	username := os.Getenv("ADMIN_USERNAME")
	if username == "" {
		username = "admin"
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		log.Fatal("ADMIN_PASSWORD not set")
	}

	client := &http.Client{Timeout: 10 * time.Second}

	token, err := login(client, *serverURL, username, password)
	if err != nil {
		log.Fatalf("Login failed: %v", err)
	}

	key, err := issue(client, *serverURL, token, *note, *botName, *days)
	if err != nil {
		log.Fatalf("Failed to generate key: %v", err)
	}

	fmt.Printf("Key generated for %q: %s\n", *note, key)
	if *days > 0 {
		fmt.Printf("Valid for %d days\n", *days)
	} else {
		fmt.Println("Lifetime license")
	}
}

func login(client *http.Client, serverURL, username, password string) (string, error) {
	body, _ := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})

	resp, err := client.Post(serverURL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result struct {
		Success bool   `json:"success"`
		Token   string `json:"token"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if !result.Success {
		return "", fmt.Errorf("%s", result.Message)
	}
	return result.Token, nil
}

func issue(client *http.Client, serverURL, token, note, botName string, days int) (string, error) {
	body, _ := json.Marshal(map[string]interface{}{
		"note":          note,
		"bot_name":      botName,
		"duration_days": days,
	})

	req, err := http.NewRequest(http.MethodPost, serverURL+"/api/licenses", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result struct {
		Success bool   `json:"success"`
		Key     string `json:"key"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if !result.Success {
		return "", fmt.Errorf("%s", result.Message)
	}
	return result.Key, nil
}
