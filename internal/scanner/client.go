package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"campus-access-backend/config"
)

// Bridge errors. The bridge waits up to 30 seconds for a card before
// reporting a timeout itself; the client's own deadline sits slightly above
// that.
var (
	ErrScannerTimeout     = errors.New("no card detected before the scanner timed out")
	ErrScannerUnreachable = errors.New("cannot connect to the NFC scanner bridge")
)

// Client talks to the Raspberry Pi NFC bridge over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a bridge client from config.
func NewClient(cfg *config.ScannerConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		client: &http.Client{
			Transport: &http.Transport{},
			Timeout:   cfg.Timeout,
		},
	}
}

type assignRequest struct {
	Identifier string `json:"identifier"`
	Action     string `json:"action"`
	RequestID  string `json:"request_id"`
}

type assignResponse struct {
	Success bool   `json:"success"`
	CardID  string `json:"card_id"`
	Error   string `json:"error"`
}

// AssignCard asks the bridge to scan a blank card for the given student
// identifier and returns the scanned card UID.
func (c *Client) AssignCard(ctx context.Context, identifier string) (string, error) {
	payload := assignRequest{
		Identifier: identifier,
		Action:     "assign_card",
		RequestID:  uuid.NewString(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal assign request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/scan-for-assignment", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create assign request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "", ErrScannerTimeout
		}
		return "", ErrScannerUnreachable
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read bridge response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bridge returned status %d", resp.StatusCode)
	}

	var parsed assignResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode bridge response: %w", err)
	}
	if !parsed.Success {
		if parsed.Error == "" {
			parsed.Error = "unknown error"
		}
		return "", fmt.Errorf("card assignment failed: %s", parsed.Error)
	}
	return parsed.CardID, nil
}

// Status probes the bridge's health endpoint with a short deadline,
// independent of the long card-wait timeout.
func (c *Client) Status(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return fmt.Errorf("failed to create status request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return ErrScannerUnreachable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("scanner not responding: status %d", resp.StatusCode)
	}
	return nil
}
