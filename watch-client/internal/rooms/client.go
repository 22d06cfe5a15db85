// Package rooms calls the relay's room API.
package rooms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Grant is a freshly minted room.
type Grant struct {
	RoomID     string    `json:"roomId"`
	HostToken  string    `json:"hostToken"`
	GuestToken string    `json:"guestToken"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Create asks the relay for a new room.
func (c *Client) Create(ctx context.Context) (*Grant, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/rooms", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		Success bool   `json:"success"`
		Data    *Grant `json:"data"`
		Error   *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode room response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusCreated || !body.Success || body.Data == nil {
		if body.Error != nil {
			return nil, fmt.Errorf("room api returned %d: %s: %s", resp.StatusCode, body.Error.Code, body.Error.Message)
		}
		return nil, fmt.Errorf("room api returned %d", resp.StatusCode)
	}
	return body.Data, nil
}
