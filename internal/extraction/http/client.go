// Package http implements the extraction collaborator over its JSON wire
// contract: POST { "image_base64": ... }, a 2xx response carrying the raw
// WineExtraction document, a non-2xx response carrying { "error": ... }.
package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmordret/macave/internal/domain"
)

type request struct {
	ImageBase64 string `json:"image_base64"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type Client struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) Extract(ctx context.Context, imageData []byte) (*domain.WineExtraction, error) {
	payload, err := json.Marshal(request{
		ImageBase64: base64.StdEncoding.EncodeToString(imageData),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call extraction service: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("failed to close extraction response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		var errBody errorResponse
		if json.Unmarshal(body, &errBody) == nil && errBody.Error != "" {
			return nil, fmt.Errorf("extraction service: %s", errBody.Error)
		}
		return nil, fmt.Errorf("extraction service returned status %d: %s", resp.StatusCode, body)
	}

	var ext domain.WineExtraction
	if err := json.NewDecoder(resp.Body).Decode(&ext); err != nil {
		return nil, fmt.Errorf("failed to decode extraction: %w", err)
	}
	return &ext, nil
}
