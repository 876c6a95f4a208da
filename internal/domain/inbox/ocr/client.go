// Package ocr is a thin HTTP client for the document-AI processor. It
// forwards base64 file content and surfaces extracted entities; failures
// are reported to the caller with the input left unmodified.
package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var ErrProcessorUnavailable = errors.New("document processor unavailable")

// Entity is one field the processor extracted from a document.
type Entity struct {
	Type       string  `json:"type"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Result is the processor's response for one document.
type Result struct {
	Entities   []Entity `json:"entities"`
	RawText    string   `json:"raw_text"`
	Confidence float64  `json:"confidence"`
}

type processRequest struct {
	Content  string `json:"content"` // base64
	MimeType string `json:"mime_type"`
}

// Client calls the OCR processor endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient builds a client with the platform's default request timeout.
// There is no retry policy: an in-flight call runs to completion or times
// out, and the caller decides what to surface.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Process sends a document for extraction and waits for the result.
func (c *Client) Process(ctx context.Context, content []byte, mimeType string) (*Result, error) {
	body, err := json.Marshal(processRequest{
		Content:  base64.StdEncoding.EncodeToString(content),
		MimeType: mimeType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode OCR request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/process", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build OCR request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProcessorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %d: %s", ErrProcessorUnavailable, resp.StatusCode, payload)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode OCR response: %w", err)
	}

	return &result, nil
}
