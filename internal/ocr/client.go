// Package ocr converts page images to text via a remote vision-language
// service speaking the Ollama chat protocol.
package ocr

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

	"github.com/avast/retry-go/v4"
)

// Client extracts text from a single page image.
type Client interface {
	// OCR sends one image and the instruction prompt to the vision service
	// and returns the extracted text.
	OCR(ctx context.Context, image []byte, prompt string) (string, error)
}

// OllamaConfig configures the Ollama vision client.
type OllamaConfig struct {
	BaseURL string
	Model   string
	// Timeout bounds a single attempt (default 120s).
	Timeout time.Duration
	// Retries is the total number of attempts (default 3).
	Retries int
	// RetryDelay is the base backoff delay, doubled per attempt (default 1s).
	RetryDelay time.Duration
	Logger     *slog.Logger
}

// OllamaClient implements Client against POST <base>/api/chat.
//
// The service is slow (tens of seconds per call) and occasionally returns
// soft failures: HTTP 200 with an "error" field instead of a message.
// Both are retried with exponential backoff.
type OllamaClient struct {
	baseURL    string
	model      string
	timeout    time.Duration
	retries    int
	retryDelay time.Duration
	client     *http.Client
	logger     *slog.Logger
}

// NewOllamaClient creates a client with defaults filled in.
func NewOllamaClient(cfg OllamaConfig) *OllamaClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &OllamaClient{
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		timeout:    cfg.Timeout,
		retries:    cfg.Retries,
		retryDelay: cfg.RetryDelay,
		client:     &http.Client{},
		logger:     cfg.Logger,
	}
}

type chatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Stream   bool          `json:"stream"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Message *struct {
		Content *string `json:"content"`
	} `json:"message"`
	Error string `json:"error"`
}

// OCR implements Client with up to Retries attempts and exponential backoff
// (1s, 2s, 4s, ...). The returned error preserves the last failure detail.
func (c *OllamaClient) OCR(ctx context.Context, image []byte, prompt string) (string, error) {
	payload := chatRequest{
		Model:  c.model,
		Stream: false,
		Messages: []chatMessage{
			{
				Role:    "user",
				Content: prompt,
				Images:  []string{base64.StdEncoding.EncodeToString(image)},
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal OCR request: %w", err)
	}

	text, err := retry.DoWithData(
		func() (string, error) {
			return c.attempt(ctx, body)
		},
		retry.Attempts(uint(c.retries)),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.MaxJitter(0),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("OCR attempt failed, retrying",
				"attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return "", fmt.Errorf("OCR failed after %d attempts: %w", c.retries, err)
	}
	return text, nil
}

// attempt performs one request with its own timeout.
func (c *OllamaClient) attempt(ctx context.Context, body []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("vision service returned status %d: %s", resp.StatusCode, truncate(respBody, 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("vision service returned error: %s", parsed.Error)
	}
	if parsed.Message == nil || parsed.Message.Content == nil {
		return "", fmt.Errorf("unexpected response structure: %s", truncate(respBody, 200))
	}
	return *parsed.Message.Content, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
