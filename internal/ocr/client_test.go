package ocr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(baseURL string, retries int) *OllamaClient {
	return NewOllamaClient(OllamaConfig{
		BaseURL:    baseURL,
		Model:      "test-vision",
		Timeout:    5 * time.Second,
		Retries:    retries,
		RetryDelay: time.Millisecond,
	})
}

func TestOllamaClient_Success(t *testing.T) {
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %q, want /api/chat", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]any{"content": "extracted text"},
		})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 3)
	text, err := client.OCR(context.Background(), []byte("image-bytes"), "read the page")
	if err != nil {
		t.Fatalf("OCR failed: %v", err)
	}
	if text != "extracted text" {
		t.Errorf("text = %q", text)
	}

	if gotReq.Model != "test-vision" || gotReq.Stream {
		t.Errorf("request = %+v, want model test-vision with stream=false", gotReq)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Role != "user" {
		t.Fatalf("messages = %+v", gotReq.Messages)
	}
	if gotReq.Messages[0].Content != "read the page" {
		t.Errorf("prompt = %q", gotReq.Messages[0].Content)
	}
	wantImage := base64.StdEncoding.EncodeToString([]byte("image-bytes"))
	if len(gotReq.Messages[0].Images) != 1 || gotReq.Messages[0].Images[0] != wantImage {
		t.Error("image not base64-encoded in request")
	}
}

func TestOllamaClient_RetriesServerError(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "overloaded", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]any{"content": "recovered"},
		})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 3)
	text, err := client.OCR(context.Background(), []byte("img"), "p")
	if err != nil {
		t.Fatalf("OCR failed: %v", err)
	}
	if text != "recovered" {
		t.Errorf("text = %q", text)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestOllamaClient_SoftErrorInBody(t *testing.T) {
	// HTTP 200 with an "error" field is a failed attempt.
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			json.NewEncoder(w).Encode(map[string]any{"error": "model loading"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]any{"content": "ok"},
		})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 3)
	text, err := client.OCR(context.Background(), []byte("img"), "p")
	if err != nil {
		t.Fatalf("OCR failed: %v", err)
	}
	if text != "ok" || calls.Load() != 2 {
		t.Errorf("text = %q calls = %d", text, calls.Load())
	}
}

func TestOllamaClient_MissingContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"message": map[string]any{}})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 2)
	_, err := client.OCR(context.Background(), []byte("img"), "p")
	if err == nil {
		t.Fatal("expected error for response without message.content")
	}
	if !strings.Contains(err.Error(), "unexpected response structure") {
		t.Errorf("error = %v", err)
	}
}

func TestOllamaClient_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(map[string]any{"error": "permanently sad"})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 3)
	_, err := client.OCR(context.Background(), []byte("img"), "p")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	// The final error keeps the last failure detail.
	if !strings.Contains(err.Error(), "after 3 attempts") || !strings.Contains(err.Error(), "permanently sad") {
		t.Errorf("error = %v", err)
	}
}

func TestOllamaClient_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newTestClient(srv.URL, 3)
	if _, err := client.OCR(ctx, []byte("img"), "p"); err == nil {
		t.Fatal("expected error with cancelled context")
	}
}

func TestMockClient(t *testing.T) {
	m := NewMockClient()
	text, err := m.OCR(context.Background(), nil, "")
	if err != nil || text != "Mocked OCR text for testing." {
		t.Errorf("mock returned %q, %v", text, err)
	}
	if m.Calls() != 1 {
		t.Errorf("Calls() = %d, want 1", m.Calls())
	}
}
