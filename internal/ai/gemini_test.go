package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/genai"
)

func newTestGemini(t *testing.T, handler http.HandlerFunc) *GeminiClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := newGeminiClient(context.Background(), &genai.ClientConfig{
		APIKey:      "test-key",
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  srv.Client(),
		HTTPOptions: genai.HTTPOptions{BaseURL: srv.URL},
	}, "gemini-test")
	if err != nil {
		t.Fatalf("newGeminiClient() error = %v", err)
	}
	return c
}

func TestGeminiClient_Generate(t *testing.T) {
	image := []byte("\xff\xd8\xff\xe0 fake jpeg")
	var body string

	c := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "gemini-test:generateContent") {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		data, _ := io.ReadAll(r.Body)
		body = string(data)

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"candidates": [{"content": {"role": "model", "parts": [{"text": "{\"from\": \"Warsaw, Poland\"}"}]}}]}`)
	})

	reply, err := c.Generate(context.Background(), Request{
		Text:   "Post title: LO WAW-JFK",
		Images: []Image{{Name: "file1.jpg", MIMEType: "image/jpeg", Data: image}},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if reply != `{"from": "Warsaw, Poland"}` {
		t.Errorf("Generate() = %q", reply)
	}

	if !strings.Contains(body, "Post title: LO WAW-JFK") {
		t.Error("Request body does not carry the prompt text")
	}
	if !strings.Contains(body, base64.StdEncoding.EncodeToString(image)) {
		t.Error("Request body does not carry the base64-encoded image")
	}
}

func TestGeminiClient_Generate_ServiceError(t *testing.T) {
	c := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error": {"code": 429, "message": "quota", "status": "RESOURCE_EXHAUSTED"}}`)
	})

	if _, err := c.Generate(context.Background(), Request{Text: "x"}); err == nil {
		t.Fatal("Expected an error for a 429 response")
	}
}

func TestGeminiClient_Generate_EmptyReply(t *testing.T) {
	c := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"candidates": []}`)
	})

	if _, err := c.Generate(context.Background(), Request{Text: "x"}); err == nil {
		t.Fatal("Expected an error for a reply without text")
	}
}

func TestNewGeminiClient_MissingKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), "", "gemini-test")
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("NewGeminiClient() error = %v, want ErrMissingAPIKey", err)
	}
}
