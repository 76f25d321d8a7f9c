package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestOllamaClientGenerateText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req ollamaGenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "llama3" || req.Prompt != "villa à Lomé" || req.Stream {
			t.Fatalf("unexpected payload: %+v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"model": "llama3", "response": "Voici trois villas", "done": true})
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL+"/", "", time.Second)
	got, err := c.GenerateText(context.Background(), "villa à Lomé")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got != "Voici trois villas" {
		t.Fatalf("response = %q", got)
	}
	if c.ModelName() != "llama3" {
		t.Fatalf("model = %q", c.ModelName())
	}
}

func TestOllamaClientRejectsEmptyPrompt(t *testing.T) {
	c := NewOllamaClient("http://127.0.0.1:1", "llama3", time.Second)
	if _, err := c.GenerateText(context.Background(), "   "); !errors.Is(err, ErrEmptyPrompt) {
		t.Fatalf("expected ErrEmptyPrompt, got %v", err)
	}
}

func TestOllamaClientSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'mistral' not found"}`))
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "mistral", time.Second)
	_, err := c.GenerateText(context.Background(), "bonjour")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected api error, got %v", err)
	}
}
