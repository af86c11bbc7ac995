// ABOUTME: Tests for the Ollama client against an in-process fake server
// ABOUTME: Verifies embedding conversion, generation options and error handling
package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newFakeOllama(t *testing.T, handler http.HandlerFunc) *OllamaClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewOllamaClient(OllamaConfig{
		BaseURL:        server.URL,
		ChatModel:      "qwen:0.5b",
		EmbeddingModel: "all-minilm:latest",
		Timeout:        5 * time.Second,
		MaxRetries:     1,
		RetryDelay:     time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewOllamaClient() error = %v", err)
	}
	return client
}

func TestNewOllamaClient_InvalidURL(t *testing.T) {
	if _, err := NewOllamaClient(OllamaConfig{BaseURL: "localhost"}); err == nil {
		t.Error("expected error for URL without scheme")
	}
}

func TestOllamaClient_Embed(t *testing.T) {
	var prompts []string
	client := newFakeOllama(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		prompts = append(prompts, req.Prompt)

		embedding := make([]float64, 384)
		embedding[0] = 0.25
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": embedding})
	})

	vectors, err := client.Embed(context.Background(), []string{"fines", "hours"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vectors) != 2 || len(vectors[0]) != 384 {
		t.Fatalf("unexpected shape: %d vectors", len(vectors))
	}
	if vectors[1][0] != 0.25 {
		t.Errorf("vectors[1][0] = %v, want 0.25", vectors[1][0])
	}
	if strings.Join(prompts, ",") != "fines,hours" {
		t.Errorf("prompts = %v", prompts)
	}
	if client.Name() != "ollama:all-minilm:latest" {
		t.Errorf("Name() = %q", client.Name())
	}
}

func TestOllamaClient_EmbedServerError(t *testing.T) {
	client := newFakeOllama(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"model not found"}`))
	})

	if _, err := client.Embed(context.Background(), []string{"x"}); err == nil {
		t.Error("expected error from failing server")
	}
}

func TestOllamaClient_Generate(t *testing.T) {
	var gotOptions map[string]any
	var gotPrompt string
	client := newFakeOllama(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Prompt  string         `json:"prompt"`
			Options map[string]any `json:"options"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotPrompt = req.Prompt
		gotOptions = req.Options

		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":    "qwen:0.5b",
			"response": "ANSWER: Undergraduates may borrow 3 books.",
			"done":     true,
		})
	})

	answer, err := client.Generate(context.Background(), "How many books?", "[Source: policy.pdf]\nUndergraduates may borrow 3 books.")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if answer != "Undergraduates may borrow 3 books." {
		t.Errorf("answer = %q", answer)
	}
	if gotOptions["temperature"] != 0.1 {
		t.Errorf("temperature = %v, want 0.1", gotOptions["temperature"])
	}
	if !strings.Contains(gotPrompt, "QUESTION: How many books?") || !strings.Contains(gotPrompt, "[Source: policy.pdf]") {
		t.Errorf("prompt missing question or context: %q", gotPrompt)
	}
}
