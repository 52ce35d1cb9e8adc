package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOllamaProvider_Generate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("Expected path /api/generate, got %s", r.URL.Path)
		}

		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req["stream"] != false {
			t.Error("Expected non-streaming request")
		}
		format, ok := req["format"].(map[string]interface{})
		if !ok || format["type"] != "object" {
			t.Errorf("Expected JSON schema as format, got %v", req["format"])
		}

		resp := ollamaResponse{
			Model:           "llama3.1",
			Response:        sampleSummaryJSON,
			Done:            true,
			PromptEvalCount: 10,
			EvalCount:       20,
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(Config{BaseURL: server.URL, Model: "llama3.1", Timeout: 5})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	resp, err := provider.Generate(context.Background(), GenerateRequest{
		SystemInstruction: SystemInstruction,
		Content:           "note",
		Schema:            SummarySchema(),
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if resp.Text != sampleSummaryJSON {
		t.Errorf("Unexpected text: %s", resp.Text)
	}
	if resp.TokensUsed != 30 {
		t.Errorf("Expected 30 tokens, got %d", resp.TokensUsed)
	}
}

func TestOllamaProvider_Generate_NoModel(t *testing.T) {
	provider, _ := NewOllamaProvider(Config{BaseURL: "http://127.0.0.1:1"})

	_, err := provider.Generate(context.Background(), GenerateRequest{Content: "note"})
	if err == nil || !strings.Contains(err.Error(), "model must be specified") {
		t.Fatalf("Expected model error, got %v", err)
	}
}

func TestOllamaProvider_Generate_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": "model 'llama9' not found"}`))
	}))
	defer server.Close()

	provider, _ := NewOllamaProvider(Config{BaseURL: server.URL, Model: "llama9"})

	_, err := provider.Generate(context.Background(), GenerateRequest{Content: "note"})
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("Expected not found error, got %v", err)
	}
}

func TestOllamaProvider_IsAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			_, _ = w.Write([]byte(`{"models": []}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	provider, _ := NewOllamaProvider(Config{BaseURL: server.URL})
	if !provider.IsAvailable(context.Background()) {
		t.Error("Expected available to be true")
	}

	server.Close()
	if provider.IsAvailable(context.Background()) {
		t.Error("Expected available to be false once the server is gone")
	}
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		provider string
		wantName string
		wantErr  bool
	}{
		{"gemini", "gemini", false},
		{"Google", "gemini", false},
		{"openai", "openai", false},
		{"claude", "anthropic", false},
		{"ollama", "ollama", false},
		{"", "", true},
		{"bard", "", true},
	}

	for _, tt := range tests {
		p, err := NewProvider(Config{Provider: tt.provider, APIKey: "k"})
		if tt.wantErr {
			if err == nil {
				t.Errorf("%q: expected error", tt.provider)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error %v", tt.provider, err)
			continue
		}
		if p.Name() != tt.wantName {
			t.Errorf("%q: expected %s, got %s", tt.provider, tt.wantName, p.Name())
		}
	}
}

func TestEndpointFor(t *testing.T) {
	if got := EndpointFor(Config{Provider: "ollama"}); got != "http://localhost:11434" {
		t.Errorf("unexpected ollama endpoint %s", got)
	}
	if got := EndpointFor(Config{Provider: "gemini", BaseURL: "http://proxy.local/"}); got != "http://proxy.local" {
		t.Errorf("expected BaseURL override, got %s", got)
	}
}
