package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAnthropicProvider_Generate_ToolUse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("Expected path /v1/messages, got %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("Expected x-api-key header test-key, got %s", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != "2023-06-01" {
			t.Errorf("Expected anthropic-version header 2023-06-01, got %s", r.Header.Get("anthropic-version"))
		}

		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		choice, _ := req["tool_choice"].(map[string]interface{})
		if choice["type"] != "tool" || choice["name"] != SummarySchemaName {
			t.Errorf("Expected forced %s tool, got %v", SummarySchemaName, choice)
		}
		if req["system"] != SystemInstruction {
			t.Error("Expected system instruction")
		}

		_, _ = w.Write([]byte(`{
			"id": "msg_123", "type": "message", "role": "assistant",
			"model": "claude-3-5-sonnet-20241022",
			"content": [{"type": "tool_use", "id": "tu_1", "name": "clinical_summary", "input": {"subjective": "x"}}],
			"stop_reason": "tool_use",
			"usage": {"input_tokens": 50, "output_tokens": 50}
		}`))
	}))
	defer server.Close()

	provider, err := NewAnthropicProvider(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	resp, err := provider.Generate(context.Background(), GenerateRequest{
		SystemInstruction: SystemInstruction,
		Content:           "note",
		Schema:            SummarySchema(),
		SchemaName:        SummarySchemaName,
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if resp.Text != `{"subjective": "x"}` {
		t.Errorf("Expected tool input as text, got %s", resp.Text)
	}
	if resp.TokensUsed != 100 {
		t.Errorf("Expected 100 tokens, got %d", resp.TokensUsed)
	}
}

func TestAnthropicProvider_Generate_ToolNotCalled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content": [{"type": "text", "text": "I cannot help"}], "model": "m"}`))
	}))
	defer server.Close()

	provider, _ := NewAnthropicProvider(Config{APIKey: "k", BaseURL: server.URL})

	_, err := provider.Generate(context.Background(), GenerateRequest{Content: "note", Schema: SummarySchema()})
	if err == nil || !strings.Contains(err.Error(), "did not call") {
		t.Fatalf("Expected missing tool error, got %v", err)
	}
}

func TestAnthropicProvider_Generate_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type": "error", "error": {"type": "authentication_error", "message": "invalid x-api-key"}}`))
	}))
	defer server.Close()

	provider, _ := NewAnthropicProvider(Config{APIKey: "k", BaseURL: server.URL})

	_, err := provider.Generate(context.Background(), GenerateRequest{Content: "note"})
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !strings.Contains(err.Error(), "authentication_error") {
		t.Errorf("Expected error type in message, got %v", err)
	}
}

func TestAnthropicProvider_Generate_TextWithoutSchema(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content": [{"type": "text", "text": "{\"a\":"}, {"type": "text", "text": "1}"}], "model": "m"}`))
	}))
	defer server.Close()

	provider, _ := NewAnthropicProvider(Config{APIKey: "k", BaseURL: server.URL})

	resp, err := provider.Generate(context.Background(), GenerateRequest{Content: "note"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if resp.Text != `{"a":1}` {
		t.Errorf("Expected joined text blocks, got %s", resp.Text)
	}
}

func TestAnthropicProvider_IsAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/models" && r.Header.Get("x-api-key") == "good" {
			_, _ = w.Write([]byte(`{"data": []}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	good, _ := NewAnthropicProvider(Config{APIKey: "good", BaseURL: server.URL})
	if !good.IsAvailable(context.Background()) {
		t.Error("Expected available with valid key")
	}

	bad, _ := NewAnthropicProvider(Config{APIKey: "bad", BaseURL: server.URL})
	if bad.IsAvailable(context.Background()) {
		t.Error("Expected unavailable with invalid key")
	}
}
