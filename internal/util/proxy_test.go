package util

import (
	"net/http"
	"testing"
)

func TestNewProxyFunc(t *testing.T) {
	fn := NewProxyFunc("http://proxy:3128", "http://secure-proxy:3128", "localhost,.internal.example,10.0.0.1:8080")

	tests := []struct {
		url  string
		want string
	}{
		{"http://api.example.com/v1", "http://proxy:3128"},
		{"https://api.example.com/v1", "http://secure-proxy:3128"},
		{"http://localhost:11434/api/generate", ""},
		{"https://llm.internal.example/v1", ""},
		{"https://internal.example/v1", ""},
		{"http://10.0.0.1:8080/", ""},
	}

	for _, tt := range tests {
		req, err := http.NewRequest(http.MethodGet, tt.url, nil)
		if err != nil {
			t.Fatalf("new request: %v", err)
		}
		got, err := fn(req)
		if err != nil {
			t.Fatalf("proxy func for %s: %v", tt.url, err)
		}
		gotStr := ""
		if got != nil {
			gotStr = got.String()
		}
		if gotStr != tt.want {
			t.Errorf("proxy for %s = %q, want %q", tt.url, gotStr, tt.want)
		}
	}
}

func TestNoProxyWildcard(t *testing.T) {
	fn := NewProxyFunc("http://proxy:3128", "", "*")
	req, _ := http.NewRequest(http.MethodGet, "http://anything.example", nil)
	got, err := fn(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected no proxy, got %s", got)
	}
}
