package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected /chat/completions, got %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Expected Bearer test-key, got %s", auth)
		}

		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "llama3" {
			t.Errorf("Expected model llama3, got %s", req.Model)
		}
		if len(req.Messages) != 1 || req.Messages[0].Content != "Command: stop\nOutput:" {
			t.Errorf("Unexpected messages: %+v", req.Messages)
		}
		if req.Temperature != 0.1 || req.MaxTokens != 1024 {
			t.Errorf("Unexpected sampling: %+v", req)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","model":"llama3","choices":[{"message":{"role":"assistant","content":"[\"stop\",null,null,null]"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	client, err := NewClient(
		WithBaseURL(server.URL+"/"),
		WithAPIKey("test-key"),
		WithModel("llama3"),
	)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	resp, err := client.Complete(context.Background(), &CompletionRequest{
		Prompt: "Command: stop\nOutput:",
		Config: DefaultGenerationConfig(),
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Text != `["stop",null,null,null]` {
		t.Errorf("Unexpected text: %s", resp.Text)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("Expected finish_reason 'stop', got %s", resp.FinishReason)
	}
	if client.Name() != "openai" {
		t.Errorf("Unexpected name: %s", client.Name())
	}
}

func TestClientAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key","type":"auth","code":"invalid_api_key"}}`))
	}))
	defer server.Close()

	client, _ := NewClient(WithBaseURL(server.URL))
	_, err := client.Complete(context.Background(), &CompletionRequest{Prompt: "x"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %T: %v", err, err)
	}
	if !apiErr.Rejected() || Retryable(err) {
		t.Errorf("Expected a final credential error, got %d", apiErr.StatusCode)
	}
	if apiErr.Status != "invalid_api_key" || apiErr.Message != "bad key" {
		t.Errorf("Unexpected error fields: %+v", apiErr)
	}
}

func TestClientNoRetryByDefault(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, _ := NewClient(WithBaseURL(server.URL))
	_, err := client.Complete(context.Background(), &CompletionRequest{Prompt: "x"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) || !apiErr.Temporary() {
		t.Fatalf("Expected server APIError, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected exactly one request, got %d", calls)
	}
}

func TestClientRetry(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	client, _ := NewClient(WithBaseURL(server.URL), WithRetry(1, 0))
	resp, err := client.Complete(context.Background(), &CompletionRequest{Prompt: "x"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Text != "ok" || calls != 2 {
		t.Errorf("Expected ok after 2 calls, got %q after %d", resp.Text, calls)
	}
}

func TestClientEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client, _ := NewClient(WithBaseURL(server.URL))
	_, err := client.Complete(context.Background(), &CompletionRequest{Prompt: "x"})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Expected ErrEmptyResponse, got %v", err)
	}
}

func TestClientDoesNotRetryFinalErrors(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client, _ := NewClient(WithBaseURL(server.URL), WithRetry(3, 0))
	_, err := client.Complete(context.Background(), &CompletionRequest{Prompt: "x"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) || !apiErr.Rejected() {
		t.Fatalf("Expected rejected APIError, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected one request for a final error, got %d", calls)
	}
}
