package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"ArticleDesk/internal/domain"
)

type recordedRequest struct {
	Auth string
	Body completionRequest
}

func newChatServer(t *testing.T, handle func(req completionRequest) (int, string)) (*httptest.Server, func() []recordedRequest) {
	t.Helper()

	var (
		mu   sync.Mutex
		seen []recordedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req completionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		mu.Lock()
		seen = append(seen, recordedRequest{Auth: r.Header.Get("Authorization"), Body: req})
		mu.Unlock()

		status, content := handle(req)
		w.WriteHeader(status)
		if status == http.StatusOK {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
			})
			return
		}
		_, _ = fmt.Fprint(w, content)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedRequest(nil), seen...)
	}
}

func TestAnalyzeSendsJSONMode(t *testing.T) {
	t.Parallel()

	srv, seen := newChatServer(t, func(completionRequest) (int, string) {
		return http.StatusOK, `{"tl_dr": "ok"}`
	})
	client := NewChatGPTClient(Config{Endpoint: srv.URL, Model: "primary", APIKey: "secret"})

	payload, err := client.Analyze(context.Background(), "article text")
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if string(payload) != `{"tl_dr": "ok"}` {
		t.Fatalf("unexpected payload: %s", payload)
	}

	req := seen()[0]
	if req.Auth != "Bearer secret" {
		t.Fatalf("unexpected auth header: %q", req.Auth)
	}
	if req.Body.ResponseFormat == nil || req.Body.ResponseFormat.Type != "json_object" {
		t.Fatalf("expected json_object response format")
	}
	if len(req.Body.Messages) != 2 || req.Body.Messages[1].Content != "article text" {
		t.Fatalf("unexpected messages: %+v", req.Body.Messages)
	}
	if !strings.Contains(req.Body.Messages[0].Content, "Unknown - Bad Link?") {
		t.Fatalf("default prompt must mention the bad link marker")
	}
}

func TestAnalyzeFallsBackOnce(t *testing.T) {
	t.Parallel()

	srv, seen := newChatServer(t, func(req completionRequest) (int, string) {
		if req.Model == "primary" {
			return http.StatusTooManyRequests, "rate limited"
		}
		return http.StatusOK, `{"tl_dr": "from fallback"}`
	})
	client := NewChatGPTClient(Config{Endpoint: srv.URL, Model: "primary", FallbackModel: "backup", APIKey: "k"})

	payload, err := client.Analyze(context.Background(), "text")
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if !strings.Contains(string(payload), "from fallback") {
		t.Fatalf("unexpected payload: %s", payload)
	}
	if len(seen()) != 2 || seen()[1].Body.Model != "backup" {
		t.Fatalf("expected one fallback call, got %+v", seen())
	}
}

func TestAnalyzeFailureWrapsErrAnalysis(t *testing.T) {
	t.Parallel()

	srv, seen := newChatServer(t, func(completionRequest) (int, string) {
		return http.StatusInternalServerError, "boom"
	})
	client := NewChatGPTClient(Config{Endpoint: srv.URL, Model: "primary", FallbackModel: "backup", APIKey: "k"})

	_, err := client.Analyze(context.Background(), "text")
	if !errors.Is(err, domain.ErrAnalysis) {
		t.Fatalf("expected ErrAnalysis, got %v", err)
	}
	if len(seen()) != 2 {
		t.Fatalf("expected primary and fallback attempts, got %d", len(seen()))
	}
}

func TestMisconfiguredClient(t *testing.T) {
	t.Parallel()

	client := NewChatGPTClient(Config{Endpoint: "http://unused", Model: "m"})
	if _, err := client.Analyze(context.Background(), "x"); !errors.Is(err, domain.ErrAnalysis) {
		t.Fatalf("expected ErrAnalysis, got %v", err)
	}
}

func TestAnswer(t *testing.T) {
	t.Parallel()

	srv, seen := newChatServer(t, func(completionRequest) (int, string) {
		return http.StatusOK, "The CFO."
	})
	client := NewChatGPTClient(Config{Endpoint: srv.URL, Model: "m", APIKey: "k"})

	answer, err := client.Answer(context.Background(), "Title: Scheme", "Who signed?")
	if err != nil {
		t.Fatalf("Answer returned error: %v", err)
	}
	if answer != "The CFO." {
		t.Fatalf("unexpected answer: %q", answer)
	}
	req := seen()[0].Body
	if req.ResponseFormat != nil {
		t.Fatalf("answers must not request json mode")
	}
	if !strings.Contains(req.Messages[1].Content, "Who signed?") || !strings.Contains(req.Messages[1].Content, "Title: Scheme") {
		t.Fatalf("unexpected user message: %q", req.Messages[1].Content)
	}
}

func TestGroupUsesJSONMode(t *testing.T) {
	t.Parallel()

	srv, seen := newChatServer(t, func(completionRequest) (int, string) {
		return http.StatusOK, `{"groups": []}`
	})
	client := NewChatGPTClient(Config{Endpoint: srv.URL, Model: "m", APIKey: "k"})

	payload, err := client.Group(context.Background(), "ID: a1\nTitle: PPP\nSummary: loans\n")
	if err != nil {
		t.Fatalf("Group returned error: %v", err)
	}
	if string(payload) != `{"groups": []}` {
		t.Fatalf("unexpected payload: %s", payload)
	}
	req := seen()[0].Body
	if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
		t.Fatalf("grouping must request json mode")
	}
	if !strings.Contains(req.Messages[1].Content, "ID: a1") || !strings.Contains(req.Messages[1].Content, "group_title") {
		t.Fatalf("unexpected user message: %q", req.Messages[1].Content)
	}
}

func TestProfileTrimsReply(t *testing.T) {
	t.Parallel()

	srv, seen := newChatServer(t, func(completionRequest) (int, string) {
		return http.StatusOK, "  Ann is the reporter who covered the case.\n"
	})
	client := NewChatGPTClient(Config{Endpoint: srv.URL, Model: "m", APIKey: "k"})

	got, err := client.Profile(context.Background(), "TL;DR: fraud", "Ann")
	if err != nil {
		t.Fatalf("Profile returned error: %v", err)
	}
	if got != "Ann is the reporter who covered the case." {
		t.Fatalf("unexpected overview: %q", got)
	}
	req := seen()[0].Body
	if req.ResponseFormat != nil || !strings.Contains(req.Messages[1].Content, "Ann's role") {
		t.Fatalf("unexpected request: %+v", req)
	}
}
