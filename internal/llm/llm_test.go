package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// MockProvider is a test provider that records calls and returns canned responses.
type MockProvider struct {
	mu       sync.Mutex
	Calls    []CompletionRequest
	Response *CompletionResponse
	Err      error
	ProvName string
}

func NewMockProvider(name string) *MockProvider {
	return &MockProvider{
		ProvName: name,
		Response: &CompletionResponse{
			Content:      "mock response",
			InputTokens:  10,
			OutputTokens: 20,
			Model:        "mock-model",
			Finish:       FinishStop,
		},
	}
}

func (m *MockProvider) Name() string {
	return m.ProvName
}

func (m *MockProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, req)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Response, nil
}

func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// --- Tests ---

func TestMockProviderRecordsCalls(t *testing.T) {
	mock := NewMockProvider("test")
	ctx := context.Background()

	req := CompletionRequest{
		Model:    "test-model",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	}

	resp, err := mock.Complete(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Content != "mock response" {
		t.Errorf("expected 'mock response', got %q", resp.Content)
	}

	if mock.CallCount() != 1 {
		t.Errorf("expected 1 call, got %d", mock.CallCount())
	}

	if mock.Calls[0].Model != "test-model" {
		t.Errorf("expected model 'test-model', got %q", mock.Calls[0].Model)
	}
}

func TestFactoryReturnsErrorForMissingAPIKey(t *testing.T) {
	// Ensure env vars are not set for this test.
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	providers := []string{"anthropic", "openai", "openrouter", "google"}
	for _, p := range providers {
		_, err := NewProvider(p, "some-model")
		if !errors.Is(err, ErrMissingAPIKey) {
			t.Errorf("provider %q: expected ErrMissingAPIKey, got %v", p, err)
		}
	}
}

func TestFactoryReturnsErrorForUnknownProvider(t *testing.T) {
	_, err := NewProvider("unknown", "some-model")
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestFactoryCreatesOllamaWithoutAPIKey(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "http://localhost:11434")
	provider, err := NewProvider("ollama", "llama3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.Name() != "ollama" {
		t.Errorf("expected name 'ollama', got %q", provider.Name())
	}
}

func TestFactoryCreatesOllamaWithDefaultHost(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "")
	provider, err := NewProvider("ollama", "llama3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ollamaP, ok := provider.(*OllamaProvider)
	if !ok {
		t.Fatal("expected *OllamaProvider")
	}
	if ollamaP.baseURL != "http://localhost:11434" {
		t.Errorf("expected default host, got %q", ollamaP.baseURL)
	}
}

func TestFactoryCreatesAnthropicProvider(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	provider, err := NewProvider("anthropic", "claude-sonnet-4-5-20250929")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.Name() != "anthropic" {
		t.Errorf("expected name 'anthropic', got %q", provider.Name())
	}
}

func TestFactoryCreatesOpenAIProvider(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	provider, err := NewProvider("openai", "gpt-4o")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.Name() != "openai" {
		t.Errorf("expected name 'openai', got %q", provider.Name())
	}
}

func TestFactoryCreatesGoogleProvider(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "test-key")
	provider, err := NewProvider("google", "gemini-2.0-flash")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.Name() != "google" {
		t.Errorf("expected name 'google', got %q", provider.Name())
	}
}

func TestFactoryGoogleAcceptsGeminiKey(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	provider, err := NewProvider("google", "gemini-2.5-flash")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gp := provider.(*GoogleProvider); gp.apiKey != "gemini-key" {
		t.Errorf("apiKey = %q", gp.apiKey)
	}
}

func TestFactoryCreatesOpenRouterProvider(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "test-key")
	provider, err := NewProvider("openrouter", "google/gemini-2.5-flash")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.Name() != "openrouter" {
		t.Errorf("expected name 'openrouter', got %q", provider.Name())
	}
}

func TestGoogleProviderSendsInlineImage(t *testing.T) {
	var got geminiRequest
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"<div>ok</div>"}]},"finishReason":"STOP"}],
			"usageMetadata":{"promptTokenCount":12,"candidatesTokenCount":34}}`)
	}))
	defer srv.Close()

	p := NewGoogleProvider("k", "gemini-2.5-flash").WithBaseURL(srv.URL)
	resp, err := p.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{
			Role:    RoleUser,
			Content: "build this",
			Images:  []Image{{MIMEType: "image/png", Data: "AAAA"}},
		}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "<div>ok</div>" || resp.InputTokens != 12 || resp.OutputTokens != 34 {
		t.Errorf("resp = %+v", resp)
	}
	if path != "/gemini-2.5-flash:generateContent" {
		t.Errorf("path = %s", path)
	}

	parts := got.Contents[0].Parts
	if len(parts) != 2 || parts[0].Text != "build this" {
		t.Fatalf("parts = %+v", parts)
	}
	if parts[1].InlineData == nil || parts[1].InlineData.MIMEType != "image/png" || parts[1].InlineData.Data != "AAAA" {
		t.Errorf("image part = %+v", parts[1])
	}
}

func TestGoogleProviderAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":{"code":404,"message":"model not found","status":"NOT_FOUND"}}`)
	}))
	defer srv.Close()

	p := NewGoogleProvider("k", "gemini-9").WithBaseURL(srv.URL)
	_, err := p.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "x"}},
	})
	if err == nil || !strings.Contains(err.Error(), "model not found") {
		t.Errorf("expected API error, got %v", err)
	}
}

func TestOpenAIMessageWithImages(t *testing.T) {
	plain := toOpenAIMessage(Message{Role: RoleUser, Content: "hi"})
	if plain.Content != "hi" || plain.MultiContent != nil {
		t.Errorf("plain message = %+v", plain)
	}

	msg := toOpenAIMessage(Message{
		Role:    RoleUser,
		Content: "build",
		Images:  []Image{{MIMEType: "image/png", Data: "AAAA"}},
	})
	if msg.Content != "" || len(msg.MultiContent) != 2 {
		t.Fatalf("message = %+v", msg)
	}
	if msg.MultiContent[0].Type != openai.ChatMessagePartTypeText || msg.MultiContent[0].Text != "build" {
		t.Errorf("text part = %+v", msg.MultiContent[0])
	}
	if msg.MultiContent[1].ImageURL.URL != "data:image/png;base64,AAAA" {
		t.Errorf("image url = %s", msg.MultiContent[1].ImageURL.URL)
	}
}

func TestAnthropicUserContent(t *testing.T) {
	if c := anthropicUserContent(Message{Content: "hi"}); c != "hi" {
		t.Errorf("plain content = %#v", c)
	}

	c := anthropicUserContent(Message{Content: "build", Images: []Image{{MIMEType: "image/jpeg", Data: "BBBB"}}})
	blocks, ok := c.([]anthropicBlock)
	if !ok || len(blocks) != 2 {
		t.Fatalf("content = %#v", c)
	}
	if blocks[0].Type != "image" || blocks[0].Source.MediaType != "image/jpeg" {
		t.Errorf("image block = %+v", blocks[0])
	}
	if blocks[1].Type != "text" || blocks[1].Text != "build" {
		t.Errorf("text block = %+v", blocks[1])
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	mock := NewMockProvider("test")
	if p := NewRateLimitedProvider(mock, 0); p != Provider(mock) {
		t.Error("rpm 0 should return the provider unwrapped")
	}
}

func TestRateLimiterPassesThrough(t *testing.T) {
	mock := NewMockProvider("test")
	rl := NewRateLimitedProvider(mock, 60)

	ctx := context.Background()
	req := CompletionRequest{
		Model:    "test-model",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	}

	resp, err := rl.Complete(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "mock response" {
		t.Errorf("expected 'mock response', got %q", resp.Content)
	}
	if rl.Name() != "test" {
		t.Errorf("expected name 'test', got %q", rl.Name())
	}
}

func TestRateLimiterLimitsRequests(t *testing.T) {
	mock := NewMockProvider("test")
	// Allow only 2 requests per minute.
	rl := NewRateLimitedProvider(mock, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	req := CompletionRequest{
		Model:    "test-model",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	}

	// First two should succeed immediately.
	for i := 0; i < 2; i++ {
		_, err := rl.Complete(ctx, req)
		if err != nil {
			t.Fatalf("request %d: unexpected error: %v", i, err)
		}
	}

	// Third should block and eventually fail due to context timeout.
	_, err := rl.Complete(ctx, req)
	if err == nil {
		t.Error("expected error due to rate limiting + context timeout")
	}
}

func TestPriceFor(t *testing.T) {
	tests := []struct {
		model string
		want  float64 // input price
		ok    bool
	}{
		{"gemini-2.5-flash", 0.30, true},
		{"gemini-2.5-flash-preview-05-20", 0.30, true},
		{"gemini-2.5-flash-lite", 0.10, true},
		{"google/gemini-2.0-flash-001", 0.10, true},
		{"gpt-4o-mini", 0.15, true},
		{"claude-sonnet-4-5-20250929", 3.00, true},
		{"llava", 0, false},
	}
	for _, tt := range tests {
		p, ok := PriceFor(tt.model)
		if ok != tt.ok || p.InputPerMillion != tt.want {
			t.Errorf("PriceFor(%q) = %+v, %v; want input %v, %v", tt.model, p, ok, tt.want, tt.ok)
		}
	}
}

func TestEstimateCost(t *testing.T) {
	// gemini-2.5-flash: $0.30/1M input, $2.50/1M output
	cost := EstimateCost("gemini-2.5-flash", 1_000_000, 1_000_000)
	if cost < 2.79 || cost > 2.81 {
		t.Errorf("expected cost ~$2.80, got $%.2f", cost)
	}
	if cost := EstimateCost("unknown-model", 1000, 500); cost != 0 {
		t.Errorf("expected 0 for unknown model, got %f", cost)
	}
}

func TestFinishReason(t *testing.T) {
	tests := map[string]FinishReason{
		"":               "",
		"STOP":           FinishStop,
		"end_turn":       FinishStop,
		"MAX_TOKENS":     FinishLength,
		"length":         FinishLength,
		"max_tokens":     FinishLength,
		"SAFETY":         FinishFiltered,
		"content_filter": FinishFiltered,
		"tool_use":       FinishOther,
	}
	for raw, want := range tests {
		if got := finishReason(raw); got != want {
			t.Errorf("finishReason(%q) = %q, want %q", raw, got, want)
		}
	}
	if !(&CompletionResponse{Finish: FinishLength}).Truncated() {
		t.Error("length finish should be truncated")
	}
}

func TestStatusError(t *testing.T) {
	throttled := newStatusError("google", http.StatusTooManyRequests, "quota exceeded", nil)
	if !errors.Is(throttled, ErrRateLimited) || !throttled.Temporary() {
		t.Errorf("429 should be rate limited and temporary: %v", throttled)
	}

	notFound := newStatusError("google", http.StatusNotFound, "", []byte("  no such model \n"))
	if errors.Is(notFound, ErrRateLimited) || notFound.Temporary() {
		t.Error("404 should not be rate limited or temporary")
	}
	if notFound.Message != "no such model" {
		t.Errorf("message = %q", notFound.Message)
	}

	empty := newStatusError("ollama", http.StatusBadGateway, "", nil)
	if empty.Message != "Bad Gateway" || !empty.Temporary() {
		t.Errorf("empty = %+v", empty)
	}

	long := newStatusError("x", 500, "", []byte(strings.Repeat("a", 1000)))
	if len(long.Message) != maxErrorBody+3 {
		t.Errorf("long message length = %d", len(long.Message))
	}
}

func TestGoogleProviderSendsKeyInHeader(t *testing.T) {
	var key, query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key = r.Header.Get("X-Goog-Api-Key")
		query = r.URL.RawQuery
		io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"<p>"},{"text":"x</p>"}]},"finishReason":"MAX_TOKENS"}],"modelVersion":"gemini-2.5-flash-001"}`)
	}))
	defer srv.Close()

	resp, err := NewGoogleProvider("secret", "gemini-2.5-flash").WithBaseURL(srv.URL).Complete(context.Background(),
		CompletionRequest{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if key != "secret" || query != "" {
		t.Errorf("key header = %q, query = %q", key, query)
	}
	if resp.Content != "<p>x</p>" || !resp.Truncated() || resp.Model != "gemini-2.5-flash-001" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestGoogleProviderRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"code":429,"message":"Resource has been exhausted","status":"RESOURCE_EXHAUSTED"}}`)
	}))
	defer srv.Close()

	_, err := NewGoogleProvider("k", "gemini-2.5-flash").WithBaseURL(srv.URL).Complete(context.Background(),
		CompletionRequest{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
}

func TestGoogleProviderBlockedPrompt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"promptFeedback":{"blockReason":"SAFETY"}}`)
	}))
	defer srv.Close()

	_, err := NewGoogleProvider("k", "gemini-2.5-flash").WithBaseURL(srv.URL).Complete(context.Background(),
		CompletionRequest{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	if err == nil || !strings.Contains(err.Error(), "SAFETY") {
		t.Errorf("expected blocked prompt error, got %v", err)
	}
}

func TestAnthropicProviderRequest(t *testing.T) {
	var got anthropicRequest
	var version string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		version = r.Header.Get("Anthropic-Version")
		json.NewDecoder(r.Body).Decode(&got)
		io.WriteString(w, `{"content":[{"type":"text","text":"<div/>"}],"model":"claude-sonnet-4-5","stop_reason":"end_turn",
			"usage":{"input_tokens":5,"output_tokens":7}}`)
	}))
	defer srv.Close()

	p := NewAnthropicProvider("k", "claude-sonnet-4-5")
	p.url = srv.URL
	resp, err := p.Complete(context.Background(), CompletionRequest{Messages: []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "build"},
	}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if version != anthropicVersion || got.System != "be brief" || got.MaxTokens != anthropicMaxTokens {
		t.Errorf("request = %+v, version %q", got, version)
	}
	if resp.Content != "<div/>" || resp.Finish != FinishStop || resp.OutputTokens != 7 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestOllamaProviderSendsImages(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		io.WriteString(w, `{"model":"llava","message":{"role":"assistant","content":"<main/>"},"done_reason":"stop","eval_count":3}`)
	}))
	defer srv.Close()

	resp, err := NewOllamaProvider(srv.URL+"/", "llava").Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "build", Images: []Image{{MIMEType: "image/png", Data: "AAAA"}}}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got.Model != "llava" || got.Stream || len(got.Messages[0].Images) != 1 || got.Messages[0].Images[0] != "AAAA" {
		t.Errorf("request = %+v", got)
	}
	if resp.Content != "<main/>" || resp.Finish != FinishStop {
		t.Errorf("resp = %+v", resp)
	}
}

func TestOllamaProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":"model 'llava' not found"}`)
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(srv.URL, "llava").Complete(context.Background(), CompletionRequest{})
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound || se.Message != "model 'llava' not found" {
		t.Errorf("expected StatusError, got %v", err)
	}
}

func TestRateLimiterUnwrap(t *testing.T) {
	mock := NewMockProvider("test")
	rl := NewRateLimitedProvider(mock, 10).(*RateLimitedProvider)
	if rl.Unwrap() != Provider(mock) {
		t.Error("Unwrap should return the wrapped provider")
	}
}
