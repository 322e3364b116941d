package oaihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/yungbote/restoration-assistant/internal/assistant/config"
	"github.com/yungbote/restoration-assistant/internal/assistant/provider"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func completion(content string) *http.Response {
	b, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
	})
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(b)),
	}
}

func testConfig() config.ProviderConfig {
	return config.ProviderConfig{
		Type:                "oai_http",
		BaseURL:             "http://upstream",
		Model:               "restoration-chat",
		ChatCompletionsPath: "/v1/chat/completions",
		JSONSchema:          config.JSONSchemaConfig{Mode: "auto", MaxRetries: 1},
	}
}

func TestSentimentAutoRetriesWithPrompt(t *testing.T) {
	var calls int32
	client := &http.Client{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if req.URL.Path != "/v1/chat/completions" {
				t.Fatalf("unexpected path: %s", req.URL.Path)
			}
			n := atomic.AddInt32(&calls, 1)

			var payload map[string]any
			if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
				t.Fatalf("decode req: %v", err)
			}
			msgs, _ := payload["messages"].([]any)
			if n == 1 {
				if _, ok := payload["guided_json"]; !ok {
					t.Fatalf("expected guided_json on first attempt")
				}
				if len(msgs) != 2 {
					t.Fatalf("expected 2 messages on first attempt, got %d", len(msgs))
				}
				return completion("Sure! here you go"), nil
			}
			if _, ok := payload["guided_json"]; ok {
				t.Fatalf("did not expect guided_json on retry")
			}
			if len(msgs) != 3 {
				t.Fatalf("expected schema prompt appended on retry, got %d messages", len(msgs))
			}
			return completion("```json\n{\"score\":-0.6,\"magnitude\":7,\"emotion\":\"distressed\"}\n```"), nil
		}),
	}

	c, err := NewWithHTTPClient(testConfig(), client)
	if err != nil {
		t.Fatalf("NewWithHTTPClient: %v", err)
	}
	out, err := c.Sentiment(context.Background(), provider.SentimentRequest{Message: "water everywhere"})
	if err != nil {
		t.Fatalf("Sentiment: %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("calls=%d", calls)
	}
	if out.Emotion == nil || *out.Emotion != "distressed" || out.Magnitude == nil || *out.Magnitude != 7 {
		t.Fatalf("out=%+v", out)
	}
}

func TestIntentGivesUpAfterRetries(t *testing.T) {
	client := &http.Client{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			return completion("not json at all"), nil
		}),
	}
	c, _ := NewWithHTTPClient(testConfig(), client)
	_, err := c.Intent(context.Background(), provider.IntentRequest{Message: "quote please"})
	if !errors.Is(err, provider.ErrMalformed) {
		t.Fatalf("err=%v", err)
	}
}

func TestClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	client := &http.Client{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			atomic.AddInt32(&calls, 1)
			return &http.Response{StatusCode: 401, Body: io.NopCloser(strings.NewReader("nope"))}, nil
		}),
	}
	c, _ := NewWithHTTPClient(testConfig(), client)
	_, err := c.Sentiment(context.Background(), provider.SentimentRequest{Message: "x"})
	var he *provider.HTTPError
	if !errors.As(err, &he) || he.StatusCode != 401 {
		t.Fatalf("err=%v", err)
	}
	if calls != 1 {
		t.Fatalf("calls=%d", calls)
	}
}

func TestGenerateIncludesSystemPrompt(t *testing.T) {
	client := &http.Client{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			var payload chatCompletionRequest
			if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if payload.Model != "restoration-chat" {
				t.Fatalf("model=%q", payload.Model)
			}
			if len(payload.Messages) != 3 || payload.Messages[0].Content != "Be kind." || payload.Messages[2].Role != "user" {
				t.Fatalf("messages=%+v", payload.Messages)
			}
			if payload.GuidedJSON != nil {
				t.Fatalf("generation should not request JSON")
			}
			return completion("  We're on our way.  "), nil
		}),
	}
	c, _ := NewWithHTTPClient(testConfig(), client)
	out, err := c.Generate(context.Background(), provider.GenerationRequest{
		Message:      "help",
		SystemPrompt: "Be kind.",
		Intent:       "request_service",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out.Response != "We're on our way." {
		t.Fatalf("response=%q", out.Response)
	}
}

func TestSanitizeJSONText(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n[1,2]\n```", `[1,2]`},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tc := range cases {
		if got := sanitizeJSONText(tc.in); got != tc.want {
			t.Fatalf("sanitizeJSONText(%q)=%q want %q", tc.in, got, tc.want)
		}
	}
}
