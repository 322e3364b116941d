// Package oaihttp backs both provider boundaries with an OpenAI-compatible
// chat-completions server (vLLM, SGLang or a hosted API).
package oaihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/restoration-assistant/internal/assistant/config"
	"github.com/yungbote/restoration-assistant/internal/assistant/provider"
)

type Client struct {
	baseURL             string
	apiKey              string
	model               string
	chatCompletionsPath string
	temperature         float64

	jsonSchemaMode       string
	jsonSchemaMaxRetries int

	httpClient *http.Client
}

var (
	_ provider.Understanding = (*Client)(nil)
	_ provider.Generation    = (*Client)(nil)
)

func New(cfg config.ProviderConfig) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("oai_http: base_url required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, errors.New("oai_http: model required")
	}

	chatPath := strings.TrimSpace(cfg.ChatCompletionsPath)
	if chatPath == "" {
		chatPath = "/v1/chat/completions"
	}

	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	mode := strings.ToLower(strings.TrimSpace(cfg.JSONSchema.Mode))
	if mode == "" {
		mode = "auto"
	}
	maxRetries := cfg.JSONSchema.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	return &Client{
		baseURL:              baseURL,
		apiKey:               strings.TrimSpace(cfg.APIKey),
		model:                model,
		chatCompletionsPath:  chatPath,
		temperature:          cfg.Temperature,
		jsonSchemaMode:       mode,
		jsonSchemaMaxRetries: maxRetries,
		httpClient:           &http.Client{Transport: tr},
	}, nil
}

// NewWithHTTPClient is intended for tests; it avoids network access by using a custom RoundTripper.
func NewWithHTTPClient(cfg config.ProviderConfig, httpClient *http.Client) (*Client, error) {
	c, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if httpClient != nil {
		c.httpClient = httpClient
	}
	return c, nil
}

// ---------------- Understanding ----------------

var sentimentSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"properties": map[string]any{
		"score":     map[string]any{"type": "number", "minimum": -1, "maximum": 1},
		"magnitude": map[string]any{"type": "number", "minimum": 0},
		"emotion": map[string]any{
			"type": "string",
			"enum": []string{"neutral", "anxious", "distressed", "frustrated", "satisfied", "grateful"},
		},
	},
	"required": []string{"score", "magnitude", "emotion"},
}

var intentSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"properties": map[string]any{
		"intent": map[string]any{"type": "string"},
		"entities": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"type":       map[string]any{"type": "string"},
					"value":      map[string]any{"type": "string"},
					"confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
				},
				"required": []string{"type", "value", "confidence"},
			},
		},
	},
	"required": []string{"intent", "entities"},
}

func (c *Client) Sentiment(ctx context.Context, req provider.SentimentRequest) (provider.SentimentResponse, error) {
	system := strings.Join([]string{
		"You analyse the emotional state of customers of a disaster restoration company.",
		"Score is -1 (very negative) to 1 (very positive). Magnitude is emotional intensity from 0 to 10.",
		"Emotion is one of neutral, anxious, distressed, frustrated, satisfied, grateful.",
		"Output JSON only, matching the provided schema.",
	}, "\n")

	var out provider.SentimentResponse
	err := c.generateJSON(ctx, "sentiment", sentimentSchema, []chatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: req.Message},
	}, &out)
	return out, err
}

func (c *Client) Intent(ctx context.Context, req provider.IntentRequest) (provider.IntentResponse, error) {
	system := strings.Join([]string{
		"You classify customer messages for a disaster restoration company.",
		"Intent is one of emergency_help, request_service, get_quote, book_appointment, report_damage, general_inquiry.",
		"Entities are facts worth remembering (address, suburb, rooms, damage type, insurer, dates).",
		"Output JSON only, matching the provided schema.",
	}, "\n")

	user := req.Message
	if req.Context != nil {
		if b, err := json.Marshal(req.Context); err == nil {
			user = "CONVERSATION_CONTEXT_JSON:\n" + string(b) + "\n\nMESSAGE:\n" + req.Message
		}
	}

	var out provider.IntentResponse
	err := c.generateJSON(ctx, "intent", intentSchema, []chatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}, &out)
	return out, err
}

// ---------------- Generation ----------------

func (c *Client) Generate(ctx context.Context, req provider.GenerationRequest) (provider.GenerationResponse, error) {
	var details strings.Builder
	details.WriteString("Detected intent: ")
	details.WriteString(req.Intent)
	if len(req.Entities) > 0 {
		if b, err := json.Marshal(req.Entities); err == nil {
			details.WriteString("\nEntities: ")
			details.Write(b)
		}
	}
	if req.ImageAnalysis != nil {
		if b, err := json.Marshal(req.ImageAnalysis); err == nil {
			details.WriteString("\nPhoto damage assessment: ")
			details.Write(b)
		}
	}

	msgs := toChatMessages([]chatMessage{
		{Role: "system", Content: req.SystemPrompt},
		{Role: "system", Content: details.String()},
		{Role: "user", Content: req.Message},
	})

	body := chatCompletionRequest{Model: c.model, Messages: msgs, Temperature: c.temperature}
	var resp chatCompletionResponse
	if err := c.doJSON(ctx, c.chatCompletionsPath, body, &resp); err != nil {
		return provider.GenerationResponse{}, err
	}
	text := strings.TrimSpace(extractChatText(resp))
	if text == "" {
		return provider.GenerationResponse{}, provider.Malformed("empty upstream completion")
	}
	return provider.GenerationResponse{Response: text}, nil
}

// ---------------- Chat completions ----------------

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`

	// Optional OpenAI-compatible extensions supported by vLLM/SGLang variants.
	ResponseFormat map[string]any `json:"response_format,omitempty"`
	GuidedJSON     any            `json:"guided_json,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content,omitempty"`
		} `json:"message,omitempty"`
		Text string `json:"text,omitempty"`
	} `json:"choices"`
}

// generateJSON asks for a schema-conforming object and retries with the
// schema in the prompt when the output is not JSON.
func (c *Client) generateJSON(ctx context.Context, name string, schema map[string]any, messages []chatMessage, out any) error {
	messages = toChatMessages(messages)
	if len(messages) == 0 {
		return errors.New("no messages")
	}

	attempts := 1 + c.jsonSchemaMaxRetries
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		body := c.buildJSONRequest(name, schema, messages, attempt)

		var resp chatCompletionResponse
		if err := c.doJSON(ctx, c.chatCompletionsPath, body, &resp); err != nil {
			var he *provider.HTTPError
			if errors.As(err, &he) && he.StatusCode >= 500 {
				lastErr = err
				continue
			}
			return err
		}

		text := extractChatText(resp)
		if strings.TrimSpace(text) == "" {
			lastErr = provider.Malformed("empty upstream completion")
			continue
		}
		clean := sanitizeJSONText(text)
		if err := json.Unmarshal([]byte(clean), out); err != nil {
			lastErr = provider.Malformed("invalid json: %v", err)
			continue
		}
		return nil
	}
	if lastErr == nil {
		lastErr = provider.Malformed("generation failed")
	}
	return lastErr
}

func (c *Client) buildJSONRequest(name string, schema map[string]any, messages []chatMessage, attempt int) chatCompletionRequest {
	req := chatCompletionRequest{
		Model:    c.model,
		Messages: append([]chatMessage(nil), messages...),
	}

	useGuided := c.jsonSchemaMode == "guided_json" || (c.jsonSchemaMode == "auto" && attempt == 0)
	usePrompt := c.jsonSchemaMode == "prompt" || (c.jsonSchemaMode == "auto" && attempt > 0)

	if useGuided {
		req.ResponseFormat = map[string]any{"type": "json_object"}
		req.GuidedJSON = schema
	}
	if usePrompt {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: jsonSchemaPrompt(name, schema)})
	}
	return req
}

func jsonSchemaPrompt(name string, schema map[string]any) string {
	var b strings.Builder
	b.WriteString("Return ONLY a valid JSON value that conforms to the provided JSON Schema. Do not include markdown or commentary.\n")
	if name != "" {
		b.WriteString("Schema name: ")
		b.WriteString(name)
		b.WriteString("\n")
	}
	if raw, err := json.Marshal(schema); err == nil {
		b.WriteString("Schema:\n")
		b.Write(raw)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func toChatMessages(messages []chatMessage) []chatMessage {
	out := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		role := strings.TrimSpace(m.Role)
		content := strings.TrimSpace(m.Content)
		if role == "" || content == "" {
			continue
		}
		out = append(out, chatMessage{Role: role, Content: content})
	}
	return out
}

func extractChatText(resp chatCompletionResponse) string {
	for _, c := range resp.Choices {
		if strings.TrimSpace(c.Message.Content) != "" {
			return c.Message.Content
		}
		if strings.TrimSpace(c.Text) != "" {
			return c.Text
		}
	}
	return ""
}

func sanitizeJSONText(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	// Strip leading ```lang and trailing ```
	firstNL := strings.IndexByte(s, '\n')
	if firstNL == -1 {
		return strings.TrimSpace(strings.Trim(s, "`"))
	}
	s = s[firstNL+1:]

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// ---------------- HTTP helpers ----------------

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func (c *Client) doJSON(ctx context.Context, path string, body any, out any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return &provider.HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode completion: %v", provider.ErrMalformed, err)
	}
	return nil
}
