// Package httpjson talks to the assistant's own AI service: one analyze
// endpoint for sentiment and intent, one chat endpoint for generation.
package httpjson

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/restoration-assistant/internal/assistant/config"
	"github.com/yungbote/restoration-assistant/internal/assistant/provider"
)

type Client struct {
	baseURL     string
	apiKey      string
	analyzePath string
	chatPath    string

	httpClient *http.Client
}

var (
	_ provider.Understanding = (*Client)(nil)
	_ provider.Generation    = (*Client)(nil)
)

func New(cfg config.ProviderConfig) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("httpjson: base_url required")
	}
	analyzePath := strings.TrimSpace(cfg.AnalyzePath)
	if analyzePath == "" {
		analyzePath = "/api/ai/analyze"
	}
	chatPath := strings.TrimSpace(cfg.ChatPath)
	if chatPath == "" {
		chatPath = "/api/ai/chat"
	}

	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Client{
		baseURL:     baseURL,
		apiKey:      strings.TrimSpace(cfg.APIKey),
		analyzePath: analyzePath,
		chatPath:    chatPath,
		httpClient:  &http.Client{Transport: tr},
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

type analyzeRequest struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Context any    `json:"context,omitempty"`
}

func (c *Client) Sentiment(ctx context.Context, req provider.SentimentRequest) (provider.SentimentResponse, error) {
	var out provider.SentimentResponse
	err := c.doJSON(ctx, c.analyzePath, analyzeRequest{Type: "sentiment", Message: req.Message}, &out)
	return out, err
}

func (c *Client) Intent(ctx context.Context, req provider.IntentRequest) (provider.IntentResponse, error) {
	body := analyzeRequest{Type: "intent", Message: req.Message}
	if req.Context != nil {
		body.Context = req.Context
	}
	var out provider.IntentResponse
	err := c.doJSON(ctx, c.analyzePath, body, &out)
	return out, err
}

func (c *Client) Generate(ctx context.Context, req provider.GenerationRequest) (provider.GenerationResponse, error) {
	var out struct {
		Response *string `json:"response"`
	}
	if err := c.doJSON(ctx, c.chatPath, req, &out); err != nil {
		return provider.GenerationResponse{}, err
	}
	if out.Response == nil {
		return provider.GenerationResponse{}, provider.Malformed("chat response missing \"response\"")
	}
	return provider.GenerationResponse{Response: *out.Response}, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// doJSON posts body and decodes a 2xx JSON reply into out. The caller's
// context carries the deadline.
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

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return provider.Malformed("empty body from %s", path)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return provider.Malformed("decode %s: %v", path, err)
	}
	return nil
}
