// Package llm provides chat-completion clients for the structured
// extraction call. All clients perform a single request/response exchange.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Default endpoints for the supported OpenAI-compatible vendors.
var defaultEndpoints = map[string]string{
	"doubao":     "https://ark.cn-beijing.volces.com/api/v3/chat/completions",
	"deepseek":   "https://api.deepseek.com/chat/completions",
	"kimi":       "https://api.moonshot.cn/v1/chat/completions",
	"openrouter": "https://openrouter.ai/api/v1/chat/completions",
}

// Default models per vendor, used when none is configured.
var defaultModels = map[string]string{
	"doubao":     "doubao-pro-32k",
	"deepseek":   "deepseek-chat",
	"kimi":       "moonshot-v1-8k",
	"openrouter": "deepseek/deepseek-chat",
}

// OpenAICompatClient talks to any chat-completions endpoint that follows the
// OpenAI wire format (DeepSeek, Kimi, Doubao, OpenRouter).
type OpenAICompatClient struct {
	provider string
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewOpenAICompatClient creates a client for the named provider. Model and
// endpoint fall back to per-provider defaults when empty.
func NewOpenAICompatClient(provider, apiKey, model, endpoint string) *OpenAICompatClient {
	if model == "" {
		model = defaultModels[provider]
	}
	if endpoint == "" {
		endpoint = defaultEndpoints[provider]
	}
	return &OpenAICompatClient{
		provider: provider,
		apiKey:   apiKey,
		model:    model,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 120 * time.Second},
	}
}

// Model returns the model name the client sends.
func (c *OpenAICompatClient) Model() string { return c.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends one system+user exchange and returns the reply text.
func (c *OpenAICompatClient) Complete(ctx context.Context, system, user string) (string, error) {
	if c.endpoint == "" {
		return "", fmt.Errorf("llm %s: endpoint not configured", c.provider)
	}

	// Low temperature keeps the structured output stable.
	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.1,
		MaxTokens:   4096,
	})
	if err != nil {
		return "", fmt.Errorf("llm %s: encode request: %w", c.provider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("llm %s: build request: %w", c.provider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.provider == "openrouter" {
		req.Header.Set("HTTP-Referer", "https://voucher-scan.app")
		req.Header.Set("X-Title", "voucher-scan")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm %s: request: %w", c.provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("llm %s: read response: %w", c.provider, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm %s: status %d: %s", c.provider, resp.StatusCode, truncate(string(body), 500))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("llm %s: decode response: %w", c.provider, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("llm %s: api error: %s", c.provider, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("llm %s: empty choices in response", c.provider)
	}
	return parsed.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
