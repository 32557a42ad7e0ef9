package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiClient runs the extraction exchange against Gemini.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a Gemini-backed chat client. An empty apiKey falls
// back to the SDK's ambient credentials.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("llm gemini: create client: %w", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

// Complete sends one exchange and returns the reply text. Gemini has no
// separate system role on the v1 surface, so the system prompt is prepended
// to the user content.
func (c *GeminiClient) Complete(ctx context.Context, system, user string) (string, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: system + "\n\n" + user},
			},
		},
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("llm gemini: generate content: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("llm gemini: empty response from model")
	}
	return text, nil
}
