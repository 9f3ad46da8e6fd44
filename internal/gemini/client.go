// Package gemini wraps the Google GenAI SDK behind the two narrow
// capabilities the rest of the system needs: text generation against a
// caller-chosen model, and text embedding. The fallback orchestrator picks
// the model per call, so a single client serves the whole hierarchy.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Client is a thin generation client over the GenAI API. Safe for
// concurrent use.
type Client struct {
	// client is the underlying GenAI SDK client.
	client *genai.Client
}

// NewClient constructs a Client authenticated with the given API key
// against the Gemini Developer API.
func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: API key is required (set GEMINI_API_KEY)")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to create client: %w", err)
	}
	return &Client{client: c}, nil
}

// NewClientFromSDK wraps an existing SDK client. Used when the embedder and
// generator share one connection.
func NewClientFromSDK(c *genai.Client) *Client {
	return &Client{client: c}
}

// SDK returns the underlying GenAI client for components that need to share
// the connection (e.g. the embedder).
func (c *Client) SDK() *genai.Client {
	return c.client
}

// Generate produces text from the named model for the given prompt.
// systemInstruction may be empty. Errors are returned unclassified; the
// caller decides whether they are rate limits, transient, or fatal.
func (c *Client) Generate(ctx context.Context, model, prompt, systemInstruction string) (string, error) {
	var cfg *genai.GenerateContentConfig
	if systemInstruction != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{
				Parts: []*genai.Part{{Text: systemInstruction}},
			},
		}
	}

	result, err := c.client.Models.GenerateContent(ctx, model, genai.Text(prompt), cfg)
	if err != nil {
		return "", err
	}

	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil ||
		len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini: model %s returned no candidates", model)
	}
	return result.Candidates[0].Content.Parts[0].Text, nil
}
