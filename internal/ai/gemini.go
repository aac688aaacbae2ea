package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// ErrMissingAPIKey is returned when the extraction stage is built without a key.
var ErrMissingAPIKey = errors.New("GEMINI_API_KEY is required for extraction")

// Generator sends an extraction request to a language model and returns
// its raw text reply.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

type GeminiClient struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

func NewGeminiClient(ctx context.Context, apiKey, modelID string) (*GeminiClient, error) {
	return newGeminiClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}, modelID)
}

func newGeminiClient(ctx context.Context, cc *genai.ClientConfig, modelID string) (*GeminiClient, error) {
	if cc.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0.1), // Low temperature for deterministic output
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"airlines": {
					Type:        genai.TypeArray,
					Items:       &genai.Schema{Type: genai.TypeString},
					Description: "Airlines mentioned in the title, post or images.",
				},
				"from": {
					Type:        genai.TypeString,
					Description: "Departure city and country, e.g. \"Warsaw, Poland\".",
				},
				"to": {
					Type:        genai.TypeString,
					Description: "Final destination city and country, e.g. \"New York, USA\".",
				},
				"price": {
					Type:        genai.TypeString,
					Description: "Price in PLN.",
				},
				"when": {
					Type:        genai.TypeString,
					Description: "Travel month as \"Month year\", empty when unknown.",
				},
			},
			Required: []string{"airlines", "from", "to", "price"},
		},
	}

	return &GeminiClient{client: client, model: modelID, config: config}, nil
}

func (c *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	parts := []*genai.Part{genai.NewPartFromText(req.Text)}
	for _, img := range req.Images {
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, c.config)
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no text part in gemini response")
	}
	return text, nil
}
