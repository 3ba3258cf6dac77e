package ai

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GenAIClient is the production LLMClient, backed by Google's generative
// AI SDK (SPEC_FULL.md domain-stack: "production LLMClient adapter behind
// AI Extractor").
type GenAIClient struct {
	model *genai.GenerativeModel
}

// NewGenAIClient builds a GenAIClient against modelName (e.g.
// "gemini-1.5-pro"), authenticating with apiKey.
func NewGenAIClient(ctx context.Context, apiKey, modelName string) (*GenAIClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("ai: genai client init failed: %w", err)
	}
	model := client.GenerativeModel(modelName)
	model.ResponseMIMEType = "application/json"
	return &GenAIClient{model: model}, nil
}

// Complete implements LLMClient.
func (c *GenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("ai: empty response from model")
	}
	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return "", fmt.Errorf("ai: unexpected response part type")
	}
	return string(text), nil
}

// FakeClient is a deterministic, in-memory LLMClient used in tests.
type FakeClient struct {
	Responses map[string]string // prompt -> raw JSON response
	Err       error
}

// Complete implements LLMClient by returning Err if set, else the canned
// response for the exact prompt text, else any one configured response.
func (c *FakeClient) Complete(ctx context.Context, prompt string) (string, error) {
	if c.Err != nil {
		return "", c.Err
	}
	if resp, ok := c.Responses[prompt]; ok {
		return resp, nil
	}
	for _, resp := range c.Responses {
		return resp, nil
	}
	return "", fmt.Errorf("fake client: no response configured")
}
