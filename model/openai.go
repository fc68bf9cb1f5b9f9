package model

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

// OpenAI generates text through an OpenAI-compatible completions API.
// top_k has no equivalent there and is not sent.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates a generator for model at baseURL.
func NewOpenAI(baseURL, apiKey, model string, httpClient *http.Client) *OpenAI {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if httpClient != nil {
		config.HTTPClient = httpClient
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

func loadOpenAI(ctx context.Context, spec Spec) (Generator, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("openai: model name is empty")
	}
	o := NewOpenAI(spec.BaseURL, spec.APIKey, spec.Name, spec.HTTPClient)
	if _, err := o.client.GetModel(ctx, spec.Name); err != nil {
		return nil, fmt.Errorf("openai: resolve model %q: %w", spec.Name, err)
	}
	return o, nil
}

// Generate calls the completions endpoint with echo enabled so each
// choice carries the prompt as its prefix.
func (o *OpenAI) Generate(ctx context.Context, prompt string, p Params) ([]string, error) {
	req := openai.CompletionRequest{
		Model:     o.model,
		Prompt:    prompt,
		MaxTokens: p.MaxNewTokens,
		N:         p.NumReturnSequences,
		Echo:      true,
	}
	if p.DoSample {
		req.Temperature = float32(p.Temperature)
		req.TopP = float32(p.TopP)
	}

	resp, err := o.client.CreateCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoOutput
	}

	texts := make([]string, len(resp.Choices))
	for i, c := range resp.Choices {
		texts[i] = c.Text
	}
	return texts, nil
}
