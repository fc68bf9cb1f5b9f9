package model

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// warmupPrompt is sent once at load time with a one-token budget.
const warmupPrompt = "Hello"

// HuggingFace generates text through the Hugging Face text-generation inference API.
type HuggingFace struct {
	api   apiClient
	model string
}

// NewHuggingFace creates a generator for model served under baseURL.
func NewHuggingFace(baseURL, apiKey, model string, client *http.Client) *HuggingFace {
	if client == nil {
		client = &http.Client{}
	}
	return &HuggingFace{
		api:   apiClient{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, client: client},
		model: model,
	}
}

func loadHuggingFace(ctx context.Context, spec Spec) (Generator, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("huggingface: model name is empty")
	}
	hub := apiClient{baseURL: strings.TrimRight(spec.HubURL, "/"), apiKey: spec.APIKey, client: spec.HTTPClient}
	status, body, err := hub.do(ctx, http.MethodGet, hub.baseURL+"/api/models/"+spec.Name, nil)
	if err != nil {
		return nil, fmt.Errorf("huggingface: resolve model %q: %w", spec.Name, err)
	}
	switch status {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("huggingface: model %q not found on hub", spec.Name)
	default:
		return nil, fmt.Errorf("huggingface: resolve model %q: API error (status %d): %s", spec.Name, status, string(body))
	}

	// The hub answers anonymous reads; only a generation call proves the
	// inference endpoint accepts our credentials and serves the model.
	h := NewHuggingFace(spec.BaseURL, spec.APIKey, spec.Name, spec.HTTPClient)
	if _, err := h.Generate(ctx, warmupPrompt, Params{MaxNewTokens: 1, NumReturnSequences: 1}); err != nil {
		return nil, fmt.Errorf("huggingface: warm-up generation for %q: %w", spec.Name, err)
	}
	return h, nil
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
	Options    hfOptions    `json:"options"`
}

type hfParameters struct {
	MaxNewTokens       int      `json:"max_new_tokens"`
	DoSample           bool     `json:"do_sample"`
	TopK               int      `json:"top_k,omitempty"`
	TopP               float64  `json:"top_p,omitempty"`
	Temperature        *float64 `json:"temperature,omitempty"`
	NumReturnSequences int      `json:"num_return_sequences,omitempty"`
	ReturnFullText     bool     `json:"return_full_text"`
}

type hfOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

type hfGeneration struct {
	GeneratedText string `json:"generated_text"`
}

type hfError struct {
	Error string `json:"error"`
}

// Generate calls POST {baseURL}/{model} and returns the full generated texts.
func (h *HuggingFace) Generate(ctx context.Context, prompt string, p Params) ([]string, error) {
	params := hfParameters{
		MaxNewTokens:       p.MaxNewTokens,
		DoSample:           p.DoSample,
		TopK:               p.TopK,
		TopP:               p.TopP,
		NumReturnSequences: p.NumReturnSequences,
		ReturnFullText:     true,
	}
	if p.DoSample {
		temp := p.Temperature
		params.Temperature = &temp
	}

	status, body, err := h.api.do(ctx, http.MethodPost, h.api.baseURL+"/"+h.model, hfRequest{
		Inputs:     prompt,
		Parameters: params,
		Options:    hfOptions{WaitForModel: true},
	})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		var apiErr hfError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("API error (status %d): %s", status, apiErr.Error)
		}
		return nil, fmt.Errorf("API error (status %d): %s", status, string(body))
	}

	var result []hfGeneration
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w (body: %s)", err, string(body))
	}
	if len(result) == 0 {
		return nil, ErrNoOutput
	}

	texts := make([]string, len(result))
	for i, r := range result {
		texts[i] = r.GeneratedText
	}
	return texts, nil
}
