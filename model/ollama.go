package model

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// Ollama generates text through a local Ollama daemon.
// Endpoints used:
//   - POST /api/show      model presence check
//   - POST /api/pull      download a missing model (non-streaming)
//   - POST /api/generate  raw, non-streaming completion
type Ollama struct {
	api   apiClient
	model string
}

// NewOllama creates a generator for model on the daemon at baseURL.
func NewOllama(baseURL, model string, client *http.Client) *Ollama {
	if client == nil {
		client = &http.Client{}
	}
	return &Ollama{
		api:   apiClient{baseURL: strings.TrimRight(baseURL, "/"), client: client},
		model: model,
	}
}

type ollamaModelRequest struct {
	Model  string `json:"model"`
	Stream bool   `json:"stream"`
}

type ollamaPullResponse struct {
	Status string `json:"status"`
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Raw     bool           `json:"raw"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func loadOllama(ctx context.Context, spec Spec) (Generator, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("ollama: model name is empty")
	}
	o := NewOllama(spec.BaseURL, spec.Name, spec.HTTPClient)

	present, err := o.show(ctx)
	if err != nil {
		return nil, err
	}
	if present {
		return o, nil
	}
	if !spec.Pull {
		return nil, fmt.Errorf("ollama: model %q is not present and pulling is disabled", spec.Name)
	}

	slog.Info("pulling model", "model", spec.Name)
	var pulled ollamaPullResponse
	if err := o.api.postJSON(ctx, o.api.baseURL+"/api/pull", ollamaModelRequest{Model: spec.Name}, &pulled); err != nil {
		return nil, fmt.Errorf("ollama: pull %q: %w", spec.Name, err)
	}
	if pulled.Status != "success" {
		return nil, fmt.Errorf("ollama: pull %q: unexpected status %q", spec.Name, pulled.Status)
	}

	present, err = o.show(ctx)
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, fmt.Errorf("ollama: model %q missing after pull", spec.Name)
	}
	return o, nil
}

// show reports whether the model is present on the daemon.
func (o *Ollama) show(ctx context.Context) (bool, error) {
	status, body, err := o.api.do(ctx, http.MethodPost, o.api.baseURL+"/api/show", ollamaModelRequest{Model: o.model})
	if err != nil {
		return false, fmt.Errorf("ollama: show %q: %w", o.model, err)
	}
	switch status {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("ollama: show %q: API error (status %d): %s", o.model, status, string(body))
	}
}

// Generate calls POST /api/generate once per requested sequence and
// prefixes each continuation with the prompt.
func (o *Ollama) Generate(ctx context.Context, prompt string, p Params) ([]string, error) {
	n := p.NumReturnSequences
	if n < 1 {
		n = 1
	}

	req := ollamaGenerateRequest{
		Model:   o.model,
		Prompt:  prompt,
		Raw:     true,
		Stream:  false,
		Options: buildGenerateOptions(p),
	}

	texts := make([]string, 0, n)
	for i := 0; i < n; i++ {
		var resp ollamaGenerateResponse
		if err := o.api.postJSON(ctx, o.api.baseURL+"/api/generate", req, &resp); err != nil {
			return nil, fmt.Errorf("ollama generate: %w", err)
		}
		texts = append(texts, prompt+resp.Response)
	}
	return texts, nil
}

// buildGenerateOptions converts Params into the Ollama options map.
func buildGenerateOptions(p Params) map[string]any {
	opts := map[string]any{}
	if p.MaxNewTokens > 0 {
		opts["num_predict"] = p.MaxNewTokens
	}
	if !p.DoSample {
		opts["temperature"] = 0
		return opts
	}
	if p.TopK > 0 {
		opts["top_k"] = p.TopK
	}
	if p.TopP > 0 {
		opts["top_p"] = p.TopP
	}
	opts["temperature"] = p.Temperature
	return opts
}
