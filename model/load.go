package model

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	nextline "github.com/nextline-dev/nextline"
)

// Spec describes the model to bind and how to reach its backend.
type Spec struct {
	Name    string
	BaseURL string
	HubURL  string
	APIKey  string
	// Pull allows downloading a missing model during load (ollama only).
	Pull bool
	// HTTPClient is used for every backend call. nil means a client without timeout.
	HTTPClient *http.Client
}

// loader constructs a ready Generator or fails.
type loader func(ctx context.Context, spec Spec) (Generator, error)

var loaders = map[string]loader{
	nextline.BackendHuggingFace: loadHuggingFace,
	nextline.BackendOllama:      loadOllama,
	nextline.BackendOpenAI:      loadOpenAI,
}

// SpecFromConfig resolves the model spec from config and environment.
func SpecFromConfig(cfg *nextline.Config) Spec {
	return Spec{
		Name:    nextline.ResolveModelName(cfg),
		BaseURL: nextline.ResolveBaseURL(cfg),
		HubURL:  nextline.ResolveHubURL(cfg),
		APIKey:  nextline.ResolveAPIKey(cfg),
		Pull:    nextline.PullEnabled(cfg),
	}
}

// Load makes the single model load attempt for the configured backend.
func Load(ctx context.Context, cfg *nextline.Config) Availability {
	return LoadBackend(ctx, nextline.ResolveBackend(cfg), SpecFromConfig(cfg))
}

// LoadBackend attempts once to bind spec.Name on the named backend.
// It never fails: every error, and any panic raised by the backend,
// is logged and reported through the returned Availability.
func LoadBackend(ctx context.Context, backend string, spec Spec) (avail Availability) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("model load panicked: %v", r)
			slog.Error("model load failed, serving fallback suggestions", "backend", backend, "model", spec.Name, "error", err)
			avail = Unavailable(err).describe(backend, spec.Name)
		}
	}()

	if backend == nextline.BackendNone {
		slog.Warn("model backend disabled, serving fallback suggestions")
		return Unavailable(ErrDisabled).describe(backend, spec.Name)
	}

	load, ok := loaders[backend]
	if !ok {
		err := fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
		slog.Error("model load failed, serving fallback suggestions", "backend", backend, "model", spec.Name, "error", err)
		return Unavailable(err).describe(backend, spec.Name)
	}

	if spec.HTTPClient == nil {
		spec.HTTPClient = &http.Client{}
	}

	slog.Info("loading model (this can take time)", "backend", backend, "model", spec.Name, "base_url", spec.BaseURL)
	start := time.Now()

	gen, err := load(ctx, spec)
	if err != nil {
		slog.Error("model load failed, serving fallback suggestions", "backend", backend, "model", spec.Name, "error", err)
		return Unavailable(err).describe(backend, spec.Name)
	}

	slog.Info("model loaded", "backend", backend, "model", spec.Name, "elapsed", time.Since(start).Round(time.Millisecond))
	return Ready(gen).describe(backend, spec.Name)
}
