// Package model binds a text-generation backend to a named pretrained model.
//
// Load is called once at process start and returns an Availability: either a
// ready Generator or the reason no model could be loaded.
package model

import (
	"context"
	"errors"
)

// Params holds the generation settings for one call.
type Params struct {
	// MaxNewTokens bounds the number of generated tokens.
	MaxNewTokens int
	// MaxLength is the approximate total (prompt + new) length budget.
	MaxLength int
	DoSample  bool
	TopK      int
	TopP      float64
	// Temperature is ignored when DoSample is false.
	Temperature        float64
	NumReturnSequences int
}

// Generator produces generated texts for a prompt. Each returned text
// includes the prompt as its prefix, followed by the continuation.
// Implementations must be safe for concurrent use.
type Generator interface {
	Generate(ctx context.Context, prompt string, p Params) ([]string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string, p Params) ([]string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string, p Params) ([]string, error) {
	return f(ctx, prompt, p)
}

var (
	// ErrDisabled is the reason reported when the backend is "none".
	ErrDisabled = errors.New("model backend disabled")
	// ErrUnknownBackend is returned for an unrecognized backend name.
	ErrUnknownBackend = errors.New("unknown model backend")
	// ErrNoOutput is returned when a backend answers without any generated text.
	ErrNoOutput = errors.New("no generated text in response")
)

// Availability is the outcome of a model load attempt.
// The zero value is unavailable with no reason.
type Availability struct {
	// Backend and Model describe what was loaded (or attempted).
	Backend string
	Model   string

	generator Generator
	reason    error
}

// Ready returns an Availability holding g.
func Ready(g Generator) Availability {
	return Availability{generator: g}
}

// Unavailable returns an Availability recording why no model is loaded.
func Unavailable(reason error) Availability {
	if reason == nil {
		reason = errors.New("model unavailable")
	}
	return Availability{reason: reason}
}

// Ready reports whether a generator is available.
func (a Availability) Ready() bool {
	return a.generator != nil
}

// Generator returns the loaded generator, if any.
func (a Availability) Generator() (Generator, bool) {
	return a.generator, a.generator != nil
}

// Reason returns why the model is unavailable, or nil when ready.
func (a Availability) Reason() error {
	if a.generator != nil {
		return nil
	}
	return a.reason
}

func (a Availability) describe(backend, model string) Availability {
	a.Backend = backend
	a.Model = model
	return a
}
