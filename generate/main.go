// Package generate turns a text fragment into a one-line suggestion using a loaded model.
package generate

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	nextline "github.com/nextline-dev/nextline"
	"github.com/nextline-dev/nextline/model"
	"github.com/nextline-dev/nextline/redact"
)

// Sampling settings sent with every generation call.
const (
	TopK               = 50
	TopP               = 0.95
	Temperature        = 0.7
	NumReturnSequences = 1

	minNewTokens = 20
	maxNewTokens = 200
	// newTokenSlack is added to the prompt's word count to size the continuation.
	newTokenSlack = 20
)

// Engine answers suggestion requests. It is safe for concurrent use.
type Engine struct {
	avail   model.Availability
	cache   *Cache
	timeout time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache reuses model suggestions from c.
func WithCache(c *Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithTimeout bounds each generation call. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// NewEngine creates an engine over the outcome of the startup model load.
func NewEngine(avail model.Availability, opts ...Option) *Engine {
	e := &Engine{avail: avail}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewEngineFromConfig creates an engine with the cache and timeout from cfg.
func NewEngineFromConfig(avail model.Availability, cfg *nextline.Config) *Engine {
	opts := []Option{WithTimeout(nextline.GenerationTimeout(cfg))}
	if ttl := nextline.CacheTTL(cfg); ttl > 0 {
		opts = append(opts, WithCache(NewCache(ttl, nextline.CacheMaxEntries(cfg))))
	}
	return NewEngine(avail, opts...)
}

// Availability returns the model load outcome the engine serves with.
func (e *Engine) Availability() model.Availability {
	return e.avail
}

// Close releases resources held by the engine.
func (e *Engine) Close() {
	if e.cache != nil {
		e.cache.Close()
	}
}

// Suggest processes a request and returns the response with its HTTP status.
func (e *Engine) Suggest(ctx context.Context, req *nextline.Request) (*nextline.Response, int) {
	line := strings.TrimSpace(req.Text())
	if line == "" {
		return &nextline.Response{}, http.StatusOK
	}

	gen, ok := e.avail.Generator()
	if !ok {
		return &nextline.Response{Suggestion: nextline.FallbackSuggestion}, http.StatusOK
	}

	if e.cache != nil {
		if s, hit := e.cache.Get(line); hit {
			slog.Debug("suggestion cache hit", "line", redact.Line(line))
			return &nextline.Response{Suggestion: s}, http.StatusOK
		}
	}

	params := ParamsFor(line)
	slog.Debug("generating",
		"line", redact.Line(line),
		"max_new_tokens", params.MaxNewTokens,
		"max_length", params.MaxLength,
	)

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	texts, err := gen.Generate(ctx, line, params)
	if err == nil && len(texts) == 0 {
		err = model.ErrNoOutput
	}
	if err != nil {
		slog.Error("error generating suggestion", "error", err)
		return &nextline.Response{Error: err.Error()}, http.StatusInternalServerError
	}

	suggestion := Continuation(texts[0], line)
	slog.Debug("generated",
		"suggestion", redact.Line(suggestion),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)

	if e.cache != nil {
		e.cache.Set(line, suggestion)
	}
	return &nextline.Response{Suggestion: suggestion}, http.StatusOK
}

// WordCount returns the number of whitespace-separated words in s.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// ParamsFor derives the generation parameters for line. The token budget
// is approximated from the word count.
func ParamsFor(line string) model.Params {
	words := WordCount(line)
	newTokens := min(max(words+newTokenSlack, minNewTokens), maxNewTokens)
	return model.Params{
		MaxNewTokens:       newTokens,
		MaxLength:          words + newTokens,
		DoSample:           true,
		TopK:               TopK,
		TopP:               TopP,
		Temperature:        Temperature,
		NumReturnSequences: NumReturnSequences,
	}
}

// Continuation extracts the suggestion from generated text that starts with
// line: everything after len(line) bytes, trimmed, cut at the first newline.
func Continuation(generated, line string) string {
	i := len(line)
	for i < len(generated) && !utf8.RuneStart(generated[i]) {
		i++
	}
	if i >= len(generated) {
		return ""
	}
	rest := strings.TrimSpace(generated[i:])
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		rest = rest[:i]
	}
	return strings.TrimSpace(rest)
}
