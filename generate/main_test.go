package generate

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	nextline "github.com/nextline-dev/nextline"
	"github.com/nextline-dev/nextline/model"
)

func ptr(s string) *string { return &s }

// echoGenerator returns the prompt followed by a fixed continuation.
func echoGenerator(continuation string, calls *atomic.Int32) model.Generator {
	return model.GeneratorFunc(func(_ context.Context, prompt string, _ model.Params) ([]string, error) {
		if calls != nil {
			calls.Add(1)
		}
		return []string{prompt + continuation}, nil
	})
}

func readyEngine(continuation string, calls *atomic.Int32) *Engine {
	return NewEngine(model.Ready(echoGenerator(continuation, calls)))
}

// --- ParamsFor ---

func TestParamsForClampsNewTokens(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		wantNew   int
		wantTotal int
	}{
		{"single word", "hello", 21, 22},
		{"four words", "The quick brown fox", 24, 28},
		{"at cap", strings.Repeat("w ", 180), 200, 380},
		{"beyond cap", strings.Repeat("w ", 500), 200, 700},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ParamsFor(tt.line)
			if p.MaxNewTokens != tt.wantNew {
				t.Errorf("MaxNewTokens = %d, want %d", p.MaxNewTokens, tt.wantNew)
			}
			if p.MaxLength != tt.wantTotal {
				t.Errorf("MaxLength = %d, want %d", p.MaxLength, tt.wantTotal)
			}
		})
	}
}

func TestParamsForNewTokensAlwaysInRange(t *testing.T) {
	for words := 0; words <= 400; words += 7 {
		line := strings.Repeat("x ", words)
		p := ParamsFor(line)
		if p.MaxNewTokens < 20 || p.MaxNewTokens > 200 {
			t.Fatalf("words=%d: MaxNewTokens %d out of [20, 200]", words, p.MaxNewTokens)
		}
	}
}

func TestParamsForFixedSampling(t *testing.T) {
	p := ParamsFor("anything at all")
	if !p.DoSample || p.TopK != 50 || p.TopP != 0.95 || p.Temperature != 0.7 || p.NumReturnSequences != 1 {
		t.Errorf("unexpected sampling params %+v", p)
	}
}

func TestWordCount(t *testing.T) {
	tests := map[string]int{
		"":                      0,
		"   ":                   0,
		"one":                   1,
		"  two\twords\n":        2,
		"The quick brown fox":   4,
		"tabs\tand\nnewlines x": 4,
	}
	for in, want := range tests {
		if got := WordCount(in); got != want {
			t.Errorf("WordCount(%q) = %d, want %d", in, got, want)
		}
	}
}

// --- Continuation ---

func TestContinuation(t *testing.T) {
	tests := []struct {
		name      string
		generated string
		line      string
		want      string
	}{
		{"simple", "The quick brown fox jumps over", "The quick brown fox", "jumps over"},
		{"first line only", "Hello world\nsecond line\nthird", "Hello", "world"},
		{"leading newline", "Hello\n\n  there friend\nmore", "Hello", "there friend"},
		{"trailing spaces", "abc   def   ", "abc", "def"},
		{"shorter than line", "abc", "abcdef", ""},
		{"equal to line", "abc", "abc", ""},
		{"only whitespace after", "abc \n ", "abc", ""},
		{"multibyte boundary", "naïve café au lait", "naïve café", "au lait"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Continuation(tt.generated, tt.line); got != tt.want {
				t.Errorf("Continuation(%q, %q) = %q, want %q", tt.generated, tt.line, got, tt.want)
			}
		})
	}
}

func TestContinuationNeverContainsNewline(t *testing.T) {
	for _, gen := range []string{"x\na", "x a\nb\nc", "x\r\nb", "x   \n\n\n"} {
		if got := Continuation(gen, "x"); strings.Contains(got, "\n") {
			t.Errorf("Continuation(%q) = %q contains newline", gen, got)
		}
	}
}

// --- Suggest ---

func TestSuggestEmptyLine(t *testing.T) {
	var calls atomic.Int32
	engines := map[string]*Engine{
		"ready":       readyEngine(" more", &calls),
		"unavailable": NewEngine(model.Unavailable(errors.New("no model"))),
	}
	inputs := map[string]*nextline.Request{
		"missing":    {},
		"nil":        nil,
		"empty":      {Line: ptr("")},
		"whitespace": {Line: ptr(" \t\n ")},
	}
	for ename, e := range engines {
		for iname, req := range inputs {
			t.Run(ename+"/"+iname, func(t *testing.T) {
				resp, status := e.Suggest(context.Background(), req)
				if status != http.StatusOK {
					t.Errorf("expected 200, got %d", status)
				}
				if resp.Suggestion != "" || resp.Error != "" {
					t.Errorf("expected empty response, got %+v", resp)
				}
			})
		}
	}
	if calls.Load() != 0 {
		t.Errorf("expected no model calls for empty input, got %d", calls.Load())
	}
}

func TestSuggestFallbackMode(t *testing.T) {
	e := NewEngine(model.Unavailable(errors.New("download failed")))
	for _, line := range []string{"The quick brown fox", "x", "  padded  "} {
		resp, status := e.Suggest(context.Background(), &nextline.Request{Line: ptr(line)})
		if status != http.StatusOK {
			t.Errorf("expected 200, got %d", status)
		}
		if resp.Suggestion != "lorem ipsum dolor sit amet, consectetur adipiscing elit." {
			t.Errorf("unexpected fallback %q", resp.Suggestion)
		}
		if resp.Error != "" {
			t.Errorf("expected no error, got %q", resp.Error)
		}
	}
}

func TestSuggestReadyStripsPromptAndNewline(t *testing.T) {
	e := readyEngine(" jumps over the lazy dog.\nAnd then it ran.", nil)
	resp, status := e.Suggest(context.Background(), &nextline.Request{Line: ptr("  The quick brown fox  ")})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if resp.Suggestion != "jumps over the lazy dog." {
		t.Errorf("unexpected suggestion %q", resp.Suggestion)
	}
	if strings.HasPrefix(resp.Suggestion, "The quick brown fox") {
		t.Error("suggestion must not start with the prompt")
	}
}

func TestSuggestPassesTrimmedLineAndParams(t *testing.T) {
	var gotPrompt string
	var gotParams model.Params
	gen := model.GeneratorFunc(func(_ context.Context, prompt string, p model.Params) ([]string, error) {
		gotPrompt, gotParams = prompt, p
		return []string{prompt + " ok"}, nil
	})
	e := NewEngine(model.Ready(gen))

	e.Suggest(context.Background(), &nextline.Request{Line: ptr("\t one two three \n")})
	if gotPrompt != "one two three" {
		t.Errorf("expected trimmed prompt, got %q", gotPrompt)
	}
	if gotParams.MaxNewTokens != 23 || gotParams.MaxLength != 26 {
		t.Errorf("unexpected params %+v", gotParams)
	}
}

func TestSuggestGenerationError(t *testing.T) {
	gen := model.GeneratorFunc(func(context.Context, string, model.Params) ([]string, error) {
		return nil, errors.New("CUDA out of memory")
	})
	e := NewEngine(model.Ready(gen))

	resp, status := e.Suggest(context.Background(), &nextline.Request{Line: ptr("hello")})
	if status != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", status)
	}
	if resp.Suggestion != "" {
		t.Errorf("expected empty suggestion, got %q", resp.Suggestion)
	}
	if resp.Error != "CUDA out of memory" {
		t.Errorf("unexpected error %q", resp.Error)
	}
}

func TestSuggestNoSequencesIsError(t *testing.T) {
	gen := model.GeneratorFunc(func(context.Context, string, model.Params) ([]string, error) {
		return nil, nil
	})
	resp, status := NewEngine(model.Ready(gen)).Suggest(context.Background(), &nextline.Request{Line: ptr("hello")})
	if status != http.StatusInternalServerError || resp.Error == "" {
		t.Errorf("expected 500 with error, got %d %+v", status, resp)
	}
}

func TestSuggestTimeout(t *testing.T) {
	gen := model.GeneratorFunc(func(ctx context.Context, _ string, _ model.Params) ([]string, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	e := NewEngine(model.Ready(gen), WithTimeout(10*time.Millisecond))

	resp, status := e.Suggest(context.Background(), &nextline.Request{Line: ptr("hello")})
	if status != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", status)
	}
	if !strings.Contains(resp.Error, "deadline") {
		t.Errorf("expected deadline error, got %q", resp.Error)
	}
}

func TestSuggestCacheReusesSuggestion(t *testing.T) {
	var calls atomic.Int32
	cache := NewCache(time.Minute, 16)
	e := NewEngine(model.Ready(echoGenerator(" world", &calls)), WithCache(cache))
	defer e.Close()

	for i := 0; i < 3; i++ {
		resp, _ := e.Suggest(context.Background(), &nextline.Request{Line: ptr("hello")})
		if resp.Suggestion != "world" {
			t.Fatalf("unexpected suggestion %q", resp.Suggestion)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 model call with cache, got %d", calls.Load())
	}
}

func TestSuggestCacheSkipsErrors(t *testing.T) {
	var calls atomic.Int32
	gen := model.GeneratorFunc(func(context.Context, string, model.Params) ([]string, error) {
		calls.Add(1)
		return nil, errors.New("boom")
	})
	cache := NewCache(time.Minute, 16)
	e := NewEngine(model.Ready(gen), WithCache(cache))
	defer e.Close()

	e.Suggest(context.Background(), &nextline.Request{Line: ptr("hello")})
	e.Suggest(context.Background(), &nextline.Request{Line: ptr("hello")})
	if calls.Load() != 2 {
		t.Errorf("expected errors not to be cached, got %d calls", calls.Load())
	}
	if cache.Len() != 0 {
		t.Errorf("expected empty cache, got %d entries", cache.Len())
	}
}

func TestNewEngineFromConfig(t *testing.T) {
	cfg := nextline.DefaultConfig()
	e := NewEngineFromConfig(model.Unavailable(nil), cfg)
	if e.cache != nil {
		t.Error("expected cache disabled by default")
	}
	if e.timeout != 0 {
		t.Errorf("expected no timeout by default, got %v", e.timeout)
	}

	cfg.Cache.TTLSeconds = 30
	cfg.Server.GenerationTimeoutSeconds = 5
	e = NewEngineFromConfig(model.Unavailable(nil), cfg)
	defer e.Close()
	if e.cache == nil {
		t.Error("expected cache enabled")
	}
	if e.timeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %v", e.timeout)
	}
}
