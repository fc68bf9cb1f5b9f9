// Package nextline defines the request/response types for the nextline HTTP API.
// Messages are JSON-encoded request and response bodies.
package nextline

// FallbackSuggestion is returned for every non-empty line while no model is loaded.
const FallbackSuggestion = "lorem ipsum dolor sit amet, consectetur adipiscing elit."

// Banner is the plain-text body served at the root path.
const Banner = `Suggestion server up. POST /suggest with JSON {"line": "..."}`

// Request is sent by the client to POST /suggest.
type Request struct {
	// Line is the text fragment to continue. Null and absent are treated as "".
	Line *string `json:"line"`
}

// Text returns the line with surrounding whitespace left intact, or "" when unset.
func (r *Request) Text() string {
	if r == nil || r.Line == nil {
		return ""
	}
	return *r.Line
}

// Response is returned from POST /suggest.
type Response struct {
	// Suggestion is the generated continuation. Always present, possibly empty.
	Suggestion string `json:"suggestion"`
	// Error is set when generation failed.
	Error string `json:"error,omitempty"`
}

// Health is returned from GET /healthz.
type Health struct {
	Status  string `json:"status"`
	Ready   bool   `json:"ready"`
	Backend string `json:"backend"`
	Model   string `json:"model"`
	// Reason explains why the model is unavailable.
	Reason string `json:"reason,omitempty"`
}
