package nextline

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestResponseSuggestionAlwaysPresent(t *testing.T) {
	data, err := json.Marshal(Response{})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"suggestion":""}` {
		t.Errorf("expected {\"suggestion\":\"\"}, got %s", data)
	}
}

func TestResponseErrorOmittedWhenEmpty(t *testing.T) {
	data, _ := json.Marshal(Response{Suggestion: "hi"})
	if strings.Contains(string(data), "error") {
		t.Errorf("expected no error key, got %s", data)
	}

	data, _ = json.Marshal(Response{Error: "boom"})
	if !strings.Contains(string(data), `"error":"boom"`) || !strings.Contains(string(data), `"suggestion":""`) {
		t.Errorf("expected suggestion and error keys, got %s", data)
	}
}

func TestRequestText(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"value", `{"line":"  hello "}`, "  hello "},
		{"null", `{"line":null}`, ""},
		{"absent", `{}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req Request
			if err := json.Unmarshal([]byte(tt.body), &req); err != nil {
				t.Fatal(err)
			}
			if got := req.Text(); got != tt.want {
				t.Errorf("Text() = %q, want %q", got, tt.want)
			}
		})
	}

	var nilReq *Request
	if nilReq.Text() != "" {
		t.Error("expected empty text for nil request")
	}
}

func TestBannerMentionsSuggest(t *testing.T) {
	if !strings.Contains(Banner, "POST /suggest") {
		t.Errorf("banner should mention POST /suggest, got %q", Banner)
	}
}
