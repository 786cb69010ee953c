package transcription

import (
	"encoding/json"
	"strings"
)

// ResponseSource identifies how the raw model response was interpreted.
// Some model configurations return the transcript as a plain string; others
// wrap it in a JSON object with a "text" field. The ambiguity is resolved
// with an explicit precedence rule instead of try/catch sniffing: a response
// that parses as a JSON object with a non-empty "text" field is treated as
// wrapped, everything else is plain text.
type ResponseSource int

const (
	SourcePlainText ResponseSource = iota
	SourceWrappedJSON
)

// Result is the unwrapped transcription outcome.
type Result struct {
	Text   string
	Source ResponseSource
}

type wrappedResponse struct {
	Text string `json:"text"`
}

// unwrapResponse applies the precedence rule above to a raw response body.
// An empty body unwraps to an empty plain-text result; empty is a valid
// "silence" outcome, never an error.
func unwrapResponse(raw string) Result {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Result{Text: "", Source: SourcePlainText}
	}

	if strings.HasPrefix(trimmed, "{") {
		var wrapped wrappedResponse
		if err := json.Unmarshal([]byte(trimmed), &wrapped); err == nil && wrapped.Text != "" {
			return Result{Text: wrapped.Text, Source: SourceWrappedJSON}
		}
	}

	return Result{Text: raw, Source: SourcePlainText}
}
