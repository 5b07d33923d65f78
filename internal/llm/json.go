package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoStructuredPayload is returned when no valid JSON object can be
// recovered from a model reply.
var ErrNoStructuredPayload = errors.New("llm: no structured payload in reply")

var (
	fenceOpen  = regexp.MustCompile("(?m)^```(?:json)?\\s*")
	fenceClose = regexp.MustCompile("(?m)\\s*```\\s*$")
)

// ExtractJSON recovers the JSON object in reply. A surrounding code fence is
// stripped first; if that is not valid JSON, the span from the first '{' to
// the last '}' is tried.
func ExtractJSON(reply string) (string, error) {
	cleaned := strings.TrimSpace(reply)
	cleaned = fenceOpen.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(fenceClose.ReplaceAllString(cleaned, ""))
	if json.Valid([]byte(cleaned)) {
		return cleaned, nil
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		candidate := cleaned[start : end+1]
		if json.Valid([]byte(candidate)) {
			return candidate, nil
		}
	}

	var probe any
	err := json.Unmarshal([]byte(cleaned), &probe)
	return "", fmt.Errorf("%w: %v", ErrNoStructuredPayload, err)
}

// Decode extracts the JSON object in reply and unmarshals it into v.
func Decode(reply string, v any) error {
	payload, err := ExtractJSON(reply)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return fmt.Errorf("%w: %v", ErrNoStructuredPayload, err)
	}
	return nil
}
