package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FactResponse is one triple as returned by the model.
type FactResponse struct {
	Subject    string  `json:"subject"`
	Predicate  string  `json:"predicate"`
	Object     string  `json:"object"`
	Confidence float64 `json:"confidence"`
}

// extractJSON isolates the first balanced JSON array or object in text,
// skipping markdown fences and chatter around it.
func extractJSON(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	start := strings.IndexAny(text, "[{")
	if start == -1 {
		return text
	}

	depth := 0
	inString, escape := false, false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if escape {
			escape = false
			continue
		}
		switch {
		case ch == '\\' && inString:
			escape = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '[' || ch == '{':
			depth++
		case ch == ']' || ch == '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return text[start:]
}

// ParseFactResponse parses a model reply into facts. It accepts a bare array
// or an object wrapping it under "facts". Entries missing a field are
// dropped, a missing confidence becomes 0.5, and only malformed JSON is an
// error.
func ParseFactResponse(reply string) ([]FactResponse, error) {
	raw := extractJSON(reply)

	var facts []FactResponse
	if strings.HasPrefix(raw, "{") {
		var wrapped struct {
			Facts []FactResponse `json:"facts"`
		}
		if err := json.Unmarshal([]byte(raw), &wrapped); err != nil {
			return nil, fmt.Errorf("parse facts: %w", err)
		}
		facts = wrapped.Facts
	} else if err := json.Unmarshal([]byte(raw), &facts); err != nil {
		return nil, fmt.Errorf("parse facts: %w", err)
	}

	valid := make([]FactResponse, 0, len(facts))
	for _, f := range facts {
		f.Subject = strings.TrimSpace(f.Subject)
		f.Predicate = strings.ToLower(strings.TrimSpace(f.Predicate))
		f.Object = strings.TrimSpace(f.Object)
		if f.Subject == "" || f.Predicate == "" || f.Object == "" {
			continue
		}
		if f.Confidence <= 0 {
			f.Confidence = 0.5
		}
		if f.Confidence > 1 {
			f.Confidence = 1
		}
		valid = append(valid, f)
	}
	return valid, nil
}
