// Package snap parses the termination payload the drama backend emits when
// it decides a conversation should end.
package snap

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// StatusSnap is the sentinel value the backend uses to signal termination.
const StatusSnap = "SNAP"

// Result is a validated termination payload. DoomScore is always in [0,100].
type Result struct {
	DoomScore    int
	Summary      string
	RealityCheck string
}

type payload struct {
	Status       string          `json:"Status"`
	DoomScore    json.RawMessage `json:"DoomScore"`
	Summary      string          `json:"Summary"`
	RealityCheck string          `json:"RealityCheck"`
}

// Parse extracts and validates a termination payload from raw backend output.
// The output is supposed to be pure JSON in forced mode but may carry
// incidental wrapping text, so Parse is lenient about surrounding noise and
// strict about the payload itself. It returns nil on any failure and never
// panics.
func Parse(raw string) *Result {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	obj, ok := extractObject(trimmed)
	if !ok {
		return nil
	}

	var p payload
	if err := json.Unmarshal([]byte(obj), &p); err != nil {
		return nil
	}
	if p.Status != StatusSnap {
		return nil
	}

	return &Result{
		DoomScore:    clampScore(p.DoomScore),
		Summary:      p.Summary,
		RealityCheck: p.RealityCheck,
	}
}

// extractObject finds the first outermost balanced {...} in s, tracking
// brace depth while skipping string literals and escapes so braces inside
// JSON strings do not confuse the boundary.
func extractObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// clampScore coerces the DoomScore field to an int in [0,100]. The backend
// emits it as a number or a numeric string; anything else maps to 0.
func clampScore(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}

	text := strings.TrimSpace(string(raw))
	if len(text) >= 2 && text[0] == '"' && text[len(text)-1] == '"' {
		text = text[1 : len(text)-1]
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	switch {
	case f < 0:
		return 0
	case f > 100:
		return 100
	}
	return int(f)
}
