package planner

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
var fullObjectRegex = regexp.MustCompile(`(?s)^\s*(\{.*\})\s*$`)

// SalvageJSON recovers a JSON object from a raw LLM response, following
// _clean_json_response's five-stage fallback: strip markdown fences,
// try a direct full-string regex match, fall back to a brace-balanced
// scan from the first "{", retry that scan line-by-line if the
// whole-string scan failed, and finally synthesize an error response so
// callers never have to handle "no JSON at all" as a distinct case.
func SalvageJSON(raw string) string {
	text := raw

	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	text = strings.TrimSpace(text)

	if m := fullObjectRegex.FindStringSubmatch(text); m != nil {
		if json.Valid([]byte(m[1])) {
			return m[1]
		}
	}

	if candidate, ok := extractBalancedJSON(text, strings.Index(text, "{")); ok {
		return candidate
	}

	for _, line := range strings.Split(text, "\n") {
		start := strings.Index(line, "{")
		if start < 0 {
			continue
		}
		rest := text[strings.Index(text, line):]
		if candidate, ok := extractBalancedJSON(rest, strings.Index(rest, "{")); ok {
			return candidate
		}
	}

	return synthesizeErrorResponse(raw)
}

// extractBalancedJSON scans forward from the first "{" at or after
// start, counting brace depth (ignoring braces inside string literals),
// and returns the substring once depth returns to zero.
func extractBalancedJSON(text string, start int) (string, bool) {
	if start < 0 || start >= len(text) {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// no-op: ignore braces inside strings
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				candidate := text[start : i+1]
				if json.Valid([]byte(candidate)) {
					return candidate, true
				}
				return "", false
			}
		}
	}
	return "", false
}

func synthesizeErrorResponse(raw string) string {
	escaped, _ := json.Marshal(truncate(raw, 400))
	return `{"intention_type":"error","response_text":"I couldn't parse a structured response. Raw output: ` +
		strings.Trim(string(escaped), `"`) + `","execution_plan":null,"parameter_updates":null,"confidence":null,"requires_clarification":true,"clarification_questions":[]}`
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
