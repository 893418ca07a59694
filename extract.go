package callflow

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// candidate is the shape the extractor looks for in model output.
type candidate struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ExtractCalls parses the raw text of one model turn into tool calls.
// Strategies are tried in order, first success wins:
//
//  1. a top-level JSON array (markdown fences stripped) whose first element
//     has a "name" field,
//  2. a character scan recovering sequential or nested JSON objects with a
//     "name" field embedded anywhere in prose,
//  3. a <tool_code>/<tool_call> tag wrapping name({json-args}).
//
// A nil result means the text is plain conversation, not an error. Every
// recovered call gets a fresh correlation id and its arguments re-serialized
// to canonical JSON text.
func ExtractCalls(raw string) []ToolCall {
	cleaned := stripFences(raw)
	if calls := extractArray(cleaned); len(calls) > 0 {
		return calls
	}
	if calls := scanObjects(cleaned); len(calls) > 0 {
		return calls
	}
	return extractTagged(cleaned)
}

// stripFences removes markdown code-fence marker lines (``` or ```lang).
func stripFences(s string) string {
	if !strings.Contains(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// extractArray finds the first balanced top-level JSON array and, when it
// parses as a list of calls, returns every element as a ToolCall.
func extractArray(s string) []ToolCall {
	start := strings.IndexByte(s, '[')
	if start < 0 {
		return nil
	}
	depth := 0
	inString := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth != 0 {
				continue
			}
			var cands []candidate
			if err := json.Unmarshal([]byte(s[start:i+1]), &cands); err != nil || len(cands) == 0 || cands[0].Name == "" {
				return nil
			}
			calls := make([]ToolCall, 0, len(cands))
			for _, cand := range cands {
				calls = append(calls, normalizeCall(cand))
			}
			return calls
		}
	}
	return nil
}

// scanObjects walks the text tracking brace depth and an in-string flag
// (escapes tracked with a one-character lookahead skip). Every substring
// whose depth returns to zero is parsed; objects with a "name" field become
// calls. This recovers calls surrounded by, or interleaved with, prose.
func scanObjects(s string) []ToolCall {
	var calls []ToolCall
	depth := 0
	start := -1
	inString := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			// Quotes in prose outside any object are not string delimiters.
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				var cand candidate
				if err := json.Unmarshal([]byte(s[start:i+1]), &cand); err == nil && cand.Name != "" {
					calls = append(calls, normalizeCall(cand))
				}
				start = -1
			}
		}
	}
	return calls
}

var taggedCallRx = regexp.MustCompile(`(?s)<(?:tool_code|tool_call)>\s*([A-Za-z_][\w.-]*)\s*\((\{.*?\})\)\s*</(?:tool_code|tool_call)>`)

// extractTagged recovers calls written as <tool_code>name({...})</tool_code>
// (or tool_call), a pattern some models fall back to.
func extractTagged(s string) []ToolCall {
	var calls []ToolCall
	for _, m := range taggedCallRx.FindAllStringSubmatch(s, -1) {
		if !json.Valid([]byte(m[2])) {
			continue
		}
		calls = append(calls, normalizeCall(candidate{Name: m[1], Arguments: json.RawMessage(m[2])}))
	}
	return calls
}

// normalizeCall assigns a correlation id and round-trips the arguments back
// to a JSON string. Stringified argument objects (a JSON string wrapping an
// object, as some engines emit) are unwrapped one level.
func normalizeCall(c candidate) ToolCall {
	args := "{}"
	if len(c.Arguments) > 0 {
		var v any
		if err := json.Unmarshal(c.Arguments, &v); err == nil {
			if s, ok := v.(string); ok && json.Valid([]byte(s)) {
				args = s
			} else if b, err := json.Marshal(v); err == nil {
				args = string(b)
			}
		}
	}
	return ToolCall{ID: uuid.NewString(), Name: c.Name, Arguments: args}
}
