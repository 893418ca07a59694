package callflow

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// SearchTools filters tools by query. With useRegex the query is compiled
// as a case-insensitive regular expression matched against names and
// descriptions; otherwise a token scorer ranks results by relevance. An
// empty query returns the listing unchanged.
func SearchTools(tools []ToolDefinition, query string, useRegex bool) ([]ToolDefinition, error) {
	if query == "" {
		return tools, nil
	}
	if useRegex {
		re, err := regexp.Compile("(?i)" + query)
		if err != nil {
			return nil, &ClientError{Reason: "invalid regular expression: " + err.Error(), Err: err}
		}
		var out []ToolDefinition
		for _, def := range tools {
			if re.MatchString(def.Name) || re.MatchString(def.Description) {
				out = append(out, def)
			}
		}
		return out, nil
	}

	type scored struct {
		def   ToolDefinition
		score float64
	}
	terms := tokenize(query)
	var hits []scored
	for _, def := range tools {
		s := scoreTool(def, query, terms)
		if s > 0 {
			hits = append(hits, scored{def: def, score: s})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	out := make([]ToolDefinition, len(hits))
	for i, h := range hits {
		out[i] = h.def
	}
	return out, nil
}

// scoreTool weighs name matches well above description matches so that a
// tool literally named after the query outranks tools that merely mention
// it in prose.
func scoreTool(def ToolDefinition, query string, terms []string) float64 {
	var score float64
	lowerName := strings.ToLower(def.Name)
	if strings.Contains(lowerName, strings.ToLower(query)) {
		score += 10
	}
	nameTokens := tokenize(def.Name)
	descTokens := tokenize(def.Description)
	for _, term := range terms {
		for _, tok := range nameTokens {
			if tok == term {
				score += 2
			} else if strings.Contains(tok, term) {
				score += 0.5
			}
		}
		for _, tok := range descTokens {
			if tok == term {
				score += 2
			} else if strings.Contains(tok, term) {
				score += 0.5
			}
		}
	}
	return score
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}
