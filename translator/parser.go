package translator

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/spektr-org/flightquery/engine"
	"github.com/spektr-org/flightquery/schema"
)

// ============================================================================
// RESPONSE PARSER — Extracts and validates the structured object
// ============================================================================
// Stage 1 (parse): the whole trimmed reply must be a JSON object. If not,
// balanced {...} substrings are tried left to right and the first one that
// decodes as an object wins.
// Stage 2 (validate): "filters" goes through engine.DecodeFilterSpec;
// "aggregation" is decoded and its type normalized.
// ============================================================================

var errNoObject = errors.New("reply contains no JSON object")

// extractObject returns the top-level members of the JSON object in a reply.
func extractObject(reply string) (map[string]json.RawMessage, error) {
	// Clean up response — remove markdown code blocks if present
	trimmed := strings.TrimSpace(reply)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &obj); err == nil && obj != nil {
		return obj, nil
	}

	for _, candidate := range objectCandidates(reply) {
		var c map[string]json.RawMessage
		if err := json.Unmarshal([]byte(candidate), &c); err == nil && c != nil {
			return c, nil
		}
	}
	return nil, errNoObject
}

// objectCandidates returns every balanced {...} span that starts at a
// top-level '{', in order of appearance. Braces inside JSON strings are
// ignored, and escapes inside strings are honored.
func objectCandidates(s string) []string {
	var out []string
	for start := strings.IndexByte(s, '{'); start >= 0; {
		end := matchBrace(s, start)
		if end < 0 {
			// Unbalanced from here; a later '{' may still open a valid object.
			next := strings.IndexByte(s[start+1:], '{')
			if next < 0 {
				break
			}
			start += 1 + next
			continue
		}
		out = append(out, s[start:end+1])
		next := strings.IndexByte(s[end+1:], '{')
		if next < 0 {
			break
		}
		start = end + 1 + next
	}
	return out
}

// matchBrace returns the index of the '}' closing the '{' at start, or -1.
func matchBrace(s string, start int) int {
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
				return i
			}
		}
	}
	return -1
}

// decodeResult validates the extracted object against the registry.
// Unknown top-level keys are ignored.
func decodeResult(obj map[string]json.RawMessage, reg *schema.Registry) (*Result, error) {
	res := &Result{}

	for key := range obj {
		if key != "filters" && key != "aggregation" {
			log.Printf("⚠️ Translator: ignoring unexpected key %q in reply", key)
		}
	}

	if raw, ok := obj["filters"]; ok && !isNull(raw) {
		var filters map[string]json.RawMessage
		if err := json.Unmarshal(raw, &filters); err != nil || filters == nil {
			return nil, &engine.InvalidFilterSpecError{Reason: "filters must be an object"}
		}
		spec, err := engine.DecodeFilterSpec(filters, reg)
		if err != nil {
			return nil, err
		}
		res.Filters = spec
		res.HasFilters = true
	}

	if raw, ok := obj["aggregation"]; ok && !isNull(raw) {
		var agg engine.AggregationSpec
		if err := json.Unmarshal(raw, &agg); err != nil {
			log.Printf("⚠️ Translator: ignoring malformed aggregation: %v", err)
		} else if agg.Type != "" {
			agg.Type = engine.NormalizeAggregationType(agg.Type)
			res.Aggregation = &agg
		}
	}

	produced, err := canonical(res)
	if err != nil {
		return nil, fmt.Errorf("failed to encode produced object: %w", err)
	}
	res.Produced = produced
	return res, nil
}

// canonical renders the validated object as it is recorded in history.
func canonical(res *Result) (json.RawMessage, error) {
	obj := make(map[string]any, 2)
	if res.HasFilters {
		filters := res.Filters
		if filters == nil {
			filters = engine.FilterSpec{}
		}
		obj["filters"] = filters
	}
	if res.Aggregation != nil {
		obj["aggregation"] = res.Aggregation
	}
	return json.Marshal(obj)
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}
