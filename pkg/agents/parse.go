package agents

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Parsed is a validated prediction extracted from a model's response text.
type Parsed struct {
	Winner     string  `json:"winner"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// ParseError indicates the response text could not be turned into a valid
// prediction: no structured object found, unrecognized winner, or a
// non-numeric confidence.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "parse prediction: " + e.Reason
}

func parseErrorf(format string, args ...any) *ParseError {
	return &ParseError{Reason: fmt.Sprintf(format, args...)}
}

// rawFields holds field values pulled out of the text before validation.
// Confidence stays untyped until coercion so a regex capture ("0.72") and a
// JSON number (0.72) go through the same path.
type rawFields map[string]any

// extractFn is one extraction strategy. It returns the extracted fields and
// whether they contain a usable "winner" key.
type extractFn struct {
	name string
	fn   func(text string) (rawFields, bool)
}

// Strategies are tried in order; the first one that yields an object with a
// "winner" key wins. Later entries tolerate progressively more mangled
// output (markdown fences, truncated JSON, prose around the object).
var extractors = []extractFn{
	{"json", extractWholeJSON},
	{"code_block", extractCodeBlock},
	{"brace_object", extractBraceObject},
	{"triple", extractTriple},
	{"fields", extractFields},
}

var (
	codeBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*\n?(.*?)(?:```|$)")
	braceRe     = regexp.MustCompile(`\{[^{}]*"winner"[^{}]*\}`)
	tripleRe    = regexp.MustCompile(`\{\s*"winner"\s*:\s*"([^"]+)"\s*,\s*"confidence"\s*:\s*([\d.]+)\s*,\s*"reasoning"\s*:\s*"([^"\\]*(?:\\.[^"\\]*)*)"`)
	winnerRe    = regexp.MustCompile(`"winner"\s*:\s*"([^"]+)"`)
	confRe      = regexp.MustCompile(`"confidence"\s*:\s*([\d.]+)`)
	reasonRe    = regexp.MustCompile(`"reasoning"\s*:\s*"([^"\\]*(?:\\.[^"\\]*)*)"`)
)

// Parse turns an arbitrary response blob into a validated prediction for a
// match between teamA and teamB.
func Parse(text, teamA, teamB string) (*Parsed, error) {
	raw, _, err := extract(text)
	if err != nil {
		return nil, err
	}

	winner, err := ValidateWinner(stringField(raw, "winner"), teamA, teamB)
	if err != nil {
		return nil, err
	}

	confidence, err := ClampConfidence(raw["confidence"])
	if err != nil {
		return nil, err
	}

	return &Parsed{
		Winner:     winner,
		Confidence: confidence,
		Reasoning:  stringField(raw, "reasoning"),
	}, nil
}

// extract runs the strategy chain and reports which strategy succeeded.
func extract(text string) (rawFields, string, error) {
	for _, e := range extractors {
		if fields, ok := e.fn(text); ok {
			return fields, e.name, nil
		}
	}
	return nil, "", parseErrorf("no structured prediction found in %q", truncate(text, 200))
}

func extractWholeJSON(text string) (rawFields, bool) {
	return tryUnmarshal(strings.TrimSpace(text))
}

func extractCodeBlock(text string) (rawFields, bool) {
	m := codeBlockRe.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	block := strings.TrimSpace(m[1])
	if fields, ok := tryUnmarshal(block); ok {
		return fields, true
	}
	// The block may be truncated mid-object; pull the fields out directly.
	return repairFields(block)
}

func extractBraceObject(text string) (rawFields, bool) {
	m := braceRe.FindString(text)
	if m == "" {
		return nil, false
	}
	return tryUnmarshal(m)
}

func extractTriple(text string) (rawFields, bool) {
	m := tripleRe.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	return rawFields{
		"winner":     m[1],
		"confidence": m[2],
		"reasoning":  unescape(m[3]),
	}, true
}

func extractFields(text string) (rawFields, bool) {
	return repairFields(text)
}

// repairFields regex-extracts winner/confidence/reasoning from arbitrary
// (possibly truncated) text. Reasoning is optional.
func repairFields(text string) (rawFields, bool) {
	w := winnerRe.FindStringSubmatch(text)
	c := confRe.FindStringSubmatch(text)
	if w == nil || c == nil {
		return nil, false
	}
	reasoning := ""
	if r := reasonRe.FindStringSubmatch(text); r != nil {
		reasoning = unescape(r[1])
	}
	return rawFields{
		"winner":     w[1],
		"confidence": c[1],
		"reasoning":  reasoning,
	}, true
}

func tryUnmarshal(text string) (rawFields, bool) {
	var fields rawFields
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return nil, false
	}
	if _, ok := fields["winner"]; !ok {
		return nil, false
	}
	return fields, true
}

// ValidateWinner maps a model-reported winner onto one of the two team
// names. Exact case-insensitive matches win; otherwise a substring match in
// either direction is accepted, since models often answer "India" for
// "India Women".
func ValidateWinner(winner, teamA, teamB string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(winner))
	if normalized == "" {
		return "", parseErrorf("missing winner value")
	}

	lowerA := strings.ToLower(teamA)
	lowerB := strings.ToLower(teamB)

	switch normalized {
	case lowerA:
		return teamA, nil
	case lowerB:
		return teamB, nil
	}

	if strings.Contains(lowerA, normalized) || strings.Contains(normalized, lowerA) {
		return teamA, nil
	}
	if strings.Contains(lowerB, normalized) || strings.Contains(normalized, lowerB) {
		return teamB, nil
	}

	return "", parseErrorf("winner %q does not match either team: %q or %q", winner, teamA, teamB)
}

// ClampConfidence coerces a confidence value to a float and clamps it into
// [0.5, 1.0]. Out-of-range values are clamped rather than rejected; only a
// non-numeric value is an error.
func ClampConfidence(value any) (float64, error) {
	var num float64
	switch v := value.(type) {
	case float64:
		num = v
	case int:
		num = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, parseErrorf("invalid confidence value: %v", value)
		}
		num = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, parseErrorf("invalid confidence value: %q", v)
		}
		num = f
	default:
		return 0, parseErrorf("invalid confidence value: %v", value)
	}

	if math.IsNaN(num) || math.IsInf(num, 0) {
		return 0, parseErrorf("confidence is not finite: %v", num)
	}

	return math.Min(1.0, math.Max(0.5, num)), nil
}

func stringField(fields rawFields, key string) string {
	if s, ok := fields[key].(string); ok {
		return s
	}
	return ""
}

func unescape(s string) string {
	s = strings.ReplaceAll(s, `\"`, `"`)
	s = strings.ReplaceAll(s, `\n`, "\n")
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
