package analysis

import (
	"bufio"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"InterviewCoach/internal/backend"
)

// ParseKind tags which parser produced a result
type ParseKind int

const (
	// Structured means the reply was the expected JSON document
	Structured ParseKind = iota
	// LegacyText means the reply was recovered from labeled plain text
	LegacyText
	// Unparseable means nothing usable was found; the result is all defaults
	Unparseable
)

func (k ParseKind) String() string {
	switch k {
	case Structured:
		return "structured"
	case LegacyText:
		return "legacy_text"
	}
	return "unparseable"
}

// Parsed is a normalized result together with the parser that produced it
type Parsed struct {
	Kind   ParseKind
	Result Result
}

// Parse turns backend text into a normalized Result. It never fails: JSON is
// tried first, then the labeled text format, then defaults.
func Parse(text string) Parsed {
	if r, ok := parseStructured(text); ok {
		return Parsed{Kind: Structured, Result: r}
	}
	if r, ok := parseLegacy(text); ok {
		return Parsed{Kind: LegacyText, Result: r}
	}
	return Parsed{Kind: Unparseable, Result: Result{
		Score:        neutralScore,
		Feedback:     genericFeedback,
		Improvements: padImprovements(nil),
	}}
}

// Every field stays raw so one mistyped field cannot sink the others
type wireResult struct {
	Score        json.RawMessage `json:"score"`
	Feedback     json.RawMessage `json:"feedback"`
	Improvements json.RawMessage `json:"improvements"`
	Multimodal   json.RawMessage `json:"multimodal"`
}

type wireDimension struct {
	Score       json.RawMessage `json:"score"`
	Notes       json.RawMessage `json:"notes"`
	Suggestions json.RawMessage `json:"suggestions"`
}

func parseStructured(text string) (Result, bool) {
	body := backend.StripCodeFence(text)
	if !strings.HasPrefix(body, "{") {
		// tolerate prose around the document
		start, end := strings.IndexByte(body, '{'), strings.LastIndexByte(body, '}')
		if start < 0 || end <= start {
			return Result{}, false
		}
		body = body[start : end+1]
	}

	var w wireResult
	if err := json.Unmarshal([]byte(body), &w); err != nil {
		return Result{}, false
	}

	r := Result{
		Score:        score(w.Score),
		Feedback:     textOf(w.Feedback),
		Improvements: cleanList(listOf(w.Improvements), maxImprovements),
		Multimodal:   multimodal(w.Multimodal),
	}
	if r.Feedback == "" {
		r.Feedback = genericFeedback
	}
	return r, true
}

// textOf reads a JSON string; any other type reads as empty
func textOf(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// itemKeys are tried in order when a list item comes back as an object
var itemKeys = []string{"text", "improvement", "suggestion", "title", "description", "summary"}

// listOf reads a JSON array of strings. Object items contribute their first
// known text field; anything else is skipped.
func listOf(raw json.RawMessage) []string {
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		if s := textOf(raw); s != "" {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := textOf(item); s != "" {
			out = append(out, s)
			continue
		}
		var obj map[string]json.RawMessage
		if json.Unmarshal(item, &obj) != nil {
			continue
		}
		for _, k := range itemKeys {
			if s := textOf(obj[k]); s != "" {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// multimodal reads dimensions either nested under "dimensions" or placed
// directly on the multimodal object
func multimodal(doc json.RawMessage) *Multimodal {
	var raw map[string]json.RawMessage
	if len(doc) == 0 || json.Unmarshal(doc, &raw) != nil || raw == nil {
		return nil
	}
	m := &Multimodal{
		OverallScore:    score(raw["overallScore"]),
		Dimensions:      make(map[Dimension]DimensionScore),
		TopImprovements: listOf(raw["topImprovements"]),
	}

	sources := []map[string]json.RawMessage{raw}
	if nested, ok := raw["dimensions"]; ok {
		var dims map[string]json.RawMessage
		if json.Unmarshal(nested, &dims) == nil {
			sources = append([]map[string]json.RawMessage{dims}, sources...)
		}
	}
	for _, d := range Dimensions {
		for _, src := range sources {
			v, ok := src[string(d)]
			if !ok {
				continue
			}
			var wd wireDimension
			if json.Unmarshal(v, &wd) != nil {
				continue
			}
			m.Dimensions[d] = DimensionScore{Score: score(wd.Score), Notes: textOf(wd.Notes), Suggestions: listOf(wd.Suggestions)}
			break
		}
	}
	return normalizeMultimodal(m)
}

// score reads a JSON number or numeric string, defaulting to the neutral score
func score(raw json.RawMessage) float64 {
	if len(raw) == 0 || string(raw) == "null" {
		return neutralScore
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return clampScore(f)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return clampScore(f)
		}
	}
	return neutralScore
}

var (
	scoreLine    = regexp.MustCompile(`(?i)\bscore\s*[:=]\s*(\d+(?:\.\d+)?)`)
	feedbackOpen = regexp.MustCompile(`(?i)feedback\s*:`)
	improveOpen  = regexp.MustCompile(`(?i)improvements?\s*:`)
)

// parseLegacy reads the older plain-text format:
//
//	Score: 7
//	Feedback: ...
//	Improvements:
//	- ...
func parseLegacy(text string) (Result, bool) {
	r := Result{Score: neutralScore}
	found := false

	if m := scoreLine.FindStringSubmatch(text); m != nil {
		if f, err := strconv.ParseFloat(m[1], 64); err == nil {
			r.Score = clampScore(f)
			found = true
		}
	}

	if loc := feedbackOpen.FindStringIndex(text); loc != nil {
		rest := text[loc[1]:]
		if end := improveOpen.FindStringIndex(rest); end != nil {
			rest = rest[:end[0]]
		}
		if fb := strings.TrimSpace(rest); fb != "" {
			r.Feedback = fb
			found = true
		}
	}

	list := text
	if loc := improveOpen.FindStringIndex(text); loc != nil {
		list = text[loc[1]:]
	}
	var improvements []string
	scanner := bufio.NewScanner(strings.NewReader(list))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "- ") {
			improvements = append(improvements, strings.TrimSpace(line[2:]))
		}
	}
	if len(improvements) > 0 {
		found = true
	}

	if !found {
		return Result{}, false
	}
	if r.Feedback == "" {
		r.Feedback = genericFeedback
	}
	r.Improvements = padImprovements(improvements)
	return r, true
}
