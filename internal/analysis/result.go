package analysis

import "strings"

// Dimension is one axis of the multimodal analysis
type Dimension string

const (
	DimEmotions     Dimension = "emotions"
	DimConfidence   Dimension = "confidence"
	DimBodyLanguage Dimension = "bodyLanguage"
	DimDelivery     Dimension = "delivery"
	DimVoice        Dimension = "voice"
	DimTiming       Dimension = "timing"
	DimLipSync      Dimension = "lipSync"
)

// Dimensions lists every dimension in presentation order
var Dimensions = []Dimension{
	DimEmotions, DimConfidence, DimBodyLanguage, DimDelivery, DimVoice, DimTiming, DimLipSync,
}

const (
	neutralScore    = 5
	notAnalyzed     = "Not analyzed"
	maxImprovements = 3
	genericFeedback = "Your answers were recorded, but a detailed evaluation could not be produced. Review the suggestions below and try the session again for fuller feedback."
)

var genericImprovements = []string{
	"Structure each answer as situation, task, action and result.",
	"Back your claims with concrete numbers or outcomes.",
	"Keep answers focused and close with a clear takeaway.",
}

// DimensionScore is the evaluation of one dimension
type DimensionScore struct {
	Score       float64  `json:"score"`
	Notes       string   `json:"notes"`
	Suggestions []string `json:"suggestions"`
}

// Placeholder is the neutral score used for dimensions the backend left out
func Placeholder() DimensionScore {
	return DimensionScore{Score: neutralScore, Notes: notAnalyzed, Suggestions: []string{}}
}

// Multimodal is the per-dimension breakdown. Dimensions always holds exactly
// the keys in Dimensions.
type Multimodal struct {
	OverallScore    float64                      `json:"overallScore"`
	Dimensions      map[Dimension]DimensionScore `json:"dimensions"`
	TopImprovements []string                     `json:"topImprovements"`
}

// Result is the final analysis of an interview session
type Result struct {
	Score        float64     `json:"score"`
	Feedback     string      `json:"feedback"`
	Improvements []string    `json:"improvements"`
	Multimodal   *Multimodal `json:"multimodal,omitempty"`
}

// clampScore bounds a score to 0-10
func clampScore(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 10:
		return 10
	}
	return v
}

// cleanList trims entries, drops empty ones and keeps at most n
func cleanList(items []string, n int) []string {
	out := make([]string, 0, n)
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if len(out) == n {
			break
		}
		out = append(out, item)
	}
	return out
}

// padImprovements fills improvements with generic advice up to exactly three
func padImprovements(items []string) []string {
	out := cleanList(items, maxImprovements)
	for _, g := range genericImprovements {
		if len(out) == maxImprovements {
			break
		}
		out = append(out, g)
	}
	return out
}

// normalizeMultimodal fills missing dimensions and bounds every list
func normalizeMultimodal(m *Multimodal) *Multimodal {
	if m == nil {
		return nil
	}
	out := &Multimodal{
		OverallScore:    clampScore(m.OverallScore),
		Dimensions:      make(map[Dimension]DimensionScore, len(Dimensions)),
		TopImprovements: cleanList(m.TopImprovements, maxImprovements),
	}
	for _, d := range Dimensions {
		ds, ok := m.Dimensions[d]
		if !ok {
			out.Dimensions[d] = Placeholder()
			continue
		}
		ds.Score = clampScore(ds.Score)
		ds.Notes = strings.TrimSpace(ds.Notes)
		if ds.Suggestions == nil {
			ds.Suggestions = []string{}
		}
		out.Dimensions[d] = ds
	}
	return out
}
