// Package interview holds the per-question answer records and runs a turn
// through the orchestrator and the session state machine.
package interview

import (
	"strings"
	"unicode"
)

// AnswerRecord is one recorded answer. It is immutable apart from an explicit
// transcript correction.
type AnswerRecord struct {
	QuestionIndex   int     `json:"questionIndex" yaml:"questionIndex"`
	QuestionText    string  `json:"questionText" yaml:"questionText"`
	Transcript      string  `json:"transcript" yaml:"transcript"`
	DurationSeconds float64 `json:"durationSeconds" yaml:"durationSeconds"`
	MediaRef        string  `json:"mediaRef,omitempty" yaml:"mediaRef,omitempty"`
	LocalScore      float64 `json:"localScore" yaml:"-"`
}

// NewAnswerRecord creates a record and computes its local score
func NewAnswerRecord(index int, question, transcript string, durationSeconds float64, mediaRef string) AnswerRecord {
	r := AnswerRecord{
		QuestionIndex:   index,
		QuestionText:    question,
		Transcript:      strings.TrimSpace(transcript),
		DurationSeconds: durationSeconds,
		MediaRef:        mediaRef,
	}
	r.LocalScore = LocalScore(r.Transcript)
	return r
}

// Correct returns a copy with the transcript replaced and the local score
// recomputed. Duration and media stay as recorded.
func (r AnswerRecord) Correct(transcript string) AnswerRecord {
	out := r
	out.Transcript = strings.TrimSpace(transcript)
	out.LocalScore = LocalScore(out.Transcript)
	return out
}

var fillers = map[string]bool{
	"um": true, "uh": true, "erm": true, "hmm": true, "like": true, "basically": true, "actually": true,
}

// LocalScore is a quick 0-10 estimate of answer substance computed without a
// backend: length, concrete figures and filler density.
func LocalScore(transcript string) float64 {
	words := strings.FieldsFunc(strings.ToLower(transcript), func(r rune) bool {
		return unicode.IsSpace(r) || (unicode.IsPunct(r) && r != '\'' && r != '%')
	})
	if len(words) == 0 {
		return 0
	}

	score := 0.0
	switch n := len(words); {
	case n < 15:
		score = 2
	case n < 40:
		score = 4
	case n < 80:
		score = 6
	case n <= 250:
		score = 7
	default:
		score = 6 // rambling
	}

	filler, figures := 0, 0
	for _, w := range words {
		if fillers[w] {
			filler++
		}
		if strings.IndexFunc(w, unicode.IsDigit) >= 0 {
			figures++
		}
	}
	if figures > 0 {
		score += 1.5
	}
	if strings.Contains(strings.ToLower(transcript), "result") || strings.Contains(strings.ToLower(transcript), "impact") {
		score += 1
	}
	score -= 10 * float64(filler) / float64(len(words))

	switch {
	case score < 0:
		return 0
	case score > 10:
		return 10
	}
	return float64(int(score*10+0.5)) / 10
}
