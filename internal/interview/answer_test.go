package interview

import "testing"

func TestLocalScore(t *testing.T) {
	tests := []struct {
		name       string
		transcript string
		min, max   float64
	}{
		{"empty", "", 0, 0},
		{"too short", "I did it.", 1, 3},
		{"filler heavy", "um uh like um basically uh I um did like stuff", 0, 1},
		{
			"concrete",
			"I led a team of 5 engineers to rebuild our billing pipeline. We cut invoice latency by 40% in two quarters, " +
				"and the result was a drop in support tickets. I ran weekly reviews with finance and kept the rollout behind flags.",
			7, 10,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LocalScore(tt.transcript)
			if got < tt.min || got > tt.max {
				t.Errorf("LocalScore() = %v, want in [%v, %v]", got, tt.min, tt.max)
			}
		})
	}
}

func TestAnswerRecord_Correct(t *testing.T) {
	r := NewAnswerRecord(2, "Tell me about a conflict.", "um I uh dont know", 42.5, "media/q2.webm")
	before := r.LocalScore

	fixed := r.Correct("I resolved a conflict between two teams by agreeing on 3 shared metrics and a weekly sync, and the result was fewer escalations.")

	if fixed.LocalScore <= before {
		t.Errorf("LocalScore after correction = %v, want above %v", fixed.LocalScore, before)
	}
	if fixed.DurationSeconds != 42.5 || fixed.MediaRef != "media/q2.webm" || fixed.QuestionIndex != 2 {
		t.Errorf("Correct() changed recorded fields: %+v", fixed)
	}
	if r.Transcript != "um I uh dont know" {
		t.Errorf("Correct() mutated the original: %q", r.Transcript)
	}
}
