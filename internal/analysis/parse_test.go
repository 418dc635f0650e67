package analysis

import (
	"reflect"
	"testing"
)

const fullReply = `{"score":7,"feedback":"Clear, well structured answers.","improvements":["Quantify impact","Shorter intros"],
"multimodal":{"overallScore":6.5,"dimensions":{"emotions":{"score":7,"notes":"Calm","suggestions":["Smile more"]},
"confidence":{"score":6,"notes":"Some hedging","suggestions":[]}},"topImprovements":["a","b","c","d"]}}`

func TestParse_FencedMatchesPlain(t *testing.T) {
	plain := Parse(fullReply)
	fenced := Parse("```json\n" + fullReply + "\n```")

	if plain.Kind != Structured || fenced.Kind != Structured {
		t.Fatalf("kinds = %v, %v, want structured", plain.Kind, fenced.Kind)
	}
	if !reflect.DeepEqual(plain.Result, fenced.Result) {
		t.Errorf("fenced result differs:\n%+v\n%+v", plain.Result, fenced.Result)
	}
	if plain.Result.Score != 7 || len(plain.Result.Multimodal.TopImprovements) != 3 {
		t.Errorf("Result = %+v", plain.Result)
	}
}

func TestParse_MissingDimensionIsPlaceholder(t *testing.T) {
	got := Parse(`{"score":8,"feedback":"ok","improvements":[],"multimodal":{"emotions":{"score":9,"notes":"Warm","suggestions":[]}}}`)

	m := got.Result.Multimodal
	if m == nil {
		t.Fatal("Multimodal = nil")
	}
	if len(m.Dimensions) != len(Dimensions) {
		t.Fatalf("Dimensions has %d keys, want %d", len(m.Dimensions), len(Dimensions))
	}
	if !reflect.DeepEqual(m.Dimensions[DimConfidence], Placeholder()) {
		t.Errorf("confidence = %+v, want placeholder", m.Dimensions[DimConfidence])
	}
	want := DimensionScore{Score: 5, Notes: "Not analyzed", Suggestions: []string{}}
	if !reflect.DeepEqual(m.Dimensions[DimLipSync], want) {
		t.Errorf("lipSync = %+v", m.Dimensions[DimLipSync])
	}
	if m.Dimensions[DimEmotions].Score != 9 {
		t.Errorf("emotions = %+v", m.Dimensions[DimEmotions])
	}
	if m.OverallScore != 5 {
		t.Errorf("OverallScore = %v, want default 5", m.OverallScore)
	}
}

func TestParse_Normalization(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		score float64
	}{
		{"missing score", `{"feedback":"x"}`, 5},
		{"null score", `{"score":null}`, 5},
		{"string score", `{"score":"8"}`, 8},
		{"word score", `{"score":"great"}`, 5},
		{"over range", `{"score":14}`, 10},
		{"negative", `{"score":-2}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.text)
			if got.Kind != Structured {
				t.Fatalf("Kind = %v", got.Kind)
			}
			if got.Result.Score != tt.score {
				t.Errorf("Score = %v, want %v", got.Result.Score, tt.score)
			}
			if got.Result.Feedback == "" {
				t.Error("Feedback is empty")
			}
		})
	}

	got := Parse(`{"score":6,"improvements":["one","","two","three","four"],"multimodal":{"dimensions":{"voice":{"score":3},"posture":{"score":9}}}}`)
	if want := []string{"one", "two", "three"}; !reflect.DeepEqual(got.Result.Improvements, want) {
		t.Errorf("Improvements = %v, want %v", got.Result.Improvements, want)
	}
	if _, ok := got.Result.Multimodal.Dimensions["posture"]; ok {
		t.Error("unknown dimension kept")
	}
	if len(got.Result.Multimodal.Dimensions) != len(Dimensions) {
		t.Errorf("Dimensions has %d keys", len(got.Result.Multimodal.Dimensions))
	}
}

func TestParse_Legacy(t *testing.T) {
	text := `Score: 6
Feedback: Good examples overall.
You could tighten the endings.
Improvements:
- Lead with the result
- Use fewer filler words`

	got := Parse(text)
	if got.Kind != LegacyText {
		t.Fatalf("Kind = %v, want legacy", got.Kind)
	}
	if got.Result.Score != 6 {
		t.Errorf("Score = %v", got.Result.Score)
	}
	if got.Result.Feedback != "Good examples overall.\nYou could tighten the endings." {
		t.Errorf("Feedback = %q", got.Result.Feedback)
	}
	if len(got.Result.Improvements) != 3 {
		t.Fatalf("Improvements = %v, want exactly 3", got.Result.Improvements)
	}
	if got.Result.Improvements[0] != "Lead with the result" || got.Result.Improvements[2] != genericImprovements[0] {
		t.Errorf("Improvements = %v", got.Result.Improvements)
	}
	if got.Result.Multimodal != nil {
		t.Error("legacy result has multimodal")
	}
}

func TestParse_Unparseable(t *testing.T) {
	for _, text := range []string{"", "I'm sorry, I can't help with that.", "{not json"} {
		got := Parse(text)
		if got.Kind != Unparseable {
			t.Errorf("Parse(%q).Kind = %v, want unparseable", text, got.Kind)
		}
		if got.Result.Score != 5 || got.Result.Feedback == "" || len(got.Result.Improvements) != 3 {
			t.Errorf("Parse(%q) = %+v", text, got.Result)
		}
	}
}

func TestParse_MistypedFieldsKeepTheRest(t *testing.T) {
	reply := "```json\n" + `{"score": 8, "feedback": "Strong STAR structure.",
"improvements": [{"text": "Quantify impact"}, {"title": "Trim the intro"}, 42, "Name the tradeoff"],
"multimodal": {"overallScore": 7, "emotions": {"score": 6, "notes": ["calm"], "suggestions": "Smile more"},
"topImprovements": [{"suggestion": "Slow down"}]}}` + "\n```"

	got := Parse(reply)
	if got.Kind != Structured {
		t.Fatalf("Kind = %v, want structured", got.Kind)
	}
	if got.Result.Score != 8 || got.Result.Feedback != "Strong STAR structure." {
		t.Errorf("Result = %+v", got.Result)
	}
	if want := []string{"Quantify impact", "Trim the intro", "Name the tradeoff"}; !reflect.DeepEqual(got.Result.Improvements, want) {
		t.Errorf("Improvements = %v, want %v", got.Result.Improvements, want)
	}

	m := got.Result.Multimodal
	if m == nil {
		t.Fatal("Multimodal = nil")
	}
	if m.OverallScore != 7 || !reflect.DeepEqual(m.TopImprovements, []string{"Slow down"}) {
		t.Errorf("Multimodal = %+v", m)
	}
	emotions := m.Dimensions[DimEmotions]
	if emotions.Score != 6 || emotions.Notes != "" || !reflect.DeepEqual(emotions.Suggestions, []string{"Smile more"}) {
		t.Errorf("emotions = %+v", emotions)
	}

	tests := []struct {
		name string
		text string
	}{
		{"multimodal as string", `{"score":9,"feedback":"Good","multimodal":"not available"}`},
		{"feedback as object", `{"score":9,"feedback":{"summary":"Good"},"multimodal":null}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.text)
			if got.Kind != Structured || got.Result.Score != 9 {
				t.Fatalf("Parse() = %v %+v", got.Kind, got.Result)
			}
			if got.Result.Multimodal != nil {
				t.Errorf("Multimodal = %+v, want nil", got.Result.Multimodal)
			}
			if got.Result.Feedback == "" {
				t.Error("Feedback is empty")
			}
		})
	}
}
