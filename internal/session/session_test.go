package session

import "testing"

func strPtr(s string) *string { return &s }

func TestPatch_ApplyIsShallow(t *testing.T) {
	base := State{
		SessionID: "s1",
		Status:    StatusIdle,
		History:   []Message{{Role: RoleAssistant, Text: "Tell me about yourself."}},
		Avatar:    Avatar{Emotion: EmotionThinking, VideoRef: strPtr("avatar/thinking"), IsPlaying: true},
	}

	avatar := Avatar{Emotion: EmotionEncouraging}
	got := Patch{Avatar: &avatar}.Apply(base)

	if got.Avatar.VideoRef != nil || got.Avatar.IsPlaying {
		t.Errorf("avatar was merged, want replaced: %+v", got.Avatar)
	}
	if got.Status != StatusIdle || len(got.History) != 1 {
		t.Errorf("untouched fields changed: %+v", got)
	}
	if base.Avatar.Emotion != EmotionThinking {
		t.Error("Apply mutated its input")
	}
}

func TestPatch_DisjointPatchesCompose(t *testing.T) {
	base := State{SessionID: "s1", Status: StatusIdle, History: []Message{}}

	status := StatusSpeaking
	index := 2
	history := []Message{{Role: RoleUser, Text: "hi"}, {Role: RoleAssistant, Text: "hello"}}
	p1 := Patch{Status: &status}
	p2 := Patch{CurrentQuestionIndex: &index}
	p3 := Patch{History: &history}

	left := p3.Apply(p2.Apply(p1.Apply(base)))
	right := p1.Merge(p2).Merge(p3).Apply(base)
	grouped := p1.Merge(p2.Merge(p3)).Apply(base)

	for name, got := range map[string]State{"merged": right, "grouped": grouped} {
		if got.Status != left.Status || got.CurrentQuestionIndex != left.CurrentQuestionIndex || len(got.History) != len(left.History) {
			t.Errorf("%s = %+v, want %+v", name, got, left)
		}
	}
}

func TestClone_DoesNotAlias(t *testing.T) {
	s := State{History: []Message{{Text: "a"}}, Avatar: Avatar{VideoRef: strPtr("v")}}
	c := s.Clone()
	c.History[0].Text = "b"
	*c.Avatar.VideoRef = "w"

	if s.History[0].Text != "a" || *s.Avatar.VideoRef != "v" {
		t.Errorf("clone aliases the original: %+v", s)
	}
}

func TestParseEmotion(t *testing.T) {
	tests := map[string]Emotion{
		"encouraging": EmotionEncouraging,
		"concerned":   EmotionConcerned,
		"thinking":    EmotionThinking,
		"happy":       EmotionNeutral,
		"":            EmotionNeutral,
	}
	for tag, want := range tests {
		if got := ParseEmotion(tag); got != want {
			t.Errorf("ParseEmotion(%q) = %s, want %s", tag, got, want)
		}
	}
}

func TestStatus_Resting(t *testing.T) {
	for _, s := range []Status{StatusIdle, StatusListening} {
		if !s.Resting() {
			t.Errorf("%s should be resting", s)
		}
	}
	for _, s := range []Status{StatusProcessing, StatusSpeaking} {
		if s.Resting() {
			t.Errorf("%s should not be resting", s)
		}
	}
	if Status("paused").Valid() {
		t.Error("unknown status reported valid")
	}
}
