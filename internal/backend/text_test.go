package backend

import "testing"

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"score":7}`, `{"score":7}`},
		{"json fence", "```json\n{\"score\":7}\n```", `{"score":7}`},
		{"bare fence", "```\n{\"score\":7}\n```", `{"score":7}`},
		{"padded", "  \n```json\n{\"a\":1}\n```\n  ", `{"a":1}`},
		{"single line", "```json{\"a\":1}```", `{"a":1}`},
		{"unterminated", "```json\n{\"a\":1}", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripCodeFence(tt.in); got != tt.want {
				t.Errorf("StripCodeFence() = %q, want %q", got, tt.want)
			}
		})
	}
}
