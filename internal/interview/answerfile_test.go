package interview

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAnswerFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.yaml")
	content := `framework: STAR
answers:
  - questionIndex: 0
    questionText: Tell me about a project you led.
    transcript: "  I led a team of 4 engineers and the result was a 30% cost reduction.  "
    durationSeconds: 62
    mediaRef: q1.webm
  - questionIndex: 1
    questionText: Why this role?
    transcript: ""
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	f, err := LoadAnswerFile(path)
	if err != nil {
		t.Fatalf("LoadAnswerFile() error = %v", err)
	}
	if f.Framework != "STAR" || len(f.Answers) != 2 {
		t.Fatalf("LoadAnswerFile() = %+v", f)
	}

	first := f.Answers[0]
	if first.Transcript != "I led a team of 4 engineers and the result was a 30% cost reduction." {
		t.Errorf("Transcript = %q", first.Transcript)
	}
	if first.MediaRef != filepath.Join(dir, "q1.webm") {
		t.Errorf("MediaRef = %q", first.MediaRef)
	}
	if first.LocalScore != LocalScore(first.Transcript) {
		t.Errorf("LocalScore = %v, want %v", first.LocalScore, LocalScore(first.Transcript))
	}
	if f.Answers[1].MediaRef != "" {
		t.Errorf("empty MediaRef became %q", f.Answers[1].MediaRef)
	}
}

func TestLoadAnswerFile_Errors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.yaml")
	os.WriteFile(empty, []byte("framework: STAR\n"), 0644)
	broken := filepath.Join(dir, "broken.yaml")
	os.WriteFile(broken, []byte("answers: [\n"), 0644)

	for _, path := range []string{empty, broken, filepath.Join(dir, "missing.yaml")} {
		if _, err := LoadAnswerFile(path); err == nil {
			t.Errorf("LoadAnswerFile(%s) error = nil", filepath.Base(path))
		}
	}
}
