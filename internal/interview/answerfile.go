package interview

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// AnswerFile is a recorded session saved as YAML, as read by the analyze
// command:
//
//	framework: STAR
//	answers:
//	  - questionIndex: 0
//	    questionText: Tell me about yourself.
//	    transcript: ...
//	    durationSeconds: 48
//	    mediaRef: q1.webm
type AnswerFile struct {
	Framework string         `yaml:"framework"`
	Answers   []AnswerRecord `yaml:"answers"`
}

// LoadAnswerFile reads path and recomputes local scores. Relative media
// references are resolved against the file's directory.
func LoadAnswerFile(path string) (AnswerFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return AnswerFile{}, fmt.Errorf("failed to read answer file: %w", err)
	}

	var f AnswerFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return AnswerFile{}, fmt.Errorf("failed to parse answer file %s: %w", path, err)
	}
	if len(f.Answers) == 0 {
		return AnswerFile{}, fmt.Errorf("answer file %s has no answers", path)
	}

	dir := filepath.Dir(path)
	for i, a := range f.Answers {
		mediaRef := a.MediaRef
		if mediaRef != "" && !filepath.IsAbs(mediaRef) {
			mediaRef = filepath.Join(dir, mediaRef)
		}
		f.Answers[i] = NewAnswerRecord(a.QuestionIndex, a.QuestionText, a.Transcript, a.DurationSeconds, mediaRef)
	}
	return f, nil
}
