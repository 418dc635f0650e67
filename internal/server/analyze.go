package server

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"

	"InterviewCoach/internal/analysis"
	"InterviewCoach/internal/interview"
)

type analyzeRequest struct {
	Transcript      string   `json:"transcript"`
	Question        string   `json:"question"`
	Framework       string   `json:"framework,omitempty"`
	MediaRefs       []string `json:"mediaRefs,omitempty"`
	DurationSeconds float64  `json:"durationSeconds,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Transcript) == "" {
		writeError(w, r, badRequest("missing_field", "transcript is required"))
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, r, badRequest("missing_field", "question is required"))
		return
	}

	media := make([]analysis.Media, 0, len(req.MediaRefs))
	for _, ref := range req.MediaRefs {
		m, err := s.resolveMedia(ref)
		if err != nil {
			writeError(w, r, err)
			return
		}
		media = append(media, m)
	}

	var mediaRef string
	if len(req.MediaRefs) > 0 {
		mediaRef = req.MediaRefs[0]
	}
	answer := interview.NewAnswerRecord(0, req.Question, req.Transcript, req.DurationSeconds, mediaRef)

	result, err := s.deps.Analyzer.Analyze(r.Context(), analysis.Request{
		Answers:   []interview.AnswerRecord{answer},
		Framework: req.Framework,
		Media:     media,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// resolveMedia maps a mediaRef onto a file under the media directory.
// References that would escape it are rejected.
func (s *Server) resolveMedia(ref string) (analysis.Media, error) {
	if s.deps.MediaDir == "" {
		return analysis.Media{}, badRequest("media_disabled", "media references are not accepted")
	}
	if !filepath.IsLocal(ref) {
		return analysis.Media{}, badRequest("invalid_media_ref", fmt.Sprintf("invalid media reference %q", ref))
	}
	m, err := analysis.MediaFromFile(filepath.Join(s.deps.MediaDir, ref))
	if errors.Is(err, fs.ErrNotExist) {
		return analysis.Media{}, badRequest("unknown_media_ref", fmt.Sprintf("no media found for %q", ref))
	}
	if err != nil {
		return analysis.Media{}, err
	}
	return m, nil
}
