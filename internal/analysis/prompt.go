package analysis

import (
	"fmt"
	"strings"
)

func systemPrompt() string {
	var dims strings.Builder
	for i, d := range Dimensions {
		if i > 0 {
			dims.WriteString(",\n")
		}
		fmt.Fprintf(&dims, `      "%s": {"score": 0-10, "notes": "...", "suggestions": ["..."]}`, d)
	}

	return `You are an experienced hiring manager reviewing a recorded mock interview.
Evaluate the candidate's answers for substance, structure and clarity. When a recording is attached, also evaluate how the answers were delivered.

Respond with only a JSON object in this shape:
{
  "score": 0-10,
  "feedback": "two or three paragraphs of overall feedback",
  "improvements": ["at most three concrete improvements"],
  "multimodal": {
    "overallScore": 0-10,
    "dimensions": {
` + dims.String() + `
    },
    "topImprovements": ["at most three"]
  }
}
Omit "multimodal" when there is no recording.`
}

func userPrompt(req Request, visualNote string) string {
	var b strings.Builder
	if req.Framework != "" {
		fmt.Fprintf(&b, "Evaluate each answer against the %s framework.\n\n", req.Framework)
	}
	for _, a := range req.Answers {
		fmt.Fprintf(&b, "Question %d: %s\n", a.QuestionIndex+1, a.QuestionText)
		if a.DurationSeconds > 0 {
			fmt.Fprintf(&b, "Answer duration: %.0f seconds\n", a.DurationSeconds)
		}
		transcript := strings.TrimSpace(a.Transcript)
		if transcript == "" {
			transcript = "(no answer recorded)"
		}
		fmt.Fprintf(&b, "Answer: %s\n\n", transcript)
	}
	if visualNote != "" {
		fmt.Fprintf(&b, "Visual analysis unavailable: %s. Judge the transcripts only and omit \"multimodal\".\n", visualNote)
	}
	return b.String()
}
