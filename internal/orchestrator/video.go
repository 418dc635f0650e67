package orchestrator

import "InterviewCoach/internal/session"

var videoTags = map[session.Emotion]string{
	session.EmotionNeutral:     "avatar/neutral",
	session.EmotionEncouraging: "avatar/encouraging",
	session.EmotionThinking:    "avatar/thinking",
	session.EmotionConcerned:   "avatar/concerned",
}

// VideoTagFor returns the opaque avatar clip tag for an emotion
func VideoTagFor(e session.Emotion) string {
	if tag, ok := videoTags[e]; ok {
		return tag
	}
	return videoTags[session.EmotionNeutral]
}
