package session

import "time"

// Role identifies who authored a conversation message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Status is the turn-taking state of an interview session
type Status string

const (
	StatusIdle       Status = "idle"
	StatusListening  Status = "listening"
	StatusProcessing Status = "processing"
	StatusSpeaking   Status = "speaking"
)

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	switch s {
	case StatusIdle, StatusListening, StatusProcessing, StatusSpeaking:
		return true
	}
	return false
}

// Resting reports whether a new answer may be submitted from s.
// listening is only a recording indicator and behaves like idle.
func (s Status) Resting() bool {
	return s == StatusIdle || s == StatusListening
}

// Emotion is the avatar's expression tag
type Emotion string

const (
	EmotionNeutral     Emotion = "neutral"
	EmotionEncouraging Emotion = "encouraging"
	EmotionThinking    Emotion = "thinking"
	EmotionConcerned   Emotion = "concerned"
)

// ParseEmotion maps an arbitrary tag onto the fixed emotion set, defaulting to neutral
func ParseEmotion(tag string) Emotion {
	switch e := Emotion(tag); e {
	case EmotionNeutral, EmotionEncouraging, EmotionThinking, EmotionConcerned:
		return e
	}
	return EmotionNeutral
}

// Message represents a single conversation message. Messages are never
// edited after they are appended to a session's history.
type Message struct {
	Role      Role   `json:"role"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds, informational only
}

// NewMessage stamps a message with the current time
func NewMessage(role Role, text string) Message {
	return Message{Role: role, Text: text, Timestamp: time.Now().UnixMilli()}
}

// Avatar is the presentation state of the interviewer avatar
type Avatar struct {
	Emotion   Emotion `json:"emotion"`
	VideoRef  *string `json:"videoRef"`
	AudioRef  *string `json:"audioRef"`
	IsPlaying bool    `json:"isPlaying"`
}

// NeutralAvatar is the avatar state of a freshly created session
func NeutralAvatar() Avatar {
	return Avatar{Emotion: EmotionNeutral}
}

// State represents one interview session's turn sequence
type State struct {
	SessionID            string    `json:"sessionId"`
	Owner                string    `json:"owner"`
	Status               Status    `json:"status"`
	CurrentQuestionIndex int       `json:"currentQuestionIndex"`
	History              []Message `json:"conversationHistory"`
	Avatar               Avatar    `json:"avatarState"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// Clone returns a deep copy so snapshots handed to callers cannot alias store state
func (s State) Clone() State {
	out := s
	out.History = make([]Message, len(s.History))
	copy(out.History, s.History)
	out.Avatar = s.Avatar.clone()
	return out
}

func (a Avatar) clone() Avatar {
	out := a
	if a.VideoRef != nil {
		v := *a.VideoRef
		out.VideoRef = &v
	}
	if a.AudioRef != nil {
		v := *a.AudioRef
		out.AudioRef = &v
	}
	return out
}

// Patch is a partial update to a State. Nil fields are left untouched; set
// fields replace the whole top-level value (history and avatar included).
type Patch struct {
	Status               *Status    `json:"status,omitempty"`
	CurrentQuestionIndex *int       `json:"currentQuestionIndex,omitempty"`
	History              *[]Message `json:"conversationHistory,omitempty"`
	Avatar               *Avatar    `json:"avatarState,omitempty"`
}

// Apply shallow-merges p over s and returns the merged state
func (p Patch) Apply(s State) State {
	out := s.Clone()
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.CurrentQuestionIndex != nil {
		out.CurrentQuestionIndex = *p.CurrentQuestionIndex
	}
	if p.History != nil {
		out.History = make([]Message, len(*p.History))
		copy(out.History, *p.History)
	}
	if p.Avatar != nil {
		out.Avatar = p.Avatar.clone()
	}
	return out
}

// Merge unions two patches; fields set in q win over p
func (p Patch) Merge(q Patch) Patch {
	out := p
	if q.Status != nil {
		out.Status = q.Status
	}
	if q.CurrentQuestionIndex != nil {
		out.CurrentQuestionIndex = q.CurrentQuestionIndex
	}
	if q.History != nil {
		out.History = q.History
	}
	if q.Avatar != nil {
		out.Avatar = q.Avatar
	}
	return out
}

// Empty reports whether the patch sets no fields
func (p Patch) Empty() bool {
	return p.Status == nil && p.CurrentQuestionIndex == nil && p.History == nil && p.Avatar == nil
}

// WithStatus builds a patch that only changes the status
func WithStatus(s Status) Patch {
	return Patch{Status: &s}
}
