// Package orchestrator decides how the interviewer avatar answers a
// submitted transcript: what it says, how it looks, and whether the
// interview should follow up or move on.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tiktoken-go/tokenizer"

	"InterviewCoach/internal/backend"
	"InterviewCoach/internal/cache"
	"InterviewCoach/internal/session"
)

var (
	// ErrEmptyInput is returned for a blank transcript
	ErrEmptyInput = errors.New("transcript is empty")
	// ErrMalformedReply is returned when the backend reply is not the expected JSON document
	ErrMalformedReply = errors.New("malformed orchestrator reply")
)

const (
	defaultHistoryTurns = 6
	defaultTokenBudget  = 2048
	defaultMaxSentences = 3

	// GenericAcknowledgment replaces an empty reply
	GenericAcknowledgment = "Thank you for sharing that."
)

// Reply is the avatar's answer to one turn
type Reply struct {
	Text           string          `json:"text"`
	Emotion        session.Emotion `json:"emotion"`
	VideoRef       string          `json:"videoRef"`
	NextQuestion   string          `json:"nextQuestion,omitempty"`
	ReadyToAdvance bool            `json:"readyToAdvance"`
	FollowUp       bool            `json:"followUp"`
}

// Options tunes prompt construction
type Options struct {
	HistoryTurns int // most recent messages sent as context
	TokenBudget  int // cl100k tokens allowed for history plus transcript
	MaxSentences int
	Cache        *cache.Replies
}

// Orchestrator turns a transcript and history into a Reply through a backend
type Orchestrator struct {
	backend backend.Completer
	opts    Options
	codec   tokenizer.Codec
	logger  *slog.Logger
}

// New creates an orchestrator over b
func New(b backend.Completer, opts Options, logger *slog.Logger) (*Orchestrator, error) {
	if opts.HistoryTurns <= 0 {
		opts.HistoryTurns = defaultHistoryTurns
	}
	if opts.TokenBudget <= 0 {
		opts.TokenBudget = defaultTokenBudget
	}
	if opts.MaxSentences <= 0 {
		opts.MaxSentences = defaultMaxSentences
	}
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokenizer encoding: %w", err)
	}
	return &Orchestrator{backend: b, opts: opts, codec: codec, logger: logger}, nil
}

// Reply asks the backend for the avatar's answer to transcript
func (o *Orchestrator) Reply(ctx context.Context, history []session.Message, transcript string) (Reply, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return Reply{}, ErrEmptyInput
	}

	window := o.truncate(history, transcript)
	key := cache.GenerateCacheKey(window, transcript)

	raw, cached := o.opts.Cache.Get(key)
	if !cached {
		resp, err := o.backend.Complete(ctx, o.request(window, transcript))
		if err != nil {
			return Reply{}, fmt.Errorf("failed to get reply from %s: %w", o.backend.Name(), err)
		}
		raw = resp.Text
	}

	reply, err := o.parse(raw)
	if err != nil {
		o.logger.Warn("malformed orchestrator reply", "backend", o.backend.Name(), "error", err)
		return Reply{}, err
	}
	if !cached {
		o.opts.Cache.Put(key, raw)
	}

	o.logger.Info("orchestrator reply",
		"backend", o.backend.Name(),
		"emotion", reply.Emotion,
		"ready_to_advance", reply.ReadyToAdvance,
		"follow_up", reply.FollowUp,
		"context_messages", len(window),
	)
	return reply, nil
}

// truncate keeps the most recent messages that fit both the turn window
// and the token budget
func (o *Orchestrator) truncate(history []session.Message, transcript string) []session.Message {
	if len(history) > o.opts.HistoryTurns {
		history = history[len(history)-o.opts.HistoryTurns:]
	}

	budget := o.opts.TokenBudget - o.countTokens(transcript)
	start := len(history)
	for start > 0 {
		cost := o.countTokens(history[start-1].Text) + 4 // role and framing
		if cost > budget {
			break
		}
		budget -= cost
		start--
	}
	return history[start:]
}

func (o *Orchestrator) countTokens(text string) int {
	ids, _, err := o.codec.Encode(text)
	if err != nil {
		// rough fallback, about four bytes per token
		return len(text)/4 + 1
	}
	return len(ids)
}

func (o *Orchestrator) request(history []session.Message, transcript string) backend.Request {
	messages := make([]backend.Message, 0, len(history)+1)
	for _, m := range history {
		messages = append(messages, backend.Message{Role: string(m.Role), Content: m.Text})
	}
	// Backends reject consecutive turns from the same role.
	if n := len(messages); n > 0 && messages[n-1].Role == string(session.RoleUser) {
		messages[n-1].Content += "\n\n" + transcript
	} else {
		messages = append(messages, backend.Message{Role: string(session.RoleUser), Content: transcript})
	}
	return backend.Request{
		System:    systemPrompt(o.opts.MaxSentences),
		Messages:  messages,
		JSON:      true,
		MaxTokens: 512,
	}
}

func systemPrompt(maxSentences int) string {
	return fmt.Sprintf(`You are a professional job interviewer running a spoken mock interview.
Reply to the candidate's latest answer in at most %d sentences, in a warm and natural voice.
Decide whether a short follow-up question would help, or whether the answer is complete and the interview should move to the next question.

Respond with only a JSON object, no prose around it:
{
  "response": "what you say out loud",
  "emotion": "neutral" | "encouraging" | "thinking" | "concerned",
  "nextQuestion": "your follow-up question, or an empty string",
  "readyToAdvance": true or false,
  "followUp": true or false
}
Set readyToAdvance to true only when no follow-up is needed, and leave nextQuestion empty in that case.`, maxSentences)
}

type wireReply struct {
	Response       string `json:"response"`
	Emotion        string `json:"emotion"`
	NextQuestion   string `json:"nextQuestion"`
	ReadyToAdvance bool   `json:"readyToAdvance"`
	FollowUp       bool   `json:"followUp"`
}

// parse validates the backend text and sanitizes it into a Reply
func (o *Orchestrator) parse(raw string) (Reply, error) {
	body := backend.StripCodeFence(raw)
	if !strings.HasPrefix(body, "{") {
		return Reply{}, fmt.Errorf("%w: expected a JSON object", ErrMalformedReply)
	}

	var w wireReply
	if err := json.Unmarshal([]byte(body), &w); err != nil {
		return Reply{}, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}

	reply := Reply{
		Text:           limitSentences(strings.TrimSpace(w.Response), o.opts.MaxSentences),
		Emotion:        session.ParseEmotion(strings.ToLower(strings.TrimSpace(w.Emotion))),
		NextQuestion:   strings.TrimSpace(w.NextQuestion),
		ReadyToAdvance: w.ReadyToAdvance,
		FollowUp:       w.FollowUp,
	}
	if reply.Text == "" {
		reply.Text = GenericAcknowledgment
	}
	// Advancing wins over a follow-up the backend also asked for.
	if reply.ReadyToAdvance {
		reply.NextQuestion = ""
		reply.FollowUp = false
	}
	reply.VideoRef = VideoTagFor(reply.Emotion)
	return reply, nil
}

// limitSentences keeps the first n sentences of text
func limitSentences(text string, n int) string {
	count := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			// a run of terminators ends one sentence
			for i+1 < len(text) && strings.IndexByte(".!?", text[i+1]) >= 0 {
				i++
			}
			if i+1 < len(text) && text[i+1] != ' ' && text[i+1] != '\n' {
				continue // decimal point or abbreviation like "e.g"
			}
			count++
			if count == n {
				return strings.TrimSpace(text[:i+1])
			}
		}
	}
	return text
}
