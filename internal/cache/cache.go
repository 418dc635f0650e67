package cache

import (
	"crypto/sha256"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"InterviewCoach/internal/session"
)

// CachedResponse represents a cached backend reply
type CachedResponse struct {
	Response  string
	Timestamp time.Time
}

// GenerateCacheKey generates a cache key from the history and the new transcript
func GenerateCacheKey(messages []session.Message, transcript string) string {
	h := sha256.New()
	for _, msg := range messages {
		h.Write([]byte(msg.Role))
		h.Write([]byte{0})
		h.Write([]byte(msg.Text))
		h.Write([]byte{0})
	}
	h.Write([]byte(transcript))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Replies caches raw backend replies for a limited time. A zero TTL disables it.
type Replies struct {
	entries sync.Map
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// NewReplies creates a reply cache
func NewReplies(ttl time.Duration, logger *slog.Logger) *Replies {
	return &Replies{ttl: ttl, now: time.Now, logger: logger}
}

// Get returns a cached reply that has not expired
func (r *Replies) Get(key string) (string, bool) {
	if r == nil || r.ttl <= 0 {
		return "", false
	}
	val, ok := r.entries.Load(key)
	if !ok {
		return "", false
	}
	cached := val.(CachedResponse)
	if r.now().Sub(cached.Timestamp) > r.ttl {
		r.entries.Delete(key)
		return "", false
	}
	r.logger.Info("cache hit", "key", key[:16])
	return cached.Response, true
}

// Put stores a reply
func (r *Replies) Put(key, response string) {
	if r == nil || r.ttl <= 0 {
		return
	}
	r.entries.Store(key, CachedResponse{
		Response:  response,
		Timestamp: r.now(),
	})
	r.logger.Info("cached response", "key", key[:16])
}

// Sweep drops expired entries and returns how many were removed
func (r *Replies) Sweep() int {
	if r == nil {
		return 0
	}
	removed := 0
	now := r.now()
	r.entries.Range(func(key, val any) bool {
		if now.Sub(val.(CachedResponse).Timestamp) > r.ttl {
			r.entries.Delete(key)
			removed++
		}
		return true
	})
	return removed
}
