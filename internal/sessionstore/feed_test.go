package sessionstore

import (
	"context"
	"testing"
	"time"

	"InterviewCoach/internal/session"
)

func TestFeed_PublishDeliversCopies(t *testing.T) {
	f := NewFeed()
	var got []session.State
	stop := f.Add("s1", func(s session.State) { got = append(got, s) })
	f.Add("s2", func(session.State) { t.Error("watcher of another session called") })

	state := session.State{SessionID: "s1", History: []session.Message{{Text: "a"}}}
	f.Publish(state)
	got[0].History[0].Text = "changed"
	if state.History[0].Text != "a" {
		t.Error("watcher received an aliased snapshot")
	}

	stop()
	stop()
	f.Publish(state)
	if len(got) != 1 {
		t.Errorf("deliveries = %d, want 1", len(got))
	}
	if f.Count("s1") != 0 {
		t.Errorf("Count() = %d after stop", f.Count("s1"))
	}
}

func TestBindContext(t *testing.T) {
	f := NewFeed()
	ctx, cancel := context.WithCancel(context.Background())
	stop := BindContext(ctx, f.Add("s1", func(session.State) {}))

	cancel()
	deadline := time.Now().Add(time.Second)
	for f.Count("s1") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("watcher not removed after cancel")
		}
		time.Sleep(5 * time.Millisecond)
	}
	stop()
}
