package backend

import (
	"context"
	"os"
	"testing"

	"InterviewCoach/internal/testutil"
)

func newRecordedOpenAI(t *testing.T, cassette string) *OpenAI {
	t.Helper()
	recorder, cleanup := testutil.NewVCRRecorder(t, cassette)
	t.Cleanup(cleanup)

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		apiKey = "test-key"
	}

	o, err := NewOpenAI("openai", apiKey, "", "gpt-4o-mini", testutil.VCRHTTPClient(recorder), Telemetry{})
	if err != nil {
		t.Fatalf("NewOpenAI() error = %v", err)
	}
	return o
}

func TestOpenAI_Complete(t *testing.T) {
	if os.Getenv("OPENAI_API_KEY") == "" && os.Getenv("VCR_MODE") == "record" {
		t.Skip("Skipping test: OPENAI_API_KEY not set")
	}
	o := newRecordedOpenAI(t, "openai_complete")

	resp, err := o.Complete(context.Background(), Request{
		System:    "You are an interviewer.",
		Messages:  []Message{{Role: "user", Content: "I led a team of 5 engineers."}},
		JSON:      true,
		MaxTokens: 256,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Text == "" {
		t.Error("Expected content in response")
	}
	if resp.Usage["total_tokens"] != 70 {
		t.Errorf("Usage[total_tokens] = %v, want 70", resp.Usage["total_tokens"])
	}
}

func TestOpenAI_Overloaded(t *testing.T) {
	if os.Getenv("VCR_MODE") == "record" {
		t.Skip("Skipping test: overload cannot be recorded on demand")
	}
	o := newRecordedOpenAI(t, "openai_overloaded")

	_, err := o.Complete(context.Background(), Request{Messages: []Message{{Role: "user", Content: "Hello"}}})
	if err == nil {
		t.Fatal("Complete() error = nil, want overload")
	}
	if KindOf(err) != KindTransient {
		t.Errorf("KindOf() = %v, want transient", KindOf(err))
	}
}

func TestNewOpenAI_MissingKey(t *testing.T) {
	if _, err := NewOpenAI("grok", "", "https://api.x.ai/v1", "grok-3", nil, Telemetry{}); err == nil {
		t.Error("NewOpenAI() error = nil, want ErrNotConfigured")
	}
}
