package backend

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		status     string
		message    string
		want       Kind
	}{
		{"service unavailable", http.StatusServiceUnavailable, "", "", KindTransient},
		{"rate limited", http.StatusTooManyRequests, "", "", KindTransient},
		{"anthropic overloaded", 529, "", `{"type":"overloaded_error"}`, KindTransient},
		{"grpc unavailable", 500, "UNAVAILABLE", "", KindTransient},
		{"resource exhausted", 400, "resource_exhausted", "", KindTransient},
		{"overloaded message", 500, "", "model is overloaded", KindTransient},
		{"service disabled", 403, "SERVICE_DISABLED", "", KindDisabled},
		{"never used", 403, "PERMISSION_DENIED", "Generative Language API has not been used in project 123", KindDisabled},
		{"not provisioned", 400, "", "model not provisioned for this account", KindDisabled},
		{"bad request", 400, "INVALID_ARGUMENT", "bad field", KindOther},
		{"unauthorized", 401, "", "invalid key", KindOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.statusCode, tt.status, tt.message); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	be := &Error{Backend: "gemini", Kind: KindTransient, StatusCode: 503}
	if got := KindOf(fmt.Errorf("attempt 2: %w", be)); got != KindTransient {
		t.Errorf("KindOf(wrapped) = %v, want transient", got)
	}
	if got := KindOf(errors.New("boom")); got != KindOther {
		t.Errorf("KindOf(plain) = %v, want other", got)
	}
	if got := KindOf(nil); got != KindOther {
		t.Errorf("KindOf(nil) = %v, want other", got)
	}
}
