package memory

import (
	"testing"

	"InterviewCoach/internal/sessionstore"
	"InterviewCoach/internal/sessionstore/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) sessionstore.Store {
		return New()
	})
}
