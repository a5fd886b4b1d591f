package core

import (
	"errors"
	"testing"
)

func TestNewEvent(t *testing.T) {
	ev := NewEvent(EventMessageAppended)
	if ev.ID == "" {
		t.Fatal("expected id to be set")
	}
	if ev.Timestamp.IsZero() {
		t.Fatal("expected timestamp to be set")
	}
	if ev.IsFailure() {
		t.Fatal("message event must not be a failure")
	}
}

func TestEvent_IsFailure(t *testing.T) {
	for _, typ := range []EventType{EventGenerationFailed, EventFormatFailed, EventPersistenceFailed} {
		ev := NewEvent(typ)
		ev.Err = errors.New("x")
		if !ev.IsFailure() {
			t.Errorf("%s should be a failure", typ)
		}
	}
}
