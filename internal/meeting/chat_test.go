package meeting

import (
	"context"
	"errors"
	"testing"

	"meetwatch/internal/services"
)

func TestChatWithoutLeaveAffordanceIsPrecondition(t *testing.T) {
	h := newHarness(t, "Send a message", "Chat with everyone")
	_, err := h.svc.Chat(context.Background(), "hello")
	if !errors.Is(err, services.ErrNotInCall) || !errors.Is(err, services.ErrPrecondition) {
		t.Fatalf("expected not-in-call precondition, got %v", err)
	}
	if len(h.driver.clicks) != 0 || len(h.driver.typed) != 0 {
		t.Fatalf("no UI action expected, clicks=%v typed=%v", h.driver.clicks, h.driver.typed)
	}
}

func TestChatOpensPanelTypesAndSubmits(t *testing.T) {
	h := newHarness(t, "Leave call", "Chat with everyone")
	h.driver.reveals["Chat with everyone"] = []string{"Send a message"}

	result, err := h.svc.Chat(context.Background(), "  hello team  ")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if result.OpenedWith != "Chat with everyone" || result.Input != "Send a message" {
		t.Fatalf("unexpected chat path %+v", result)
	}
	if len(h.driver.typed) != 1 || h.driver.typed[0] != "hello team" {
		t.Fatalf("unexpected typed text %v", h.driver.typed)
	}
	if len(h.driver.keys) != 1 || h.driver.keys[0] != "Return" {
		t.Fatalf("expected submit key, got %v", h.driver.keys)
	}
}

func TestChatInputAlreadyVisibleSkipsOpen(t *testing.T) {
	h := newHarness(t, "Leave call", "Send a message", "Chat with everyone")
	result, err := h.svc.Chat(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if result.OpenedWith != "" || h.trail.index("click Chat with everyone") >= 0 {
		t.Fatalf("chat panel should not be toggled: %v", h.trail.events)
	}
}

func TestChatEmptyMessageIsValidation(t *testing.T) {
	h := newHarness(t, "Leave call")
	if _, err := h.svc.Chat(context.Background(), "   "); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(h.trail.events) != 0 {
		t.Fatalf("no UI access expected: %v", h.trail.events)
	}
}
