package meeting

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"meetwatch/internal/notifications"
	"meetwatch/internal/services"
	"meetwatch/internal/session"
)

const testURL = "https://meet.example.com/abc-defg-hij"

func TestJoinConfirmedAfterThreePolls(t *testing.T) {
	h := newHarness(t, "Got it", "Turn off camera", "Your name", "Join now")
	h.cfg.Automation.PollIntervalMS = 1000
	h.driver.joinedAfter = 3

	result, err := h.svc.Join(context.Background(), testURL, "Bot")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if result.State != StateConfirmed || result.SessionID != "abc-defg-hij" {
		t.Fatalf("unexpected result %+v", result)
	}
	var polled time.Duration
	for _, d := range h.sleeps {
		if d == time.Second {
			polled += d
		}
	}
	if polled != 2*time.Second {
		t.Fatalf("expected confirmation within 3 polling seconds, slept %v", h.sleeps)
	}

	meeting, err := h.store.Current()
	if err != nil || meeting == nil {
		t.Fatalf("expected current session, got %+v err=%v", meeting, err)
	}
	if meeting.Status != session.StatusActive || meeting.ParticipantName != "Bot" || meeting.URL != testURL {
		t.Fatalf("unexpected metadata %+v", meeting)
	}
	if len(h.driver.typed) != 1 || h.driver.typed[0] != "Bot" {
		t.Fatalf("expected name typed, got %v", h.driver.typed)
	}
	if h.trail.index("click Join now") < 0 || h.trail.index("click Ask to join") > h.trail.index("click Join now") {
		t.Fatalf("join buttons probed out of order: %v", h.trail.events)
	}
	if h.trail.index("ensure abc-defg-hij") > h.trail.index("navigate "+testURL) {
		t.Fatalf("sink must be reserved before navigation: %v", h.trail.events)
	}
	if len(h.transcribers.launched) != 1 || result.PipelinePID != 4242 {
		t.Fatalf("expected transcriber launched, got %v pid=%d", h.transcribers.launched, result.PipelinePID)
	}
	if entry, ok := h.index.entries["abc-defg-hij"]; !ok || entry.Status != session.StatusActive {
		t.Fatalf("expected indexed active session, got %+v", h.index.entries)
	}
	if len(h.notifier.events) != 1 || h.notifier.events[0] != notifications.EventJoined {
		t.Fatalf("expected joined notification, got %v", h.notifier.events)
	}
}

func TestJoinInvalidURLHasNoSideEffects(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Join(context.Background(), "https://evil.example.com/abc-defg-hij", "")
	if !errors.Is(err, services.ErrInvalidURL) || !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected invalid url, got %v", err)
	}
	if len(h.trail.events) != 0 {
		t.Fatalf("expected no collaborator calls, got %v", h.trail.events)
	}
	entries, _ := os.ReadDir(h.cfg.Paths.MeetingsDir)
	if len(entries) != 0 {
		t.Fatalf("expected no session files, got %d entries", len(entries))
	}
}

func TestJoinAutomationUnavailable(t *testing.T) {
	h := newHarness(t)
	h.driver.listErr = errBoom
	_, err := h.svc.Join(context.Background(), testURL, "")
	if !errors.Is(err, services.ErrAutomationUnavailable) {
		t.Fatalf("expected automation unavailable, got %v", err)
	}
	if h.trail.count("ensure") != 0 {
		t.Fatalf("sink must not be touched: %v", h.trail.events)
	}
}

func TestJoinSinkFailureStopsBeforeUI(t *testing.T) {
	h := newHarness(t, "Join now")
	h.audio.ensureErr = errBoom
	_, err := h.svc.Join(context.Background(), testURL, "")
	if !errors.Is(err, services.ErrAudioUnavailable) {
		t.Fatalf("expected audio unavailable, got %v", err)
	}
	if h.trail.count("navigate") != 0 || h.trail.count("click") != 0 || h.trail.count("launch") != 0 {
		t.Fatalf("no UI or pipeline action expected: %v", h.trail.events)
	}
	if current, _ := h.store.Current(); current != nil {
		t.Fatalf("no session expected, got %+v", current)
	}
}

func TestJoinTimedOutStillRecordsSession(t *testing.T) {
	h := newHarness(t, "Ask to join")
	h.cfg.Automation.JoinAttempts = 4

	result, err := h.svc.Join(context.Background(), testURL, "")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if result.State != StateTimedOut || len(result.Warnings) == 0 {
		t.Fatalf("expected timed out with warning, got %+v", result)
	}
	if h.driver.polls != 4 {
		t.Fatalf("expected 4 polls, got %d", h.driver.polls)
	}
	meeting, _ := h.store.Current()
	if meeting == nil || meeting.ParticipantName != h.cfg.Session.ParticipantName {
		t.Fatalf("expected active session with default name, got %+v", meeting)
	}
	if len(h.transcribers.launched) != 1 {
		t.Fatal("transcriber must start even when the join is unconfirmed")
	}
}

func TestJoinDegradesOnHealthAndLaunchFailures(t *testing.T) {
	h := newHarness(t, "Join now")
	h.driver.joinedAfter = 1
	h.health.err = services.ErrTranscriptionUnavailable
	h.transcribers.launchErr = errBoom

	result, err := h.svc.Join(context.Background(), testURL, "")
	if err != nil {
		t.Fatalf("join must succeed in degraded mode: %v", err)
	}
	if result.State != StateConfirmed || result.PipelinePID != 0 || len(result.Warnings) != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if meeting, _ := h.store.Current(); meeting == nil {
		t.Fatal("session must be recorded")
	}
}

func TestJoinSupersedesPreviousSession(t *testing.T) {
	h := newHarness(t, "Join now")
	h.driver.joinedAfter = 1
	if _, err := h.store.Create("old-oooo-old", "https://meet.example.com/old-oooo-old", "Bot", time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := h.store.SetCurrent("old-oooo-old"); err != nil {
		t.Fatalf("SetCurrent: %v", err)
	}

	result, err := h.svc.Join(context.Background(), testURL, "")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if result.Superseded != "old-oooo-old" {
		t.Fatalf("expected superseded session reported, got %+v", result)
	}
	old, err := h.store.Load("old-oooo-old")
	if err != nil || old.Status != session.StatusEnded || old.EndedAt == nil {
		t.Fatalf("expected old session ended, got %+v err=%v", old, err)
	}
	if h.trail.index("release old-oooo-old") < 0 || h.trail.index("release old-oooo-old") > h.trail.index("ensure abc-defg-hij") {
		t.Fatalf("old sink must be released before the new one is reserved: %v", h.trail.events)
	}
	id, ok, _ := h.store.CurrentID()
	if !ok || id != "abc-defg-hij" {
		t.Fatalf("expected pointer moved to new session, got %q", id)
	}
}

func TestJoinFailsWhileLockHeld(t *testing.T) {
	h := newHarness(t, "Join now")
	h.svc.lockWait = 50 * time.Millisecond
	release, err := h.svc.acquire(context.Background(), "test")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()

	other := New(h.cfg, Dependencies{
		Store:        h.store,
		Driver:       h.driver,
		Audio:        h.audio,
		Transcribers: h.transcribers,
	}, nil)
	other.lockWait = 50 * time.Millisecond
	if _, err := other.Join(context.Background(), testURL, ""); !errors.Is(err, services.ErrPrecondition) {
		t.Fatalf("expected precondition error while locked, got %v", err)
	}
	if h.trail.count("list") != 0 {
		t.Fatalf("nothing may run without the lock: %v", h.trail.events)
	}
}

func assertSinkHandedBack(t *testing.T, h *harness) {
	t.Helper()
	if len(h.audio.ensured) != 1 || len(h.audio.released) != 1 || h.audio.released[0] != "abc-defg-hij" {
		t.Fatalf("expected sink released after aborted join, ensured=%v released=%v", h.audio.ensured, h.audio.released)
	}
	if id, ok, _ := h.store.CurrentID(); ok {
		t.Fatalf("aborted join must not set a current session, got %q", id)
	}
	if len(h.transcribers.launched) != 0 {
		t.Fatalf("aborted join must not launch a transcriber: %v", h.transcribers.launched)
	}
}

func TestJoinNavigateFailureReleasesSink(t *testing.T) {
	h := newHarness(t, "Join now")
	h.driver.navigateErr = errBoom

	if _, err := h.svc.Join(context.Background(), testURL, "Bot"); !errors.Is(err, errBoom) {
		t.Fatalf("expected navigate error, got %v", err)
	}
	assertSinkHandedBack(t, h)
}

func TestJoinCancelledWhilePollingReleasesSink(t *testing.T) {
	h := newHarness(t, "Join now")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.svc.sleep = func(ctx context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		if len(h.sleeps) == 3 {
			cancel()
		}
		return ctx.Err()
	}

	if _, err := h.svc.Join(ctx, testURL, "Bot"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	assertSinkHandedBack(t, h)

	result, err := h.svc.Leave(context.Background())
	if err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if len(h.audio.released) != 1 {
		t.Fatalf("leave after aborted join must not touch the sink again: %v (%+v)", h.audio.released, result)
	}
}
