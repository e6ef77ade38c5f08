package session_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"meetwatch/internal/session"
)

func TestCreateAndCurrentPointer(t *testing.T) {
	store := session.NewStore(t.TempDir())
	started := time.Date(2026, 3, 4, 10, 0, 0, 0, time.Local)

	if _, err := store.Create("abc-defg-hij", "https://meet.example.com/abc-defg-hij", "Bot", started); err != nil {
		t.Fatalf("Create: %v", err)
	}
	current, err := store.Current()
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if current != nil {
		t.Fatalf("expected no current before SetCurrent, got %+v", current)
	}
	if err := store.SetCurrent("abc-defg-hij"); err != nil {
		t.Fatalf("SetCurrent: %v", err)
	}
	current, err = store.Current()
	if err != nil || current == nil {
		t.Fatalf("expected current, got %+v err=%v", current, err)
	}
	if current.ID != "abc-defg-hij" || current.Status != session.StatusActive || current.EndedAt != nil {
		t.Fatalf("unexpected current: %+v", current)
	}

	raw, err := os.ReadFile(filepath.Join(store.Dir("abc-defg-hij"), "metadata.json"))
	if err != nil {
		t.Fatalf("read metadata: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	for _, key := range []string{"meeting_id", "url", "participant_name", "started_at", "ended_at", "status"} {
		if _, ok := decoded[key]; !ok {
			t.Fatalf("metadata missing %q: %s", key, raw)
		}
	}
}

func TestSetCurrentReplacesLink(t *testing.T) {
	store := session.NewStore(t.TempDir())
	now := time.Now()
	for _, id := range []string{"aaa-bbbb-ccc", "ddd-eeee-fff"} {
		if _, err := store.Create(id, "u", "p", now); err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
		if err := store.SetCurrent(id); err != nil {
			t.Fatalf("SetCurrent %s: %v", id, err)
		}
	}
	id, ok, err := store.CurrentID()
	if err != nil || !ok || id != "ddd-eeee-fff" {
		t.Fatalf("expected second session current, got %q %v %v", id, ok, err)
	}
}

func TestDanglingPointerReadsAsEmpty(t *testing.T) {
	root := t.TempDir()
	store := session.NewStore(root)
	if err := os.Symlink("missing-session", filepath.Join(root, "current")); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	current, err := store.Current()
	if err != nil {
		t.Fatalf("dangling pointer must not error: %v", err)
	}
	if current != nil {
		t.Fatalf("expected empty, got %+v", current)
	}

	if _, err := store.Create("abc-defg-hij", "u", "p", time.Now()); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.SetCurrent("abc-defg-hij"); err != nil {
		t.Fatalf("SetCurrent: %v", err)
	}
	if _, err := store.MarkEnded("abc-defg-hij", time.Now()); err != nil {
		t.Fatalf("MarkEnded: %v", err)
	}
	current, err = store.Current()
	if err != nil || current != nil {
		t.Fatalf("pointer to ended session must read as empty, got %+v err=%v", current, err)
	}
	if err := store.ClearCurrent(); err != nil {
		t.Fatalf("ClearCurrent: %v", err)
	}
	if err := store.ClearCurrent(); err != nil {
		t.Fatalf("second ClearCurrent: %v", err)
	}
}

func TestMarkEndedIsIdempotent(t *testing.T) {
	store := session.NewStore(t.TempDir())
	started := time.Now().Add(-time.Hour)
	if _, err := store.Create("abc-defg-hij", "u", "p", started); err != nil {
		t.Fatalf("Create: %v", err)
	}
	first := started.Add(30 * time.Minute).Truncate(time.Second)
	if _, err := store.MarkEnded("abc-defg-hij", first); err != nil {
		t.Fatalf("MarkEnded: %v", err)
	}
	meeting, err := store.MarkEnded("abc-defg-hij", first.Add(time.Minute))
	if err != nil {
		t.Fatalf("second MarkEnded: %v", err)
	}
	if meeting.Status != session.StatusEnded || meeting.EndedAt == nil || !meeting.EndedAt.Equal(first) {
		t.Fatalf("expected first ended_at kept, got %+v", meeting)
	}
	entries, _ := os.ReadDir(store.Dir("abc-defg-hij"))
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".tmp") {
			t.Fatalf("temp file left behind: %s", entry.Name())
		}
	}
}

func TestTranscriptTimestampsNeverDecrease(t *testing.T) {
	store := session.NewStore(t.TempDir())
	log, err := store.OpenLog("abc-defg-hij")
	if err != nil {
		t.Fatalf("OpenLog: %v", err)
	}
	base := time.Date(2026, 3, 4, 10, 0, 10, 0, time.Local)
	if _, err := log.AppendTranscript(base, "first"); err != nil {
		t.Fatalf("append: %v", err)
	}
	used, err := log.AppendTranscript(base.Add(-5*time.Second), "second\nline")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if !used.Equal(base) {
		t.Fatalf("expected clamp to %v, got %v", base, used)
	}
	if err := log.AppendMention(base.Add(2*time.Second), session.KindQuestion, "can you summarize?"); err != nil {
		t.Fatalf("mention: %v", err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := store.OpenLog("abc-defg-hij")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, err := reopened.AppendTranscript(base.Add(-time.Hour), "third"); err != nil {
		t.Fatalf("append after reopen: %v", err)
	}
	reopened.Close()

	lines, err := store.Transcript("abc-defg-hij")
	if err != nil {
		t.Fatalf("Transcript: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %+v", lines)
	}
	if lines[1].Text != "second line" {
		t.Fatalf("expected newline folded, got %q", lines[1].Text)
	}
	for i := 1; i < len(lines); i++ {
		if lines[i].Time.Before(lines[i-1].Time) {
			t.Fatalf("timestamps decreased at %d: %+v", i, lines)
		}
	}
	count, _ := store.LineCount("abc-defg-hij")
	if count != 3 {
		t.Fatalf("expected line count 3, got %d", count)
	}

	mentions, err := store.Mentions("abc-defg-hij")
	if err != nil || len(mentions) != 1 {
		t.Fatalf("expected one mention, got %+v err=%v", mentions, err)
	}
	if mentions[0].Kind != session.KindQuestion || mentions[0].Text != "can you summarize?" {
		t.Fatalf("unexpected mention: %+v", mentions[0])
	}
}

func TestListNewestFirstSkipsPointer(t *testing.T) {
	store := session.NewStore(t.TempDir())
	now := time.Now()
	if _, err := store.Create("old-oooo-old", "u", "p", now.Add(-2*time.Hour)); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Create("new-nnnn-new", "u", "p", now); err != nil {
		t.Fatal(err)
	}
	if err := store.SetCurrent("new-nnnn-new"); err != nil {
		t.Fatal(err)
	}
	meetings, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(meetings) != 2 || meetings[0].ID != "new-nnnn-new" {
		t.Fatalf("unexpected list: %+v", meetings)
	}
}

func TestCreateRejectsUnsafeIDs(t *testing.T) {
	store := session.NewStore(t.TempDir())
	for _, id := range []string{"", "current", "../escape"} {
		if _, err := store.Create(id, "u", "p", time.Now()); err == nil {
			t.Fatalf("expected error for id %q", id)
		}
	}
}
