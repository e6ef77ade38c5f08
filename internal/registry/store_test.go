package registry_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"meetwatch/internal/registry"
	"meetwatch/internal/session"
)

func openStore(t *testing.T) *registry.Store {
	t.Helper()
	store, err := registry.Open(filepath.Join(t.TempDir(), "registry.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordUpsertsAndLists(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	started := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	first := session.Meeting{ID: "abc-defg-hij", URL: "https://meet.example.com/abc-defg-hij", ParticipantName: "Bot", StartedAt: started, Status: session.StatusActive}
	second := session.Meeting{ID: "zzz-yyyy-xxx", URL: "https://meet.example.com/zzz-yyyy-xxx", StartedAt: started.Add(time.Hour), Status: session.StatusActive}
	if err := store.Record(ctx, registry.EntryFromMeeting(first, 0, 0)); err != nil {
		t.Fatalf("Record first: %v", err)
	}
	if err := store.Record(ctx, registry.EntryFromMeeting(second, 0, 0)); err != nil {
		t.Fatalf("Record second: %v", err)
	}

	ended := started.Add(30 * time.Minute)
	first.Status = session.StatusEnded
	first.EndedAt = &ended
	if err := store.Record(ctx, registry.EntryFromMeeting(first, 12, 2)); err != nil {
		t.Fatalf("Record update: %v", err)
	}

	got, err := store.Get(ctx, "abc-defg-hij")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != session.StatusEnded || got.EndedAt == nil || !got.EndedAt.Equal(ended) {
		t.Fatalf("expected ended entry, got %+v", got)
	}
	if got.TranscriptLines != 12 || got.MentionCount != 2 {
		t.Fatalf("unexpected counts: %+v", got)
	}

	entries, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != "zzz-yyyy-xxx" {
		t.Fatalf("expected newest first, got %+v", entries)
	}
	limited, err := store.List(ctx, 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("expected one entry with limit, got %d err=%v", len(limited), err)
	}
}

func TestGetMissing(t *testing.T) {
	store := openStore(t)
	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.db")
	store, err := registry.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	meeting := session.Meeting{ID: "abc-defg-hij", URL: "u", StartedAt: time.Now(), Status: session.StatusActive}
	if err := store.Record(context.Background(), registry.EntryFromMeeting(meeting, 1, 0)); err != nil {
		t.Fatalf("Record: %v", err)
	}
	store.Close()

	reopened, err := registry.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if _, err := reopened.Get(context.Background(), "abc-defg-hij"); err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
}
