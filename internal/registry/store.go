package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"meetwatch/internal/session"
)

// Entry is one indexed session.
type Entry struct {
	ID              string
	URL             string
	ParticipantName string
	Status          session.Status
	StartedAt       time.Time
	EndedAt         *time.Time
	TranscriptLines int
	MentionCount    int
	UpdatedAt       time.Time
}

// EntryFromMeeting builds an entry from session metadata and counts.
func EntryFromMeeting(m session.Meeting, lines, mentions int) Entry {
	return Entry{
		ID:              m.ID,
		URL:             m.URL,
		ParticipantName: m.ParticipantName,
		Status:          m.Status,
		StartedAt:       m.StartedAt,
		EndedAt:         m.EndedAt,
		TranscriptLines: lines,
		MentionCount:    mentions,
	}
}

// Store is the SQLite-backed session index.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// ErrNotFound is returned when a session is not indexed.
var ErrNotFound = errors.New("session not indexed")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the registry database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	store := &Store{db: db, path: path, now: time.Now}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Record inserts or updates the entry for a session.
func (s *Store) Record(ctx context.Context, entry Entry) error {
	if strings.TrimSpace(entry.ID) == "" {
		return errors.New("registry: session id required")
	}
	var ended any
	if entry.EndedAt != nil {
		ended = formatTime(*entry.EndedAt)
	}
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
INSERT INTO sessions (id, url, participant_name, status, started_at, ended_at, transcript_lines, mention_count, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    url = excluded.url,
    participant_name = excluded.participant_name,
    status = excluded.status,
    started_at = excluded.started_at,
    ended_at = excluded.ended_at,
    transcript_lines = excluded.transcript_lines,
    mention_count = excluded.mention_count,
    updated_at = excluded.updated_at`,
			entry.ID, entry.URL, entry.ParticipantName, string(entry.Status),
			formatTime(entry.StartedAt), ended, entry.TranscriptLines, entry.MentionCount,
			formatTime(s.now()),
		)
		return err
	})
}

const selectColumns = `id, url, participant_name, status, started_at, ended_at, transcript_lines, mention_count, updated_at`

// Get returns one indexed session.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM sessions WHERE id = ?", id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// List returns sessions newest first. A limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	query := "SELECT " + selectColumns + " FROM sessions ORDER BY started_at DESC, id"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		entry            Entry
		status           string
		started, updated string
		ended            sql.NullString
	)
	if err := row.Scan(&entry.ID, &entry.URL, &entry.ParticipantName, &status, &started, &ended,
		&entry.TranscriptLines, &entry.MentionCount, &updated); err != nil {
		return nil, err
	}
	entry.Status = session.Status(status)
	entry.StartedAt = parseTime(started)
	entry.UpdatedAt = parseTime(updated)
	if ended.Valid && ended.String != "" {
		ts := parseTime(ended.String)
		entry.EndedAt = &ts
	}
	return &entry, nil
}

// timeLayout has fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil || !isSQLiteBusy(lastErr) {
			return lastErr
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay = min(delay*2, busyRetryMaxBackoff)
	}
	return lastErr
}
