package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"meetwatch/internal/fileutil"
)

const (
	currentLinkName = "current"
	metadataName    = "metadata.json"
	// TranscriptName is the transcript file inside a session directory.
	TranscriptName = "transcript.txt"
	// MentionsName is the mention file inside a session directory.
	MentionsName = "mentions.txt"
)

// ErrNotFound reports a session directory without readable metadata.
var ErrNotFound = errors.New("session not found")

// Store reads and writes sessions under a meetings directory.
type Store struct {
	root string
}

// NewStore returns a store rooted at meetingsDir.
func NewStore(meetingsDir string) *Store {
	return &Store{root: meetingsDir}
}

// Root returns the meetings directory.
func (s *Store) Root() string {
	return s.root
}

// Dir returns the directory that holds the given session.
func (s *Store) Dir(id string) string {
	return filepath.Join(s.root, id)
}

func (s *Store) metadataPath(id string) string {
	return filepath.Join(s.Dir(id), metadataName)
}

func (s *Store) currentPath() string {
	return filepath.Join(s.root, currentLinkName)
}

// Create writes a new active session. An existing directory for the same id
// is reused and its metadata replaced; transcript files are kept.
func (s *Store) Create(id, url, participant string, startedAt time.Time) (*Meeting, error) {
	if strings.TrimSpace(id) == "" || id == currentLinkName || strings.ContainsAny(id, `/\`) {
		return nil, fmt.Errorf("invalid session id %q", id)
	}
	if err := os.MkdirAll(s.Dir(id), 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	meeting := &Meeting{
		ID:              id,
		URL:             url,
		ParticipantName: participant,
		StartedAt:       startedAt,
		Status:          StatusActive,
	}
	if err := s.save(meeting); err != nil {
		return nil, err
	}
	return meeting, nil
}

// Load reads the metadata of one session.
func (s *Store) Load(id string) (*Meeting, error) {
	data, err := os.ReadFile(s.metadataPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	var meeting Meeting
	if err := json.Unmarshal(data, &meeting); err != nil {
		return nil, fmt.Errorf("decode metadata for %s: %w", id, err)
	}
	if meeting.ID == "" {
		meeting.ID = id
	}
	return &meeting, nil
}

// MarkEnded sets status=ended and ended_at. Re-invocation keeps the first
// ended_at so the operation is idempotent.
func (s *Store) MarkEnded(id string, endedAt time.Time) (*Meeting, error) {
	meeting, err := s.Load(id)
	if err != nil {
		return nil, err
	}
	if meeting.Status == StatusEnded && meeting.EndedAt != nil {
		return meeting, nil
	}
	meeting.Status = StatusEnded
	meeting.EndedAt = &endedAt
	if err := s.save(meeting); err != nil {
		return nil, err
	}
	return meeting, nil
}

// save replaces metadata.json atomically so concurrent readers never observe
// a partial write.
func (s *Store) save(meeting *Meeting) error {
	if err := fileutil.WriteJSONAtomic(s.metadataPath(meeting.ID), meeting); err != nil {
		return fmt.Errorf("save metadata: %w", err)
	}
	return nil
}

// SetCurrent points the current link at id, replacing any previous link
// atomically.
func (s *Store) SetCurrent(id string) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create meetings dir: %w", err)
	}
	tmp := filepath.Join(s.root, fmt.Sprintf(".%s-%d.tmp", currentLinkName, os.Getpid()))
	_ = os.Remove(tmp)
	if err := os.Symlink(id, tmp); err != nil {
		return fmt.Errorf("create current link: %w", err)
	}
	if err := os.Rename(tmp, s.currentPath()); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace current link: %w", err)
	}
	return nil
}

// CurrentID returns the id the current link names, without validating it.
// The boolean is false when no link exists.
func (s *Store) CurrentID() (string, bool, error) {
	target, err := os.Readlink(s.currentPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read current link: %w", err)
	}
	return filepath.Base(target), true, nil
}

// Current returns the active session the current link names. Absent and
// dangling links (missing target or ended session) return nil without error.
func (s *Store) Current() (*Meeting, error) {
	id, ok, err := s.CurrentID()
	if err != nil || !ok {
		return nil, err
	}
	meeting, err := s.Load(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !meeting.Active() {
		return nil, nil
	}
	return meeting, nil
}

// ClearCurrent removes the current link. A missing link is not an error.
func (s *Store) ClearCurrent() error {
	if err := os.Remove(s.currentPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove current link: %w", err)
	}
	return nil
}

// List returns every session with readable metadata, newest first.
func (s *Store) List() ([]Meeting, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read meetings dir: %w", err)
	}
	var meetings []Meeting
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		meeting, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		meetings = append(meetings, *meeting)
	}
	sort.SliceStable(meetings, func(i, j int) bool {
		return meetings[i].StartedAt.After(meetings[j].StartedAt)
	})
	return meetings, nil
}
