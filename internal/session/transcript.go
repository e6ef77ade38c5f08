package session

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// TimestampLayout formats transcript and mention line prefixes.
const TimestampLayout = "2006-01-02 15:04:05"

// MentionKind distinguishes questions from plain mentions.
type MentionKind string

const (
	KindMention  MentionKind = "MENTION"
	KindQuestion MentionKind = "QUESTION"
)

// Line is one parsed transcript or mention entry.
type Line struct {
	Time time.Time   `json:"time"`
	Kind MentionKind `json:"kind,omitempty"`
	Text string      `json:"text"`
}

// Log appends timestamped lines to a session's transcript and mention files.
// Timestamps are non-decreasing: one earlier than the last written is clamped
// to the last written.
type Log struct {
	mu         sync.Mutex
	transcript *os.File
	mentions   *os.File
	last       time.Time
}

// OpenLog opens the transcript and mention files of id for appending.
func (s *Store) OpenLog(id string) (*Log, error) {
	dir := s.Dir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	transcriptPath := filepath.Join(dir, TranscriptName)
	last, err := lastTimestamp(transcriptPath)
	if err != nil {
		return nil, err
	}
	transcript, err := os.OpenFile(transcriptPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	mentions, err := os.OpenFile(filepath.Join(dir, MentionsName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		transcript.Close()
		return nil, fmt.Errorf("open mentions: %w", err)
	}
	return &Log{transcript: transcript, mentions: mentions, last: last}, nil
}

// AppendTranscript writes one transcript line and returns the timestamp used.
func (l *Log) AppendTranscript(ts time.Time, text string) (time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ts = l.clamp(ts)
	if _, err := fmt.Fprintf(l.transcript, "[%s] %s\n", ts.Format(TimestampLayout), oneLine(text)); err != nil {
		return ts, fmt.Errorf("append transcript: %w", err)
	}
	l.last = ts
	return ts, nil
}

// AppendMention writes one mention line.
func (l *Log) AppendMention(ts time.Time, kind MentionKind, text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	ts = l.clamp(ts)
	if _, err := fmt.Fprintf(l.mentions, "[%s] %s: %s\n", ts.Format(TimestampLayout), kind, oneLine(text)); err != nil {
		return fmt.Errorf("append mention: %w", err)
	}
	return nil
}

// Close closes both files.
func (l *Log) Close() error {
	return errors.Join(l.transcript.Close(), l.mentions.Close())
}

func (l *Log) clamp(ts time.Time) time.Time {
	ts = ts.Local().Truncate(time.Second)
	if ts.Before(l.last) {
		return l.last
	}
	return ts
}

func oneLine(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Transcript returns the parsed transcript lines of id.
func (s *Store) Transcript(id string) ([]Line, error) {
	return readLines(filepath.Join(s.Dir(id), TranscriptName), false)
}

// Mentions returns the parsed mention lines of id.
func (s *Store) Mentions(id string) ([]Line, error) {
	return readLines(filepath.Join(s.Dir(id), MentionsName), true)
}

// LineCount returns the number of transcript lines of id.
func (s *Store) LineCount(id string) (int, error) {
	return countLines(filepath.Join(s.Dir(id), TranscriptName))
}

// MentionCount returns the number of mention lines of id.
func (s *Store) MentionCount(id string) (int, error) {
	return countLines(filepath.Join(s.Dir(id), MentionsName))
}

func countLines(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	defer file.Close()
	count := 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) != "" {
			count++
		}
	}
	return count, scanner.Err()
}

func readLines(path string, mentions bool) ([]Line, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()
	var lines []Line
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line, ok := ParseLine(scanner.Text(), mentions)
		if ok {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

// ParseLine decodes "[ts] text" or, for mention files, "[ts] KIND: text".
func ParseLine(raw string, mention bool) (Line, bool) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "[") {
		return Line{}, false
	}
	end := strings.Index(raw, "]")
	if end < 0 {
		return Line{}, false
	}
	ts, err := time.ParseInLocation(TimestampLayout, raw[1:end], time.Local)
	if err != nil {
		return Line{}, false
	}
	line := Line{Time: ts, Text: strings.TrimSpace(raw[end+1:])}
	if mention {
		for _, kind := range []MentionKind{KindQuestion, KindMention} {
			prefix := string(kind) + ":"
			if strings.HasPrefix(line.Text, prefix) {
				line.Kind = kind
				line.Text = strings.TrimSpace(strings.TrimPrefix(line.Text, prefix))
				break
			}
		}
	}
	return line, true
}

func lastTimestamp(path string) (time.Time, error) {
	lines, err := readLines(path, false)
	if err != nil {
		return time.Time{}, fmt.Errorf("read transcript: %w", err)
	}
	var last time.Time
	for _, line := range lines {
		if line.Time.After(last) {
			last = line.Time
		}
	}
	return last, nil
}
