package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

const tailPollInterval = 250 * time.Millisecond

// TailOptions controls Tail. A negative Offset starts from the last Limit
// lines; otherwise reading resumes at Offset. Wait bounds how long Tail
// blocks for new lines when none are available.
type TailOptions struct {
	Offset   int64
	Limit    int
	Wait     time.Duration
	Mentions bool
}

// TailResult holds the lines read and the offset to resume from.
type TailResult struct {
	Lines  []Line
	Offset int64
}

// Tail reads new transcript (or mention) lines of id. Only complete lines are
// returned, so a line being appended concurrently is picked up by the next
// call.
func (s *Store) Tail(ctx context.Context, id string, opts TailOptions) (TailResult, error) {
	name := TranscriptName
	if opts.Mentions {
		name = MentionsName
	}
	path := filepath.Join(s.Dir(id), name)
	if opts.Wait < 0 {
		opts.Wait = 0
	}

	if opts.Offset < 0 {
		raw, offset, err := readLastLines(path, opts.Limit)
		if err != nil {
			return TailResult{}, err
		}
		if len(raw) > 0 || opts.Wait == 0 {
			return TailResult{Lines: parseAll(raw, opts.Mentions), Offset: offset}, nil
		}
		opts.Offset = offset
	}
	return waitForLines(ctx, path, opts.Offset, opts.Wait, opts.Mentions)
}

func parseAll(raw []string, mentions bool) []Line {
	lines := make([]Line, 0, len(raw))
	for _, r := range raw {
		if line, ok := ParseLine(r, mentions); ok {
			lines = append(lines, line)
		}
	}
	return lines
}

// readLastLines returns up to limit trailing complete lines and the offset
// just past them.
func readLastLines(path string, limit int) ([]string, int64, error) {
	all, offset, err := readForward(path, 0)
	if err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		return nil, offset, nil
	}
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, offset, nil
}

func readForward(path string, offset int64) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open transcript: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat transcript: %w", err)
	}
	if offset > info.Size() {
		// Truncated underneath us; start over.
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("seek transcript: %w", err)
	}

	reader := bufio.NewReader(file)
	var lines []string
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, 0, fmt.Errorf("read transcript: %w", err)
		}
		offset += int64(len(line))
		lines = append(lines, line[:len(line)-1])
	}
	return lines, offset, nil
}

func waitForLines(ctx context.Context, path string, offset int64, wait time.Duration, mentions bool) (TailResult, error) {
	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(tailPollInterval)
	defer ticker.Stop()

	result := TailResult{Offset: offset}
	for {
		raw, newOffset, err := readForward(path, offset)
		if err != nil {
			return result, err
		}
		result.Offset = newOffset
		if len(raw) > 0 {
			result.Lines = parseAll(raw, mentions)
			return result, nil
		}
		if !time.Now().Before(deadline) {
			return result, nil
		}
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-ticker.C:
		}
	}
}
