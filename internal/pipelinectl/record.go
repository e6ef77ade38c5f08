package pipelinectl

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"meetwatch/internal/fileutil"
)

// errCorruptRecord marks a record file that exists but does not decode.
var errCorruptRecord = errors.New("corrupt pipeline record")

// Record is the persisted description of a launched transcriber.
type Record struct {
	PID        int       `json:"pid"`
	SessionID  string    `json:"session_id"`
	StartedAt  time.Time `json:"started_at"`
	Executable string    `json:"executable"`
}

func readRecord(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read pipeline record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w %s: %w", errCorruptRecord, path, err)
	}
	return &rec, nil
}

func writeRecord(path string, rec Record) error {
	if err := fileutil.WriteJSONAtomic(path, rec); err != nil {
		return fmt.Errorf("write pipeline record: %w", err)
	}
	return nil
}

func removeRecord(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove pipeline record: %w", err)
	}
	return nil
}
