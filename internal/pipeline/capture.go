package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// Source yields a continuous raw PCM stream.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// ParecSource records a PulseAudio source with parec.
type ParecSource struct {
	Binary   string
	Device   string
	Rate     int
	Channels int
	Format   string
}

// Args returns the parec command line.
func (p ParecSource) Args() []string {
	return []string{
		"--device=" + p.Device,
		"--rate=" + strconv.Itoa(p.Rate),
		"--channels=" + strconv.Itoa(p.Channels),
		"--format=" + p.Format,
		"--raw",
	}
}

// Open starts parec. Cancelling ctx terminates the recorder, which ends the
// stream with EOF.
func (p ParecSource) Open(ctx context.Context) (io.ReadCloser, error) {
	binary := p.Binary
	if binary == "" {
		binary = "parec"
	}
	cmd := exec.CommandContext(ctx, binary, p.Args()...) //nolint:gosec
	var stderr strings.Builder
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("capture pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", binary, err)
	}
	return &processReader{ReadCloser: stdout, cmd: cmd, stderr: &stderr, binary: binary}, nil
}

type processReader struct {
	io.ReadCloser
	cmd    *exec.Cmd
	stderr *strings.Builder
	binary string
	once   sync.Once
	err    error
}

// Close stops the recorder and reaps it. A recorder that exited with a
// non-zero status on its own is reported with its stderr; one that ended by
// signal was stopped by us.
func (r *processReader) Close() error {
	r.once.Do(func() {
		if r.cmd.Process != nil {
			_ = r.cmd.Process.Kill()
		}
		_ = r.ReadCloser.Close()
		err := r.cmd.Wait()
		var exitErr *exec.ExitError
		switch {
		case err == nil:
		case errors.As(err, &exitErr):
			if code := exitErr.ExitCode(); code > 0 {
				r.err = fmt.Errorf("%s exited with status %d: %s", r.binary, code, strings.TrimSpace(r.stderr.String()))
			}
		default:
			r.err = err
		}
	})
	return r.err
}
