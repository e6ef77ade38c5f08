package pipelinectl

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Alive reports whether pid names a running, non-zombie process.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	if err := unix.Kill(pid, 0); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return false
		}
		// EPERM: the process exists but belongs to someone else.
		if !errors.Is(err, unix.EPERM) {
			return false
		}
	}
	return !zombie(pid)
}

func zombie(pid int) bool {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return false
	}
	idx := bytes.LastIndexByte(data, ')')
	if idx < 0 || idx+2 >= len(data) {
		return false
	}
	return data[idx+2] == 'Z'
}

// signal delivers sig to the process group led by pid, falling back to the
// process alone when it does not lead a group.
func signal(pid int, sig unix.Signal) error {
	if err := unix.Kill(-pid, sig); err == nil {
		return nil
	}
	if err := unix.Kill(pid, sig); err != nil && !errors.Is(err, unix.ESRCH) {
		return err
	}
	return nil
}
