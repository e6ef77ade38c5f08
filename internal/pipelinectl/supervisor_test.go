package pipelinectl

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"meetwatch/internal/logging"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-meetwatch")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func newTestSupervisor(t *testing.T, exe string, grace time.Duration) *Supervisor {
	t.Helper()
	return New(Options{
		RecordPath: filepath.Join(t.TempDir(), "transcriber.pid"),
		Executable: exe,
		Grace:      grace,
	}, logging.NewNop())
}

func deadPID(t *testing.T) int {
	t.Helper()
	cmd := exec.Command("true")
	if err := cmd.Run(); err != nil {
		t.Fatalf("run true: %v", err)
	}
	return cmd.Process.Pid
}

func TestInspectDeadProcessReportsStopped(t *testing.T) {
	sup := newTestSupervisor(t, "unused", time.Second)
	if err := writeRecord(sup.opts.RecordPath, Record{PID: deadPID(t), SessionID: "abc-defg-hij", StartedAt: time.Now()}); err != nil {
		t.Fatalf("writeRecord: %v", err)
	}
	status, err := sup.Inspect()
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if status.Record == nil || status.Running {
		t.Fatalf("expected recorded but stopped, got %+v", status)
	}
	if status.State() != "stopped" {
		t.Fatalf("unexpected state %q", status.State())
	}

	result, err := sup.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if result.WasRunning || result.ForcedKill {
		t.Fatalf("dead process should not be signalled: %+v", result)
	}
	if _, err := os.Stat(sup.opts.RecordPath); !os.IsNotExist(err) {
		t.Fatalf("expected record cleared, err=%v", err)
	}
}

func TestInspectWithoutRecord(t *testing.T) {
	sup := newTestSupervisor(t, "unused", time.Second)
	status, err := sup.Inspect()
	if err != nil || status.Record != nil || status.Running {
		t.Fatalf("expected empty status, got %+v err=%v", status, err)
	}
	if _, err := sup.Stop(context.Background()); err != nil {
		t.Fatalf("Stop without record: %v", err)
	}
}

func TestLaunchAndStopCooperative(t *testing.T) {
	sup := newTestSupervisor(t, writeScript(t, "exec sleep 30\n"), 2*time.Second)
	ctx := context.Background()

	rec, err := sup.Launch(ctx, "abc-defg-hij")
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	status, err := sup.Inspect()
	if err != nil || !status.Running || status.Record.PID != rec.PID {
		t.Fatalf("expected running record, got %+v err=%v", status, err)
	}

	result, err := sup.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !result.WasRunning || result.ForcedKill {
		t.Fatalf("expected graceful stop, got %+v", result)
	}
	if Alive(rec.PID) {
		t.Fatal("process still alive after stop")
	}
}

func TestStopForceKillsAfterGrace(t *testing.T) {
	sup := newTestSupervisor(t, writeScript(t, "trap '' TERM\nexec sleep 30\n"), 200*time.Millisecond)
	ctx := context.Background()

	rec, err := sup.Launch(ctx, "abc-defg-hij")
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	// Give the shell time to install the trap before signalling.
	time.Sleep(100 * time.Millisecond)

	result, err := sup.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !result.ForcedKill {
		t.Fatalf("expected forced kill, got %+v", result)
	}
	if Alive(rec.PID) {
		t.Fatal("process survived SIGKILL")
	}
}

func TestLaunchSupersedesPreviousProcess(t *testing.T) {
	sup := newTestSupervisor(t, writeScript(t, "exec sleep 30\n"), 2*time.Second)
	ctx := context.Background()

	first, err := sup.Launch(ctx, "first")
	if err != nil {
		t.Fatalf("Launch first: %v", err)
	}
	second, err := sup.Launch(ctx, "second")
	if err != nil {
		t.Fatalf("Launch second: %v", err)
	}
	t.Cleanup(func() { _, _ = sup.Stop(context.Background()) })

	if Alive(first.PID) {
		t.Fatal("first pipeline should have been stopped")
	}
	status, _ := sup.Inspect()
	if status.Record == nil || status.Record.SessionID != "second" || status.Record.PID != second.PID || !status.Running {
		t.Fatalf("expected second pipeline recorded, got %+v", status)
	}
}

func TestClearIfOwnedLeavesForeignRecord(t *testing.T) {
	sup := newTestSupervisor(t, "unused", time.Second)
	if err := writeRecord(sup.opts.RecordPath, Record{PID: 12345, SessionID: "abc-defg-hij", StartedAt: time.Now()}); err != nil {
		t.Fatalf("writeRecord: %v", err)
	}
	if err := sup.ClearIfOwned(54321); err != nil {
		t.Fatalf("ClearIfOwned foreign: %v", err)
	}
	if _, err := os.Stat(sup.opts.RecordPath); err != nil {
		t.Fatalf("foreign record must remain: %v", err)
	}
	if err := sup.ClearIfOwned(12345); err != nil {
		t.Fatalf("ClearIfOwned: %v", err)
	}
	if _, err := os.Stat(sup.opts.RecordPath); !os.IsNotExist(err) {
		t.Fatalf("expected record removed, err=%v", err)
	}
	if err := sup.ClearIfOwned(12345); err != nil {
		t.Fatalf("ClearIfOwned without record: %v", err)
	}
}

func TestStopDiscardsUnreadableRecord(t *testing.T) {
	sup := newTestSupervisor(t, "unused", time.Second)
	if err := os.WriteFile(sup.opts.RecordPath, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write record: %v", err)
	}
	if _, err := sup.Inspect(); err == nil {
		t.Fatal("expected Inspect to report the unreadable record")
	}
	for i := 0; i < 2; i++ {
		result, err := sup.Stop(context.Background())
		if err != nil {
			t.Fatalf("Stop %d: %v", i, err)
		}
		if result.WasRunning || result.PID != 0 {
			t.Fatalf("unexpected stop result: %+v", result)
		}
	}
	if _, err := os.Stat(sup.opts.RecordPath); !os.IsNotExist(err) {
		t.Fatalf("expected record removed, err=%v", err)
	}
}
