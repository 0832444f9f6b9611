package runstore

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func TestAcquireBatchLock_BlocksConcurrentAcquire(t *testing.T) {
	stateDir := t.TempDir()

	lock, err := AcquireBatchLock(stateDir, "b1")
	if err != nil {
		t.Fatalf("acquire first lock: %v", err)
	}
	defer func() {
		_ = lock.Release()
	}()

	_, err = AcquireBatchLock(stateDir, "b2")
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("release lock: %v", err)
	}

	lock2, err := AcquireBatchLock(stateDir, "b3")
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	var owner LockOwner
	if err := ReadJSON(filepath.Join(stateDir, batchLockDirName, batchLockOwnerFile), &owner); err != nil {
		t.Fatalf("read owner: %v", err)
	}
	if owner.BatchID != "b3" || owner.PID != os.Getpid() {
		t.Fatalf("unexpected owner: %+v", owner)
	}
	if err := lock2.Release(); err != nil {
		t.Fatalf("release second lock: %v", err)
	}
}

func TestAcquireBatchLock_TakesOverDeadOwner(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("stale detection is unix only")
	}
	stateDir := t.TempDir()
	cmd := exec.Command("true")
	if err := cmd.Run(); err != nil {
		t.Skipf("cannot run helper process: %v", err)
	}
	writeOwner(t, stateDir, LockOwner{
		PID:       cmd.ProcessState.Pid(),
		BatchID:   "old",
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Hostname:  hostnameOrUnknown(),
	})

	lock, err := AcquireBatchLock(stateDir, "new")
	if err != nil {
		t.Fatalf("expected stale lock takeover, got %v", err)
	}
	_ = lock.Release()
}

func TestAcquireBatchLock_RespectsLiveForeignOwner(t *testing.T) {
	stateDir := t.TempDir()
	writeOwner(t, stateDir, LockOwner{
		PID:       os.Getppid(),
		BatchID:   "other",
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Hostname:  hostnameOrUnknown(),
	})

	if _, err := AcquireBatchLock(stateDir, "mine"); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestAcquireBatchLock_UnreadableOwnerStaysLocked(t *testing.T) {
	stateDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(stateDir, batchLockDirName), 0o755); err != nil {
		t.Fatal(err)
	}

	if _, err := AcquireBatchLock(stateDir, "mine"); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func writeOwner(t *testing.T, stateDir string, owner LockOwner) {
	t.Helper()
	if err := WriteJSON(filepath.Join(stateDir, batchLockDirName, batchLockOwnerFile), owner); err != nil {
		t.Fatal(err)
	}
}
