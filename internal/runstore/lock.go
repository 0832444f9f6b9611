package runstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"
)

const (
	batchLockDirName   = "batch.lock"
	batchLockOwnerFile = "owner.json"
)

var ErrLocked = errors.New("another batch is running")

type BatchLock struct {
	lockDir string
}

// LockOwner is written inside the lock directory so a blocked caller can
// say who holds it.
type LockOwner struct {
	PID       int    `json:"pid"`
	BatchID   string `json:"batch_id,omitempty"`
	CreatedAt string `json:"created_at"`
	Hostname  string `json:"hostname,omitempty"`
}

// AcquireBatchLock creates the lock directory under stateDir. A lock left
// behind by a dead process on this host is taken over.
func AcquireBatchLock(stateDir, batchID string) (BatchLock, error) {
	target := strings.TrimSpace(stateDir)
	if target == "" {
		return BatchLock{}, fmt.Errorf("state directory is required")
	}
	if err := Mkdir(target); err != nil {
		return BatchLock{}, err
	}

	lockDir := filepath.Join(target, batchLockDirName)
	ownerPath := filepath.Join(lockDir, batchLockOwnerFile)
	if err := os.Mkdir(lockDir, 0o755); err != nil {
		if !os.IsExist(err) {
			return BatchLock{}, fmt.Errorf("acquire batch lock in %s: %w", target, err)
		}
		var owner LockOwner
		readErr := ReadJSON(ownerPath, &owner)
		if readErr == nil && !ownerIsStale(owner) {
			return BatchLock{}, fmt.Errorf(
				"%w: %s (pid=%d batch=%s created_at=%s host=%s)",
				ErrLocked, target, owner.PID, owner.BatchID, owner.CreatedAt, owner.Hostname,
			)
		}
		if readErr != nil {
			return BatchLock{}, fmt.Errorf("%w: %s", ErrLocked, target)
		}
		// stale: the previous owner died without releasing
	}

	owner := LockOwner{
		PID:       os.Getpid(),
		BatchID:   batchID,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Hostname:  hostnameOrUnknown(),
	}
	if err := WriteJSON(ownerPath, owner); err != nil {
		_ = os.RemoveAll(lockDir)
		return BatchLock{}, fmt.Errorf("write batch lock owner in %s: %w", target, err)
	}
	return BatchLock{lockDir: lockDir}, nil
}

func (l BatchLock) Release() error {
	if strings.TrimSpace(l.lockDir) == "" {
		return nil
	}
	if err := os.RemoveAll(l.lockDir); err != nil {
		return fmt.Errorf("release batch lock %s: %w", l.lockDir, err)
	}
	return nil
}

func ownerIsStale(owner LockOwner) bool {
	if owner.PID <= 0 || owner.Hostname != hostnameOrUnknown() || runtime.GOOS == "windows" {
		return false
	}
	if owner.PID == os.Getpid() {
		return false
	}
	proc, err := os.FindProcess(owner.PID)
	if err != nil {
		return true
	}
	return errors.Is(proc.Signal(syscall.Signal(0)), os.ErrProcessDone)
}

func hostnameOrUnknown() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "unknown"
	}
	return host
}
