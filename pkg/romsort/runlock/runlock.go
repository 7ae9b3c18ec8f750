// Package runlock keeps two organize runs from working on the same root.
//
// Each root maps to a lock file under a shared directory. The lock is an
// advisory flock held for the life of the run; the file also records the
// holder's PID so a refused caller can say who is in the way.
package runlock

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
	"github.com/gofrs/flock"
	"github.com/jamesainslie/romsort/pkg/romsort/logging"
)

// ErrLocked is returned when another process already holds the root's lock.
var ErrLocked = errors.New("root is locked by another romsort run")

// LockedError carries the PID recorded by the current holder, if known.
type LockedError struct {
	Root string
	PID  int
}

func (e *LockedError) Error() string {
	if e.PID > 0 {
		return fmt.Sprintf("%s is being organized by pid %d", e.Root, e.PID)
	}
	return fmt.Sprintf("%s is being organized by another process", e.Root)
}

func (e *LockedError) Unwrap() error { return ErrLocked }

// Lock is a held run lock.
type Lock struct {
	root string
	path string
	fl   *flock.Flock
}

// Path returns the lock file that maps to root inside dir.
func Path(dir, root string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(root)))
	return filepath.Join(dir, hex.EncodeToString(sum[:8])+".lock")
}

// DefaultDir returns $XDG_STATE_HOME/romsort/locks.
func DefaultDir() string {
	return filepath.Join(xdg.StateHome, "romsort", "locks")
}

// Acquire takes the lock for root in DefaultDir without blocking.
func Acquire(root string) (*Lock, error) {
	return AcquireIn(DefaultDir(), root)
}

// AcquireIn takes the lock for root in dir without blocking.
func AcquireIn(dir, root string) (*Lock, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	path := Path(dir, abs)
	fl := flock.New(path)

	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, &LockedError{Root: abs, PID: readPID(path)}
	}

	if err := writePID(path); err != nil {
		logging.Get("runlock").Warn("failed to record pid", "path", path, "error", err)
	}

	logging.Get("runlock").Debug("lock acquired", "root", abs, "path", path)
	return &Lock{root: abs, path: path, fl: fl}, nil
}

// Root returns the absolute root the lock protects.
func (l *Lock) Root() string { return l.root }

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Release drops the lock. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	if !l.fl.Locked() {
		return nil
	}
	// Truncate before unlocking so the next holder never reads a stale pid.
	_ = os.Truncate(l.path, 0)
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	logging.Get("runlock").Debug("lock released", "root", l.root)
	return nil
}

func writePID(path string) error {
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPID(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}
