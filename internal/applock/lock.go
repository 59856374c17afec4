// Package applock enforces one running copy of an application per host
// through an exclusive advisory lock on a well-known file.
package applock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"
)

// Lock wraps one exclusive, non-blocking advisory lock for an app id.
// The OS releases the lock on process death; file removal is cosmetic.
type Lock struct {
	path  string
	flock *flock.Flock
	held  bool
}

// New builds a lock bound to {dir}/{appID}.lock. Nothing is touched on disk
// until Acquire.
func New(dir, appID string) *Lock {
	path := filepath.Join(dir, appID+".lock")
	return &Lock{
		path:  path,
		flock: flock.New(path),
	}
}

// Acquire probes the lock exactly once and never blocks. It returns
// (true, nil) when this process now owns the lock, (false, nil) when another
// process holds it, and an error only for unexpected OS failures.
// On success the caller's pid is written to the file for diagnostics.
func (l *Lock) Acquire() (bool, error) {
	if l.held {
		return true, nil
	}
	locked, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("applock: try lock %s: %w", l.path, err)
	}
	if !locked {
		return false, nil
	}
	l.held = true
	l.writePID()
	return true, nil
}

// Release unlocks, then best-effort removes the lock file. Removal failure is
// logged and swallowed; mutual exclusion rests on the OS lock alone.
// Safe to call repeatedly.
func (l *Lock) Release() error {
	if !l.held {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("applock: unlock %s: %w", l.path, err)
	}
	l.held = false
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		log.Warn().Str("path", l.path).Err(err).Msg("applock.release lock file removal failed")
	}
	return nil
}

// Held reports whether this process currently owns the lock.
func (l *Lock) Held() bool {
	return l.held
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// writePID records the owning pid in the lock file. Best effort only: the
// lock is already held, the content plays no behavioral role.
func (l *Lock) writePID() {
	fh, err := os.OpenFile(l.path, os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		log.Warn().Str("path", l.path).Err(err).Msg("applock.acquire pid write skipped")
		return
	}
	defer fh.Close()
	if _, err := fh.WriteString(strconv.Itoa(os.Getpid()) + "\n"); err != nil {
		log.Warn().Str("path", l.path).Err(err).Msg("applock.acquire pid write failed")
	}
}
