package migrate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 100 * time.Millisecond

// FileLock is an advisory lock file shared by every process that migrates the same
// database file.
type FileLock struct {
	path    string
	timeout time.Duration
	lock    *flock.Flock
}

// NewFileLock returns a lock on path. Lock waits up to timeout for another holder to
// release it; a zero timeout makes a single attempt.
func NewFileLock(path string, timeout time.Duration) *FileLock {
	return &FileLock{path: path, timeout: timeout, lock: flock.New(path)}
}

// LockPathFor derives the lock file path for a SQLite database path or DSN.
func LockPathFor(dbPath string) string {
	base, _, _ := strings.Cut(dbPath, "?")
	base = strings.TrimPrefix(base, "file:")
	return base + ".migrate.lock"
}

// Path returns the lock file path.
func (l *FileLock) Path() string {
	return l.path
}

// Lock acquires the lock or returns an error wrapping ErrLockTimeout once the timeout
// elapses. Cancelling ctx aborts the wait with ctx's error.
func (l *FileLock) Lock(ctx context.Context) error {
	if l.timeout <= 0 {
		ok, err := l.lock.TryLock()
		if err != nil {
			return fmt.Errorf("acquire migration lock %s: %w", l.path, err)
		}
		if !ok {
			return fmt.Errorf("%w: %s is held by another process", ErrLockTimeout, l.path)
		}
		return nil
	}

	lockCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	ok, err := l.lock.TryLockContext(lockCtx, lockRetryDelay)
	if ok {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("acquire migration lock %s: %w", l.path, ctx.Err())
	}
	if err == nil || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s still held after %s", ErrLockTimeout, l.path, l.timeout)
	}
	return fmt.Errorf("acquire migration lock %s: %w", l.path, err)
}

// Unlock releases the lock. The lock file itself is left in place.
func (l *FileLock) Unlock() error {
	return l.lock.Unlock()
}
