// Package filelock serialises writers of the same output file across
// processes and replaces files atomically.
package filelock

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// retryDelay is the polling interval while waiting for a held lock.
const retryDelay = 50 * time.Millisecond

// FileLock is an advisory lock backed by a sidecar lock file.
type FileLock struct {
	flock *flock.Flock
	path  string
}

// New returns a lock on path. The lock file is created on first use.
func New(path string) *FileLock {
	return &FileLock{flock: flock.New(path), path: path}
}

// For returns the sidecar lock guarding target ("<target>.lock").
func For(target string) *FileLock {
	return New(target + ".lock")
}

// Path returns the lock file path.
func (fl *FileLock) Path() string {
	return fl.path
}

// Lock blocks until the lock is held or ctx is done.
func (fl *FileLock) Lock(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(fl.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	locked, err := fl.flock.TryLockContext(ctx, retryDelay)
	if err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", fl.path, err)
	}
	if !locked {
		return fmt.Errorf("failed to acquire lock on %s", fl.path)
	}
	return nil
}

// TryLock acquires the lock without waiting. It reports false when another
// holder has it.
func (fl *FileLock) TryLock() (bool, error) {
	acquired, err := fl.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to try lock on %s: %w", fl.path, err)
	}
	return acquired, nil
}

// Unlock releases the lock.
func (fl *FileLock) Unlock() error {
	if err := fl.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock on %s: %w", fl.path, err)
	}
	return nil
}

// WriteAtomic streams content produced by write into a temp file next to
// path and renames it into place. Readers see either the old or the new file,
// never a partial one.
func WriteAtomic(path string, write func(w io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	buf := bufio.NewWriter(tmp)
	if err = write(buf); err != nil {
		return err
	}
	if err = buf.Flush(); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err = os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", path, err)
	}
	return nil
}

// LockAndWrite holds the sidecar lock of path while replacing it atomically.
func LockAndWrite(ctx context.Context, path string, write func(w io.Writer) error) error {
	lock := For(path)
	if err := lock.Lock(ctx); err != nil {
		return err
	}
	defer lock.Unlock()

	return WriteAtomic(path, write)
}
