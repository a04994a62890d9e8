// Package lock guards the data directory against concurrent scraper runs.
package lock

import (
	"fmt"
	"os"
	"syscall"
)

// RunLock is an flock-based exclusive lock. The scheduler owns the state
// file exclusively, so two runs over the same data directory must never
// overlap; the driver takes this lock before loading state.
type RunLock struct {
	path string
	file *os.File
}

func New(path string) *RunLock {
	return &RunLock{path: path}
}

// TryAcquire takes the lock without blocking and records the holder PID
// in the lock file for diagnostics.
func (l *RunLock) TryAcquire() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		return fmt.Errorf("acquire run lock (another run may be active): %w", err)
	}

	if err := f.Truncate(0); err != nil {
		l.abandon(f)
		return fmt.Errorf("truncate lock file: %w", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		l.abandon(f)
		return fmt.Errorf("seek lock file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		l.abandon(f)
		return fmt.Errorf("write PID to lock file: %w", err)
	}
	if err := f.Sync(); err != nil {
		l.abandon(f)
		return fmt.Errorf("sync lock file: %w", err)
	}

	l.file = f
	return nil
}

// Release drops the lock and removes the lock file. Safe to call when
// the lock was never acquired.
func (l *RunLock) Release() error {
	if l.file == nil {
		return nil
	}

	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		l.file.Close()
		return fmt.Errorf("release run lock: %w", err)
	}
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close lock file: %w", err)
	}

	os.Remove(l.path)
	l.file = nil
	return nil
}

func (l *RunLock) abandon(f *os.File) {
	syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	f.Close()
}
