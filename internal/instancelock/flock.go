// Package instancelock provides an advisory, host-local exclusive lock so
// that only one Jido instance of a given name runs against a given state
// directory at a time. It is not a distributed/clustering primitive — the
// lock is a plain flock(2) on a local file.
package instancelock

import (
	"fmt"
	"os"
	"syscall"
)

// Acquire attempts to acquire an exclusive file lock.
// Returns the lock file handle (keep open for the instance's lifetime) or an
// error if another instance already holds the lock.
func Acquire(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("instancelock: open %s: %w", path, err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("another jido instance is already running (lock: %s)", path)
	}

	f.Truncate(0)
	f.Seek(0, 0)
	fmt.Fprintf(f, "%d\n", os.Getpid())

	return f, nil
}

// Release releases the lock and removes the lock file.
func Release(f *os.File) {
	if f == nil {
		return
	}
	syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	name := f.Name()
	f.Close()
	os.Remove(name)
}
