//go:build unix

package lock

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// LockFile attempts to acquire a non-blocking advisory lock guarding the
// backing file at path.
//
// On Unix systems, this uses flock(2) on a side file named "<path>.lock". A
// read-write handle takes an exclusive lock; a read-only handle takes a
// shared one, so any number of readers may coexist but never alongside a
// writer. If the lock cannot be acquired, the file is assumed to be in use by
// another handle.
//
// The returned file handle must remain open for the duration of the lock.
func LockFile(path string, shared bool) (*os.File, error) {
	lockFilePath := path + Suffix

	f, err := os.OpenFile(lockFilePath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("unable to open lock file: %w", err)
	}

	how := unix.LOCK_EX
	if shared {
		how = unix.LOCK_SH
	}

	err = unix.Flock(int(f.Fd()), how|unix.LOCK_NB)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}

	return f, nil
}

// UnlockFile releases a lock acquired via LockFile.
//
// On Unix systems, this releases the advisory flock and closes the file. The
// lock file itself is left in place; removing it would race with another
// process that already opened it.
func UnlockFile(f *os.File) error {
	if f == nil {
		return nil
	}
	unlockErr := unix.Flock(int(f.Fd()), unix.LOCK_UN)
	closeErr := f.Close()
	if unlockErr != nil {
		return unlockErr
	}
	return closeErr
}
