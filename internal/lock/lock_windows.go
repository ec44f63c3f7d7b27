//go:build windows

package lock

import (
	"fmt"
	"os"
)

// LockFile attempts to acquire an exclusive lock guarding the backing file at
// path.
//
// On Windows, this is implemented by atomically creating a file named
// "<path>.lock". If the file already exists, the backing file is assumed to be
// in use by another handle. Shared (read-only) locks are not enforced and
// return a nil handle.
//
// The returned file handle must be kept open for the duration of the lock.
func LockFile(path string, shared bool) (*os.File, error) {
	if shared {
		return nil, nil
	}

	lockFilePath := path + Suffix

	f, err := os.OpenFile(lockFilePath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}

	return f, nil
}

// UnlockFile releases a lock acquired via LockFile.
//
// On Windows, this removes the lock file from disk. UnlockFile should be
// called exactly once for each successful LockFile call.
func UnlockFile(f *os.File) error {
	if f == nil {
		return nil
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		return err
	}
	return os.Remove(name)
}
