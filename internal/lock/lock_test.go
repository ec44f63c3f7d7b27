package lock_test

import (
	"errors"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/0xRadioAc7iv/go-filebacked/internal/lock"
)

func TestLockFile(t *testing.T) {
	t.Run("second exclusive lock is refused while the first is held", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data")

		f, err := lock.LockFile(path, false)
		if err != nil {
			t.Fatalf("could not take initial lock: %v", err)
		}

		_, err = lock.LockFile(path, false)
		if !errors.Is(err, lock.ErrLocked) {
			t.Errorf("second lock: got %v, want ErrLocked", err)
		}

		if err := lock.UnlockFile(f); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("lock can be taken again after unlock", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data")

		f, err := lock.LockFile(path, false)
		if err != nil {
			t.Fatal(err)
		}
		if err := lock.UnlockFile(f); err != nil {
			t.Fatal(err)
		}

		f, err = lock.LockFile(path, false)
		if err != nil {
			t.Fatalf("lock was supposed to be free: %v", err)
		}
		lock.UnlockFile(f)
	})

	t.Run("shared locks coexist but exclude a writer", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("shared locks are not enforced on windows")
		}
		path := filepath.Join(t.TempDir(), "data")

		r1, err := lock.LockFile(path, true)
		if err != nil {
			t.Fatal(err)
		}
		defer lock.UnlockFile(r1)

		r2, err := lock.LockFile(path, true)
		if err != nil {
			t.Fatalf("second shared lock refused: %v", err)
		}
		defer lock.UnlockFile(r2)

		if _, err := lock.LockFile(path, false); !errors.Is(err, lock.ErrLocked) {
			t.Errorf("exclusive lock next to readers: got %v, want ErrLocked", err)
		}
	})
}
