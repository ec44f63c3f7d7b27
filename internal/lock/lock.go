// Package lock enforces one writer per backing file with an OS-level
// advisory lock.
package lock

import "errors"

// Suffix is appended to the backing file path to name its lock file.
const Suffix = ".lock"

// ErrLocked is returned when another handle holds a conflicting lock.
var ErrLocked = errors.New("file already in use by another handle")
