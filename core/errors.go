package core

import (
	"errors"
	"fmt"

	"github.com/0xRadioAc7iv/go-filebacked/internal/lock"
	"github.com/0xRadioAc7iv/go-filebacked/internal/record"
)

var (
	// ErrCorruptRecord matches every *CorruptRecordError.
	ErrCorruptRecord = record.ErrCorruptRecord

	ErrInvalidKey      = errors.New("invalid key")
	ErrKeyNotFound     = errors.New("key not found")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrClosed          = errors.New("collection is closed")
	ErrReadOnly        = errors.New("collection is read-only")

	// ErrIOFailure wraps every error returned by the operating system. The
	// underlying error stays reachable through errors.Is and errors.As.
	ErrIOFailure = errors.New("I/O failure")

	// ErrLocked is returned by Open when another handle owns the file.
	ErrLocked = lock.ErrLocked
)

// CorruptRecordError reports a malformed record and the offset it starts at.
type CorruptRecordError = record.CorruptRecordError

func ioFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrIOFailure, op, err)
}

func validateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	return nil
}
