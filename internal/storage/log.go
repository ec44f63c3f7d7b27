// Package storage implements the backing file of a collection: a sequence of
// record slots addressed by byte offset.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/0xRadioAc7iv/go-filebacked/internal/utils"
)

// ErrReadOnly is returned by mutating calls on a log opened read-only.
var ErrReadOnly = errors.New("log is read-only")

type Options struct {
	ReadOnly        bool
	CreateIfMissing bool
}

// Log is a positioned-I/O view over one backing file. It never buffers
// writes: every WriteInPlace and Append reaches the OS before returning, in
// the order the caller issued them.
//
// The logical length may be shorter than the file on disk for a read-only
// log whose trailing incomplete write could not be truncated.
//
// Read may be called concurrently with one writer; the length is kept in an
// atomic so that a reader never sees a torn value.
type Log struct {
	file     *os.File
	path     string
	size     atomic.Int64
	readOnly bool
}

func Open(path string, opts Options) (*Log, error) {
	flags := os.O_RDWR
	if opts.ReadOnly {
		flags = os.O_RDONLY
	} else if opts.CreateIfMissing {
		flags |= os.O_CREATE
	}

	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s is a directory", path)
	}

	l := &Log{
		file:     f,
		path:     path,
		readOnly: opts.ReadOnly,
	}
	l.size.Store(info.Size())
	return l, nil
}

func (l *Log) Path() string   { return l.path }
func (l *Log) Len() int64     { return l.size.Load() }
func (l *Log) ReadOnly() bool { return l.readOnly }

// Read returns n bytes starting at offset. The range must lie inside the
// logical length.
func (l *Log) Read(offset int64, n int) ([]byte, error) {
	size := l.size.Load()
	if offset < 0 || n < 0 || offset+int64(n) > size {
		return nil, fmt.Errorf("read of %d bytes at %d outside log of %d bytes", n, offset, size)
	}

	buf := make([]byte, n)
	if _, err := l.file.ReadAt(buf, offset); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf, nil
}

// WriteInPlace overwrites bytes inside an existing slot. The caller
// guarantees that data fits in the slot starting at offset.
func (l *Log) WriteInPlace(offset int64, data []byte) error {
	if l.readOnly {
		return ErrReadOnly
	}
	size := l.size.Load()
	if offset < 0 || offset+int64(len(data)) > size {
		return fmt.Errorf("write of %d bytes at %d outside log of %d bytes", len(data), offset, size)
	}

	_, err := l.file.WriteAt(data, offset)
	return err
}

// Append writes data at the logical end and returns its offset. A failed
// append is rolled back so that no partial slot is left behind.
func (l *Log) Append(data []byte) (int64, error) {
	if l.readOnly {
		return 0, ErrReadOnly
	}

	offset := l.size.Load()
	n, err := l.file.WriteAt(data, offset)
	if err != nil {
		if n > 0 {
			if terr := l.file.Truncate(offset); terr != nil {
				return 0, errors.Join(err, terr)
			}
		}
		return 0, err
	}

	l.size.Add(int64(n))
	return offset, nil
}

// Truncate cuts the log at offset and makes the new length durable.
func (l *Log) Truncate(offset int64) error {
	if l.readOnly {
		return ErrReadOnly
	}
	size := l.size.Load()
	if offset < 0 || offset > size {
		return fmt.Errorf("cannot truncate log of %d bytes to %d", size, offset)
	}

	if err := utils.TruncateAt(l.file, offset); err != nil {
		return err
	}
	l.size.Store(offset)
	return nil
}

// Rename moves the backing file to path. The open handle keeps referring to
// the same file.
func (l *Log) Rename(path string) error {
	if l.readOnly {
		return ErrReadOnly
	}
	if err := os.Rename(l.path, path); err != nil {
		return err
	}
	l.path = path
	return nil
}

func (l *Log) Sync() error {
	if l.readOnly {
		return nil
	}
	return l.file.Sync()
}

// Close flushes and releases the file handle. The handle is released even
// when the flush fails.
func (l *Log) Close() error {
	var syncErr error
	if !l.readOnly {
		syncErr = l.file.Sync()
	}
	closeErr := l.file.Close()
	return errors.Join(syncErr, closeErr)
}
