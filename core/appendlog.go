package core

import (
	"errors"
	"iter"

	"github.com/0xRadioAc7iv/go-filebacked/internal/record"
	"github.com/0xRadioAc7iv/go-filebacked/internal/storage"
)

// AppendLog is a write-once sequence of values. Records are only ever
// appended, so it keeps no index and no free space; opening it counts the
// records once.
type AppendLog struct {
	s     *store
	count int
	err   error
}

func OpenAppendLog(path string, opts ...Option) (*AppendLog, error) {
	s, err := openStore(path, newConfig(opts), false)
	if err != nil {
		return nil, err
	}

	l := &AppendLog{s: s}
	err = s.scan(func(storage.Slot) error {
		l.count++
		return nil
	})
	if err != nil {
		s.close()
		return nil, err
	}
	return l, nil
}

func (l *AppendLog) Path() string { return l.s.path }

// Append writes value at the end of the log and returns its ordinal.
func (l *AppendLog) Append(value []byte) (int, error) {
	if err := l.s.checkWritable(); err != nil {
		return 0, err
	}

	r := record.CreateRecord(nil, l.s.encodeValue(value))
	frame, err := record.EncodeRecordToBytes(&r)
	if err != nil {
		return 0, err
	}
	if _, err := l.s.log.Append(frame); err != nil {
		return 0, ioFailure("append", err)
	}

	ordinal := l.count
	l.count++
	return ordinal, l.s.committed()
}

// Len is the number of values appended so far, or zero once the log is
// closed.
func (l *AppendLog) Len() int {
	if l.s.closed {
		return 0
	}
	return l.count
}

// All ranges over the values in append order, up to the end of the log at
// the time of the call. It may be called any number of times. It stops at the
// first read error, which Err then reports.
func (l *AppendLog) All() iter.Seq2[int, []byte] {
	return func(yield func(int, []byte) bool) {
		l.err = l.s.checkOpen()
		if l.err != nil {
			return
		}

		log := l.s.log
		i := 0
		for slot, err := range log.Slots(log.Len()) {
			if err != nil {
				if !errors.Is(err, ErrCorruptRecord) {
					err = ioFailure("read", err)
				}
				l.err = err
				return
			}

			r, err := record.DecodeRecordFromBytes(slot.Frame)
			if err != nil {
				l.err = record.AtOffset(err, slot.Offset)
				return
			}
			value, err := l.s.decodeValue(r.Value, slot.Offset)
			if err != nil {
				l.err = err
				return
			}

			if !yield(i, value) {
				return
			}
			i++
		}
	}
}

// Err returns the error that ended the most recent All, if any.
func (l *AppendLog) Err() error { return l.err }

func (l *AppendLog) Stats() Stats { return l.s.stats(l.Len()) }
func (l *AppendLog) Sync() error  { return l.s.sync() }
func (l *AppendLog) Close() error { return l.s.close() }
