package core

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/s2"

	"github.com/0xRadioAc7iv/go-filebacked/internal/alloc"
	"github.com/0xRadioAc7iv/go-filebacked/internal/index"
	"github.com/0xRadioAc7iv/go-filebacked/internal/lock"
	"github.com/0xRadioAc7iv/go-filebacked/internal/record"
	"github.com/0xRadioAc7iv/go-filebacked/internal/storage"
	"github.com/0xRadioAc7iv/go-filebacked/internal/utils"
)

const compactBufferSize = 64 * 1024

// openCompacted opens the finished compaction file. Tests replace it.
var openCompacted = storage.Open

// Stats describes the backing file of a collection.
type Stats struct {
	Records    int   // live records
	FileSize   int64 // logical length of the backing file
	FreeBytes  int64 // bytes in Tombstone and FreeSlot slots
	FreeRanges int   // disjoint free ranges after coalescing
}

// store owns one backing file: the log, its free-space allocator and the
// advisory lock. It implements the slot write protocol shared by every
// collection type.
type store struct {
	log      *storage.Log
	free     *alloc.Allocator // nil for append-only logs
	lockFile *os.File
	cfg      *Config
	logger   *slog.Logger
	path     string
	version  uint64
	closed   bool
}

func openStore(path string, cfg *Config, tracksFree bool) (*store, error) {
	if path == "" {
		return nil, errors.New("core: empty path")
	}

	// Checked before locking so that a failed open leaves no lock file behind.
	if (cfg.ReadOnly || !cfg.CreateIfMissing) && !utils.PathExists(path) {
		return nil, ioFailure("open", &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist})
	}

	lf, err := lock.LockFile(path, cfg.ReadOnly)
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			return nil, err
		}
		return nil, ioFailure("lock", err)
	}

	logger := cfg.Logger.With("path", path)

	if !cfg.ReadOnly {
		stale := path + CompactFileSuffix
		removed, err := utils.RemoveIfExists(stale)
		if err != nil {
			lock.UnlockFile(lf)
			return nil, ioFailure("remove stale compaction file", err)
		}
		if removed {
			logger.Warn("removed stale compaction file", "file", stale)
		}
	}

	log, err := storage.Open(path, storage.Options{
		ReadOnly:        cfg.ReadOnly,
		CreateIfMissing: cfg.CreateIfMissing,
	})
	if err != nil {
		lock.UnlockFile(lf)
		return nil, ioFailure("open", err)
	}

	s := &store{
		log:      log,
		lockFile: lf,
		cfg:      cfg,
		logger:   logger,
		path:     path,
	}
	if tracksFree {
		s.free = alloc.New(minFragmentSize)
	}
	return s, nil
}

// scan replays the backing file. Tombstone and FreeSlot slots are handed to
// the allocator; visit sees every Active slot in file order.
func (s *store) scan(visit func(storage.Slot) error) error {
	res, err := s.log.Scan(func(slot storage.Slot) error {
		if slot.Header.Status == record.StatusActive {
			return visit(slot)
		}
		if s.free == nil {
			return &record.CorruptRecordError{
				Offset: slot.Offset,
				Reason: fmt.Sprintf("%v slot in an append-only log", slot.Header.Status),
			}
		}
		s.free.Release(slot.Offset, int64(slot.Header.SlotSize))
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrCorruptRecord) || errors.Is(err, ErrIOFailure) {
			return err
		}
		return ioFailure("scan", err)
	}

	if res.Discarded > 0 {
		s.logger.Warn("discarded trailing incomplete write",
			"offset", res.End, "bytes", res.Discarded, "read_only", s.cfg.ReadOnly)
	}
	s.logger.Debug("opened", "bytes", res.End, "free_bytes", s.freeBytes())
	return nil
}

func (s *store) checkOpen() error {
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *store) checkWritable() error {
	if s.closed {
		return ErrClosed
	}
	if s.cfg.ReadOnly {
		return ErrReadOnly
	}
	return nil
}

func (s *store) nextVersion() uint64 {
	s.version++
	return s.version
}

// entryFor indexes a slot found by scan.
func (s *store) entryFor(slot storage.Slot) index.Entry {
	return index.Entry{
		Offset:      slot.Offset,
		SlotSize:    slot.Header.SlotSize,
		PayloadSize: slot.Header.PayloadSize,
		Version:     s.nextVersion(),
	}
}

func (s *store) newEntry(offset int64, r *record.Record) index.Entry {
	return index.Entry{
		Offset:      offset,
		SlotSize:    r.SlotSize,
		PayloadSize: uint32(r.FrameSize() - record.HeaderSizeBytes),
		Version:     s.nextVersion(),
	}
}

// readRecord reads the Active record e points at from log. It takes the log
// explicitly so that a caller may read without holding the lock that guards
// the store.
func readRecord(log *storage.Log, e index.Entry) (*record.Record, error) {
	data, err := log.Read(e.Offset, e.FrameSize())
	if err != nil {
		return nil, ioFailure("read", err)
	}

	r, err := record.DecodeRecordFromBytes(data)
	if err != nil {
		return nil, record.AtOffset(err, e.Offset)
	}
	if r.Status != record.StatusActive {
		return nil, &record.CorruptRecordError{
			Offset: e.Offset,
			Reason: fmt.Sprintf("indexed slot holds a %v record", r.Status),
		}
	}
	return r, nil
}

func (s *store) readValue(log *storage.Log, e index.Entry) ([]byte, error) {
	r, err := readRecord(log, e)
	if err != nil {
		return nil, err
	}
	return s.decodeValue(r.Value, e.Offset)
}

func (s *store) encodeValue(value []byte) []byte {
	if !s.cfg.Compression {
		return value
	}
	return s2.Encode(nil, value)
}

func (s *store) decodeValue(value []byte, offset int64) ([]byte, error) {
	if !s.cfg.Compression {
		return value, nil
	}
	decoded, err := s2.Decode(nil, value)
	if err != nil {
		return nil, &record.CorruptRecordError{Offset: offset, Reason: "compressed value: " + err.Error()}
	}
	return decoded, nil
}

func (s *store) setStatus(offset int64, status record.Status) error {
	if err := s.log.WriteInPlace(offset+record.StatusOffset, []byte{byte(status)}); err != nil {
		return ioFailure("write status", err)
	}
	return nil
}

// write stores a record for key and value and returns the entry of the slot
// now holding it. old is the slot the key owns, if any; it is rewritten in
// place when the new record fits and tombstoned otherwise.
//
// On error the file, the allocator and old are as they were before the call.
func (s *store) write(key, value []byte, old *index.Entry) (index.Entry, error) {
	r := record.CreateRecord(key, value)
	frameSize := r.FrameSize()
	if uint64(frameSize) > math.MaxUint32 {
		return index.Entry{}, fmt.Errorf("record of %d bytes exceeds the maximum slot size", frameSize)
	}

	if old != nil && frameSize <= int(old.SlotSize) {
		return s.overwrite(old, &r)
	}

	snapshot := s.free.Clone()
	if old != nil {
		if err := s.setStatus(old.Offset, record.StatusTombstone); err != nil {
			return index.Entry{}, err
		}
		s.free.Release(old.Offset, int64(old.SlotSize))
	}

	e, err := s.place(&r)
	if err != nil {
		s.free = snapshot
		if old != nil {
			if rerr := s.setStatus(old.Offset, record.StatusActive); rerr != nil {
				err = errors.Join(err, rerr)
			}
		}
		return index.Entry{}, err
	}
	return e, nil
}

// overwrite rewrites the slot of old with r, keeping its slot size.
func (s *store) overwrite(old *index.Entry, r *record.Record) (index.Entry, error) {
	r.SlotSize = old.SlotSize
	frame, err := record.EncodeRecordToBytes(r)
	if err != nil {
		return index.Entry{}, err
	}

	saved, err := s.log.Read(old.Offset, len(frame))
	if err != nil {
		return index.Entry{}, ioFailure("read", err)
	}
	if err := s.log.WriteInPlace(old.Offset, frame); err != nil {
		if rerr := s.log.WriteInPlace(old.Offset, saved); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return index.Entry{}, ioFailure("write in place", err)
	}
	return s.newEntry(old.Offset, r), nil
}

// place writes r into the first free range that holds it, or appends it when
// none does, and sets r.SlotSize to the slot it ends up owning.
//
// Reusing a range takes up to three writes. The first covers the whole range
// with one FreeSlot and the second splits the remainder off as its own
// FreeSlot, so the file parses after a crash between any two of them. The
// caller restores the allocator on error.
func (s *store) place(r *record.Record) (index.Entry, error) {
	size := int64(r.FrameSize())

	got, rest, ok := s.free.Allocate(size)
	if ok && got.Len+rest.Len > math.MaxUint32 {
		// One FreeSlot header cannot describe the span; leave it free.
		s.free.Release(got.Off, got.Len)
		ok = false
	}
	if !ok {
		r.SlotSize = uint32(size)
		frame, err := record.EncodeRecordToBytes(r)
		if err != nil {
			return index.Entry{}, err
		}
		offset, err := s.log.Append(frame)
		if err != nil {
			return index.Entry{}, ioFailure("append", err)
		}
		return s.newEntry(offset, r), nil
	}

	r.SlotSize = uint32(got.Len)
	frame, err := record.EncodeRecordToBytes(r)
	if err != nil {
		return index.Entry{}, err
	}

	span := got.Len + rest.Len
	saved, err := s.log.Read(got.Off, int(min(size+record.MinFrameSizeBytes, span)))
	if err != nil {
		return index.Entry{}, ioFailure("read", err)
	}

	type step struct {
		offset int64
		data   []byte
	}
	var steps []step
	if rest.Len > 0 {
		whole, err := encodeFreeSlot(span)
		if err != nil {
			return index.Entry{}, err
		}
		remainder, err := encodeFreeSlot(rest.Len)
		if err != nil {
			return index.Entry{}, err
		}
		steps = append(steps, step{got.Off, whole}, step{rest.Off, remainder})
	}
	steps = append(steps, step{got.Off, frame})

	for _, st := range steps {
		if err := s.log.WriteInPlace(st.offset, st.data); err != nil {
			if rerr := s.log.WriteInPlace(got.Off, saved); rerr != nil {
				err = errors.Join(err, rerr)
			}
			return index.Entry{}, ioFailure("write slot", err)
		}
	}
	return s.newEntry(got.Off, r), nil
}

func encodeFreeSlot(size int64) ([]byte, error) {
	free := record.CreateFreeSlot(uint32(size))
	return record.EncodeRecordToBytes(&free)
}

// release tombstones the slot of e and hands it to the allocator.
func (s *store) release(e index.Entry) error {
	if err := s.setStatus(e.Offset, record.StatusTombstone); err != nil {
		return err
	}
	s.free.Release(e.Offset, int64(e.SlotSize))
	return nil
}

// committed fsyncs after a mutation when the handle asks for it.
func (s *store) committed() error {
	if !s.cfg.SyncWrites {
		return nil
	}
	if err := s.log.Sync(); err != nil {
		return ioFailure("sync", err)
	}
	return nil
}

func (s *store) sync() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := s.log.Sync(); err != nil {
		return ioFailure("sync", err)
	}
	return nil
}

func (s *store) freeBytes() int64 {
	if s.free == nil {
		return 0
	}
	return s.free.Total()
}

func (s *store) stats(records int) Stats {
	if s.closed {
		return Stats{}
	}
	st := Stats{
		Records:   records,
		FileSize:  s.log.Len(),
		FreeBytes: s.freeBytes(),
	}
	if s.free != nil {
		st.FreeRanges = s.free.Len()
	}
	return st
}

// Close flushes the log and releases the file handle and the lock, even when
// flushing fails.
func (s *store) close() error {
	if s.closed {
		return ErrClosed
	}
	s.closed = true

	var errs []error
	if err := s.log.Close(); err != nil {
		errs = append(errs, ioFailure("close", err))
	}
	if err := lock.UnlockFile(s.lockFile); err != nil {
		errs = append(errs, ioFailure("unlock", err))
	}
	return errors.Join(errs...)
}

// rewriteItem names one live record to carry over into a compacted file. A
// non-nil Key replaces the record's key.
type rewriteItem struct {
	From index.Entry
	Key  []byte
}

// rewrite replaces the backing file with one holding only the given records,
// in order and without padding, and returns their new entries. Until the new
// file is renamed into place every failure leaves the original untouched.
func (s *store) rewrite(items []rewriteItem) ([]index.Entry, error) {
	tmpPath := s.path + CompactFileSuffix
	before := s.log.Len()

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, ioFailure("create compaction file", err)
	}
	abort := func(err error) ([]index.Entry, error) {
		f.Close()
		os.Remove(tmpPath)
		return nil, err
	}

	w := bufio.NewWriterSize(f, compactBufferSize)
	entries := make([]index.Entry, 0, len(items))
	var offset int64

	for _, it := range items {
		r, err := readRecord(s.log, it.From)
		if err != nil {
			return abort(err)
		}
		if it.Key != nil {
			r.Key = it.Key
		}
		r.SlotSize = uint32(r.FrameSize())

		frame, err := record.EncodeRecordToBytes(r)
		if err != nil {
			return abort(err)
		}
		if _, err := w.Write(frame); err != nil {
			return abort(ioFailure("write compaction file", err))
		}

		entries = append(entries, index.Entry{
			Offset:      offset,
			SlotSize:    r.SlotSize,
			PayloadSize: uint32(len(frame) - record.HeaderSizeBytes),
		})
		offset += int64(len(frame))
	}

	if err := w.Flush(); err != nil {
		return abort(ioFailure("write compaction file", err))
	}
	if err := f.Sync(); err != nil {
		return abort(ioFailure("sync compaction file", err))
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, ioFailure("close compaction file", err)
	}

	// Open the compacted file before it replaces the original, so that once
	// the rename succeeds nothing is left that can fail.
	log, err := openCompacted(tmpPath, storage.Options{})
	if err != nil {
		os.Remove(tmpPath)
		return nil, ioFailure("open compaction file", err)
	}
	if err := log.Rename(s.path); err != nil {
		log.Close()
		os.Remove(tmpPath)
		return nil, ioFailure("rename compaction file", err)
	}
	if err := utils.SyncDir(filepath.Dir(s.path)); err != nil {
		s.logger.Warn("compaction rename may not be durable", "error", err)
	}

	if err := s.log.Close(); err != nil {
		s.logger.Warn("closing pre-compaction file failed", "error", err)
	}
	s.log = log
	s.free = alloc.New(minFragmentSize)

	for i := range entries {
		entries[i].Version = s.nextVersion()
	}

	s.logger.Info("compacted", "records", len(entries), "bytes_before", before, "bytes_after", offset)
	return entries, nil
}
