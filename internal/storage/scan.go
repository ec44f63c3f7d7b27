package storage

import (
	"bufio"
	"io"
	"iter"

	"github.com/0xRadioAc7iv/go-filebacked/internal/record"
)

const scanBufferSize = 64 * 1024

// Slot is one record visited by Scan.
//
// Frame holds the header and payload for Active records only; the interior
// of Tombstone and FreeSlot slots is dead space and is skipped unread.
type Slot struct {
	Offset int64
	Header record.Header
	Frame  []byte
}

// ScanResult reports where the scan stopped.
type ScanResult struct {
	End       int64 // end of the last complete slot
	Discarded int64 // trailing bytes dropped as an incomplete write
}

// slotReader walks slots sequentially through a buffered section of the file.
type slotReader struct {
	reader *bufio.Reader
	offset int64
	end    int64
}

func (l *Log) newSlotReader(end int64) *slotReader {
	return &slotReader{
		reader: bufio.NewReaderSize(io.NewSectionReader(l.file, 0, end), scanBufferSize),
		end:    end,
	}
}

// next returns the slot at the current offset. ok is false when the
// remaining bytes do not hold a complete slot; r.offset is then the end of
// the last complete one.
func (r *slotReader) next() (slot Slot, ok bool, err error) {
	if r.end-r.offset < record.HeaderSizeBytes {
		return Slot{}, false, nil
	}

	header := make([]byte, record.HeaderSizeBytes)
	if _, err := io.ReadFull(r.reader, header); err != nil {
		return Slot{}, false, err
	}

	h, err := record.DecodeHeader(header)
	if err != nil {
		return Slot{}, false, record.AtOffset(err, r.offset)
	}

	if r.offset+int64(h.SlotSize) > r.end {
		return Slot{}, false, nil
	}

	slot = Slot{Offset: r.offset, Header: h}
	skip := int64(h.SlotSize) - record.HeaderSizeBytes

	if h.Status == record.StatusActive {
		frame := make([]byte, h.FrameSize())
		copy(frame, header)
		if _, err := io.ReadFull(r.reader, frame[record.HeaderSizeBytes:]); err != nil {
			return Slot{}, false, err
		}
		slot.Frame = frame
		skip -= int64(h.PayloadSize)
	}

	if _, err := r.reader.Discard(int(skip)); err != nil {
		return Slot{}, false, err
	}

	r.offset += int64(h.SlotSize)
	return slot, true, nil
}

// Scan visits every slot from offset 0 in file order.
//
// A slot whose header or declared slot length runs past the end of the file
// is a trailing incomplete write. The log is truncated to the end of the last
// complete slot (or, when read-only, its logical length is clamped there) and
// scanning stops. Any other malformed header is returned as a
// *record.CorruptRecordError.
func (l *Log) Scan(visit func(s Slot) error) (ScanResult, error) {
	fileSize := l.size.Load()
	r := l.newSlotReader(fileSize)

	for {
		slot, ok, err := r.next()
		if err != nil {
			return ScanResult{}, err
		}
		if !ok {
			break
		}
		if err := visit(slot); err != nil {
			return ScanResult{}, err
		}
	}

	result := ScanResult{End: r.offset, Discarded: fileSize - r.offset}
	if result.Discarded == 0 {
		return result, nil
	}

	if l.readOnly {
		l.size.Store(r.offset)
		return result, nil
	}
	if err := l.Truncate(r.offset); err != nil {
		return ScanResult{}, err
	}
	return result, nil
}

// Slots iterates the slots that lie entirely before end, which must be a slot
// boundary such as a previous Len. Unlike Scan it never modifies the log; a
// slot that does not fit before end is reported as corrupt.
func (l *Log) Slots(end int64) iter.Seq2[Slot, error] {
	return func(yield func(Slot, error) bool) {
		r := l.newSlotReader(end)
		for {
			slot, ok, err := r.next()
			if err != nil {
				yield(Slot{}, err)
				return
			}
			if !ok {
				if r.offset != end {
					yield(Slot{}, &record.CorruptRecordError{Offset: r.offset, Reason: "slot extends past end of log"})
				}
				return
			}
			if !yield(slot, nil) {
				return
			}
		}
	}
}
