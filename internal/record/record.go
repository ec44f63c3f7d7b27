package record

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Status tells what a slot currently holds.
type Status uint8

const (
	StatusActive    Status = 1 // live key/value
	StatusTombstone Status = 2 // logically deleted, slot reclaimable
	StatusFree      Status = 3 // slot handed back to the allocator
)

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusTombstone || s == StatusFree
}

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusTombstone:
		return "tombstone"
	case StatusFree:
		return "free"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// PayloadSize (4) + SlotSize (4) + Status (1)
const HeaderSizeBytes = 9

// Offset of the status byte inside a frame.
const StatusOffset = 8

// Header + KeySize (4) + ValueSize (4), the frame of an empty record.
// No slot is ever smaller than this.
const MinFrameSizeBytes = HeaderSizeBytes + 8

// Header is the fixed-width prefix of every slot.
type Header struct {
	PayloadSize uint32 // KeySize field + key + ValueSize field + value
	SlotSize    uint32 // bytes owned by the slot, >= HeaderSizeBytes + PayloadSize
	Status      Status
}

// FrameSize is the number of meaningful bytes at the start of the slot.
func (h Header) FrameSize() int {
	return HeaderSizeBytes + int(h.PayloadSize)
}

// Record is the decoded form of a slot.
type Record struct {
	SlotSize uint32
	Status   Status
	Key      []byte
	Value    []byte // empty for set members, tombstones and free slots
}

// FrameSize returns the encoded size of a record with the given key and
// value lengths, not counting slot padding.
func FrameSize(keyLen, valueLen int) int {
	return MinFrameSizeBytes + keyLen + valueLen
}

// FrameSize returns the encoded size of r, not counting slot padding.
func (r *Record) FrameSize() int {
	return FrameSize(len(r.Key), len(r.Value))
}

// CreateRecord builds an Active record whose slot is exactly its frame.
func CreateRecord(key, value []byte) Record {
	return Record{
		SlotSize: uint32(FrameSize(len(key), len(value))),
		Status:   StatusActive,
		Key:      key,
		Value:    value,
	}
}

// CreateFreeSlot builds an empty FreeSlot record covering slotSize bytes.
func CreateFreeSlot(slotSize uint32) Record {
	return Record{
		SlotSize: slotSize,
		Status:   StatusFree,
	}
}

// EncodeRecordToBytes encodes the frame of record. Padding between the frame
// and SlotSize is not emitted; it is dead space owned by the slot.
func EncodeRecordToBytes(record *Record) ([]byte, error) {
	if !record.Status.Valid() {
		return nil, fmt.Errorf("cannot encode record with %v", record.Status)
	}

	frameSize := record.FrameSize()
	if frameSize > math.MaxUint32 {
		return nil, fmt.Errorf("record of %d bytes exceeds the maximum slot size", frameSize)
	}
	if int(record.SlotSize) < frameSize {
		return nil, fmt.Errorf("slot of %d bytes cannot hold a %d byte record", record.SlotSize, frameSize)
	}

	buf := make([]byte, frameSize)
	binary.LittleEndian.PutUint32(buf[0:], uint32(frameSize-HeaderSizeBytes))
	binary.LittleEndian.PutUint32(buf[4:], record.SlotSize)
	buf[StatusOffset] = byte(record.Status)

	n := HeaderSizeBytes
	binary.LittleEndian.PutUint32(buf[n:], uint32(len(record.Key)))
	n += 4
	n += copy(buf[n:], record.Key)
	binary.LittleEndian.PutUint32(buf[n:], uint32(len(record.Value)))
	n += 4
	copy(buf[n:], record.Value)

	return buf, nil
}

// DecodeHeader parses and validates the header at the start of data.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < HeaderSizeBytes {
		return Header{}, corrupt("header truncated to %d bytes", len(data))
	}

	h := Header{
		PayloadSize: binary.LittleEndian.Uint32(data[0:]),
		SlotSize:    binary.LittleEndian.Uint32(data[4:]),
		Status:      Status(data[StatusOffset]),
	}

	if !h.Status.Valid() {
		return Header{}, corrupt("unknown %v", h.Status)
	}
	if h.PayloadSize < 8 {
		return Header{}, corrupt("payload size %d is below the minimum", h.PayloadSize)
	}
	if uint64(h.SlotSize) < uint64(h.FrameSize()) {
		return Header{}, corrupt("slot size %d smaller than frame size %d", h.SlotSize, h.FrameSize())
	}

	return h, nil
}

// DecodeRecordFromBytes decodes a full frame. data may extend past the frame
// (slot padding); it may not be shorter than the declared payload.
func DecodeRecordFromBytes(data []byte) (*Record, error) {
	h, err := DecodeHeader(data)
	if err != nil {
		return nil, err
	}
	if len(data) < h.FrameSize() {
		return nil, corrupt("declared payload of %d bytes but only %d present", h.PayloadSize, len(data)-HeaderSizeBytes)
	}

	var keySize uint32
	var valueSize uint32

	buf := bytes.NewReader(data[HeaderSizeBytes:h.FrameSize()])

	if err := binary.Read(buf, binary.LittleEndian, &keySize); err != nil {
		return nil, corrupt("key size: %v", err)
	}
	if uint64(keySize)+8 > uint64(h.PayloadSize) {
		return nil, corrupt("key size %d overruns payload of %d bytes", keySize, h.PayloadSize)
	}
	key := make([]byte, keySize)
	if _, err := io.ReadFull(buf, key); err != nil {
		return nil, corrupt("key: %v", err)
	}

	if err := binary.Read(buf, binary.LittleEndian, &valueSize); err != nil {
		return nil, corrupt("value size: %v", err)
	}
	if uint64(keySize)+uint64(valueSize)+8 != uint64(h.PayloadSize) {
		return nil, corrupt("payload size %d does not match key size %d and value size %d", h.PayloadSize, keySize, valueSize)
	}
	value := make([]byte, valueSize)
	if _, err := io.ReadFull(buf, value); err != nil {
		return nil, corrupt("value: %v", err)
	}

	return &Record{
		SlotSize: h.SlotSize,
		Status:   h.Status,
		Key:      key,
		Value:    value,
	}, nil
}

// ErrCorruptRecord matches every *CorruptRecordError.
var ErrCorruptRecord = errors.New("corrupt record")

// CorruptRecordError describes a malformed frame. Offset is -1 until the
// caller that knows the file position fills it in.
type CorruptRecordError struct {
	Offset int64
	Reason string
}

func (e *CorruptRecordError) Error() string {
	if e.Offset < 0 {
		return "corrupt record: " + e.Reason
	}
	return fmt.Sprintf("corrupt record at offset %d: %s", e.Offset, e.Reason)
}

func (e *CorruptRecordError) Is(target error) bool {
	return target == ErrCorruptRecord
}

// AtOffset stamps the file offset onto a CorruptRecordError. Other errors
// pass through unchanged.
func AtOffset(err error, offset int64) error {
	var cre *CorruptRecordError
	if errors.As(err, &cre) && cre.Offset < 0 {
		return &CorruptRecordError{Offset: offset, Reason: cre.Reason}
	}
	return err
}

func corrupt(format string, args ...any) error {
	return &CorruptRecordError{Offset: -1, Reason: fmt.Sprintf(format, args...)}
}
