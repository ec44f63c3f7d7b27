package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Command names understood by the server.
const (
	CmdPing    = "ping"
	CmdGet     = "get"
	CmdSet     = "set"
	CmdDelete  = "delete"
	CmdExists  = "exists"
	CmdCount   = "count"
	CmdList    = "list"
	CmdCompact = "compact"
	CmdStats   = "stats"
	CmdHelp    = "help"
)

const (
	MaxCommandSize = 255
	MaxKeySize     = 64 * 1024
	MaxValueSize   = 64 * 1024 * 1024
)

// ErrFrameTooLarge is returned when a length field exceeds its limit. The
// connection cannot be resynchronized afterwards.
var ErrFrameTooLarge = errors.New("protocol: frame too large")

// Command represents a decoded client command received by the server.
//
// A Command consists of a command name (Cmd), an optional key, and an optional
// value. The meaning of Key and Val depends on the command type (e.g. GET,
// SET, DELETE).
type Command struct {
	Cmd string // Command name (e.g. "get", "set", "delete")
	Key string // Key argument (may be empty)
	Val []byte // Value argument (may be empty)
}

// EncodeCommand serializes a client command into its wire format.
//
// The command is encoded as:
//
//	<cmd_len:uint8><key_len:uint32><val_len:uint32><cmd><key><val>
//
// All integer fields are encoded using big-endian byte order.
//
// The returned byte slice is suitable for writing directly to a TCP
// connection.
func EncodeCommand(cmd, key string, val []byte) ([]byte, error) {
	if len(cmd) > MaxCommandSize {
		return nil, fmt.Errorf("%w: command name of %d bytes", ErrFrameTooLarge, len(cmd))
	}
	if len(key) > MaxKeySize {
		return nil, fmt.Errorf("%w: key of %d bytes", ErrFrameTooLarge, len(key))
	}
	if len(val) > MaxValueSize {
		return nil, fmt.Errorf("%w: value of %d bytes", ErrFrameTooLarge, len(val))
	}

	buf := &bytes.Buffer{}
	buf.Grow(9 + len(cmd) + len(key) + len(val))

	buf.WriteByte(uint8(len(cmd)))
	if err := binary.Write(buf, binary.BigEndian, uint32(len(key))); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.BigEndian, uint32(len(val))); err != nil {
		return nil, err
	}

	buf.WriteString(cmd)
	buf.WriteString(key)
	buf.Write(val)

	return buf.Bytes(), nil
}

// DecodeCommand reads and decodes a command from r.
//
// It first reads the length-prefixed header fields, then reads the
// command name, key, and value payloads in sequence.
//
// DecodeCommand blocks until the full command has been read or an
// error occurs.
func DecodeCommand(r io.Reader) (*Command, error) {
	var cmdLen uint8
	var keyLen uint32
	var valLen uint32

	// Read lengths
	if err := binary.Read(r, binary.BigEndian, &cmdLen); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.BigEndian, &keyLen); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.BigEndian, &valLen); err != nil {
		return nil, err
	}

	if keyLen > MaxKeySize {
		return nil, fmt.Errorf("%w: key of %d bytes", ErrFrameTooLarge, keyLen)
	}
	if valLen > MaxValueSize {
		return nil, fmt.Errorf("%w: value of %d bytes", ErrFrameTooLarge, valLen)
	}

	// Read payload
	cmdB := make([]byte, cmdLen)
	keyB := make([]byte, keyLen)
	valB := make([]byte, valLen)

	if _, err := io.ReadFull(r, cmdB); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, keyB); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, valB); err != nil {
		return nil, err
	}

	return &Command{
		Cmd: string(cmdB),
		Key: string(keyB),
		Val: valB,
	}, nil
}
