package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Status classifies a response.
type Status uint8

const (
	StatusOK    Status = 0
	StatusNil   Status = 1 // the key does not exist
	StatusError Status = 2 // Body holds the error message
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNil:
		return "nil"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

const MaxResponseSize = MaxValueSize + 1024

type Response struct {
	Status Status
	Body   []byte
}

func OK(body []byte) Response  { return Response{Status: StatusOK, Body: body} }
func Nil() Response            { return Response{Status: StatusNil} }
func Error(err error) Response { return Response{Status: StatusError, Body: []byte(err.Error())} }

func Text(format string, args ...any) Response {
	return OK(fmt.Appendf(nil, format, args...))
}

// EncodeResponse serializes a response as
//
//	<status:uint8><body_len:uint32><body>
//
// with the length in big-endian byte order.
func EncodeResponse(resp Response) ([]byte, error) {
	if len(resp.Body) > MaxResponseSize {
		return nil, fmt.Errorf("%w: response of %d bytes", ErrFrameTooLarge, len(resp.Body))
	}

	buf := &bytes.Buffer{}
	buf.Grow(5 + len(resp.Body))

	buf.WriteByte(byte(resp.Status))
	if err := binary.Write(buf, binary.BigEndian, uint32(len(resp.Body))); err != nil {
		return nil, err
	}

	buf.Write(resp.Body)

	return buf.Bytes(), nil
}

func DecodeResponse(r io.Reader) (Response, error) {
	var status uint8
	var respLen uint32

	if err := binary.Read(r, binary.BigEndian, &status); err != nil {
		return Response{}, err
	}
	if err := binary.Read(r, binary.BigEndian, &respLen); err != nil {
		return Response{}, err
	}
	if respLen > MaxResponseSize {
		return Response{}, fmt.Errorf("%w: response of %d bytes", ErrFrameTooLarge, respLen)
	}

	buf := make([]byte, respLen)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Response{}, err
	}

	return Response{Status: Status(status), Body: buf}, nil
}
