package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	Magic      uint16 = 0x4D53
	Version    uint8  = 1
	HeaderSize        = 32

	// MaxPayload bounds the payload a decoder accepts.
	MaxPayload = 1 << 20
)

var (
	ErrBadMagic           = errors.New("bad frame magic")
	ErrUnsupportedVersion = errors.New("unsupported protocol version")
	ErrUnknownKind        = errors.New("unknown message kind")
	ErrPayloadTooLarge    = errors.New("payload too large")
	ErrMalformed          = errors.New("malformed message")
)

// Encode writes msg as a single frame.
func Encode(w io.Writer, msg *Message) error {
	if err := validate(msg); err != nil {
		return err
	}

	frame := make([]byte, HeaderSize+len(msg.Data))
	putHeader(frame, msg)
	copy(frame[HeaderSize:], msg.Data)

	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Decode reads exactly one frame from r.
// It returns io.EOF only if r ended before the first header byte.
func Decode(r io.Reader) (*Message, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("%w: truncated header", ErrMalformed)
		}
		return nil, err
	}

	msg, length, err := parseHeader(hdr[:])
	if err != nil {
		return nil, err
	}

	if length > 0 {
		msg.Data = make([]byte, length)
		if _, err := io.ReadFull(r, msg.Data); err != nil {
			return nil, fmt.Errorf("%w: truncated payload: %v", ErrMalformed, err)
		}
	}
	return msg, nil
}

// Marshal encodes msg into a new byte slice.
func Marshal(msg *Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, msg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a single frame. Trailing bytes are an error.
func Unmarshal(b []byte) (*Message, error) {
	r := bytes.NewReader(b)
	msg, err := Decode(r)
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: empty frame", ErrMalformed)
		}
		return nil, err
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, r.Len())
	}
	return msg, nil
}

func validate(msg *Message) error {
	if msg == nil {
		return fmt.Errorf("%w: nil message", ErrMalformed)
	}
	if !msg.Kind.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownKind, msg.Kind)
	}
	if len(msg.Data) > MaxPayload {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(msg.Data))
	}
	if msg.Kind != KindPageReply && len(msg.Data) != 0 {
		return fmt.Errorf("%w: %s carries no payload", ErrMalformed, msg.Kind)
	}
	if msg.Kind == KindPageReply && int(msg.Size) != len(msg.Data) {
		return fmt.Errorf("%w: reply size %d != payload %d", ErrMalformed, msg.Size, len(msg.Data))
	}
	return nil
}

func putHeader(b []byte, msg *Message) {
	binary.BigEndian.PutUint16(b[0:2], Magic)
	b[2] = Version
	b[3] = byte(msg.Kind)
	b[4] = byte(msg.Flags)
	// b[5:8] reserved
	binary.BigEndian.PutUint64(b[8:16], msg.ID)
	binary.BigEndian.PutUint64(b[16:24], msg.Addr)
	binary.BigEndian.PutUint32(b[24:28], msg.Size)
	binary.BigEndian.PutUint32(b[28:32], uint32(len(msg.Data)))
}

func parseHeader(b []byte) (*Message, int, error) {
	if binary.BigEndian.Uint16(b[0:2]) != Magic {
		return nil, 0, ErrBadMagic
	}
	if b[2] != Version {
		return nil, 0, fmt.Errorf("%w: %d", ErrUnsupportedVersion, b[2])
	}

	msg := &Message{
		Kind:  Kind(b[3]),
		Flags: Flags(b[4]),
		ID:    binary.BigEndian.Uint64(b[8:16]),
		Addr:  binary.BigEndian.Uint64(b[16:24]),
		Size:  binary.BigEndian.Uint32(b[24:28]),
	}
	if !msg.Kind.Valid() {
		return nil, 0, fmt.Errorf("%w: %d", ErrUnknownKind, b[3])
	}

	length := binary.BigEndian.Uint32(b[28:32])
	if length > MaxPayload {
		return nil, 0, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, length)
	}
	if msg.Kind != KindPageReply && length != 0 {
		return nil, 0, fmt.Errorf("%w: %s carries no payload", ErrMalformed, msg.Kind)
	}
	if msg.Kind == KindPageReply && msg.Size != length {
		return nil, 0, fmt.Errorf("%w: reply size %d != payload %d", ErrMalformed, msg.Size, length)
	}
	return msg, int(length), nil
}
