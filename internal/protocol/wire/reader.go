package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/danmuck/skmux/internal/protocol"
)

// Reader consumes big-endian MUX fields from a single transport unit.
// Every read fails with protocol.ErrTruncated instead of running past the
// end of the buffer.
type Reader struct {
	buf []byte
	off int
}

func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Len reports the number of unread bytes.
func (r *Reader) Len() int {
	return len(r.buf) - r.off
}

// Offset reports how many bytes have been consumed.
func (r *Reader) Offset() int {
	return r.off
}

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || r.Len() < n {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", protocol.ErrTruncated, n, r.Len())
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *Reader) U8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) U16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *Reader) U32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *Reader) U64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// Skip discards n reserved bytes.
func (r *Reader) Skip(n int) error {
	_, err := r.take(n)
	return err
}

// Fixed returns a copy of the next width bytes.
func (r *Reader) Fixed(width int) ([]byte, error) {
	b, err := r.take(width)
	if err != nil {
		return nil, err
	}
	out := make([]byte, width)
	copy(out, b)
	return out, nil
}

// FixedInto fills dst from the next len(dst) bytes.
func (r *Reader) FixedInto(dst []byte) error {
	b, err := r.take(len(dst))
	if err != nil {
		return err
	}
	copy(dst, b)
	return nil
}

// FixedString reads a width-byte null-padded text field. Content ends at the
// first NUL byte.
func (r *Reader) FixedString(width int) (string, error) {
	b, err := r.take(width)
	if err != nil {
		return "", err
	}
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return text(b)
}

// String reads exactly n bytes of UTF-8 text.
func (r *Reader) String(n int) (string, error) {
	b, err := r.take(n)
	if err != nil {
		return "", err
	}
	return text(b)
}

func (r *Reader) String8() (string, error) {
	n, err := r.U8()
	if err != nil {
		return "", err
	}
	return r.String(int(n))
}

func (r *Reader) String16() (string, error) {
	n, err := r.U16()
	if err != nil {
		return "", err
	}
	return r.String(int(n))
}

func (r *Reader) String32() (string, error) {
	n, err := r.U32()
	if err != nil {
		return "", err
	}
	if uint64(n) > uint64(r.Len()) {
		return "", fmt.Errorf("%w: need %d bytes, have %d", protocol.ErrTruncated, n, r.Len())
	}
	return r.String(int(n))
}

// Rest consumes and returns a copy of every unread byte. The result is never
// nil.
func (r *Reader) Rest() []byte {
	out := make([]byte, r.Len())
	copy(out, r.buf[r.off:])
	r.off = len(r.buf)
	return out
}

func text(b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: text is not valid utf-8", protocol.ErrInvalidEncoding)
	}
	return string(b), nil
}
