package wire

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/danmuck/skmux/internal/protocol"
)

// Writer appends big-endian MUX fields to a growing buffer.
type Writer struct {
	buf []byte
}

func NewWriter(sizeHint int) *Writer {
	if sizeHint < 0 {
		sizeHint = 0
	}
	return &Writer{buf: make([]byte, 0, sizeHint)}
}

// Bytes returns the encoded buffer. The slice aliases the writer.
func (w *Writer) Bytes() []byte {
	return w.buf
}

func (w *Writer) Len() int {
	return len(w.buf)
}

func (w *Writer) U8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *Writer) U16(v uint16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
}

func (w *Writer) U32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

func (w *Writer) U64(v uint64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, v)
}

func (w *Writer) Bool(v bool) {
	b := byte(0)
	if v {
		b = 1
	}
	w.buf = append(w.buf, b)
}

// Zero writes n reserved zero bytes.
func (w *Writer) Zero(n int) {
	for i := 0; i < n; i++ {
		w.buf = append(w.buf, 0)
	}
}

func (w *Writer) Raw(b []byte) {
	w.buf = append(w.buf, b...)
}

// Fixed writes b into exactly width bytes, null-padding the tail.
func (w *Writer) Fixed(b []byte, width int) error {
	if len(b) > width {
		return fmt.Errorf("%w: %d bytes exceeds fixed width %d", protocol.ErrFieldTooLong, len(b), width)
	}
	w.buf = append(w.buf, b...)
	w.Zero(width - len(b))
	return nil
}

// FixedString writes UTF-8 text into a null-padded field. Text containing a
// NUL byte is rejected since readers end the field at the first NUL.
func (w *Writer) FixedString(s string, width int) error {
	if err := checkText(s); err != nil {
		return err
	}
	if i := strings.IndexByte(s, 0); i >= 0 {
		return fmt.Errorf("%w: NUL byte at offset %d in fixed text", protocol.ErrInvalidEncoding, i)
	}
	return w.Fixed([]byte(s), width)
}

// String8 writes s behind a one byte length prefix.
func (w *Writer) String8(s string) error {
	if err := checkText(s); err != nil {
		return err
	}
	if len(s) > math.MaxUint8 {
		return fmt.Errorf("%w: %d bytes exceeds u8 prefix", protocol.ErrFieldTooLong, len(s))
	}
	w.U8(uint8(len(s)))
	w.buf = append(w.buf, s...)
	return nil
}

// String16 writes s behind a u16 length prefix.
func (w *Writer) String16(s string) error {
	if err := checkText(s); err != nil {
		return err
	}
	if len(s) > math.MaxUint16 {
		return fmt.Errorf("%w: %d bytes exceeds u16 prefix", protocol.ErrFieldTooLong, len(s))
	}
	w.U16(uint16(len(s)))
	w.buf = append(w.buf, s...)
	return nil
}

// String32 writes s behind a u32 length prefix.
func (w *Writer) String32(s string) error {
	if err := checkText(s); err != nil {
		return err
	}
	if uint64(len(s)) > math.MaxUint32 {
		return fmt.Errorf("%w: %d bytes exceeds u32 prefix", protocol.ErrFieldTooLong, len(s))
	}
	w.U32(uint32(len(s)))
	w.buf = append(w.buf, s...)
	return nil
}

func checkText(s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("%w: text is not valid utf-8", protocol.ErrInvalidEncoding)
	}
	return nil
}
