package mux

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/danmuck/skmux/internal/protocol"
	"github.com/danmuck/skmux/internal/protocol/wire"
	"github.com/google/uuid"
)

const (
	AccessKeyLen        = 27
	NonceLen            = 8
	SignatureLen        = 32
	DeviceUUIDLen       = 36
	MaxClientVersionLen = 255

	// AuthVersion opens the auth body, followed by three reserved bytes.
	AuthVersion uint8 = 0

	dateLen         = 24
	expandedDateLen = 27
	dateLayout      = "2006-01-02T15:04:05.000Z"
	dateTailLayout  = "-01-02T15:04:05.000Z"
	maxExpandedYear = 999999
)

// Auth is the login credential a client sends on stream 0.
type Auth struct {
	AccessKey     string
	Nonce         [NonceLen]byte
	Signature     [SignatureLen]byte
	DeviceUUID    uuid.UUID
	Date          time.Time
	ClientVersion string
}

// NewAuth validates every fixed-width field and normalizes date to UTC
// millisecond precision.
func NewAuth(accessKey string, nonce [NonceLen]byte, signature [SignatureLen]byte, device uuid.UUID, date time.Time, clientVersion string) (Auth, error) {
	a := Auth{
		AccessKey:     accessKey,
		Nonce:         nonce,
		Signature:     signature,
		DeviceUUID:    device,
		Date:          date.UTC().Truncate(time.Millisecond),
		ClientVersion: clientVersion,
	}
	if err := a.Validate(); err != nil {
		return Auth{}, err
	}
	return a, nil
}

func (a Auth) Validate() error {
	if err := ValidateAccessKey(a.AccessKey); err != nil {
		return protocol.Wrap("auth", "access_key", err)
	}
	if !utf8.ValidString(a.ClientVersion) {
		return protocol.Wrap("auth", "client_version", fmt.Errorf("%w: text is not valid utf-8", protocol.ErrInvalidEncoding))
	}
	if len(a.ClientVersion) > MaxClientVersionLen {
		return protocol.Wrap("auth", "client_version", fmt.Errorf("%w: %d bytes exceeds %d", protocol.ErrFieldTooLong, len(a.ClientVersion), MaxClientVersionLen))
	}
	if _, err := FormatDate(a.Date); err != nil {
		return protocol.Wrap("auth", "date", err)
	}
	return nil
}

// ValidateAccessKey checks that s fits the 27-byte null-padded field and
// reads back unchanged: valid UTF-8 with no NUL bytes.
func ValidateAccessKey(s string) error {
	if len(s) > AccessKeyLen {
		return fmt.Errorf("%w: %d bytes exceeds %d", protocol.ErrFieldTooLong, len(s), AccessKeyLen)
	}
	if !utf8.ValidString(s) {
		return fmt.Errorf("%w: text is not valid utf-8", protocol.ErrInvalidEncoding)
	}
	if i := strings.IndexByte(s, 0); i >= 0 {
		return fmt.Errorf("%w: NUL byte at offset %d", protocol.ErrInvalidEncoding, i)
	}
	return nil
}

func (Auth) FrameType() FrameType { return FrameAuth }

func (a Auth) ToFrame(stream StreamID) Message {
	return Message{Stream: stream, Payload: a}
}

func (a Auth) MarshalBinary() ([]byte, error) { return marshalPayload(a) }

func (a *Auth) UnmarshalBinary(b []byte) error {
	return a.decode(wire.NewReader(b))
}

func (a Auth) encodePayload(w *wire.Writer) error {
	if err := a.Validate(); err != nil {
		return err
	}
	date, _ := FormatDate(a.Date)
	w.U8(AuthVersion)
	w.Zero(3)
	if err := w.FixedString(a.AccessKey, AccessKeyLen); err != nil {
		return protocol.Wrap("auth", "access_key", err)
	}
	w.Raw(a.Nonce[:])
	w.Raw(a.Signature[:])
	w.Raw([]byte(a.DeviceUUID.String()))
	w.Bool(len(date) == expandedDateLen)
	w.Raw([]byte(date))
	return protocol.Wrap("auth", "client_version", w.String8(a.ClientVersion))
}

func (a *Auth) decode(r *wire.Reader) error {
	version, err := r.U8()
	if err != nil {
		return protocol.Wrap("auth", "version", err)
	}
	if version != AuthVersion {
		return protocol.Wrap("auth", "version", fmt.Errorf("%w: auth version %d", protocol.ErrUnknownEnum, version))
	}
	if err := r.Skip(3); err != nil {
		return protocol.Wrap("auth", "reserved", err)
	}
	var out Auth
	if out.AccessKey, err = r.FixedString(AccessKeyLen); err != nil {
		return protocol.Wrap("auth", "access_key", err)
	}
	if err := r.FixedInto(out.Nonce[:]); err != nil {
		return protocol.Wrap("auth", "nonce", err)
	}
	if err := r.FixedInto(out.Signature[:]); err != nil {
		return protocol.Wrap("auth", "signature", err)
	}
	rawUUID, err := r.String(DeviceUUIDLen)
	if err != nil {
		return protocol.Wrap("auth", "device_uuid", err)
	}
	if out.DeviceUUID, err = uuid.Parse(rawUUID); err != nil {
		return protocol.Wrap("auth", "device_uuid", fmt.Errorf("%w: %v", protocol.ErrInvalidEncoding, err))
	}
	flag, err := r.U8()
	if err != nil {
		return protocol.Wrap("auth", "date_flag", err)
	}
	n := dateLen
	if flag != 0 {
		n = expandedDateLen
	}
	rawDate, err := r.String(n)
	if err != nil {
		return protocol.Wrap("auth", "date", err)
	}
	if out.Date, err = ParseDate(rawDate); err != nil {
		return protocol.Wrap("auth", "date", err)
	}
	if out.ClientVersion, err = r.String8(); err != nil {
		return protocol.Wrap("auth", "client_version", err)
	}
	*a = out
	return nil
}

// FormatDate renders t the way the peer signs and parses it: 24 characters
// for years 0000-9999, otherwise the 27 character signed six digit form.
func FormatDate(t time.Time) (string, error) {
	t = t.UTC()
	year := t.Year()
	if year >= 0 && year <= 9999 {
		return t.Format(dateLayout), nil
	}
	sign := byte('+')
	if year < 0 {
		sign = '-'
		year = -year
	}
	if year > maxExpandedYear {
		return "", fmt.Errorf("%w: year %d does not fit the expanded date form", protocol.ErrFieldTooLong, t.Year())
	}
	return fmt.Sprintf("%c%06d%s", sign, year, t.Format(dateTailLayout)), nil
}

// ParseDate accepts both forms produced by FormatDate.
func ParseDate(s string) (time.Time, error) {
	switch len(s) {
	case dateLen:
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %v", protocol.ErrInvalidEncoding, err)
		}
		return t, nil
	case expandedDateLen:
		if s[0] != '+' && s[0] != '-' {
			return time.Time{}, fmt.Errorf("%w: expanded date missing sign", protocol.ErrInvalidEncoding)
		}
		year, err := strconv.Atoi(s[1:7])
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %v", protocol.ErrInvalidEncoding, err)
		}
		if s[0] == '-' {
			year = -year
		}
		// 2000 is a leap year, so every calendar day parses here and the real
		// year is checked below.
		tail, err := time.Parse(dateLayout, "2000"+s[7:])
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %v", protocol.ErrInvalidEncoding, err)
		}
		t := time.Date(year, tail.Month(), tail.Day(), tail.Hour(), tail.Minute(), tail.Second(), tail.Nanosecond(), time.UTC)
		if t.Month() != tail.Month() || t.Day() != tail.Day() {
			return time.Time{}, fmt.Errorf("%w: %s is not a calendar date", protocol.ErrInvalidEncoding, s)
		}
		return t, nil
	default:
		return time.Time{}, fmt.Errorf("%w: date length %d", protocol.ErrInvalidEncoding, len(s))
	}
}
