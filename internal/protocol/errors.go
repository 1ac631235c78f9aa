package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrTruncated        = errors.New("protocol: truncated data")
	ErrUnknownFrameType = errors.New("protocol: unknown frame type")
	ErrUnknownEnum      = errors.New("protocol: unknown enum value")
	ErrFieldTooLong     = errors.New("protocol: field too long")
	ErrInvalidEncoding  = errors.New("protocol: invalid encoding")
	ErrStreamIDRange    = errors.New("protocol: stream id out of range")
	ErrTagMismatch      = errors.New("protocol: tag mismatch")
)

// FieldError pins a protocol error to the message and field that produced it.
type FieldError struct {
	Message string
	Field   string
	Err     error
}

func (e *FieldError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %v", e.Message, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// Wrap annotates err with message/field context. A nil err stays nil and an
// existing FieldError is returned unchanged so the innermost location wins.
func Wrap(message, field string, err error) error {
	if err == nil {
		return nil
	}
	var fe *FieldError
	if errors.As(err, &fe) {
		return err
	}
	return &FieldError{Message: message, Field: field, Err: err}
}

// Kind returns the sentinel error err belongs to, or nil when err is not a
// protocol error.
func Kind(err error) error {
	for _, kind := range []error{
		ErrTruncated,
		ErrUnknownFrameType,
		ErrUnknownEnum,
		ErrFieldTooLong,
		ErrInvalidEncoding,
		ErrStreamIDRange,
		ErrTagMismatch,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// KindLabel names the protocol error kind for logs and metric labels.
func KindLabel(err error) string {
	switch Kind(err) {
	case ErrTruncated:
		return "truncated"
	case ErrUnknownFrameType:
		return "unknown_frame_type"
	case ErrUnknownEnum:
		return "unknown_enum"
	case ErrFieldTooLong:
		return "field_too_long"
	case ErrInvalidEncoding:
		return "invalid_encoding"
	case ErrStreamIDRange:
		return "stream_id_range"
	case ErrTagMismatch:
		return "tag_mismatch"
	default:
		return "other"
	}
}
