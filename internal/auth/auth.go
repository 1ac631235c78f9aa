// Package auth signs and verifies MUX login handshakes.
//
// A credential proves possession of a private key without sending it: the
// client signs "auth" + access key + ISO-8601 date + base64(nonce) with
// HMAC-SHA256 keyed by the decoded private key.
package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/danmuck/skmux/internal/protocol"
	"github.com/danmuck/skmux/internal/protocol/mux"
	"github.com/google/uuid"
)

// ClientVersion identifies this implementation in every Auth message.
const ClientVersion = "go-skmux-0.1.0"

var ErrUnauthorized = errors.New("auth: unauthorized")

// Signer builds Auth messages for one access key. It holds no mutable state,
// so one Signer may be shared across goroutines as long as its random source
// and clock are safe for concurrent use.
type Signer struct {
	accessKey     string
	key           []byte
	device        uuid.UUID
	clientVersion string
	rand          io.Reader
	now           func() time.Time
}

type Option func(*Signer)

// WithRand replaces crypto/rand as the nonce source.
func WithRand(r io.Reader) Option {
	return func(s *Signer) { s.rand = r }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) { s.now = now }
}

func WithClientVersion(v string) Option {
	return func(s *Signer) { s.clientVersion = v }
}

// NewSigner decodes the base64 private key once and validates the fixed
// width fields so Sign can only fail on the random source.
func NewSigner(privateKey, accessKey string, device uuid.UUID, opts ...Option) (*Signer, error) {
	key, err := DecodePrivateKey(privateKey)
	if err != nil {
		return nil, err
	}
	s := &Signer{
		accessKey:     accessKey,
		key:           key,
		device:        device,
		clientVersion: ClientVersion,
		rand:          rand.Reader,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := mux.ValidateAccessKey(accessKey); err != nil {
		return nil, protocol.Wrap("auth", "access_key", err)
	}
	if !utf8.ValidString(s.clientVersion) {
		return nil, protocol.Wrap("auth", "client_version", fmt.Errorf("%w: text is not valid utf-8", protocol.ErrInvalidEncoding))
	}
	if len(s.clientVersion) > mux.MaxClientVersionLen {
		return nil, protocol.Wrap("auth", "client_version", fmt.Errorf("%w: %d bytes exceeds %d", protocol.ErrFieldTooLong, len(s.clientVersion), mux.MaxClientVersionLen))
	}
	return s, nil
}

func (s *Signer) AccessKey() string {
	return s.accessKey
}

// Sign draws a fresh nonce, stamps the current time and returns the signed
// Auth payload.
func (s *Signer) Sign() (mux.Auth, error) {
	var nonce [mux.NonceLen]byte
	if _, err := io.ReadFull(s.rand, nonce[:]); err != nil {
		return mux.Auth{}, fmt.Errorf("auth: read nonce: %w", err)
	}
	date := s.now().UTC().Truncate(time.Millisecond)
	sig, err := Signature(s.key, s.accessKey, date, nonce)
	if err != nil {
		return mux.Auth{}, err
	}
	return mux.NewAuth(s.accessKey, nonce, sig, s.device, date, s.clientVersion)
}

// SigningString is the exact text covered by the signature.
func SigningString(accessKey string, date time.Time, nonce [mux.NonceLen]byte) (string, error) {
	iso, err := mux.FormatDate(date)
	if err != nil {
		return "", protocol.Wrap("auth", "date", err)
	}
	return "auth" + accessKey + iso + base64.StdEncoding.EncodeToString(nonce[:]), nil
}

// Signature computes HMAC-SHA256(key, SigningString(...)).
func Signature(key []byte, accessKey string, date time.Time, nonce [mux.NonceLen]byte) ([mux.SignatureLen]byte, error) {
	var out [mux.SignatureLen]byte
	msg, err := SigningString(accessKey, date, nonce)
	if err != nil {
		return out, err
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msg))
	copy(out[:], mac.Sum(nil))
	return out, nil
}

// DecodePrivateKey decodes standard padded base64 key material.
func DecodePrivateKey(privateKey string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(privateKey)
	if err != nil {
		return nil, protocol.Wrap("auth", "private_key", fmt.Errorf("%w: %v", protocol.ErrInvalidEncoding, err))
	}
	return key, nil
}

// VerifySignature reports whether a carries a valid signature under key.
func VerifySignature(key []byte, a mux.Auth) bool {
	want, err := Signature(key, a.AccessKey, a.Date, a.Nonce)
	if err != nil {
		return false
	}
	return hmac.Equal(want[:], a.Signature[:])
}
