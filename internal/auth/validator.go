package auth

import (
	"crypto/subtle"
	"time"

	"github.com/danmuck/skmux/internal/protocol/mux"
)

// DefaultMaxSkew matches the ten minute window a peer keeps an auth valid.
const DefaultMaxSkew = 10 * time.Minute

// Validator validates an Auth message received by a peer.
type Validator interface {
	Validate(a mux.Auth) error
}

// StaticKey validates a single access key / private key pair.
// It is intended only for development and tests.
type StaticKey struct {
	AccessKey  string
	PrivateKey []byte
	MaxSkew    time.Duration
	Now        func() time.Time
}

func (s StaticKey) Validate(a mux.Auth) error {
	if s.AccessKey == "" || len(s.PrivateKey) == 0 {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(s.AccessKey), []byte(a.AccessKey)) != 1 {
		return ErrUnauthorized
	}
	if !VerifySignature(s.PrivateKey, a) {
		return ErrUnauthorized
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	skew := s.MaxSkew
	if skew <= 0 {
		skew = DefaultMaxSkew
	}
	d := now().Sub(a.Date)
	if d < 0 {
		d = -d
	}
	if d > skew {
		return ErrUnauthorized
	}
	return nil
}

// FuncValidator adapts a function into a Validator.
type FuncValidator func(a mux.Auth) error

func (f FuncValidator) Validate(a mux.Auth) error {
	return f(a)
}
