// Package kdf derives the per-record municipality hash.
//
// The hash is PBKDF2-HMAC-SHA256 over a password built from the record fields,
// salted with the record's IBGE code. Nothing is random: the same record and
// parameters always produce the same hash, so a verifier can recompute any
// emitted value from the record alone.
package kdf

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/JonMunkholm/munihash/internal/schema"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// DefaultIterations is the PBKDF2 iteration count.
	DefaultIterations = 10000

	// DefaultKeyLength is the derived key size in bytes (256 bits).
	DefaultKeyLength = 32
)

var (
	// ErrInvalidParameter is returned for a non-positive iteration count or
	// key length.
	ErrInvalidParameter = errors.New("invalid derivation parameter")

	// ErrEncoding is returned when the password is not valid UTF-8.
	ErrEncoding = errors.New("password encoding error")
)

// Derive runs PBKDF2-HMAC-SHA256 and returns keyLen bytes.
// It holds no state and is safe for concurrent use.
func Derive(password string, salt []byte, iterations, keyLen int) ([]byte, error) {
	if iterations <= 0 {
		return nil, fmt.Errorf("%w: iterations must be positive, got %d", ErrInvalidParameter, iterations)
	}
	if keyLen <= 0 {
		return nil, fmt.Errorf("%w: key length must be positive, got %d", ErrInvalidParameter, keyLen)
	}
	if !utf8.ValidString(password) {
		return nil, fmt.Errorf("%w: password is not valid UTF-8", ErrEncoding)
	}

	return pbkdf2.Key([]byte(password), salt, iterations, keyLen, sha256.New), nil
}

// Params are the run-wide derivation settings.
type Params struct {
	Iterations int
	KeyLength  int
}

// DefaultParams returns the production parameters.
func DefaultParams() Params {
	return Params{Iterations: DefaultIterations, KeyLength: DefaultKeyLength}
}

// Validate reports whether p can be used for derivation.
func (p Params) Validate() error {
	if p.Iterations <= 0 {
		return fmt.Errorf("%w: iterations must be positive, got %d", ErrInvalidParameter, p.Iterations)
	}
	if p.KeyLength <= 0 {
		return fmt.Errorf("%w: key length must be positive, got %d", ErrInvalidParameter, p.KeyLength)
	}
	return nil
}

// HexLength is the length of the hex string HashHex returns.
func (p Params) HexLength() int {
	return 2 * p.KeyLength
}

// HashHex derives the lowercase hex hash of a record.
func (p Params) HashHex(r schema.Record) (string, error) {
	key, err := Derive(EncodePassword(r), DeriveSalt(r.IBGE), p.Iterations, p.KeyLength)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(key), nil
}
