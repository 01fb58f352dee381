// Package commitment derives the one-way reporter commitment that stands in
// for a reporter's identity on a case.
//
// A reporter supplies a 32-byte secret when opening a case. Only the
// Keccak-256 digest of that secret is ever stored; the secret itself never
// leaves the caller. Reusing a secret across cases makes those cases linkable
// through equal commitments, which is the reporter's concern, not ours.
package commitment

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Size is the byte length of both a Secret and a Commitment.
const Size = 32

var ErrInvalidLength = errors.New("commitment: value must be 32 bytes")

// Secret is the caller-held material a commitment is derived from.
type Secret [Size]byte

// Commitment is the Keccak-256 digest of a Secret.
type Commitment [Size]byte

// Commit derives the commitment for s. It is deterministic and keeps no state.
func Commit(s Secret) Commitment {
	h := sha3.NewLegacyKeccak256()
	h.Write(s[:])

	var c Commitment
	copy(c[:], h.Sum(nil))
	return c
}

// NewSecret returns a fresh random secret for frontends that generate one on
// the reporter's behalf.
func NewSecret() (Secret, error) {
	var s Secret
	if _, err := rand.Read(s[:]); err != nil {
		return Secret{}, fmt.Errorf("failed to generate secret: %w", err)
	}
	return s, nil
}

// ParseSecret decodes a hex string, with or without a 0x prefix.
func ParseSecret(str string) (Secret, error) {
	var s Secret
	if err := decodeHex(str, s[:]); err != nil {
		return Secret{}, err
	}
	return s, nil
}

// ParseCommitment decodes a hex string, with or without a 0x prefix.
func ParseCommitment(str string) (Commitment, error) {
	var c Commitment
	if err := decodeHex(str, c[:]); err != nil {
		return Commitment{}, err
	}
	return c, nil
}

func (s Secret) String() string { return encodeHex(s[:]) }

func (c Commitment) String() string { return encodeHex(c[:]) }

// IsZero reports whether c is the zero value.
func (c Commitment) IsZero() bool { return c == Commitment{} }

func (c Commitment) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Commitment) UnmarshalText(text []byte) error {
	parsed, err := ParseCommitment(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (s Secret) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Secret) UnmarshalText(text []byte) error {
	parsed, err := ParseSecret(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func encodeHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

func decodeHex(str string, dst []byte) error {
	str = strings.TrimPrefix(strings.TrimPrefix(str, "0x"), "0X")
	if hex.DecodedLen(len(str)) != len(dst) {
		return ErrInvalidLength
	}
	if _, err := hex.Decode(dst, []byte(str)); err != nil {
		return fmt.Errorf("commitment: invalid hex: %w", err)
	}
	return nil
}
