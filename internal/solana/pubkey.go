package solana

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// PubkeyLen is the byte length of a Solana public key.
const PubkeyLen = 32

// Pubkey is a 32-byte Solana account address.
type Pubkey [PubkeyLen]byte

// ParsePubkey decodes a base58-encoded public key.
func ParsePubkey(s string) (Pubkey, error) {
	var pk Pubkey
	raw, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("decode pubkey %q: %w", s, err)
	}
	if len(raw) != PubkeyLen {
		return pk, fmt.Errorf("pubkey %q: expected %d bytes, got %d", s, PubkeyLen, len(raw))
	}
	copy(pk[:], raw)
	return pk, nil
}

// MustParsePubkey decodes a base58 public key and panics on failure.
// Intended for well-known hardcoded addresses.
func MustParsePubkey(s string) Pubkey {
	pk, err := ParsePubkey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// PubkeyFromBytes builds a Pubkey from a raw 32-byte slice.
func PubkeyFromBytes(raw []byte) (Pubkey, error) {
	var pk Pubkey
	if len(raw) != PubkeyLen {
		return pk, fmt.Errorf("pubkey: expected %d bytes, got %d", PubkeyLen, len(raw))
	}
	copy(pk[:], raw)
	return pk, nil
}

// String returns the base58 encoding of the key.
func (p Pubkey) String() string {
	return base58.Encode(p[:])
}

// Bytes returns the raw key bytes as a new slice.
func (p Pubkey) Bytes() []byte {
	out := make([]byte, PubkeyLen)
	copy(out, p[:])
	return out
}

// IsZero reports whether the key is the all-zero address.
func (p Pubkey) IsZero() bool {
	return p == Pubkey{}
}

// ClockSysvar is the address of the Solana clock sysvar account.
var ClockSysvar = MustParsePubkey("SysvarC1ock11111111111111111111111111111111")
