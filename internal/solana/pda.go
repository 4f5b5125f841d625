package solana

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
)

const maxSeedLen = 32

// ErrNoViableBump is returned when no bump seed yields an off-curve address.
var ErrNoViableBump = errors.New("unable to find a viable program address bump seed")

var errOnCurve = errors.New("invalid seeds: address falls on the ed25519 curve")

// CreateProgramAddress derives a program address from seeds. Program
// addresses must not lie on the ed25519 curve.
func CreateProgramAddress(seeds [][]byte, programID Pubkey) (Pubkey, error) {
	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > maxSeedLen {
			return Pubkey{}, fmt.Errorf("seed exceeds %d bytes", maxSeedLen)
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte("ProgramDerivedAddress"))

	digest := h.Sum(nil)
	if isOnCurve(digest) {
		return Pubkey{}, errOnCurve
	}
	return PubkeyFromBytes(digest)
}

// FindProgramAddress finds the first off-curve address for the seeds by
// searching bump seeds from 255 downward.
func FindProgramAddress(seeds [][]byte, programID Pubkey) (Pubkey, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		addr, err := CreateProgramAddress(append(seeds, []byte{byte(bump)}), programID)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, errOnCurve) {
			return Pubkey{}, 0, err
		}
	}
	return Pubkey{}, 0, ErrNoViableBump
}

func isOnCurve(point []byte) bool {
	if len(point) != PubkeyLen {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
