package fingerprint

import (
	"fmt"
	"strconv"

	"github.com/corona10/goimagehash"

	"sieve/internal/canonical"
	"sieve/internal/services"
)

// DHash is a 64-bit difference hash of a canonical image.
type DHash uint64

// String renders the hash as 16 lowercase hex digits.
func (h DHash) String() string {
	return fmt.Sprintf("%016x", uint64(h))
}

// ParseDHash reads a hash produced by DHash.String.
func ParseDHash(s string) (DHash, error) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse dhash %q: %w", s, err)
	}
	return DHash(v), nil
}

// Distance returns the Hamming distance between two hashes.
func (h DHash) Distance(other DHash) int {
	a := goimagehash.NewImageHash(uint64(h), goimagehash.DHash)
	b := goimagehash.NewImageHash(uint64(other), goimagehash.DHash)
	d, err := a.Distance(b)
	if err != nil {
		// Both hashes share a kind; Distance only fails on mismatched kinds.
		return 64
	}
	return d
}

// DifferenceHash computes the dHash of canonical bytes.
func DifferenceHash(canonicalBytes []byte) (DHash, error) {
	img, err := canonical.DecodeGray(canonicalBytes)
	if err != nil {
		return 0, services.Wrap(services.ErrProcessing, stage, "dhash", "canonical bytes did not decode", err)
	}
	hash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return 0, services.Wrap(services.ErrProcessing, stage, "dhash", "compute difference hash", err)
	}
	return DHash(hash.GetHash()), nil
}
