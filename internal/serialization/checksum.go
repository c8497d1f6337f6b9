package serialization

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// Checksum is the SHA-256 digest a v2 file stores over its data section.
type Checksum [ChecksumSize]byte

// String returns the digest in lowercase hex.
func (c Checksum) String() string {
	return hex.EncodeToString(c[:])
}

// ComputeChecksum digests an in-memory data section.
func ComputeChecksum(data []byte) Checksum {
	return sha256.Sum256(data)
}

// ComputeChecksumReader digests a data section streamed from r, so large
// files are verified without being held in memory.
func ComputeChecksumReader(r io.Reader) (Checksum, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return Checksum{}, fmt.Errorf("failed to hash data section: %w", err)
	}
	var sum Checksum
	h.Sum(sum[:0])
	return sum, nil
}

// ValidateChecksum wraps ErrChecksumMismatch with both digests when the data
// section does not hash to the stored value.
func ValidateChecksum(computed, stored Checksum) error {
	if computed != stored {
		return fmt.Errorf("%w: stored %s, computed %s", ErrChecksumMismatch, stored, computed)
	}
	return nil
}
