package serialization

import (
	"crypto/sha256"
	"io"
)

// ComputeChecksum returns the SHA-256 digest of data.
func ComputeChecksum(data []byte) [ChecksumSize]byte {
	return sha256.Sum256(data)
}

// ComputeChecksumReader streams r through SHA-256.
func ComputeChecksumReader(r io.Reader) ([ChecksumSize]byte, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return [ChecksumSize]byte{}, err
	}
	var sum [ChecksumSize]byte
	copy(sum[:], h.Sum(nil))
	return sum, nil
}

// ValidateChecksum returns ErrChecksumMismatch unless the digests are equal.
func ValidateChecksum(computed, stored [ChecksumSize]byte) error {
	if computed != stored {
		return ErrChecksumMismatch
	}
	return nil
}
