package document

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// HashBytes returns the hex-encoded SHA-256 fingerprint of raw file bytes.
// The fingerprint is independent of filename and drives deduplication.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// HashReader streams r through SHA-256 and returns the hex digest.
func HashReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
