package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Checksum computes the content fingerprint of a definition body: the hex
// SHA-256 of its canonical JSON encoding. encoding/json writes map keys in
// sorted order, so semantically equal bodies always hash identically. This is
// an integrity marker for drift detection, not a security primitive.
func Checksum(body JSONDoc) (string, error) {
	canonical, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal body for checksum: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
