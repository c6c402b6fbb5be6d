package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainProjection prefixes projection digests. The version suffix leaves
// room for a future algorithm change.
const DomainProjection = "autosync/projection/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte keeps the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ProjectionDigest returns a stable digest of a projected field mapping.
// Two projections of an unchanged source under the same descriptor have the
// same digest.
func ProjectionDigest(projection IRObject) (string, error) {
	canonical, err := MarshalCanonical(projection)
	if err != nil {
		return "", fmt.Errorf("projection digest: %w", err)
	}
	return hashWithDomain(DomainProjection, canonical), nil
}
