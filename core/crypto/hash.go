package crypto

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/Tripp808/iyacare-app-sub001/core/record"
)

// Hash returns the hex SHA-256 of the canonical encoding of rec. Field order
// never changes the result.
func Hash(rec record.Record) (string, error) {
	if rec == nil {
		return "", record.ErrNotObject
	}
	canonical, err := Canonicalize(rec.Fields())
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
