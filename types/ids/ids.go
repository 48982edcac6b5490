package ids

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ID is a 32-byte array.
type ID [32]byte

var ErrInvalidLength = errors.New("ids: expected 32 bytes")

// FromString parses a hex string into an ID
func FromString(s string) (ID, error) {
	var id ID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(b) != len(id) {
		return id, ErrInvalidLength
	}
	copy(id[:], b)
	return id, nil
}

// String converts an ID back to a hex string
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// RecordKey derives the pseudonymous key a patient record is anchored under
// on a ledger contract. The raw patient id is never published; the contract
// address scopes the key so two deployments cannot be correlated.
func RecordKey(contract, patientID string) ID {
	h := sha256.New()
	h.Write([]byte("iyacare/record/v1"))
	h.Write([]byte{0})
	h.Write([]byte(contract))
	h.Write([]byte{0})
	h.Write([]byte(patientID))
	var id ID
	copy(id[:], h.Sum(nil))
	return id
}
