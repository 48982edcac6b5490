package record

import (
	"errors"
	"time"
)

// Envelope is the unit of storage for one patient record.
type Envelope struct {
	PatientID string `json:"patientId"`
	// ContentHash is the digest of the sanitized plaintext. It is only ever
	// compared for integrity, never used for access decisions.
	ContentHash string `json:"contentHash"`
	Ciphertext  string `json:"ciphertext"`
	// Tier is required to interpret Ciphertext; decryption does not re-derive it.
	Tier Tier `json:"tier"`
	// KeyID fingerprints the key the ciphertext was sealed with.
	KeyID          string    `json:"keyId,omitempty"`
	Version        uint64    `json:"version"`
	CreatedAt      time.Time `json:"createdAt"`
	LastModifiedAt time.Time `json:"lastModifiedAt"`
}

// Validate checks that an envelope is well formed.
func (e Envelope) Validate() error {
	switch {
	case e.PatientID == "":
		return errors.New("envelope: empty patientId")
	case e.ContentHash == "":
		return errors.New("envelope: empty contentHash")
	case e.Ciphertext == "":
		return errors.New("envelope: empty ciphertext")
	case !e.Tier.Valid():
		return errors.New("envelope: invalid tier")
	case e.Version < 1:
		return errors.New("envelope: version must be >= 1")
	case e.LastModifiedAt.Before(e.CreatedAt):
		return errors.New("envelope: lastModifiedAt before createdAt")
	}
	return nil
}
