// Package crypto seals patient records with AES-256-GCM and computes the
// canonical content hash used for tamper detection.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/Tripp808/iyacare-app-sub001/core/record"
)

// Cipher encrypts records under a single 32-byte key.
type Cipher struct {
	aead  cipher.AEAD
	keyID string
}

func NewCipher(key []byte) (*Cipher, error) {
	if len(key) == 0 {
		return nil, ErrNoKey
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("%w, got %d", ErrKeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: create GCM: %w", err)
	}
	return &Cipher{aead: aead, keyID: KeyID(key)}, nil
}

// KeyID fingerprints the key this cipher seals with.
func (c *Cipher) KeyID() string { return c.keyID }

// Encrypt serializes rec with sorted keys and seals it with a random nonce,
// returning base64(nonce || ciphertext). Equal records produce different
// ciphertexts; compare content hashes instead.
func (c *Cipher) Encrypt(rec record.Record) (string, error) {
	if rec == nil {
		return "", record.ErrNotObject
	}
	plaintext, err := json.Marshal(rec.Fields())
	if err != nil {
		return "", fmt.Errorf("crypto: serialize record: %w", err)
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("crypto: generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Any failure to authenticate or decode the
// ciphertext is reported as ErrDecryption.
func (c *Cipher) Decrypt(ciphertext string) (record.PatientRecord, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: base64 decode", ErrDecryption)
	}
	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize+c.aead.Overhead() {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecryption)
	}
	nonce, ct := data[:nonceSize], data[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	rec, err := record.FromJSON(plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	return rec, nil
}

// Encrypt is the one-shot form of Cipher.Encrypt.
func Encrypt(rec record.Record, key []byte) (string, error) {
	c, err := NewCipher(key)
	if err != nil {
		return "", err
	}
	return c.Encrypt(rec)
}

// Decrypt is the one-shot form of Cipher.Decrypt.
func Decrypt(ciphertext string, key []byte) (record.PatientRecord, error) {
	c, err := NewCipher(key)
	if err != nil {
		return nil, err
	}
	return c.Decrypt(ciphertext)
}
