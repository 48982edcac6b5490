package crypto

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/argon2"
)

// argon2id parameters for passphrase-derived keys.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	keyLen       = 32
)

// ParseKey turns an operator-supplied secret into a 32-byte key. A base64 or
// hex encoding of exactly 32 bytes is used as is; anything else is treated
// as a passphrase and stretched with argon2id under salt.
func ParseKey(secret, salt string) ([]byte, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrNoKey
	}
	if raw, err := base64.StdEncoding.DecodeString(secret); err == nil && len(raw) == keyLen {
		return raw, nil
	}
	if raw, err := hex.DecodeString(secret); err == nil && len(raw) == keyLen {
		return raw, nil
	}
	if len(salt) < 8 {
		return nil, ErrWeakSalt
	}
	return argon2.IDKey([]byte(secret), []byte(salt), argonTime, argonMemory, argonThreads, keyLen), nil
}

// KeyID is a short, non-reversible fingerprint of key.
func KeyID(key []byte) string {
	h := sha256.New()
	h.Write([]byte("iyacare/key-id/v1"))
	h.Write(key)
	return hex.EncodeToString(h.Sum(nil)[:8])
}
