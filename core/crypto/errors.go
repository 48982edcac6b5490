package crypto

import "errors"

var (
	// ErrDecryption covers a wrong key as well as corrupted or truncated
	// ciphertext. AES-GCM cannot tell the two apart.
	ErrDecryption = errors.New("crypto: decryption failed")

	ErrNoKey           = errors.New("crypto: no encryption key configured")
	ErrKeySize         = errors.New("crypto: key must be 32 bytes")
	ErrWeakSalt        = errors.New("crypto: key salt must be at least 8 bytes")
	ErrNonStringMapKey = errors.New("crypto: map keys must be strings")
	ErrUnsupportedType = errors.New("crypto: unsupported type for canonicalization")
	ErrKeyCollision    = errors.New("crypto: normalized map key collision")
	ErrInvalidNumber   = errors.New("crypto: invalid number")
)
