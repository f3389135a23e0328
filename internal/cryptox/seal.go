// Package cryptox protects the locally cached credential at rest.
//
// The cache key is derived with Argon2id from a per-install random device
// secret, and blobs are sealed with XChaCha20-Poly1305. This keeps a copied
// database file useless without the accompanying device secret; it is cache
// hygiene, not a substitute for server-side session invalidation.
package cryptox

import (
	"errors"

	"github.com/dkozyrev/jobport/internal/common"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// ErrCorruptSealedData is returned when a sealed blob is too short to
// contain a nonce or fails authentication.
var ErrCorruptSealedData = errors.New("corrupt sealed data")

// Sealer encrypts and decrypts small blobs with a key derived from a
// per-install device secret and salt.
type Sealer struct {
	key []byte
}

// NewSealer derives the sealing key. The same (deviceSecret, salt) pair
// always yields the same key.
func NewSealer(deviceSecret, salt []byte) *Sealer {
	key := argon2.IDKey(deviceSecret, salt, 1, 64*1024, 4, chacha20poly1305.KeySize)
	return &Sealer{key: key}
}

// Seal encrypts plaintext and returns nonce||ciphertext. A fresh random
// nonce is generated per call.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}

	nonce := common.GenerateRandByteArray(aead.NonceSize())
	sealed := aead.Seal(nonce, nonce, plaintext, nil)
	return sealed, nil
}

// Open decrypts a blob produced by Seal. It returns ErrCorruptSealedData
// if the blob is malformed or was sealed with a different key.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}

	if len(sealed) < aead.NonceSize() {
		return nil, ErrCorruptSealedData
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrCorruptSealedData
	}
	return plaintext, nil
}
