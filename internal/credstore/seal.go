package credstore

import (
	"bytes"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

// sealMagic prefixes sealed blobs so Load can tell them from plain JSON.
var sealMagic = []byte("SLSB1")

const (
	saltSize  = 16
	nonceSize = 24
	keySize   = 32
)

// scrypt cost parameters; interactive-login grade
const (
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// Sealer encrypts credential blobs at rest with a passphrase-derived key.
type Sealer struct {
	passphrase []byte
}

func NewSealer(passphrase string) *Sealer {
	return &Sealer{passphrase: []byte(passphrase)}
}

// IsSealed reports whether data carries the sealed-blob prefix.
func IsSealed(data []byte) bool {
	return bytes.HasPrefix(data, sealMagic)
}

// Seal encrypts plaintext. Output layout: magic | salt | nonce | box.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	var salt [saltSize]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	key, err := s.deriveKey(salt[:])
	if err != nil {
		return nil, err
	}

	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, 0, len(sealMagic)+saltSize+nonceSize+len(plaintext)+secretbox.Overhead)
	out = append(out, sealMagic...)
	out = append(out, salt[:]...)
	out = append(out, nonce[:]...)
	return secretbox.Seal(out, plaintext, &nonce, key), nil
}

// Open decrypts a sealed blob. A wrong passphrase or mangled blob fails;
// callers map that onto the persistence-corrupt taxonomy.
func (s *Sealer) Open(data []byte) ([]byte, error) {
	minLen := len(sealMagic) + saltSize + nonceSize + secretbox.Overhead
	if len(data) < minLen || !IsSealed(data) {
		return nil, fmt.Errorf("sealed blob truncated")
	}
	data = data[len(sealMagic):]

	key, err := s.deriveKey(data[:saltSize])
	if err != nil {
		return nil, err
	}

	var nonce [nonceSize]byte
	copy(nonce[:], data[saltSize:saltSize+nonceSize])

	plaintext, ok := secretbox.Open(nil, data[saltSize+nonceSize:], &nonce, key)
	if !ok {
		return nil, fmt.Errorf("sealed blob failed to open")
	}
	return plaintext, nil
}

func (s *Sealer) deriveKey(salt []byte) (*[keySize]byte, error) {
	raw, err := scrypt.Key(s.passphrase, salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	var key [keySize]byte
	copy(key[:], raw)
	return &key, nil
}
