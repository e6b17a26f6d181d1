package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for the keystore KEK.
const (
	argon2Time    = 1
	argon2Memory  = 64 * 1024 // 64MB
	argon2Threads = 4
	argon2KeyLen  = 32
	argon2SaltLen = 16
)

// DeriveKeystoreKey stretches the keystore passphrase into a 32-byte AES key.
// saltHex must decode to argon2SaltLen bytes.
func DeriveKeystoreKey(passphrase string, saltHex string) ([]byte, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("keystore passphrase is empty")
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return nil, fmt.Errorf("decoding keystore salt: %w", err)
	}
	if len(salt) != argon2SaltLen {
		return nil, fmt.Errorf("keystore salt must be %d bytes, got %d", argon2SaltLen, len(salt))
	}

	return argon2.IDKey([]byte(passphrase), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen), nil
}

// NewKeystoreSalt returns a fresh random salt, hex encoded.
func NewKeystoreSalt() (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	return hex.EncodeToString(salt), nil
}
