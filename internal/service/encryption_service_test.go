package service

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T, hexKey string) []byte {
	t.Helper()
	key, err := hex.DecodeString(hexKey)
	require.NoError(t, err)
	return key
}

// Valid 32-byte key in hex (64 chars)
const testAESKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func newTestEncryption(t *testing.T) *AESEncryptionService {
	t.Helper()
	svc, err := NewAESEncryptionService(testKey(t, testAESKey))
	require.NoError(t, err)
	return svc
}

func TestAESEncryptionService_NewInvalidKey(t *testing.T) {
	_, err := NewAESEncryptionService([]byte("shortkey"))
	assert.Error(t, err)
}

func TestAESEncryptionService_EncryptDecrypt(t *testing.T) {
	svc := newTestEncryption(t)

	plaintext := []byte("ed25519 seed bytes go here......")
	ciphertext, err := svc.Encrypt(plaintext)
	require.NoError(t, err)
	assert.NotContains(t, ciphertext, hex.EncodeToString(plaintext))

	decrypted, err := svc.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestAESEncryptionService_DifferentNonces(t *testing.T) {
	svc := newTestEncryption(t)

	plaintext := []byte("test_value")
	c1, err := svc.Encrypt(plaintext)
	require.NoError(t, err)
	c2, err := svc.Encrypt(plaintext)
	require.NoError(t, err)

	assert.NotEqual(t, c1, c2, "same plaintext should produce different ciphertext due to random nonce")

	d1, _ := svc.Decrypt(c1)
	d2, _ := svc.Decrypt(c2)
	assert.Equal(t, d1, d2)
}

func TestAESEncryptionService_TamperedCiphertext(t *testing.T) {
	svc := newTestEncryption(t)

	ciphertext, err := svc.Encrypt([]byte("secret"))
	require.NoError(t, err)

	raw, err := hex.DecodeString(ciphertext)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff

	_, err = svc.Decrypt(hex.EncodeToString(raw))
	assert.Error(t, err)
}

func TestAESEncryptionService_WrongKey(t *testing.T) {
	svc1 := newTestEncryption(t)
	svc2, err := NewAESEncryptionService(testKey(t, "abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789"))
	require.NoError(t, err)

	ciphertext, err := svc1.Encrypt([]byte("private"))
	require.NoError(t, err)

	_, err = svc2.Decrypt(ciphertext)
	assert.Error(t, err)
}

func TestAESEncryptionService_InvalidCiphertext(t *testing.T) {
	svc := newTestEncryption(t)

	_, err := svc.Decrypt("not-hex-at-all!!!")
	assert.Error(t, err)

	_, err = svc.Decrypt("abcdef")
	assert.Error(t, err)
}
