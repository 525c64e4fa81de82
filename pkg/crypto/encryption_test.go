package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc, err := NewEncryptor(testKey)
	require.NoError(t, err)

	ciphertext, err := enc.Encrypt("api-secret-value")
	require.NoError(t, err)
	assert.NotContains(t, string(ciphertext), "api-secret-value")

	plaintext, err := enc.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "api-secret-value", plaintext)
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	enc, err := NewEncryptor(testKey)
	require.NoError(t, err)

	ciphertext, err := enc.Encrypt("api-secret-value")
	require.NoError(t, err)

	other, err := NewEncryptor("ffffffffffffffffffffffffffffffff")
	require.NoError(t, err)

	_, err = other.Decrypt(ciphertext)
	require.Error(t, err)
}

func TestNewEncryptorRejectsBadKey(t *testing.T) {
	_, err := NewEncryptor("too-short")
	require.Error(t, err)
}

func TestDecryptRejectsShortCiphertext(t *testing.T) {
	enc, err := NewEncryptor(testKey)
	require.NoError(t, err)

	_, err = enc.Decrypt([]byte{1, 2, 3})
	require.Error(t, err)
}
