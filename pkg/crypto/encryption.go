package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"io"

	"hermes/pkg/errors"
)

// Encryptor seals venue API credentials at rest with AES-256-GCM. The nonce
// is prepended to the ciphertext.
type Encryptor struct {
	key []byte // 32 bytes for AES-256
}

// NewEncryptor creates a new encryptor with a 32-byte key
func NewEncryptor(key string) (*Encryptor, error) {
	keyBytes := []byte(key)
	if len(keyBytes) != 32 {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "encryption key must be exactly 32 bytes for AES-256, got %d", len(keyBytes))
	}
	return &Encryptor{key: keyBytes}, nil
}

// Encrypt encrypts plaintext using AES-256-GCM
func (e *Encryptor) Encrypt(plaintext string) ([]byte, error) {
	gcm, err := e.newGCM()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, errors.Wrap(err, "generate nonce")
	}

	return gcm.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// Decrypt decrypts ciphertext using AES-256-GCM
func (e *Encryptor) Decrypt(ciphertext []byte) (string, error) {
	gcm, err := e.newGCM()
	if err != nil {
		return "", err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return "", errors.Wrap(errors.ErrInvalidInput, "ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", errors.Wrap(err, "decrypt")
	}

	return string(plaintext), nil
}

func (e *Encryptor) newGCM() (cipher.AEAD, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, errors.Wrap(err, "create cipher")
	}
	return cipher.NewGCM(block)
}
