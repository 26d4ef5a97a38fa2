package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"future-you/internal/domain"
)

const keySize = 32

// AESGCM шифрует письма AES-256-GCM ключом пользователя.
// Формат шифротекста: base64(nonce || sealed).
type AESGCM struct{}

var _ domain.Cipher = AESGCM{}

// NewAESGCM создаёт шифратор.
func NewAESGCM() AESGCM {
	return AESGCM{}
}

// GenerateKey создаёт новый ключ пользователя в base64.
func GenerateKey() (string, error) {
	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("генерация ключа: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

func newGCM(encodedKey string) (cipher.AEAD, error) {
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("ключ не в base64: %w", err)
	}
	if len(key) != keySize {
		return nil, errors.New("AES-256 requires 32 bytes key")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt шифрует текст.
func (AESGCM) Encrypt(plaintext, key string) (string, error) {
	aead, err := newGCM(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt расшифровывает текст. Любая ошибка оборачивает domain.ErrDecryption.
func (AESGCM) Decrypt(ciphertext, key string) (string, error) {
	aead, err := newGCM(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrDecryption, err)
	}
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: шифротекст не в base64", domain.ErrDecryption)
	}
	ns := aead.NonceSize()
	if len(data) < ns {
		return "", fmt.Errorf("%w: ciphertext too short", domain.ErrDecryption)
	}
	plain, err := aead.Open(nil, data[:ns], data[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrDecryption, err)
	}
	return string(plain), nil
}
