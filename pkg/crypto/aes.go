// Package crypto: Disk cache'i için AES-256-GCM şifreleme.
//
// Yerel mesaj cache'i (SQLite) mesaj içeriklerini düz metin olarak tutar.
// CACHE_ENCRYPTION_SECRET verilmişse her cache kaydının payload'ı bu paketle
// şifrelenir.
//
// Anahtar türetme: serbest metin secret → HKDF-SHA256 → 32 byte anahtar.
// AAD (additional authenticated data) olarak konuşma ID'si kullanılır; böylece
// bir satırın payload'ı başka bir satıra kopyalanırsa Open başarısız olur.
//
// Kullanım:
//
//	key, _ := crypto.DeriveKey("my secret")
//	sealed, _ := crypto.Seal(payload, key, []byte(conversationID))
//	plain, _ := crypto.Open(sealed, key, []byte(conversationID))
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// keyInfo, HKDF "info" parametresi; anahtarı bu kullanım alanına bağlar.
const keyInfo = "dmsync message cache v1"

// ErrCiphertextTooShort, nonce'tan kısa veri verildiğinde döner.
var ErrCiphertextTooShort = errors.New("ciphertext too short")

// DeriveKey, secret'tan 32-byte AES-256 anahtarı türetir.
func DeriveKey(secret string) ([]byte, error) {
	if secret == "" {
		return nil, fmt.Errorf("encryption secret is empty")
	}

	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("hkdf: %w", err)
	}
	return key, nil
}

// Seal, plaintext'i şifreler. Dönen değer: nonce (12 byte) + ciphertext + tag.
func Seal(plaintext, key, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("nonce generation: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, aad), nil
}

// Open, Seal ile şifrelenmiş veriyi çözer.
func Open(sealed, key, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(sealed) < nonceSize {
		return nil, ErrCiphertextTooShort
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("gcm.Open (wrong key or corrupted data): %w", err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return gcm, nil
}
