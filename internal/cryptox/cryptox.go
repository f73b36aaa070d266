// Package cryptox encrypts sensitive state records (credentials, tokens)
// before they are written to the local state database. Records are sealed
// with ChaCha20-Poly1305 under a random per-installation key kept in a
// 0600 keyfile next to the database.
package cryptox

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/puffinapp/puffin-sync/internal/common"
	"golang.org/x/crypto/chacha20poly1305"
)

// RecordCipher seals and opens JSON-serializable records.
type RecordCipher struct {
	key []byte
}

// NewRecordCipher wraps a raw 32-byte key.
func NewRecordCipher(key []byte) (*RecordCipher, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("invalid key length %d", len(key))
	}
	return &RecordCipher{key: key}, nil
}

// LoadRecordCipher reads the keyfile at path, creating it with a fresh
// random key on first use.
func LoadRecordCipher(path string) (*RecordCipher, error) {
	key, err := os.ReadFile(path)
	if err == nil {
		return NewRecordCipher(key)
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read keyfile: %w", err)
	}

	key = common.GenerateRandByteArray(chacha20poly1305.KeySize)
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, fmt.Errorf("write keyfile: %w", err)
	}
	return NewRecordCipher(key)
}

// Seal serializes v to JSON and encrypts it. The random nonce is prepended
// to the returned ciphertext.
func (c *RecordCipher) Seal(v any) ([]byte, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.New(c.key)
	if err != nil {
		return nil, err
	}

	nonce := common.GenerateRandByteArray(aead.NonceSize())
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts data produced by Seal and unmarshals the JSON into v.
func (c *RecordCipher) Open(data []byte, v any) error {
	aead, err := chacha20poly1305.New(c.key)
	if err != nil {
		return err
	}
	if len(data) < aead.NonceSize() {
		return fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := data[:aead.NonceSize()], data[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return fmt.Errorf("open record: %w", err)
	}
	return json.Unmarshal(plaintext, v)
}
