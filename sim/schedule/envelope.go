package schedule

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// Key derivation parameters of the export envelope.
const (
	envelopeIterations = 100_000
	envelopeKeyBytes   = 32 // AES-256
)

var (
	// ErrEncrypted is returned when an encrypted export is read without a password.
	ErrEncrypted = errors.New("schedule is encrypted; a password is required")
	// ErrDecrypt is returned when the envelope cannot be opened with the given password.
	ErrDecrypt = errors.New("failed to decrypt schedule")
)

// Envelope is the encrypted export wrapper. All byte fields are base64.
type Envelope struct {
	Encrypted bool   `json:"encrypted"`
	IV        string `json:"iv"`
	Salt      string `json:"salt"`
	Data      string `json:"data"` // AES-GCM ciphertext with the tag appended
}

// IsEnvelope reports whether data is a JSON object with "encrypted": true.
func IsEnvelope(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	var probe struct {
		Encrypted bool `json:"encrypted"`
	}
	return json.Unmarshal(trimmed, &probe) == nil && probe.Encrypted
}

// Open decrypts the envelope with a PBKDF2-SHA-256 key derived from password.
func (e *Envelope) Open(password string) ([]byte, error) {
	iv, err := base64.StdEncoding.DecodeString(e.IV)
	if err != nil {
		return nil, fmt.Errorf("%w: iv: %v", ErrDecrypt, err)
	}
	salt, err := base64.StdEncoding.DecodeString(e.Salt)
	if err != nil {
		return nil, fmt.Errorf("%w: salt: %v", ErrDecrypt, err)
	}
	data, err := base64.StdEncoding.DecodeString(e.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: data: %v", ErrDecrypt, err)
	}
	if len(iv) == 0 {
		return nil, fmt.Errorf("%w: empty iv", ErrDecrypt)
	}

	key := pbkdf2.Key([]byte(password), salt, envelopeIterations, envelopeKeyBytes, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, len(iv))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	plain, err := gcm.Open(nil, iv, data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: wrong password or corrupted data", ErrDecrypt)
	}
	return plain, nil
}

// unwrapEnvelope returns the plain JSON inside data, or data itself when it is
// not an envelope.
func unwrapEnvelope(data []byte, password string) ([]byte, error) {
	if !IsEnvelope(data) {
		return data, nil
	}
	if password == "" {
		return nil, ErrEncrypted
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parsing envelope: %w", err)
	}
	return env.Open(password)
}
