package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// AESEncryption handles 256-bit AES-GCM encryption/decryption
type AESEncryption struct {
	key []byte
}

// NewAESEncryption creates a new AES encryption instance from a raw 32-byte key
func NewAESEncryption(key []byte) (*AESEncryption, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("invalid key length: expected 32 bytes, got %d", len(key))
	}

	return &AESEncryption{
		key: append([]byte(nil), key...),
	}, nil
}

// Encrypt encrypts plaintext using AES-256-GCM. The nonce is prepended to
// the ciphertext.
func (a *AESEncryption) Encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(a.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher block: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)

	return ciphertext, nil
}

// Decrypt decrypts ciphertext using AES-256-GCM
func (a *AESEncryption) Decrypt(ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(a.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher block: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}

	return plaintext, nil
}

// KeyDeriver derives per-subject encryption keys from the master key
type KeyDeriver struct {
	masterKey  []byte
	salt       []byte
	iterations int
}

// NewKeyDeriver creates a key deriver with the given PBKDF2 parameters
func NewKeyDeriver(masterKey, salt []byte, iterations int) (*KeyDeriver, error) {
	if len(masterKey) == 0 {
		return nil, fmt.Errorf("master key is required")
	}
	if iterations <= 0 {
		return nil, fmt.Errorf("invalid iteration count: %d", iterations)
	}

	return &KeyDeriver{
		masterKey:  append([]byte(nil), masterKey...),
		salt:       append([]byte(nil), salt...),
		iterations: iterations,
	}, nil
}

// DeriveSubjectKey derives a 256-bit key bound to the subject. The subject ID
// is folded into the salt so distinct subjects never share a key.
func (d *KeyDeriver) DeriveSubjectKey(subjectID string) []byte {
	salt := make([]byte, 0, len(d.salt)+len(subjectID))
	salt = append(salt, d.salt...)
	salt = append(salt, []byte(subjectID)...)

	return pbkdf2.Key(d.masterKey, salt, d.iterations, 32, sha256.New)
}

// SubjectCipher returns an AES cipher keyed for the subject
func (d *KeyDeriver) SubjectCipher(subjectID string) (*AESEncryption, error) {
	return NewAESEncryption(d.DeriveSubjectKey(subjectID))
}

// GenerateKey generates a new 256-bit encryption key
func GenerateKey() (string, error) {
	key := make([]byte, 32) // 256 bits
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}

	return base64.StdEncoding.EncodeToString(key), nil
}

// HashData generates the SHA-256 content hash anchored on the ledger
func HashData(data []byte) []byte {
	hash := sha256.Sum256(data)
	return hash[:]
}

// HashHex returns the hex form of the SHA-256 content hash
func HashHex(data []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(data))
}
