package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	Iterations = 100_000
	KeySize    = 32 // AES-256
	SaltSize   = 16
	IVSize     = 12
)

// ErrDecrypt is the only error Decrypt reports, whatever went wrong.
var ErrDecrypt = errors.New("incorrect password or corrupted data")

// EncryptedPayload is the wire form of an encrypted message.
type EncryptedPayload struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	Salt       string `json:"salt"`
}

var b64 = base64.StdEncoding.Strict()

// Key is a password-derived AES-256-GCM key. The raw key bytes are not
// retained and cannot be read back.
type Key struct {
	aead cipher.AEAD
}

// DeriveKey runs PBKDF2-SHA256 over password and salt.
func DeriveKey(password string, salt []byte) (*Key, error) {
	raw := pbkdf2.Key([]byte(password), salt, Iterations, KeySize, sha256.New)
	defer clear(raw)
	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Key{aead: gcm}, nil
}

func (k *Key) seal(iv, plaintext []byte) []byte {
	return k.aead.Seal(nil, iv, plaintext, nil)
}

func (k *Key) open(iv, ciphertext []byte) ([]byte, error) {
	if len(iv) != k.aead.NonceSize() {
		return nil, ErrDecrypt
	}
	pt, err := k.aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return pt, nil
}

// GenerateSalt returns SaltSize random bytes.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("read salt: %w", err)
	}
	return salt, nil
}

// Encrypt seals plaintext under a key derived from password. Every call uses
// a fresh salt and IV.
func Encrypt(plaintext, password string) (EncryptedPayload, error) {
	salt, err := GenerateSalt()
	if err != nil {
		return EncryptedPayload{}, err
	}
	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return EncryptedPayload{}, fmt.Errorf("read iv: %w", err)
	}
	key, err := DeriveKey(password, salt)
	if err != nil {
		return EncryptedPayload{}, err
	}
	return EncryptedPayload{
		Ciphertext: b64.EncodeToString(key.seal(iv, []byte(plaintext))),
		IV:         b64.EncodeToString(iv),
		Salt:       b64.EncodeToString(salt),
	}, nil
}

// Decrypt opens p with a key derived from password. Any failure, including
// malformed fields, yields ErrDecrypt.
func Decrypt(p EncryptedPayload, password string) (string, error) {
	salt, err := b64.DecodeString(p.Salt)
	if err != nil {
		return "", ErrDecrypt
	}
	iv, err := b64.DecodeString(p.IV)
	if err != nil {
		return "", ErrDecrypt
	}
	ct, err := b64.DecodeString(p.Ciphertext)
	if err != nil {
		return "", ErrDecrypt
	}
	key, err := DeriveKey(password, salt)
	if err != nil {
		return "", ErrDecrypt
	}
	pt, err := key.open(iv, ct)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}
