// Package encryption provides at-rest encryption for cached query results.
//
// Cached results in a multi-tenant deployment can contain regulated data, so
// the cache layer supports transparent AES-256-GCM encryption of stored
// values, following compliance requirements for GDPR, HIPAA, FISMA, and SOC2:
//   - GDPR Art.32: Appropriate security of processing
//   - HIPAA §164.312(a)(2)(iv): Encryption and decryption
//   - FISMA SC-13: Cryptographic Protection
//   - SOC2 CC6.1: Encryption
//
// Features:
//   - AES-256-GCM authenticated encryption
//   - Versioned keys (ciphertext carries its key version for rotation)
//   - Secure key derivation from a passphrase (PBKDF2-SHA256)
//
// Example:
//
//	key := encryption.DeriveKey("passphrase", salt, 600000)
//	enc, err := encryption.NewEncryptor(key)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	ciphertext, _ := enc.Encrypt(plaintext)
//	plaintext, _ = enc.Decrypt(ciphertext)
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/pbkdf2"
)

// Key version header size in encrypted data
const versionHeaderSize = 4

// DefaultIterations is the PBKDF2 iteration count (OWASP recommendation).
const DefaultIterations = 600000

// Errors
var (
	ErrInvalidKey       = errors.New("encryption: invalid key length (must be 32 bytes)")
	ErrInvalidData      = errors.New("encryption: invalid encrypted data")
	ErrDecryptionFailed = errors.New("encryption: decryption failed (authentication error)")
	ErrKeyNotFound      = errors.New("encryption: key version not found")
)

// Key is a versioned AES-256 key.
type Key struct {
	ID       uint32 // Key version ID, stored in the ciphertext header
	Material []byte // 32-byte AES-256 key
}

// Validate checks the key material length.
func (k *Key) Validate() error {
	if len(k.Material) != 32 {
		return ErrInvalidKey
	}
	return nil
}

// GenerateKey returns 32 bytes of cryptographically random key material.
func GenerateKey() ([]byte, error) {
	material := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, material); err != nil {
		return nil, fmt.Errorf("encryption: key generation failed: %w", err)
	}
	return material, nil
}

// DeriveKey derives a version-1 key from a passphrase using PBKDF2-SHA256.
//
// The salt should be unique per installation. Iterations <= 0 uses
// DefaultIterations.
func DeriveKey(passphrase string, salt []byte, iterations int) *Key {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	material := pbkdf2.Key([]byte(passphrase), salt, iterations, 32, sha256.New)
	return &Key{ID: 1, Material: material}
}

// Encryptor encrypts and decrypts byte slices with versioned AES-256-GCM keys.
//
// Ciphertext layout: 4-byte big-endian key version | GCM nonce | sealed data.
// Decryption selects the key by the version header, so old values remain
// readable after key rotation.
//
// Thread-safe.
type Encryptor struct {
	mu      sync.RWMutex
	keys    map[uint32]*Key
	current uint32
}

// NewEncryptor creates an Encryptor with a single active key.
func NewEncryptor(key *Key) (*Encryptor, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return &Encryptor{
		keys:    map[uint32]*Key{key.ID: key},
		current: key.ID,
	}, nil
}

// AddKey registers an additional key and makes it the active one if its
// version is newer than the current key. Older keys stay available for
// decryption.
func (e *Encryptor) AddKey(key *Key) error {
	if err := key.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.keys[key.ID] = key
	if key.ID > e.current {
		e.current = key.ID
	}
	return nil
}

// Encrypt seals plaintext with the current key.
func (e *Encryptor) Encrypt(plaintext []byte) ([]byte, error) {
	e.mu.RLock()
	key := e.keys[e.current]
	e.mu.RUnlock()

	gcm, err := newGCM(key.Material)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("encryption: nonce generation failed: %w", err)
	}

	out := make([]byte, versionHeaderSize, versionHeaderSize+len(nonce)+len(plaintext)+gcm.Overhead())
	binary.BigEndian.PutUint32(out, key.ID)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, plaintext, nil)
	return out, nil
}

// Decrypt opens ciphertext produced by Encrypt, selecting the key by the
// version header.
func (e *Encryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < versionHeaderSize {
		return nil, ErrInvalidData
	}
	version := binary.BigEndian.Uint32(ciphertext)

	e.mu.RLock()
	key, ok := e.keys[version]
	e.mu.RUnlock()
	if !ok {
		return nil, ErrKeyNotFound
	}

	gcm, err := newGCM(key.Material)
	if err != nil {
		return nil, err
	}

	rest := ciphertext[versionHeaderSize:]
	if len(rest) < gcm.NonceSize() {
		return nil, ErrInvalidData
	}
	nonce, sealed := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

func newGCM(material []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(material)
	if err != nil {
		return nil, fmt.Errorf("encryption: cipher init failed: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("encryption: GCM init failed: %w", err)
	}
	return gcm, nil
}
