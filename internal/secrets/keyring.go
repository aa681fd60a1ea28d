package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/99designs/keyring"
)

const dekItemKey = "mailcache-dek"

// KeyringStorage implements SecureStorage with AES-GCM, keyed by a
// random data-encryption key held in the operating system keyring. The
// keyring is reopened on every operation so availability tracks the
// platform service, not the state at construction time.
type KeyringStorage struct {
	service string
	fileDir string
}

// NewKeyringStorage creates a keyring-backed SecureStorage under the
// given service name. fileDir is used by the file fallback backend.
func NewKeyringStorage(service, fileDir string) *KeyringStorage {
	return &KeyringStorage{service: service, fileDir: fileDir}
}

func (k *KeyringStorage) open() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: k.service,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  k.fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(k.service + "-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// key loads the data-encryption key, creating it on first use.
func (k *KeyringStorage) key() ([]byte, error) {
	ring, err := k.open()
	if err != nil {
		return nil, err
	}

	item, err := ring.Get(dekItemKey)
	if err == nil {
		if len(item.Data) != 32 {
			return nil, errors.New("stored encryption key has wrong size")
		}
		return item.Data, nil
	}
	if !errors.Is(err, keyring.ErrKeyNotFound) {
		return nil, fmt.Errorf("reading encryption key: %w", err)
	}

	dek := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, dek); err != nil {
		return nil, fmt.Errorf("generating encryption key: %w", err)
	}
	if err := ring.Set(keyring.Item{Key: dekItemKey, Data: dek}); err != nil {
		return nil, fmt.Errorf("storing encryption key: %w", err)
	}
	return dek, nil
}

// IsAvailable reports whether the keyring can currently serve the
// data-encryption key.
func (k *KeyringStorage) IsAvailable() bool {
	_, err := k.key()
	return err == nil
}

// Encrypt seals plaintext with AES-GCM under the keyring-held key.
func (k *KeyringStorage) Encrypt(plaintext []byte) ([]byte, error) {
	dek, err := k.key()
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(dek)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a ciphertext produced by Encrypt.
func (k *KeyringStorage) Decrypt(ciphertext []byte) ([]byte, error) {
	dek, err := k.key()
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(dek)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, sealed, nil)
}
