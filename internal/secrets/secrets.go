package secrets

import (
	"github.com/sirupsen/logrus"
)

// Store encrypts and decrypts account secrets. When the underlying
// secure-storage capability is unavailable or fails, both directions
// degrade to plaintext pass-through: a failed encrypt stores the secret
// as-is, and a decrypt of a value that is not an encrypted container
// returns it unchanged. Callers therefore never fail an account
// operation because of the secret layer.
type Store struct {
	storage SecureStorage
	logger  *logrus.Logger
}

// NewStore creates a secret store over the given capability.
func NewStore(storage SecureStorage, logger *logrus.Logger) *Store {
	return &Store{storage: storage, logger: logger}
}

// EncryptSecret encrypts plaintext for storage. The second return
// reports whether encryption actually happened; false means the value
// was stored as plaintext because secure storage was unavailable or the
// encrypt attempt failed.
func (s *Store) EncryptSecret(plaintext string) (string, bool) {
	if plaintext == "" {
		return "", false
	}
	if !s.storage.IsAvailable() {
		s.logger.Warn("Secure storage unavailable, storing secret as plaintext")
		return plaintext, false
	}

	sealed, err := s.storage.Encrypt([]byte(plaintext))
	if err != nil {
		s.logger.WithError(err).Warn("Secret encryption failed, storing as plaintext")
		return plaintext, false
	}
	return encodeBlob(sealed), true
}

// DecryptSecret returns the plaintext for a stored blob. Values that
// are not encrypted containers are returned unchanged. A decrypt
// failure on an encrypted container returns the blob as-is with a
// warning rather than erroring, so a transient capability outage never
// loses access to the account record itself.
func (s *Store) DecryptSecret(blob string) string {
	raw, ok := decodeBlob(blob)
	if !ok {
		return blob
	}

	plaintext, err := s.storage.Decrypt(raw)
	if err != nil {
		s.logger.WithError(err).Warn("Secret decryption failed")
		return blob
	}
	return string(plaintext)
}

// Available reports whether secure storage can currently be used. The
// check is live; callers must not cache the result across operations.
func (s *Store) Available() bool {
	return s.storage.IsAvailable()
}
