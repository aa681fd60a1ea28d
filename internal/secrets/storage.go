package secrets

import (
	"encoding/base64"
	"strings"
)

// SecureStorage is the platform secure-storage capability. Availability
// can change between calls (the backing service may lock, disappear, or
// become reachable again), so IsAvailable must be consulted fresh per
// operation rather than cached at startup.
type SecureStorage interface {
	IsAvailable() bool
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// blobPrefix marks a stored secret as an encrypted container. The blob
// self-describes so a reader never has to know whether secure storage
// was available when the secret was written.
const blobPrefix = "sec1:"

// encodeBlob wraps raw ciphertext into the stored blob format.
func encodeBlob(ciphertext []byte) string {
	return blobPrefix + base64.StdEncoding.EncodeToString(ciphertext)
}

// decodeBlob extracts raw ciphertext from a stored blob. The second
// return is false when the value is not an encrypted container and
// should be treated as plaintext.
func decodeBlob(blob string) ([]byte, bool) {
	if !strings.HasPrefix(blob, blobPrefix) {
		return nil, false
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(blob, blobPrefix))
	if err != nil {
		return nil, false
	}
	return raw, true
}

// IsEncrypted reports whether a stored secret is an encrypted container.
func IsEncrypted(blob string) bool {
	_, ok := decodeBlob(blob)
	return ok
}
