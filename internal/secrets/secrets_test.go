package secrets

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStorage is a SecureStorage whose availability can be toggled
// between calls, like a platform keyring locking and unlocking.
type fakeStorage struct {
	available   bool
	failEncrypt bool
	failDecrypt bool
}

func (f *fakeStorage) IsAvailable() bool { return f.available }

func (f *fakeStorage) Encrypt(plaintext []byte) ([]byte, error) {
	if f.failEncrypt {
		return nil, errors.New("encrypt failed")
	}
	return xor(plaintext), nil
}

func (f *fakeStorage) Decrypt(ciphertext []byte) ([]byte, error) {
	if f.failDecrypt || !f.available {
		return nil, errors.New("decrypt failed")
	}
	return xor(ciphertext), nil
}

func xor(data []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ 0xAA
	}
	return out
}

func newTestStore(available bool) (*Store, *fakeStorage) {
	storage := &fakeStorage{available: available}
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewStore(storage, logger), storage
}

func TestRoundtripAllAvailabilityCombinations(t *testing.T) {
	const secret = "hunter2"

	for _, tc := range []struct {
		name                  string
		encryptAvail          bool
		decryptAvail          bool
	}{
		{"available throughout", true, true},
		{"never available", false, false},
		{"appears after write", false, true},
		{"disappears after write", true, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			store, storage := newTestStore(tc.encryptAvail)
			blob, encrypted := store.EncryptSecret(secret)
			assert.Equal(t, tc.encryptAvail, encrypted)

			storage.available = tc.decryptAvail
			got := store.DecryptSecret(blob)

			if tc.encryptAvail && !tc.decryptAvail {
				// Encrypted blob with the capability gone: the blob is
				// returned as-is rather than erroring.
				assert.Equal(t, blob, got)
			} else {
				assert.Equal(t, secret, got)
			}
		})
	}
}

func TestEncryptUnavailableReturnsPlaintext(t *testing.T) {
	store, _ := newTestStore(false)

	blob, encrypted := store.EncryptSecret("s3cret")
	assert.False(t, encrypted)
	assert.Equal(t, "s3cret", blob)
	assert.False(t, IsEncrypted(blob))
}

func TestEncryptFailureDegradesToPlaintext(t *testing.T) {
	store, storage := newTestStore(true)
	storage.failEncrypt = true

	blob, encrypted := store.EncryptSecret("s3cret")
	assert.False(t, encrypted)
	assert.Equal(t, "s3cret", blob)
}

func TestEncryptEmptySecret(t *testing.T) {
	store, _ := newTestStore(true)

	blob, encrypted := store.EncryptSecret("")
	assert.False(t, encrypted)
	assert.Empty(t, blob)
}

func TestDecryptPlaintextPassthrough(t *testing.T) {
	store, _ := newTestStore(true)

	// A plaintext secret stored while storage was down stays readable
	// after storage comes back.
	assert.Equal(t, "plain-password", store.DecryptSecret("plain-password"))
	assert.Equal(t, "", store.DecryptSecret(""))
}

func TestDecryptFailureReturnsBlob(t *testing.T) {
	store, storage := newTestStore(true)

	blob, encrypted := store.EncryptSecret("s3cret")
	require.True(t, encrypted)
	require.True(t, IsEncrypted(blob))

	storage.failDecrypt = true
	assert.Equal(t, blob, store.DecryptSecret(blob))
}

func TestBlobIsSelfDescribing(t *testing.T) {
	store, _ := newTestStore(true)

	blob, encrypted := store.EncryptSecret("s3cret")
	require.True(t, encrypted)
	assert.True(t, IsEncrypted(blob))

	// Values that merely look like the prefix but carry invalid
	// payloads are treated as plaintext.
	assert.False(t, IsEncrypted("sec1:!!not-base64!!"))
	assert.False(t, IsEncrypted("hunter2"))
	assert.Equal(t, "sec1:!!not-base64!!", store.DecryptSecret("sec1:!!not-base64!!"))
}
