package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/jordan/mailcache/internal/secrets"
	"github.com/jordan/mailcache/pkg/types"
)

// toggleStorage is a secure-storage fake whose availability can change
// between calls.
type toggleStorage struct {
	available bool
}

func (f *toggleStorage) IsAvailable() bool { return f.available }

func (f *toggleStorage) Encrypt(plaintext []byte) ([]byte, error) {
	if !f.available {
		return nil, errors.New("storage unavailable")
	}
	return reverse(plaintext), nil
}

func (f *toggleStorage) Decrypt(ciphertext []byte) ([]byte, error) {
	if !f.available {
		return nil, errors.New("storage unavailable")
	}
	return reverse(ciphertext), nil
}

func reverse(data []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[len(data)-1-i] = b
	}
	return out
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// newTestStore creates a store over an isolated in-memory database.
func newTestStore(t *testing.T) (*Store, *toggleStorage) {
	t.Helper()

	logger := testLogger()
	c, err := NewCache(":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	storage := &toggleStorage{available: true}
	return NewStore(c, secrets.NewStore(storage, logger), logger), storage
}

func testAccount(id string) *types.Account {
	return &types.Account{
		ID:       id,
		Name:     "Work",
		Email:    id + "@example.com",
		Provider: "example",
		IMAPHost: "imap.example.com",
		IMAPPort: 993,
		Username: id + "@example.com",
		Password: "hunter2",
	}
}

func testEmail(id, accountID string, date time.Time) *types.Email {
	return &types.Email{
		ID:          id,
		AccountID:   accountID,
		SenderName:  "Alice",
		SenderEmail: "alice@example.com",
		Subject:     "Hello",
		Body:        "Hi there",
		Date:        date,
		Folder:      "INBOX",
	}
}
