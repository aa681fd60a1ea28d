package protocol

import "time"

// Credentials authenticates a protocol session.
type Credentials struct {
	Host     string
	Port     int
	Username string
	Password string
}

// RemoteMessage is a message as reported by the remote session:
// envelope metadata plus the raw flag collection. Bodies are fetched
// separately so metadata-only passes never pay for them.
type RemoteMessage struct {
	UID            uint32
	SenderName     string
	SenderEmail    string
	Subject        string
	Date           time.Time
	Flags          FlagSet
	HasAttachments bool
}

// Body is the content of a single message.
type Body struct {
	Text string
	HTML string
}

// Quota is the account-level storage usage reported by the session.
type Quota struct {
	Used  int64
	Total int64
}

// Session is an authenticated connection to a remote mail account.
type Session interface {
	// ListFolders returns the names of all folders visible on the
	// server.
	ListFolders() ([]string, error)
	// FetchSince returns envelope metadata for all messages in the
	// folder with UID strictly greater than sinceUID.
	FetchSince(folder string, sinceUID uint32) ([]RemoteMessage, error)
	// FetchBody returns the content of one message.
	FetchBody(folder string, uid uint32) (*Body, error)
	// Quota reports storage usage when the server exposes it; ok is
	// false otherwise.
	Quota() (q Quota, ok bool, err error)
	Close() error
}

// Dialer opens sessions. The sync engine depends on this interface
// only, so tests can substitute an in-memory session.
type Dialer interface {
	Connect(creds Credentials) (Session, error)
}
