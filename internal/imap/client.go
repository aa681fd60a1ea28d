package imap

import (
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/jhillyerd/enmime"
	"github.com/sirupsen/logrus"

	"github.com/jordan/mailcache/internal/protocol"
)

// Dialer opens IMAP sessions over TLS.
type Dialer struct {
	logger *logrus.Logger
}

// NewDialer creates an IMAP dialer.
func NewDialer(logger *logrus.Logger) *Dialer {
	return &Dialer{logger: logger}
}

// Connect dials the server and authenticates.
func (d *Dialer) Connect(creds protocol.Credentials) (protocol.Session, error) {
	addr := fmt.Sprintf("%s:%d", creds.Host, creds.Port)

	cl, err := client.DialTLS(addr, &tls.Config{
		ServerName: creds.Host,
		MinVersion: tls.VersionTLS12,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	if err := cl.Login(creds.Username, creds.Password); err != nil {
		cl.Logout() //nolint:errcheck
		return nil, fmt.Errorf("failed to login to IMAP server: %w", err)
	}

	d.logger.WithField("host", creds.Host).Debug("Connected to IMAP server")
	return &session{client: cl, logger: d.logger}, nil
}

// session implements protocol.Session over a logged-in IMAP client.
type session struct {
	client *client.Client
	logger *logrus.Logger
}

// ListFolders lists all mailboxes on the server.
func (s *session) ListFolders() ([]string, error) {
	mailboxes := make(chan *imap.MailboxInfo, 10)
	done := make(chan error, 1)

	go func() {
		done <- s.client.List("", "*", mailboxes)
	}()

	var folders []string
	for m := range mailboxes {
		folders = append(folders, m.Name)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	return folders, nil
}

// FetchSince fetches envelope metadata for messages with UID greater
// than sinceUID.
func (s *session) FetchSince(folder string, sinceUID uint32) ([]protocol.RemoteMessage, error) {
	mbox, err := s.client.Select(folder, true)
	if err != nil {
		return nil, fmt.Errorf("failed to select folder: %w", err)
	}
	if mbox.Messages == 0 {
		return nil, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddRange(sinceUID+1, 0)

	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchFlags, imap.FetchInternalDate, imap.FetchUid, imap.FetchBodyStructure}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)

	go func() {
		done <- s.client.UidFetch(seqSet, items, messages)
	}()

	var result []protocol.RemoteMessage
	for msg := range messages {
		// Servers answer an N:* range past the highest UID with the
		// last message in the mailbox; drop anything at or below the
		// watermark so already-synced UIDs are never re-reported.
		if msg.Uid <= sinceUID {
			continue
		}
		result = append(result, parseMessage(msg))
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	return result, nil
}

// parseMessage converts an IMAP message into the protocol type.
func parseMessage(msg *imap.Message) protocol.RemoteMessage {
	remote := protocol.RemoteMessage{
		UID:   msg.Uid,
		Date:  msg.InternalDate,
		Flags: protocol.NewFlagSet(msg.Flags),
	}

	if msg.Envelope != nil {
		remote.Subject = msg.Envelope.Subject
		if !msg.Envelope.Date.IsZero() {
			remote.Date = msg.Envelope.Date
		}
		if len(msg.Envelope.From) > 0 {
			addr := msg.Envelope.From[0]
			remote.SenderName = addr.PersonalName
			remote.SenderEmail = addr.Address()
		}
	}

	remote.HasAttachments = hasAttachments(msg.BodyStructure)
	return remote
}

// hasAttachments walks a body structure looking for attachment parts.
func hasAttachments(bs *imap.BodyStructure) bool {
	if bs == nil {
		return false
	}
	if strings.EqualFold(bs.Disposition, "attachment") {
		return true
	}
	for _, part := range bs.Parts {
		if hasAttachments(part) {
			return true
		}
	}
	return false
}

// FetchBody fetches and parses the content of a single message.
func (s *session) FetchBody(folder string, uid uint32) (*protocol.Body, error) {
	if _, err := s.client.Select(folder, true); err != nil {
		return nil, fmt.Errorf("failed to select folder: %w", err)
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)

	go func() {
		done <- s.client.UidFetch(seqSet, items, messages)
	}()

	var body *protocol.Body
	for msg := range messages {
		literal := msg.GetBody(section)
		if literal == nil {
			continue
		}

		env, err := enmime.ReadEnvelope(literal)
		if err != nil {
			s.logger.WithError(err).WithField("uid", uid).Debug("Failed to parse message body")
			continue
		}
		body = &protocol.Body{Text: env.Text, HTML: env.HTML}
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch message body: %w", err)
	}
	if body == nil {
		return &protocol.Body{}, nil
	}
	return body, nil
}

// Quota is not exposed by the base protocol; servers that support it
// need the QUOTA extension, which this client does not negotiate.
func (s *session) Quota() (protocol.Quota, bool, error) {
	return protocol.Quota{}, false, nil
}

// Close logs out and closes the connection.
func (s *session) Close() error {
	return s.client.Logout()
}
