package cache

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jordan/mailcache/internal/secrets"
	"github.com/jordan/mailcache/pkg/types"
)

// timeLayout is the canonical timestamp encoding. Values are stored in
// UTC at second precision so lexicographic comparison matches
// chronological order.
const timeLayout = time.RFC3339

// Store provides all persistence operations for accounts, emails,
// categories, and search history. It owns entity storage exclusively;
// the sync and search layers never keep independent copies.
type Store struct {
	cache   *Cache
	secrets *secrets.Store
	logger  *logrus.Logger
}

// NewStore creates a new store over an open cache handle. Secrets pass
// through the given secret store on the way in and out of the accounts
// table.
func NewStore(cache *Cache, sec *secrets.Store, logger *logrus.Logger) *Store {
	return &Store{
		cache:   cache,
		secrets: sec,
		logger:  logger,
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// AddAccount inserts a new account. The secret is passed through the
// credential store before storage; an empty secret is stored as NULL.
// Inserting a duplicate identifier fails with ErrDuplicateKey.
func (s *Store) AddAccount(acc *types.Account) error {
	var password sql.NullString
	if acc.Password != "" {
		blob, encrypted := s.secrets.EncryptSecret(acc.Password)
		password = sql.NullString{String: blob, Valid: true}
		if !encrypted {
			s.logger.WithField("account", acc.ID).Warn("Account secret stored without encryption")
		}
	}

	var lastSync sql.NullString
	if acc.LastSyncTime != nil {
		lastSync = sql.NullString{String: formatTime(*acc.LastSyncTime), Valid: true}
	}

	query := `
		INSERT INTO accounts (id, name, email, provider, imap_host, imap_port, username, password, color, storage_used, storage_total, last_uid, last_sync_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.cache.DB().Exec(query,
		acc.ID, acc.Name, acc.Email, acc.Provider, acc.IMAPHost, acc.IMAPPort,
		acc.Username, password, acc.Color, acc.StorageUsed, acc.StorageTotal,
		acc.LastUID, lastSync,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("account %q: %w", acc.ID, ErrDuplicateKey)
		}
		return fmt.Errorf("failed to add account: %w", err)
	}

	return nil
}

const accountColumns = `id, name, email, provider, imap_host, imap_port, username, password, color, storage_used, storage_total, last_uid, last_sync_time`

func scanAccount(row interface{ Scan(...interface{}) error }) (*types.Account, error) {
	var acc types.Account
	var password, lastSync sql.NullString

	err := row.Scan(
		&acc.ID, &acc.Name, &acc.Email, &acc.Provider, &acc.IMAPHost, &acc.IMAPPort,
		&acc.Username, &password, &acc.Color, &acc.StorageUsed, &acc.StorageTotal,
		&acc.LastUID, &lastSync,
	)
	if err != nil {
		return nil, err
	}

	if password.Valid {
		acc.Password = password.String
	}
	if lastSync.Valid {
		t := parseTime(lastSync.String)
		acc.LastSyncTime = &t
	}
	return &acc, nil
}

// GetAccounts returns all accounts with the secret field cleared.
// Secrets are never included in bulk listings.
func (s *Store) GetAccounts() ([]types.Account, error) {
	rows, err := s.cache.DB().Query(`SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []types.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		acc.Password = ""
		accounts = append(accounts, *acc)
	}

	return accounts, rows.Err()
}

// GetAccountWithPassword returns one account with the secret decrypted
// via the credential store. Unknown identifiers return nil, not an
// error.
func (s *Store) GetAccountWithPassword(id string) (*types.Account, error) {
	row := s.cache.DB().QueryRow(`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)

	acc, err := scanAccount(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	if acc.Password != "" {
		acc.Password = s.secrets.DecryptSecret(acc.Password)
	}
	return acc, nil
}

// UpdateAccountSync advances the account watermark and, when lastSync
// is non-nil, the last-sync timestamp. Updating an unknown identifier
// returns zero rows affected, not an error.
func (s *Store) UpdateAccountSync(id string, lastUID uint32, lastSync *time.Time) (int64, error) {
	var result sql.Result
	var err error
	if lastSync != nil {
		result, err = s.cache.DB().Exec(
			`UPDATE accounts SET last_uid = ?, last_sync_time = ? WHERE id = ?`,
			lastUID, formatTime(*lastSync), id,
		)
	} else {
		result, err = s.cache.DB().Exec(`UPDATE accounts SET last_uid = ? WHERE id = ?`, lastUID, id)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to update account sync state: %w", err)
	}
	return result.RowsAffected()
}

// UpdateAccountQuota updates the storage counters. Unknown identifiers
// return zero rows affected.
func (s *Store) UpdateAccountQuota(id string, used, total int64) (int64, error) {
	result, err := s.cache.DB().Exec(
		`UPDATE accounts SET storage_used = ?, storage_total = ? WHERE id = ?`,
		used, total, id,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update account quota: %w", err)
	}
	return result.RowsAffected()
}

// DeleteAccount removes an account and, by cascade, all its emails.
// Deleting an unknown identifier is a no-op.
func (s *Store) DeleteAccount(id string) (int64, error) {
	result, err := s.cache.DB().Exec(`DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete account: %w", err)
	}
	return result.RowsAffected()
}

const saveEmailQuery = `
	INSERT INTO emails (id, account_id, sender_name, sender_email, subject, body, body_html, date, folder, smart_category, is_read, is_flagged, has_attachments, uid)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		sender_name = excluded.sender_name,
		sender_email = excluded.sender_email,
		subject = excluded.subject,
		body = excluded.body,
		body_html = excluded.body_html,
		date = excluded.date,
		folder = excluded.folder,
		smart_category = excluded.smart_category,
		is_read = excluded.is_read,
		is_flagged = excluded.is_flagged,
		has_attachments = excluded.has_attachments,
		uid = excluded.uid
`

type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

func saveEmailOn(db execer, email *types.Email) error {
	if email.ID == "" {
		email.ID = uuid.New().String()
	}
	folder := email.Folder
	if folder == "" {
		folder = "INBOX"
	}

	var category sql.NullString
	if email.SmartCategory != "" {
		category = sql.NullString{String: email.SmartCategory, Valid: true}
	}

	_, err := db.Exec(saveEmailQuery,
		email.ID, email.AccountID, email.SenderName, email.SenderEmail,
		email.Subject, email.Body, email.BodyHTML, formatTime(email.Date),
		folder, category, boolToInt(email.IsRead), boolToInt(email.IsFlagged),
		boolToInt(email.HasAttachments), email.UID,
	)
	if err != nil {
		return fmt.Errorf("failed to save email: %w", err)
	}
	return nil
}

// SaveEmail upserts an email by identifier. An empty identifier is
// assigned a fresh UUID; unspecified flags default to false.
func (s *Store) SaveEmail(email *types.Email) error {
	return saveEmailOn(s.cache.DB(), email)
}

// SaveEmailBatch upserts a batch of emails in a single transaction, so
// a crash mid-batch leaves the cache without any of them rather than
// with a partial write the watermark could run past.
func (s *Store) SaveEmailBatch(emails []*types.Email) error {
	if len(emails) == 0 {
		return nil
	}

	tx, err := s.cache.DB().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, email := range emails {
		if err := saveEmailOn(tx, email); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// UpdateEmailFlags updates the read/flagged state of an already-cached
// message without touching its body. Unknown (account, folder, uid)
// triples return zero rows affected.
func (s *Store) UpdateEmailFlags(accountID, folder string, uid uint32, isRead, isFlagged bool) (int64, error) {
	result, err := s.cache.DB().Exec(
		`UPDATE emails SET is_read = ?, is_flagged = ? WHERE account_id = ? AND folder = ? AND uid = ?`,
		boolToInt(isRead), boolToInt(isFlagged), accountID, folder, uid,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update email flags: %w", err)
	}
	return result.RowsAffected()
}

// GetEmails returns all emails for an account, including bodies.
func (s *Store) GetEmails(accountID string) ([]types.Email, error) {
	query := `
		SELECT id, account_id, sender_name, sender_email, subject, body, body_html, date, folder, smart_category, is_read, is_flagged, has_attachments, uid
		FROM emails
		WHERE account_id = ?
		ORDER BY date DESC, rowid
	`
	rows, err := s.cache.DB().Query(query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query emails: %w", err)
	}
	defer rows.Close()

	var emails []types.Email
	for rows.Next() {
		var email types.Email
		var dateStr string
		var category sql.NullString
		var isRead, isFlagged, hasAttachments int

		err := rows.Scan(
			&email.ID, &email.AccountID, &email.SenderName, &email.SenderEmail,
			&email.Subject, &email.Body, &email.BodyHTML, &dateStr, &email.Folder,
			&category, &isRead, &isFlagged, &hasAttachments, &email.UID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan email: %w", err)
		}

		email.Date = parseTime(dateStr)
		if category.Valid {
			email.SmartCategory = category.String
		}
		email.IsRead = isRead != 0
		email.IsFlagged = isFlagged != 0
		email.HasAttachments = hasAttachments != 0

		emails = append(emails, email)
	}

	return emails, rows.Err()
}

// GetMaxUidForFolder returns the highest UID recorded for the given
// (account, folder), or 0 when none. This is the incremental-sync
// watermark read.
func (s *Store) GetMaxUidForFolder(accountID, folder string) (uint32, error) {
	var maxUID uint32
	err := s.cache.DB().QueryRow(
		`SELECT COALESCE(MAX(uid), 0) FROM emails WHERE account_id = ? AND folder = ?`,
		accountID, folder,
	).Scan(&maxUID)
	if err != nil {
		return 0, fmt.Errorf("failed to get max uid: %w", err)
	}
	return maxUID, nil
}

// GetAllUidsForFolder returns every UID recorded for the given
// (account, folder), used for flag-reconciliation passes.
func (s *Store) GetAllUidsForFolder(accountID, folder string) ([]uint32, error) {
	rows, err := s.cache.DB().Query(
		`SELECT uid FROM emails WHERE account_id = ? AND folder = ? AND uid > 0 ORDER BY uid`,
		accountID, folder,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query uids: %w", err)
	}
	defer rows.Close()

	var uids []uint32
	for rows.Next() {
		var uid uint32
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("failed to scan uid: %w", err)
		}
		uids = append(uids, uid)
	}

	return uids, rows.Err()
}

// MigrateFolder renames a physical folder across all emails referencing
// it. A folder or custom category stored under the old name is renamed
// in lockstep, together with any smart-category references to it. Safe
// to call when nothing references the old name.
func (s *Store) MigrateFolder(oldName, newName string) (int64, error) {
	tx, err := s.cache.DB().Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`UPDATE emails SET folder = ? WHERE folder = ?`, newName, oldName)
	if err != nil {
		return 0, fmt.Errorf("failed to migrate folder: %w", err)
	}
	changes, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	renamed, err := tx.Exec(
		`UPDATE categories SET name = ? WHERE name = ? AND type IN ('folder', 'custom')`,
		newName, oldName,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("category %q: %w", newName, ErrDuplicateKey)
		}
		return 0, fmt.Errorf("failed to rename folder category: %w", err)
	}
	if n, _ := renamed.RowsAffected(); n > 0 {
		if _, err := tx.Exec(`UPDATE emails SET smart_category = ? WHERE smart_category = ?`, newName, oldName); err != nil {
			return 0, fmt.Errorf("failed to update category references: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit folder migration: %w", err)
	}
	return changes, nil
}

// ReencryptSecrets re-encrypts any plaintext account secrets once
// secure storage is available, skipping secrets that are already
// encrypted. Returns the number of secrets migrated; idempotent.
func (s *Store) ReencryptSecrets() (int, error) {
	if !s.secrets.Available() {
		return 0, nil
	}

	rows, err := s.cache.DB().Query(`SELECT id, password FROM accounts WHERE password IS NOT NULL AND password != ''`)
	if err != nil {
		return 0, fmt.Errorf("failed to query account secrets: %w", err)
	}
	defer rows.Close()

	type pending struct {
		id     string
		secret string
	}
	var todo []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.secret); err != nil {
			return 0, fmt.Errorf("failed to scan account secret: %w", err)
		}
		if secrets.IsEncrypted(p.secret) {
			continue
		}
		todo = append(todo, p)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	migrated := 0
	for _, p := range todo {
		blob, encrypted := s.secrets.EncryptSecret(p.secret)
		if !encrypted {
			// Capability disappeared mid-migration; the remaining
			// secrets stay plaintext until the next run.
			continue
		}
		if _, err := s.cache.DB().Exec(`UPDATE accounts SET password = ? WHERE id = ?`, blob, p.id); err != nil {
			return migrated, fmt.Errorf("failed to store re-encrypted secret: %w", err)
		}
		migrated++
	}

	if migrated > 0 {
		s.logger.WithField("count", migrated).Info("Re-encrypted plaintext account secrets")
	}
	return migrated, nil
}

// ResetAll drops and recreates the schema, returning the store to its
// empty initial state. Subsequent operations work immediately.
func (s *Store) ResetAll() error {
	for _, table := range schemaTables {
		if _, err := s.cache.DB().Exec(`DROP TABLE IF EXISTS ` + table); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}
	if err := s.cache.initSchema(); err != nil {
		return err
	}
	s.logger.Info("Cache reset to initial state")
	return nil
}
