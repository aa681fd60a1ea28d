package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	gosync "sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/jordan/mailcache/internal/cache"
	"github.com/jordan/mailcache/internal/protocol"
	"github.com/jordan/mailcache/pkg/types"
)

// defaultFolder is the folder whose watermark is mirrored onto the
// account record.
const defaultFolder = "INBOX"

// AccountError reports a failed sync for one account. It carries the
// underlying protocol or storage cause and never affects other
// accounts' syncs.
type AccountError struct {
	AccountID string
	Err       error
}

func (e *AccountError) Error() string {
	return fmt.Sprintf("sync failed for account %s: %v", e.AccountID, e.Err)
}

func (e *AccountError) Unwrap() error {
	return e.Err
}

// Engine performs per-account incremental synchronization between a
// remote session and the cache. Concurrent syncs of the same account
// are serialized; different accounts run independently.
type Engine struct {
	store  *cache.Store
	dialer protocol.Dialer
	logger *logrus.Logger

	mu    gosync.Mutex
	locks map[string]*gosync.Mutex
}

// New creates a sync engine over the given store and session dialer.
func New(store *cache.Store, dialer protocol.Dialer, logger *logrus.Logger) *Engine {
	return &Engine{
		store:  store,
		dialer: dialer,
		logger: logger,
		locks:  make(map[string]*gosync.Mutex),
	}
}

// accountLock returns the serialization lock for one account.
func (e *Engine) accountLock(accountID string) *gosync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, ok := e.locks[accountID]
	if !ok {
		lock = &gosync.Mutex{}
		e.locks[accountID] = lock
	}
	return lock
}

// SyncAccount runs one full synchronization of an account: resolve
// credentials, open a session, then for each folder fetch everything
// above the stored watermark and persist it batch-by-batch. At most one
// sync per account is in flight at a time. Failures return an
// AccountError and leave previously committed folders intact.
func (e *Engine) SyncAccount(ctx context.Context, accountID string) error {
	lock := e.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	account, err := e.store.GetAccountWithPassword(accountID)
	if err != nil {
		return &AccountError{AccountID: accountID, Err: err}
	}
	if account == nil {
		return &AccountError{AccountID: accountID, Err: errors.New("account not found")}
	}

	session, err := e.dialer.Connect(protocol.Credentials{
		Host:     account.IMAPHost,
		Port:     account.IMAPPort,
		Username: account.Username,
		Password: account.Password,
	})
	if err != nil {
		return &AccountError{AccountID: accountID, Err: err}
	}
	defer session.Close()

	folders, err := session.ListFolders()
	if err != nil {
		return &AccountError{AccountID: accountID, Err: err}
	}
	if len(folders) == 0 {
		folders = []string{defaultFolder}
	}
	e.registerFolderCategories(folders)

	for _, folder := range folders {
		// Cancellation takes effect between batches, never inside one.
		select {
		case <-ctx.Done():
			return &AccountError{AccountID: accountID, Err: ctx.Err()}
		default:
		}

		if err := e.syncFolder(account, session, folder); err != nil {
			return &AccountError{AccountID: accountID, Err: err}
		}
	}

	if quota, ok, err := session.Quota(); err != nil {
		e.logger.WithError(err).WithField("account", accountID).Warn("Failed to read quota")
	} else if ok {
		if _, err := e.store.UpdateAccountQuota(accountID, quota.Used, quota.Total); err != nil {
			return &AccountError{AccountID: accountID, Err: err}
		}
	}

	e.logger.WithFields(logrus.Fields{
		"account": accountID,
		"folders": len(folders),
	}).Info("Account synced")
	return nil
}

// syncFolder reconciles a single folder: read the watermark, fetch only
// newer UIDs, enrich bodies for messages not yet cached, persist the
// batch in one transaction, and only then advance the watermark. A
// crash mid-batch re-fetches the same range on the next run.
func (e *Engine) syncFolder(account *types.Account, session protocol.Session, folder string) error {
	since, err := e.store.GetMaxUidForFolder(account.ID, folder)
	if err != nil {
		return err
	}

	messages, err := session.FetchSince(folder, since)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}

	cached, err := e.store.GetAllUidsForFolder(account.ID, folder)
	if err != nil {
		return err
	}
	cachedSet := make(map[uint32]struct{}, len(cached))
	for _, uid := range cached {
		cachedSet[uid] = struct{}{}
	}

	maxUID := since
	var batch []*types.Email
	for _, msg := range messages {
		if msg.UID > maxUID {
			maxUID = msg.UID
		}

		// Absent or empty flag collections resolve both flags to false.
		isRead := msg.Flags.IsRead()
		isFlagged := msg.Flags.IsFlagged()

		if _, ok := cachedSet[msg.UID]; ok {
			// Metadata-only update; the body is already cached.
			if _, err := e.store.UpdateEmailFlags(account.ID, folder, msg.UID, isRead, isFlagged); err != nil {
				return err
			}
			continue
		}

		body, err := session.FetchBody(folder, msg.UID)
		if err != nil {
			return err
		}

		batch = append(batch, &types.Email{
			ID:             emailID(account.ID, folder, msg.UID),
			AccountID:      account.ID,
			SenderName:     msg.SenderName,
			SenderEmail:    msg.SenderEmail,
			Subject:        msg.Subject,
			Body:           body.Text,
			BodyHTML:       body.HTML,
			Date:           msg.Date,
			Folder:         folder,
			IsRead:         isRead,
			IsFlagged:      isFlagged,
			HasAttachments: msg.HasAttachments,
			UID:            msg.UID,
		})
	}

	if err := e.store.SaveEmailBatch(batch); err != nil {
		return err
	}

	if strings.EqualFold(folder, defaultFolder) {
		now := time.Now()
		if _, err := e.store.UpdateAccountSync(account.ID, maxUID, &now); err != nil {
			return err
		}
	}

	e.logger.WithFields(logrus.Fields{
		"account": account.ID,
		"folder":  folder,
		"fetched": len(messages),
		"new":     len(batch),
	}).Info("Synced folder")
	return nil
}

// SyncAll syncs every configured account concurrently. One account's
// failure never aborts the others; the per-account errors are joined
// into the returned error.
func (e *Engine) SyncAll(ctx context.Context) error {
	accounts, err := e.store.GetAccounts()
	if err != nil {
		return err
	}

	var g errgroup.Group
	var mu gosync.Mutex
	var failures []error

	for _, account := range accounts {
		accountID := account.ID
		g.Go(func() error {
			if err := e.SyncAccount(ctx, accountID); err != nil {
				e.logger.WithError(err).WithField("account", accountID).Error("Account sync failed")
				mu.Lock()
				failures = append(failures, err)
				mu.Unlock()
			}
			return nil
		})
	}

	g.Wait() //nolint:errcheck
	return errors.Join(failures...)
}

// registerFolderCategories records discovered folders as categories:
// the protocol's default folders as system, everything else as folder.
// Existing categories are left untouched.
func (e *Engine) registerFolderCategories(folders []string) {
	for _, folder := range folders {
		categoryType := types.CategoryFolder
		if isSystemFolder(folder) {
			categoryType = types.CategorySystem
		}
		if err := e.store.AddCategory(folder, categoryType); err != nil && !errors.Is(err, cache.ErrDuplicateKey) {
			e.logger.WithError(err).WithField("folder", folder).Warn("Failed to register folder category")
		}
	}
}

var systemFolders = map[string]bool{
	"inbox":  true,
	"sent":   true,
	"spam":   true,
	"junk":   true,
	"trash":  true,
	"drafts": true,
}

func isSystemFolder(name string) bool {
	return systemFolders[strings.ToLower(name)]
}

// emailID derives the cache identifier for a synced message. It is
// deterministic so an at-least-once re-fetch of the same range upserts
// instead of duplicating.
func emailID(accountID, folder string, uid uint32) string {
	return fmt.Sprintf("%s:%s:%d", accountID, folder, uid)
}
