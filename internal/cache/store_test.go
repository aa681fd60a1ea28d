package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordan/mailcache/internal/secrets"
	"github.com/jordan/mailcache/pkg/types"
)

func TestAddAccountDuplicateID(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.AddAccount(testAccount("acc-1")))

	err := store.AddAccount(testAccount("acc-1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestGetAccountsNeverIncludesSecrets(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.AddAccount(testAccount("acc-1")))
	require.NoError(t, store.AddAccount(testAccount("acc-2")))

	accounts, err := store.GetAccounts()
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	for _, acc := range accounts {
		assert.Empty(t, acc.Password)
	}
}

func TestGetAccountWithPassword(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.AddAccount(testAccount("acc-1")))

	acc, err := store.GetAccountWithPassword("acc-1")
	require.NoError(t, err)
	require.NotNil(t, acc)
	assert.Equal(t, "hunter2", acc.Password)
	assert.Equal(t, "imap.example.com", acc.IMAPHost)
}

func TestGetAccountWithPasswordMissing(t *testing.T) {
	store, _ := newTestStore(t)

	acc, err := store.GetAccountWithPassword("nope")
	require.NoError(t, err)
	assert.Nil(t, acc)
}

func TestAccountSecretEncryptedAtRest(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.AddAccount(testAccount("acc-1")))

	var stored string
	err := store.cache.DB().QueryRow(`SELECT password FROM accounts WHERE id = ?`, "acc-1").Scan(&stored)
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", stored)
	assert.True(t, secrets.IsEncrypted(stored))
}

func TestAddAccountEmptySecretStoredAsNull(t *testing.T) {
	store, _ := newTestStore(t)

	acc := testAccount("acc-1")
	acc.Password = ""
	require.NoError(t, store.AddAccount(acc))

	var count int
	err := store.cache.DB().QueryRow(`SELECT COUNT(*) FROM accounts WHERE id = ? AND password IS NULL`, "acc-1").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUpdateAccountSync(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.AddAccount(testAccount("acc-1")))

	now := time.Now()
	changes, err := store.UpdateAccountSync("acc-1", 42, &now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, changes)

	acc, err := store.GetAccountWithPassword("acc-1")
	require.NoError(t, err)
	assert.EqualValues(t, 42, acc.LastUID)
	require.NotNil(t, acc.LastSyncTime)
	assert.WithinDuration(t, now, *acc.LastSyncTime, time.Second)
}

func TestUpdateAccountSyncMissingIsZeroChanges(t *testing.T) {
	store, _ := newTestStore(t)

	changes, err := store.UpdateAccountSync("nope", 42, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 0, changes)
}

func TestUpdateAccountQuota(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.AddAccount(testAccount("acc-1")))

	changes, err := store.UpdateAccountQuota("acc-1", 1024, 4096)
	require.NoError(t, err)
	assert.EqualValues(t, 1, changes)

	changes, err = store.UpdateAccountQuota("nope", 1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 0, changes)
}

func TestDeleteAccountCascadesToEmails(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.AddAccount(testAccount("acc-1")))
	require.NoError(t, store.AddAccount(testAccount("acc-2")))
	require.NoError(t, store.SaveEmail(testEmail("m-1", "acc-1", time.Now())))
	require.NoError(t, store.SaveEmail(testEmail("m-2", "acc-1", time.Now())))
	require.NoError(t, store.SaveEmail(testEmail("m-3", "acc-2", time.Now())))

	changes, err := store.DeleteAccount("acc-1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, changes)

	orphans, err := store.GetEmails("acc-1")
	require.NoError(t, err)
	assert.Empty(t, orphans)

	kept, err := store.GetEmails("acc-2")
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}

func TestDeleteAccountUnknownIsNoop(t *testing.T) {
	store, _ := newTestStore(t)

	changes, err := store.DeleteAccount("nope")
	require.NoError(t, err)
	assert.EqualValues(t, 0, changes)
}

func TestSaveEmailDefaultsAndUpsert(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.AddAccount(testAccount("acc-1")))

	email := &types.Email{
		ID:        "m-1",
		AccountID: "acc-1",
		Subject:   "First",
		Date:      time.Now(),
	}
	require.NoError(t, store.SaveEmail(email))

	emails, err := store.GetEmails("acc-1")
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Equal(t, "INBOX", emails[0].Folder)
	assert.False(t, emails[0].IsRead)
	assert.False(t, emails[0].IsFlagged)
	assert.False(t, emails[0].HasAttachments)

	email.Subject = "Updated"
	email.IsRead = true
	require.NoError(t, store.SaveEmail(email))

	emails, err = store.GetEmails("acc-1")
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Equal(t, "Updated", emails[0].Subject)
	assert.True(t, emails[0].IsRead)
}

func TestSaveEmailAssignsID(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.AddAccount(testAccount("acc-1")))

	email := testEmail("", "acc-1", time.Now())
	require.NoError(t, store.SaveEmail(email))
	assert.NotEmpty(t, email.ID)
}

func TestGetMaxUidForFolder(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.AddAccount(testAccount("acc-1")))

	// Empty folder reads as watermark zero.
	uid, err := store.GetMaxUidForFolder("acc-1", "INBOX")
	require.NoError(t, err)
	assert.EqualValues(t, 0, uid)

	for i, n := range []uint32{3, 7, 5} {
		email := testEmail("", "acc-1", time.Now())
		email.ID = ""
		email.UID = n
		if i == 2 {
			email.Folder = "Archive"
		}
		require.NoError(t, store.SaveEmail(email))
	}

	uid, err = store.GetMaxUidForFolder("acc-1", "INBOX")
	require.NoError(t, err)
	assert.EqualValues(t, 7, uid)

	uid, err = store.GetMaxUidForFolder("acc-1", "Archive")
	require.NoError(t, err)
	assert.EqualValues(t, 5, uid)
}

func TestGetAllUidsForFolder(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.AddAccount(testAccount("acc-1")))

	for _, n := range []uint32{9, 2, 4} {
		email := testEmail("", "acc-1", time.Now())
		email.UID = n
		require.NoError(t, store.SaveEmail(email))
	}

	uids, err := store.GetAllUidsForFolder("acc-1", "INBOX")
	require.NoError(t, err)
	assert.Equal(t, []uint32{2, 4, 9}, uids)
}

func TestUidUniquePerAccountFolder(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.AddAccount(testAccount("acc-1")))

	first := testEmail("m-1", "acc-1", time.Now())
	first.UID = 10
	require.NoError(t, store.SaveEmail(first))

	// A different row with the same (account, folder, uid) is a
	// uniqueness violation, not a silent duplicate.
	second := testEmail("m-2", "acc-1", time.Now())
	second.UID = 10
	assert.Error(t, store.SaveEmail(second))

	// The same UID in another folder is fine.
	third := testEmail("m-3", "acc-1", time.Now())
	third.UID = 10
	third.Folder = "Archive"
	assert.NoError(t, store.SaveEmail(third))
}

func TestMigrateFolder(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.AddAccount(testAccount("acc-1")))

	for i := 0; i < 3; i++ {
		email := testEmail("", "acc-1", time.Now())
		email.Folder = "OldFolder"
		email.UID = uint32(i + 1)
		require.NoError(t, store.SaveEmail(email))
	}

	changes, err := store.MigrateFolder("OldFolder", "NewFolder")
	require.NoError(t, err)
	assert.EqualValues(t, 3, changes)

	emails, err := store.GetEmails("acc-1")
	require.NoError(t, err)
	for _, e := range emails {
		assert.Equal(t, "NewFolder", e.Folder)
	}
}

func TestMigrateFolderNoReferencesIsNoop(t *testing.T) {
	store, _ := newTestStore(t)

	changes, err := store.MigrateFolder("OldFolder", "NewFolder")
	require.NoError(t, err)
	assert.EqualValues(t, 0, changes)
}

func TestMigrateFolderRenamesCategoryInLockstep(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.AddAccount(testAccount("acc-1")))
	require.NoError(t, store.AddCategory("OldFolder", types.CategoryFolder))

	email := testEmail("m-1", "acc-1", time.Now())
	email.Folder = "OldFolder"
	email.SmartCategory = "OldFolder"
	require.NoError(t, store.SaveEmail(email))

	_, err := store.MigrateFolder("OldFolder", "NewFolder")
	require.NoError(t, err)

	categories, err := store.GetCategories()
	require.NoError(t, err)
	require.Len(t, categories, 1)
	assert.Equal(t, "NewFolder", categories[0].Name)

	emails, err := store.GetEmails("acc-1")
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Equal(t, "NewFolder", emails[0].Folder)
	assert.Equal(t, "NewFolder", emails[0].SmartCategory)
}

func TestMigrateFolderLeavesSystemCategoryAlone(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.AddCategory("OldFolder", types.CategorySystem))

	_, err := store.MigrateFolder("OldFolder", "NewFolder")
	require.NoError(t, err)

	categories, err := store.GetCategories()
	require.NoError(t, err)
	require.Len(t, categories, 1)
	assert.Equal(t, "OldFolder", categories[0].Name)
}

func TestReencryptSecrets(t *testing.T) {
	store, storage := newTestStore(t)

	// Secret written while storage was down lands as plaintext.
	storage.available = false
	require.NoError(t, store.AddAccount(testAccount("acc-1")))

	var stored string
	require.NoError(t, store.cache.DB().QueryRow(`SELECT password FROM accounts WHERE id = ?`, "acc-1").Scan(&stored))
	require.Equal(t, "hunter2", stored)

	// Storage comes back; the migration encrypts it in place.
	storage.available = true
	migrated, err := store.ReencryptSecrets()
	require.NoError(t, err)
	assert.Equal(t, 1, migrated)

	require.NoError(t, store.cache.DB().QueryRow(`SELECT password FROM accounts WHERE id = ?`, "acc-1").Scan(&stored))
	assert.True(t, secrets.IsEncrypted(stored))

	// Idempotent: already-encrypted secrets are skipped.
	migrated, err = store.ReencryptSecrets()
	require.NoError(t, err)
	assert.Equal(t, 0, migrated)

	// And the secret still decrypts.
	acc, err := store.GetAccountWithPassword("acc-1")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", acc.Password)
}

func TestResetAll(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.AddAccount(testAccount("acc-1")))
	require.NoError(t, store.SaveEmail(testEmail("m-1", "acc-1", time.Now())))
	require.NoError(t, store.AddCategory("Receipts", types.CategoryCustom))

	require.NoError(t, store.ResetAll())

	accounts, err := store.GetAccounts()
	require.NoError(t, err)
	assert.Empty(t, accounts)

	categories, err := store.GetCategories()
	require.NoError(t, err)
	assert.Empty(t, categories)

	// The store is immediately usable again.
	require.NoError(t, store.AddAccount(testAccount("acc-1")))
}
