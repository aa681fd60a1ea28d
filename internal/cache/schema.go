package cache

// Schema contains the SQL schema for the mailbox cache.
const Schema = `
-- Accounts table
CREATE TABLE IF NOT EXISTS accounts (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    email TEXT NOT NULL,
    provider TEXT NOT NULL DEFAULT '',
    imap_host TEXT NOT NULL,
    imap_port INTEGER NOT NULL,
    username TEXT NOT NULL,
    password TEXT,
    color TEXT NOT NULL DEFAULT '',
    storage_used INTEGER NOT NULL DEFAULT 0,
    storage_total INTEGER NOT NULL DEFAULT 0,
    last_uid INTEGER NOT NULL DEFAULT 0,
    last_sync_time TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Emails table
CREATE TABLE IF NOT EXISTS emails (
    id TEXT PRIMARY KEY,
    account_id TEXT NOT NULL,
    sender_name TEXT NOT NULL DEFAULT '',
    sender_email TEXT NOT NULL DEFAULT '',
    subject TEXT NOT NULL DEFAULT '',
    body TEXT NOT NULL DEFAULT '',
    body_html TEXT NOT NULL DEFAULT '',
    date TEXT NOT NULL,
    folder TEXT NOT NULL DEFAULT 'INBOX',
    smart_category TEXT,
    is_read INTEGER NOT NULL DEFAULT 0,
    is_flagged INTEGER NOT NULL DEFAULT 0,
    has_attachments INTEGER NOT NULL DEFAULT 0,
    uid INTEGER NOT NULL DEFAULT 0,
    FOREIGN KEY (account_id) REFERENCES accounts(id) ON DELETE CASCADE
);

-- Categories table
CREATE TABLE IF NOT EXISTS categories (
    name TEXT PRIMARY KEY,
    type TEXT NOT NULL CHECK(type IN ('system', 'folder', 'custom'))
);

-- Search history log, capped by the store
CREATE TABLE IF NOT EXISTS search_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    query TEXT NOT NULL,
    created_at TEXT NOT NULL
);

-- Indexes
CREATE INDEX IF NOT EXISTS idx_emails_account_id ON emails(account_id);
CREATE INDEX IF NOT EXISTS idx_emails_date ON emails(date);
CREATE INDEX IF NOT EXISTS idx_emails_sender_email ON emails(sender_email);
CREATE INDEX IF NOT EXISTS idx_emails_smart_category ON emails(smart_category);
CREATE INDEX IF NOT EXISTS idx_emails_folder_uid ON emails(account_id, folder, uid);
CREATE UNIQUE INDEX IF NOT EXISTS idx_emails_uid_unique ON emails(account_id, folder, uid) WHERE uid > 0;
`

// schemaTables lists the tables dropped by ResetAll, children first so
// foreign keys never dangle mid-drop.
var schemaTables = []string{"emails", "search_history", "categories", "accounts"}
