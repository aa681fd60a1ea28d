package types

import "time"

// Account is a configured mail account and its cached sync state.
// Password holds the stored secret blob, which is either an encrypted
// container or plaintext depending on secure-storage availability at
// write time. Bulk listings must clear it before returning.
type Account struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Provider     string     `json:"provider"`
	IMAPHost     string     `json:"imap_host"`
	IMAPPort     int        `json:"imap_port"`
	Username     string     `json:"username"`
	Password     string     `json:"password,omitempty"`
	Color        string     `json:"color,omitempty"`
	StorageUsed  int64      `json:"storage_used"`
	StorageTotal int64      `json:"storage_total"`
	LastUID      uint32     `json:"last_uid"`
	LastSyncTime *time.Time `json:"last_sync_time,omitempty"`
}

// Email is a cached message. Folder is the physical mailbox the message
// lives in; SmartCategory is an optional virtual grouping and is
// independent of Folder.
type Email struct {
	ID             string    `json:"id"`
	AccountID      string    `json:"account_id"`
	SenderName     string    `json:"sender_name"`
	SenderEmail    string    `json:"sender_email"`
	Subject        string    `json:"subject"`
	Body           string    `json:"body,omitempty"`
	BodyHTML       string    `json:"body_html,omitempty"`
	Date           time.Time `json:"date"`
	Folder         string    `json:"folder"`
	SmartCategory  string    `json:"smart_category,omitempty"`
	IsRead         bool      `json:"is_read"`
	IsFlagged      bool      `json:"is_flagged"`
	HasAttachments bool      `json:"has_attachments"`
	UID            uint32    `json:"uid"`
}

// EmailSummary is a metadata-only view of an Email used for search
// results. Body fields are deliberately absent.
type EmailSummary struct {
	ID             string    `json:"id"`
	AccountID      string    `json:"account_id"`
	SenderName     string    `json:"sender_name"`
	SenderEmail    string    `json:"sender_email"`
	Subject        string    `json:"subject"`
	Date           time.Time `json:"date"`
	Folder         string    `json:"folder"`
	SmartCategory  string    `json:"smart_category,omitempty"`
	IsRead         bool      `json:"is_read"`
	IsFlagged      bool      `json:"is_flagged"`
	HasAttachments bool      `json:"has_attachments"`
	UID            uint32    `json:"uid"`
}

// Category kinds. System categories mirror the protocol's default
// folders, folder categories are auto-discovered server-side folders,
// and custom categories are virtual groupings unrelated to folder
// structure.
const (
	CategorySystem = "system"
	CategoryFolder = "folder"
	CategoryCustom = "custom"
)

// Category is a named grouping of messages.
type Category struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// SearchHistoryEntry is one remembered search query.
type SearchHistoryEntry struct {
	Query     string    `json:"query"`
	CreatedAt time.Time `json:"created_at"`
}
