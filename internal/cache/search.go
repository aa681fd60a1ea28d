package cache

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/jordan/mailcache/internal/search"
	"github.com/jordan/mailcache/pkg/types"
)

// SearchEmails executes a parsed query against the cache. An empty
// accountID searches all accounts. Results are metadata-only rows
// sorted by date descending, ties broken by insertion order.
func (s *Store) SearchEmails(q *search.Query, accountID string) ([]types.EmailSummary, error) {
	var conditions []string
	var args []interface{}

	if accountID != "" {
		conditions = append(conditions, "account_id = ?")
		args = append(args, accountID)
	}

	for _, from := range q.FromAddrs {
		conditions = append(conditions, "sender_email LIKE ?")
		args = append(args, "%"+from+"%")
	}

	for _, term := range q.SubjectTerms {
		conditions = append(conditions, "subject LIKE ?")
		args = append(args, "%"+term+"%")
	}

	for _, category := range q.Categories {
		conditions = append(conditions, "smart_category = ?")
		args = append(args, category)
	}

	if q.HasAttachment {
		conditions = append(conditions, "has_attachments = 1")
	}

	if q.After != nil {
		conditions = append(conditions, "date >= ?")
		args = append(args, formatTime(*q.After))
	}

	if q.Before != nil {
		conditions = append(conditions, "date < ?")
		args = append(args, formatTime(*q.Before))
	}

	if textClause, textArgs := buildTextClause(q); textClause != "" {
		conditions = append(conditions, textClause)
		args = append(args, textArgs...)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT id, account_id, sender_name, sender_email, subject, date, folder, smart_category, is_read, is_flagged, has_attachments, uid
		FROM emails
		%s
		ORDER BY date DESC, rowid
	`, whereClause)

	rows, err := s.cache.DB().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search emails: %w", err)
	}
	defer rows.Close()

	var results []types.EmailSummary
	for rows.Next() {
		var summary types.EmailSummary
		var dateStr string
		var category sql.NullString
		var isRead, isFlagged, hasAttachments int

		err := rows.Scan(
			&summary.ID, &summary.AccountID, &summary.SenderName, &summary.SenderEmail,
			&summary.Subject, &dateStr, &summary.Folder, &category,
			&isRead, &isFlagged, &hasAttachments, &summary.UID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}

		summary.Date = parseTime(dateStr)
		if category.Valid {
			summary.SmartCategory = category.String
		}
		summary.IsRead = isRead != 0
		summary.IsFlagged = isFlagged != 0
		summary.HasAttachments = hasAttachments != 0

		results = append(results, summary)
	}

	return results, rows.Err()
}

// buildTextClause builds the free-text part of the WHERE clause. Each
// term matches any of the configured fields; terms combine with the
// query's text mode, and the whole group ANDs with the operator
// predicates.
func buildTextClause(q *search.Query) (string, []interface{}) {
	if len(q.TextTerms) == 0 {
		return "", nil
	}

	var fieldExprs []string
	if q.TextFields.Sender {
		fieldExprs = append(fieldExprs, "sender_email LIKE ?", "sender_name LIKE ?")
	}
	if q.TextFields.Subject {
		fieldExprs = append(fieldExprs, "subject LIKE ?")
	}
	if q.TextFields.Body {
		fieldExprs = append(fieldExprs, "body LIKE ?")
	}
	if len(fieldExprs) == 0 {
		return "", nil
	}

	var termClauses []string
	var args []interface{}
	for _, term := range q.TextTerms {
		pattern := "%" + term + "%"
		termClauses = append(termClauses, "("+strings.Join(fieldExprs, " OR ")+")")
		for range fieldExprs {
			args = append(args, pattern)
		}
	}

	joiner := " AND "
	if q.TextMode == search.MatchAny {
		joiner = " OR "
	}
	return "(" + strings.Join(termClauses, joiner) + ")", args
}
