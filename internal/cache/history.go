package cache

import (
	"fmt"
	"time"

	"github.com/jordan/mailcache/pkg/types"
)

// historyLimit caps the search-history log to the most recent entries.
const historyLimit = 20

// AddSearchHistory records a query at the head of the history. An
// existing entry with the exact same text is moved to the head instead
// of duplicated, and the log is trimmed to its cap.
func (s *Store) AddSearchHistory(query string) error {
	if query == "" {
		return nil
	}

	tx, err := s.cache.DB().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM search_history WHERE query = ?`, query); err != nil {
		return fmt.Errorf("failed to dedupe search history: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO search_history (query, created_at) VALUES (?, ?)`,
		query, formatTime(time.Now()),
	); err != nil {
		return fmt.Errorf("failed to insert search history: %w", err)
	}

	if _, err := tx.Exec(`
		DELETE FROM search_history WHERE id NOT IN (
			SELECT id FROM search_history ORDER BY id DESC LIMIT ?
		)`, historyLimit); err != nil {
		return fmt.Errorf("failed to trim search history: %w", err)
	}

	return tx.Commit()
}

// GetSearchHistory returns the remembered queries, most recent first.
func (s *Store) GetSearchHistory() ([]types.SearchHistoryEntry, error) {
	rows, err := s.cache.DB().Query(`SELECT query, created_at FROM search_history ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query search history: %w", err)
	}
	defer rows.Close()

	var entries []types.SearchHistoryEntry
	for rows.Next() {
		var entry types.SearchHistoryEntry
		var createdAt string
		if err := rows.Scan(&entry.Query, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan search history: %w", err)
		}
		entry.CreatedAt = parseTime(createdAt)
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// ClearSearchHistory removes all remembered queries.
func (s *Store) ClearSearchHistory() (int64, error) {
	result, err := s.cache.DB().Exec(`DELETE FROM search_history`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear search history: %w", err)
	}
	return result.RowsAffected()
}
