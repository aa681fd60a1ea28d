package cache

import (
	"fmt"

	"github.com/jordan/mailcache/pkg/types"
)

// GetCategories returns all categories ordered by name.
func (s *Store) GetCategories() ([]types.Category, error) {
	rows, err := s.cache.DB().Query(`SELECT name, type FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []types.Category
	for rows.Next() {
		var cat types.Category
		if err := rows.Scan(&cat.Name, &cat.Type); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, cat)
	}

	return categories, rows.Err()
}

// AddCategory inserts a category. A duplicate name fails with
// ErrDuplicateKey rather than silently succeeding.
func (s *Store) AddCategory(name, categoryType string) error {
	_, err := s.cache.DB().Exec(`INSERT INTO categories (name, type) VALUES (?, ?)`, name, categoryType)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("category %q: %w", name, ErrDuplicateKey)
		}
		return fmt.Errorf("failed to add category: %w", err)
	}
	return nil
}

// UpdateCategoryType changes a category's type. Unknown names return
// zero rows affected.
func (s *Store) UpdateCategoryType(name, categoryType string) (int64, error) {
	result, err := s.cache.DB().Exec(`UPDATE categories SET type = ? WHERE name = ?`, categoryType, name)
	if err != nil {
		return 0, fmt.Errorf("failed to update category type: %w", err)
	}
	return result.RowsAffected()
}

// DeleteCategory removes a category and nulls out the smart-category
// reference on every email pointing at it. The emails themselves are
// kept.
func (s *Store) DeleteCategory(name string) (int64, error) {
	tx, err := s.cache.DB().Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE emails SET smart_category = NULL WHERE smart_category = ?`, name); err != nil {
		return 0, fmt.Errorf("failed to clear category references: %w", err)
	}

	result, err := tx.Exec(`DELETE FROM categories WHERE name = ?`, name)
	if err != nil {
		return 0, fmt.Errorf("failed to delete category: %w", err)
	}
	changes, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit category delete: %w", err)
	}
	return changes, nil
}

// RenameCategory renames a category and updates every email's
// smart-category reference in the same transaction, so readers never
// observe a half-renamed state.
func (s *Store) RenameCategory(oldName, newName string) (int64, error) {
	tx, err := s.cache.DB().Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`UPDATE categories SET name = ? WHERE name = ?`, newName, oldName)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("category %q: %w", newName, ErrDuplicateKey)
		}
		return 0, fmt.Errorf("failed to rename category: %w", err)
	}
	changes, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	if _, err := tx.Exec(`UPDATE emails SET smart_category = ? WHERE smart_category = ?`, newName, oldName); err != nil {
		return 0, fmt.Errorf("failed to update category references: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit category rename: %w", err)
	}
	return changes, nil
}
