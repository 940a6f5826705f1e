package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chronolens/internal/model"
)

const categoryColumns = `id, name, color, priority, is_passive, productivity, created_at`

func scanCategory(row interface{ Scan(...any) error }) (*model.Category, error) {
	var cat model.Category
	var passive int
	if err := row.Scan(&cat.ID, &cat.Name, &cat.Color, &cat.Priority, &passive, &cat.Productivity, &cat.CreatedAt); err != nil {
		return nil, err
	}
	cat.IsPassive = passive != 0
	return &cat, nil
}

// GetCategories returns all categories ordered by priority descending.
func (s *SQLiteStorage) GetCategories(ctx context.Context) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT ` + categoryColumns + `
		FROM categories
		ORDER BY priority DESC, name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		cat, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, *cat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	slog.Debug("retrieved categories", "count", len(categories))
	return categories, nil
}

// GetCategoryByID returns a category by id, or nil when absent.
func (s *SQLiteStorage) GetCategoryByID(ctx context.Context, id int) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id = ?`
	cat, err := scanCategory(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query category: %w", err)
	}
	return cat, nil
}

// GetCategoryByName returns a category by its unique name, or nil when absent.
func (s *SQLiteStorage) GetCategoryByName(ctx context.Context, name string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}

	query := `SELECT ` + categoryColumns + ` FROM categories WHERE name = ?`
	cat, err := scanCategory(s.db.QueryRowContext(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query category: %w", err)
	}
	return cat, nil
}

// CreateCategory creates a new category and returns it with its assigned id.
func (s *SQLiteStorage) CreateCategory(ctx context.Context, category *model.Category) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateCategory(category); err != nil {
		return nil, err
	}

	existing, err := s.GetCategoryByName(ctx, category.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("category %q already exists", category.Name)
	}

	if category.Productivity == "" {
		category.Productivity = model.ProductivityNeutral
	}
	if category.Color == "" {
		category.Color = "#808080"
	}

	now := time.Now()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (name, color, priority, is_passive, productivity, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		category.Name, category.Color, category.Priority, boolToInt(category.IsPassive), category.Productivity, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert category: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get category id: %w", err)
	}

	created := *category
	created.ID = int(id)
	created.CreatedAt = now

	slog.Info("created category", "name", created.Name, "id", created.ID)
	return &created, nil
}

// UpdateCategory updates a category's mutable fields.
func (s *SQLiteStorage) UpdateCategory(ctx context.Context, category *model.Category) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCategory(category); err != nil {
		return err
	}
	if category.ID <= 0 {
		return fmt.Errorf("%w: missing id", ErrInvalidCategory)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE categories
		SET name = ?, color = ?, priority = ?, is_passive = ?, productivity = ?
		WHERE id = ?`,
		category.Name, category.Color, category.Priority, boolToInt(category.IsPassive), category.Productivity, category.ID)
	if err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("category %d: %w", category.ID, ErrNotFound)
	}

	return nil
}

// DeleteCategory deletes a category, reassigning its activities and
// sessions to the sentinel category. Rules cascade with the category.
// The sentinel itself cannot be deleted.
func (s *SQLiteStorage) DeleteCategory(ctx context.Context, id int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	cat, err := s.GetCategoryByID(ctx, id)
	if err != nil {
		return err
	}
	if cat == nil {
		return fmt.Errorf("category %d: %w", id, ErrNotFound)
	}
	if cat.IsSentinel() {
		return ErrSentinelDelete
	}

	sentinel, err := s.GetCategoryByName(ctx, model.SentinelCategoryName)
	if err != nil {
		return err
	}
	if sentinel == nil {
		return fmt.Errorf("sentinel category: %w", ErrNotFound)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `UPDATE activities SET category_id = ? WHERE category_id = ?`, sentinel.ID, id); err != nil {
		return fmt.Errorf("failed to reassign activities: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET category_id = ? WHERE category_id = ?`, sentinel.ID, id); err != nil {
		return fmt.Errorf("failed to reassign sessions: %w", err)
	}
	// Rules go with their owner via ON DELETE CASCADE.
	if _, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit category deletion: %w", err)
	}

	slog.Info("deleted category", "name", cat.Name, "id", id, "reassigned_to", sentinel.ID)
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
