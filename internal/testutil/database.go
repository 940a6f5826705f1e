// Package testutil provides test helpers for packages that need a real
// storage layer: an in-memory SQLite database with migrations applied and
// seeding helpers for categories and rules.
package testutil

import (
	"context"
	"testing"

	"chronolens/internal/model"
	"chronolens/internal/storage"
)

// SetupTestDB creates a migrated in-memory database. Cleanup is
// registered automatically.
func SetupTestDB(t *testing.T) *storage.SQLiteStorage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return store
}

// SeedCategory creates a category or fails the test.
func SeedCategory(t *testing.T, store *storage.SQLiteStorage, category model.Category) *model.Category {
	t.Helper()

	created, err := store.CreateCategory(context.Background(), &category)
	if err != nil {
		t.Fatalf("failed to seed category %q: %v", category.Name, err)
	}
	return created
}

// SeedRule creates a rule or fails the test.
func SeedRule(t *testing.T, store *storage.SQLiteStorage, rule model.CategoryRule) *model.CategoryRule {
	t.Helper()

	created, err := store.CreateRule(context.Background(), &rule)
	if err != nil {
		t.Fatalf("failed to seed rule %q: %v", rule.Pattern, err)
	}
	return created
}
