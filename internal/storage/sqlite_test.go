package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronolens/internal/model"
)

func setupStorage(t *testing.T) *SQLiteStorage {
	t.Helper()

	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func mustCreateCategory(t *testing.T, store *SQLiteStorage, name string, priority int) *model.Category {
	t.Helper()
	cat, err := store.CreateCategory(context.Background(), &model.Category{
		Name:     name,
		Priority: priority,
	})
	require.NoError(t, err)
	return cat
}

func TestMigrate_SeedsSentinel(t *testing.T) {
	store := setupStorage(t)

	sentinel, err := store.GetCategoryByName(context.Background(), model.SentinelCategoryName)
	require.NoError(t, err)
	require.NotNil(t, sentinel)
	assert.Equal(t, 0, sentinel.Priority)
	assert.True(t, sentinel.IsSentinel())
}

func TestMigrate_Idempotent(t *testing.T) {
	store := setupStorage(t)

	require.NoError(t, store.Migrate(context.Background()))

	cats, err := store.GetCategories(context.Background())
	require.NoError(t, err)
	assert.Len(t, cats, 1, "re-running migrations must not duplicate the sentinel")
}

func TestCategoryCRUD(t *testing.T) {
	store := setupStorage(t)
	ctx := context.Background()

	cat := mustCreateCategory(t, store, "Development", 10)
	assert.NotZero(t, cat.ID)
	assert.Equal(t, model.ProductivityNeutral, cat.Productivity)

	// Duplicate names are rejected.
	_, err := store.CreateCategory(ctx, &model.Category{Name: "Development"})
	require.Error(t, err)

	cat.Priority = 99
	cat.IsPassive = true
	require.NoError(t, store.UpdateCategory(ctx, cat))

	got, err := store.GetCategoryByID(ctx, cat.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 99, got.Priority)
	assert.True(t, got.IsPassive)

	// Categories come back priority-descending.
	mustCreateCategory(t, store, "Media", 50)
	cats, err := store.GetCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 3)
	assert.Equal(t, "Development", cats[0].Name)
	assert.Equal(t, "Media", cats[1].Name)
	assert.Equal(t, model.SentinelCategoryName, cats[2].Name)
}

func TestDeleteCategory_ReassignsToSentinel(t *testing.T) {
	store := setupStorage(t)
	ctx := context.Background()

	cat := mustCreateCategory(t, store, "Development", 10)
	_, err := store.CreateRule(ctx, &model.CategoryRule{
		CategoryID: cat.ID,
		Type:       model.RuleTypeApp,
		Pattern:    "Code",
		Match:      model.MatchExact,
	})
	require.NoError(t, err)

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	sessionID, err := store.GetOrCreateSession(ctx, "Code", cat.ID, start)
	require.NoError(t, err)
	end := start.Add(time.Minute)
	_, err = store.InsertActivity(ctx, &model.ActivityRecord{
		SessionID:  sessionID,
		AppName:    "Code",
		CategoryID: cat.ID,
		StartTime:  start,
		EndTime:    end,
		Duration:   end.Sub(start),
	})
	require.NoError(t, err)

	require.NoError(t, store.DeleteCategory(ctx, cat.ID))

	sentinel, err := store.GetCategoryByName(ctx, model.SentinelCategoryName)
	require.NoError(t, err)

	last, err := store.GetLastActivity(ctx, sessionID)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, sentinel.ID, last.CategoryID)

	// Rules cascade away with their owner.
	rules, err := store.GetRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestDeleteCategory_RefusesSentinel(t *testing.T) {
	store := setupStorage(t)
	ctx := context.Background()

	sentinel, err := store.GetCategoryByName(ctx, model.SentinelCategoryName)
	require.NoError(t, err)

	err = store.DeleteCategory(ctx, sentinel.ID)
	assert.ErrorIs(t, err, ErrSentinelDelete)
}

func TestCreateRule_Validation(t *testing.T) {
	store := setupStorage(t)
	ctx := context.Background()
	cat := mustCreateCategory(t, store, "Development", 10)

	tests := []struct {
		name    string
		rule    model.CategoryRule
		wantErr bool
	}{
		{
			name: "valid app rule",
			rule: model.CategoryRule{CategoryID: cat.ID, Type: model.RuleTypeApp, Pattern: "Code", Match: model.MatchExact},
		},
		{
			name: "valid compound rule",
			rule: model.CategoryRule{CategoryID: cat.ID, Type: model.RuleTypeDomainKeyword, Pattern: "youtube.com|golang", Match: model.MatchContains},
		},
		{
			name:    "unknown rule type",
			rule:    model.CategoryRule{CategoryID: cat.ID, Type: "window", Pattern: "x", Match: model.MatchExact},
			wantErr: true,
		},
		{
			name:    "unknown match mode",
			rule:    model.CategoryRule{CategoryID: cat.ID, Type: model.RuleTypeApp, Pattern: "x", Match: "fuzzy"},
			wantErr: true,
		},
		{
			name:    "empty pattern",
			rule:    model.CategoryRule{CategoryID: cat.ID, Type: model.RuleTypeApp, Pattern: "  ", Match: model.MatchExact},
			wantErr: true,
		},
		{
			name:    "compound missing keyword half",
			rule:    model.CategoryRule{CategoryID: cat.ID, Type: model.RuleTypeDomainKeyword, Pattern: "youtube.com|", Match: model.MatchContains},
			wantErr: true,
		},
		{
			name:    "unknown category",
			rule:    model.CategoryRule{CategoryID: 9999, Type: model.RuleTypeApp, Pattern: "x", Match: model.MatchExact},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.CreateRule(ctx, &tt.rule)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCreateRule_SentinelCannotOwnRules(t *testing.T) {
	store := setupStorage(t)
	ctx := context.Background()

	sentinel, err := store.GetCategoryByName(ctx, model.SentinelCategoryName)
	require.NoError(t, err)

	_, err = store.CreateRule(ctx, &model.CategoryRule{
		CategoryID: sentinel.ID,
		Type:       model.RuleTypeKeyword,
		Pattern:    "anything",
		Match:      model.MatchContains,
	})
	assert.ErrorIs(t, err, ErrInvalidRule)
}

func TestGetOrCreateSession(t *testing.T) {
	store := setupStorage(t)
	ctx := context.Background()
	cat := mustCreateCategory(t, store, "Development", 10)
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	first, err := store.GetOrCreateSession(ctx, "Code", cat.ID, start)
	require.NoError(t, err)

	// Same app reuses the open session.
	again, err := store.GetOrCreateSession(ctx, "Code", cat.ID, start.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, first, again)

	// A different app closes the old session and opens a new one.
	other, err := store.GetOrCreateSession(ctx, "Chrome", cat.ID, start.Add(2*time.Minute))
	require.NoError(t, err)
	assert.NotEqual(t, first, other)

	sessions, err := store.SessionsByRange(ctx, start.Add(-time.Hour), start.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.False(t, sessions[0].Active)
	assert.True(t, sessions[1].Active)
}

func TestInsertActivity_UpdatesSession(t *testing.T) {
	store := setupStorage(t)
	ctx := context.Background()
	cat := mustCreateCategory(t, store, "Development", 10)
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	sessionID, err := store.GetOrCreateSession(ctx, "Code", cat.ID, start)
	require.NoError(t, err)

	end := start.Add(40 * time.Second)
	id, err := store.InsertActivity(ctx, &model.ActivityRecord{
		SessionID:   sessionID,
		AppName:     "Code",
		WindowTitle: "main.go - chronolens",
		CategoryID:  cat.ID,
		Project:     "chronolens",
		StartTime:   start,
		EndTime:     end,
		Duration:    end.Sub(start),
	})
	require.NoError(t, err)
	assert.NotZero(t, id)

	sessions, err := store.SessionsByRange(ctx, start.Add(-time.Hour), start.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, 40*time.Second, sessions[0].TotalDuration)
	assert.Equal(t, 1, sessions[0].ActivityCount)
	assert.Equal(t, end.Unix(), sessions[0].EndTime.Unix())
}

func TestInsertActivity_RejectsInvalid(t *testing.T) {
	store := setupStorage(t)
	ctx := context.Background()
	start := time.Now()

	_, err := store.InsertActivity(ctx, &model.ActivityRecord{
		SessionID:  1,
		AppName:    "Code",
		CategoryID: 1,
		StartTime:  start,
		EndTime:    start, // end must be strictly after start
	})
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestExtendLastActivity(t *testing.T) {
	store := setupStorage(t)
	ctx := context.Background()
	cat := mustCreateCategory(t, store, "Development", 10)
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	sessionID, err := store.GetOrCreateSession(ctx, "Code", cat.ID, start)
	require.NoError(t, err)

	// No predecessor: nothing to extend.
	ok, err := store.ExtendLastActivity(ctx, sessionID, start.Add(10*time.Second), 10*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	end := start.Add(time.Minute)
	_, err = store.InsertActivity(ctx, &model.ActivityRecord{
		SessionID:  sessionID,
		AppName:    "Code",
		CategoryID: cat.ID,
		StartTime:  start,
		EndTime:    end,
		Duration:   end.Sub(start),
	})
	require.NoError(t, err)

	newEnd := end.Add(10 * time.Second)
	ok, err = store.ExtendLastActivity(ctx, sessionID, newEnd, 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	last, err := store.GetLastActivity(ctx, sessionID)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, 70*time.Second, last.Duration)
	assert.Equal(t, newEnd.Unix(), last.EndTime.Unix())

	sessions, err := store.SessionsByRange(ctx, start.Add(-time.Hour), start.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, 70*time.Second, sessions[0].TotalDuration)
}

func TestExtendLastActivity_RefusesMidnightCrossing(t *testing.T) {
	store := setupStorage(t)
	ctx := context.Background()
	cat := mustCreateCategory(t, store, "Development", 10)

	start := time.Date(2026, 3, 2, 23, 50, 0, 0, time.Local)
	end := start.Add(9 * time.Minute)
	midnight := time.Date(2026, 3, 3, 0, 0, 0, 0, time.Local)

	sessionID, err := store.GetOrCreateSession(ctx, "Code", cat.ID, start)
	require.NoError(t, err)

	_, err = store.InsertActivity(ctx, &model.ActivityRecord{
		SessionID:  sessionID,
		AppName:    "Code",
		CategoryID: cat.ID,
		StartTime:  start,
		EndTime:    end,
		Duration:   end.Sub(start),
	})
	require.NoError(t, err)

	// Stretching past midnight would make the record span two dates.
	ok, err := store.ExtendLastActivity(ctx, sessionID, midnight.Add(10*time.Second), time.Minute+10*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	// Up to the boundary itself is fine.
	ok, err = store.ExtendLastActivity(ctx, sessionID, midnight, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	last, err := store.GetLastActivity(ctx, sessionID)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, midnight.Unix(), last.EndTime.Unix())
}

func TestCategoryTotals(t *testing.T) {
	store := setupStorage(t)
	ctx := context.Background()
	dev := mustCreateCategory(t, store, "Development", 10)
	media := mustCreateCategory(t, store, "Media", 5)
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	sessionID, err := store.GetOrCreateSession(ctx, "Code", dev.ID, start)
	require.NoError(t, err)

	insert := func(categoryID int, offset, length time.Duration) {
		t.Helper()
		s := start.Add(offset)
		e := s.Add(length)
		_, err := store.InsertActivity(ctx, &model.ActivityRecord{
			SessionID:  sessionID,
			AppName:    "Code",
			CategoryID: categoryID,
			StartTime:  s,
			EndTime:    e,
			Duration:   length,
		})
		require.NoError(t, err)
	}

	insert(dev.ID, 0, 10*time.Minute)
	insert(dev.ID, 10*time.Minute, 5*time.Minute)
	insert(media.ID, 15*time.Minute, 2*time.Minute)

	totals, err := store.CategoryTotals(ctx, start, start.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, totals, 2)
	assert.Equal(t, "Development", totals[0].CategoryName)
	assert.Equal(t, 15*time.Minute, totals[0].TotalDuration)
	assert.Equal(t, 2, totals[0].ActivityCount)
	assert.Equal(t, "Media", totals[1].CategoryName)
	assert.Equal(t, 2*time.Minute, totals[1].TotalDuration)

	// Range filtering excludes everything.
	empty, err := store.CategoryTotals(ctx, start.Add(-2*time.Hour), start.Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, empty)
}
