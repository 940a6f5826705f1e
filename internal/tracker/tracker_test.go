package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronolens/internal/categorize"
	"chronolens/internal/common"
	"chronolens/internal/model"
	"chronolens/internal/sensor"
	"chronolens/internal/service"
	"chronolens/internal/storage"
	"chronolens/internal/testutil"
)

// testSettings is a static settings provider.
type testSettings struct {
	pollInterval   time.Duration
	idleThreshold  time.Duration
	minDuration    time.Duration
	shortThreshold time.Duration
	excludedApps   []string
}

func (s *testSettings) PollInterval() time.Duration           { return s.pollInterval }
func (s *testSettings) IdleThreshold() time.Duration          { return s.idleThreshold }
func (s *testSettings) MinActivityDuration() time.Duration    { return s.minDuration }
func (s *testSettings) ShortActivityThreshold() time.Duration { return s.shortThreshold }
func (s *testSettings) ExcludedApps() []string                { return s.excludedApps }

type harness struct {
	tracker  *Tracker
	store    *storage.SQLiteStorage
	sensor   *sensor.MockSensor
	settings *testSettings
	devID    int
	mediaID  int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	store := testutil.SetupTestDB(t)

	dev := testutil.SeedCategory(t, store, model.Category{Name: "Development", Priority: 10})
	media := testutil.SeedCategory(t, store, model.Category{Name: "Media", Priority: 20, IsPassive: true})

	for _, rule := range []model.CategoryRule{
		{CategoryID: dev.ID, Type: model.RuleTypeApp, Pattern: "Code", Match: model.MatchExact},
		{CategoryID: dev.ID, Type: model.RuleTypeDomain, Pattern: "github.com", Match: model.MatchExact},
		{CategoryID: media.ID, Type: model.RuleTypeDomain, Pattern: "youtube.com", Match: model.MatchExact},
	} {
		testutil.SeedRule(t, store, rule)
	}

	engine, err := categorize.New(ctx, store)
	require.NoError(t, err)

	settings := &testSettings{
		pollInterval:   5 * time.Second,
		idleThreshold:  time.Minute,
		minDuration:    time.Second,
		shortThreshold: 30 * time.Second,
	}

	mock := sensor.NewMockSensor()
	tr := New(mock, engine, store, settings)
	tr.state = StateRunning

	return &harness{
		tracker:  tr,
		store:    store,
		sensor:   mock,
		settings: settings,
		devID:    dev.ID,
		mediaID:  media.ID,
	}
}

func (h *harness) tick(t *testing.T, obs *service.Observation, at time.Time) {
	t.Helper()
	h.sensor.Queue(obs)
	h.tracker.Tick(context.Background(), at)
}

func (h *harness) sessions(t *testing.T, around time.Time) []model.Session {
	t.Helper()
	sessions, err := h.store.SessionsByRange(context.Background(), around.Add(-24*time.Hour), around.Add(24*time.Hour))
	require.NoError(t, err)
	return sessions
}

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.Local)

func TestTracker_EndToEndScenario(t *testing.T) {
	h := newHarness(t)

	// Tick 1 and 2: same editor window. Tick 3: switch to the browser.
	h.tick(t, &service.Observation{AppName: "Code", Title: "main.ts — proj — Code"}, t0)
	h.tick(t, &service.Observation{AppName: "Code", Title: "main.ts — proj — Code"}, t0.Add(5*time.Second))
	h.tick(t, &service.Observation{AppName: "Chrome", Title: "GitHub", URL: "https://github.com/a/b"}, t0.Add(40*time.Second))

	sessions := h.sessions(t, t0)
	require.Len(t, sessions, 1, "the Chrome session opens lazily on its first flush")
	codeSession := sessions[0]
	assert.Equal(t, "Code", codeSession.AppName)
	assert.False(t, codeSession.Active, "app switch must close the session")
	assert.Equal(t, 1, codeSession.ActivityCount)
	assert.Equal(t, 40*time.Second, codeSession.TotalDuration)

	record, err := h.store.GetLastActivity(context.Background(), codeSession.ID)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, h.devID, record.CategoryID, "editor matches via the app rule")
	assert.Equal(t, "proj", record.Project)

	// Flush the browser span; it lands in its own session, categorized by
	// the domain rule into the same category.
	h.tracker.mu.Lock()
	h.tracker.flushLocked(context.Background(), t0.Add(70*time.Second), true)
	h.tracker.mu.Unlock()

	sessions = h.sessions(t, t0)
	require.Len(t, sessions, 2)
	chromeSession := sessions[1]
	assert.Equal(t, "Chrome", chromeSession.AppName)

	record, err = h.store.GetLastActivity(context.Background(), chromeSession.ID)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, h.devID, record.CategoryID, "browser matches via the domain rule")
	assert.Equal(t, "github.com", record.Domain)
}

func TestTracker_TitleChangeKeepsSession(t *testing.T) {
	h := newHarness(t)

	h.tick(t, &service.Observation{AppName: "Code", Title: "a.go - proj - Code"}, t0)
	h.tick(t, &service.Observation{AppName: "Code", Title: "b.go - proj - Code"}, t0.Add(40*time.Second))
	h.tick(t, &service.Observation{AppName: "Code", Title: "c.go - proj - Code"}, t0.Add(80*time.Second))

	sessions := h.sessions(t, t0)
	require.Len(t, sessions, 1, "title changes within one app never close the session")
	assert.True(t, sessions[0].Active)
	assert.Equal(t, 2, sessions[0].ActivityCount)
}

func TestTracker_ShortActivityAbsorbed(t *testing.T) {
	h := newHarness(t)

	h.tick(t, &service.Observation{AppName: "Code", Title: "a.go - proj - Code"}, t0)
	h.tick(t, &service.Observation{AppName: "Code", Title: "b.go - proj - Code"}, t0.Add(40*time.Second))
	// The b.go span is only 10 seconds when c.go appears; it must stretch
	// the a.go record instead of creating a new row.
	h.tick(t, &service.Observation{AppName: "Code", Title: "c.go - proj - Code"}, t0.Add(50*time.Second))

	sessions := h.sessions(t, t0)
	require.Len(t, sessions, 1)
	assert.Equal(t, 1, sessions[0].ActivityCount, "short span was absorbed, not inserted")
	assert.Equal(t, 50*time.Second, sessions[0].TotalDuration)

	record, err := h.store.GetLastActivity(context.Background(), sessions[0].ID)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, 50*time.Second, record.Duration)
	assert.Equal(t, "a.go", record.Filename)
}

func TestTracker_ShortActivityWithoutPredecessorInserted(t *testing.T) {
	h := newHarness(t)

	h.tick(t, &service.Observation{AppName: "Code", Title: "a.go - proj - Code"}, t0)
	// First span of the session is itself short; with no predecessor it
	// falls through to a normal insert.
	h.tick(t, &service.Observation{AppName: "Code", Title: "b.go - proj - Code"}, t0.Add(10*time.Second))

	sessions := h.sessions(t, t0)
	require.Len(t, sessions, 1)
	assert.Equal(t, 1, sessions[0].ActivityCount)

	record, err := h.store.GetLastActivity(context.Background(), sessions[0].ID)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, 10*time.Second, record.Duration)
}

func TestTracker_SubSecondActivityDiscarded(t *testing.T) {
	h := newHarness(t)

	h.tick(t, &service.Observation{AppName: "Code", Title: "a.go - proj - Code"}, t0)
	h.tick(t, &service.Observation{AppName: "Chrome", Title: "x"}, t0.Add(500*time.Millisecond))

	sessions := h.sessions(t, t0)
	// The sub-second Code span produced no record and no session.
	assert.Empty(t, sessions)
}

func TestTracker_IdleTransition(t *testing.T) {
	h := newHarness(t)

	var lastNotified *model.CurrentActivity
	notified := 0
	h.tracker.OnActivityChange(func(cur *model.CurrentActivity) {
		lastNotified = cur
		notified++
	})

	h.tick(t, &service.Observation{AppName: "Code", Title: "a.go - proj - Code"}, t0)
	require.NotNil(t, lastNotified)

	// Idle exceeds the one-minute threshold on a non-passive category.
	h.sensor.SetIdle(120)
	h.tick(t, &service.Observation{AppName: "Code", Title: "a.go - proj - Code"}, t0.Add(2*time.Minute))

	assert.True(t, h.tracker.Idle())
	assert.Nil(t, lastNotified, "idle transition notifies with nil")
	assert.Equal(t, 2, notified)

	sessions := h.sessions(t, t0)
	require.Len(t, sessions, 1)
	assert.False(t, sessions[0].Active, "idle closes the session")

	// While idle remains true, ticks are no-ops.
	h.tick(t, &service.Observation{AppName: "Code", Title: "a.go - proj - Code"}, t0.Add(3*time.Minute))
	assert.Equal(t, 2, notified)

	// Activity resumes: a fresh current activity and a fresh session.
	h.sensor.SetIdle(0)
	h.tick(t, &service.Observation{AppName: "Code", Title: "a.go - proj - Code"}, t0.Add(4*time.Minute))
	assert.False(t, h.tracker.Idle())
	require.NotNil(t, lastNotified)
	assert.Equal(t, t0.Add(4*time.Minute), lastNotified.StartTime)
}

func TestTracker_PassiveCategorySuppressesIdle(t *testing.T) {
	h := newHarness(t)

	watch := &service.Observation{
		AppName: "Chrome",
		Title:   "concert stream",
		URL:     "https://www.youtube.com/watch?v=abc",
	}
	h.tick(t, watch, t0)

	h.sensor.SetIdle(600)
	h.tick(t, watch, t0.Add(2*time.Minute))

	assert.False(t, h.tracker.Idle(), "passive content must not be misclassified as away")

	// The same idle time on a non-passive category does flip idle.
	h.tick(t, &service.Observation{AppName: "Code", Title: "a.go - proj - Code"}, t0.Add(3*time.Minute))
	h.tick(t, &service.Observation{AppName: "Code", Title: "a.go - proj - Code"}, t0.Add(4*time.Minute))
	assert.True(t, h.tracker.Idle())
}

func TestTracker_MidnightSplit(t *testing.T) {
	h := newHarness(t)

	start := time.Date(2026, 3, 2, 23, 58, 0, 0, time.Local)
	h.tick(t, &service.Observation{AppName: "Code", Title: "a.go - proj - Code"}, start)
	h.tick(t, &service.Observation{AppName: "Chrome", Title: "x", URL: "https://github.com/a/b"}, start.Add(5*time.Minute))

	sessions := h.sessions(t, start)
	require.Len(t, sessions, 1)
	assert.Equal(t, 2, sessions[0].ActivityCount, "the span must split at local midnight")
	assert.Equal(t, 5*time.Minute, sessions[0].TotalDuration)

	record, err := h.store.GetLastActivity(context.Background(), sessions[0].ID)
	require.NoError(t, err)
	require.NotNil(t, record)
	midnight := time.Date(2026, 3, 3, 0, 0, 0, 0, time.Local)
	assert.Equal(t, midnight.Unix(), record.StartTime.Unix())
	assert.Equal(t, 3*time.Minute, record.Duration)
}

func TestTracker_AbsorptionStopsAtMidnight(t *testing.T) {
	h := newHarness(t)

	// Title changes within one editor session straddling midnight. The
	// pre-midnight remnant may be absorbed into its predecessor, but the
	// post-midnight remnant must become its own record: absorption never
	// stretches a record across two calendar dates.
	start := time.Date(2026, 3, 2, 23, 59, 0, 0, time.Local)
	h.tick(t, &service.Observation{AppName: "Code", Title: "a.go - proj - Code"}, start)
	h.tick(t, &service.Observation{AppName: "Code", Title: "b.go - proj - Code"}, start.Add(50*time.Second))
	h.tick(t, &service.Observation{AppName: "Code", Title: "c.go - proj - Code"}, start.Add(70*time.Second))

	sessions := h.sessions(t, start)
	require.Len(t, sessions, 1)
	assert.Equal(t, 2, sessions[0].ActivityCount)
	assert.Equal(t, 70*time.Second, sessions[0].TotalDuration)

	midnight := time.Date(2026, 3, 3, 0, 0, 0, 0, time.Local)

	record, err := h.store.GetLastActivity(context.Background(), sessions[0].ID)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, midnight.Unix(), record.StartTime.Unix(), "the post-midnight remnant starts at midnight")
	assert.Equal(t, 10*time.Second, record.Duration)
	assert.Equal(t, midnight.Add(10*time.Second).Unix(), record.EndTime.Unix())
}

func TestTracker_DiscardedSpanOpensNoSession(t *testing.T) {
	h := newHarness(t)

	// The whole span clears the minimum duration, but after the midnight
	// split each segment falls below it. Nothing is written, so no
	// session row may appear either.
	start := time.Date(2026, 3, 2, 23, 59, 59, 200_000_000, time.Local)
	h.tick(t, &service.Observation{AppName: "Code", Title: "a.go - proj - Code"}, start)
	h.tick(t, &service.Observation{AppName: "Chrome", Title: "x", URL: "https://github.com/a/b"}, start.Add(time.Second))

	assert.Empty(t, h.sessions(t, start))
}

func TestTracker_ExcludedApp(t *testing.T) {
	h := newHarness(t)
	h.settings.excludedApps = []string{"1Password"}
	h.tracker.ReloadSettings()

	notified := 0
	var last *model.CurrentActivity
	h.tracker.OnActivityChange(func(cur *model.CurrentActivity) {
		last = cur
		notified++
	})

	h.tick(t, &service.Observation{AppName: "Code", Title: "a.go - proj - Code"}, t0)
	h.tick(t, &service.Observation{AppName: "1password", Title: "vault"}, t0.Add(40*time.Second))

	assert.Equal(t, 2, notified)
	assert.Nil(t, last, "excluded app flushes and notifies nil")
	assert.False(t, h.tracker.Idle(), "excluded app must not mark the user idle")

	sessions := h.sessions(t, t0)
	require.Len(t, sessions, 1)
	assert.Equal(t, "Code", sessions[0].AppName)
}

func TestTracker_OwnAppIgnored(t *testing.T) {
	h := newHarness(t)

	h.tick(t, &service.Observation{AppName: "chronolens", Title: "chronolens report"}, t0)

	assert.Empty(t, h.sessions(t, t0))
}

func TestTracker_SensorErrorSkipsTick(t *testing.T) {
	h := newHarness(t)

	h.tick(t, &service.Observation{AppName: "Code", Title: "a.go - proj - Code"}, t0)

	h.sensor.SetPollError(errors.New("probe wedged"))
	h.tracker.Tick(context.Background(), t0.Add(40*time.Second))
	h.sensor.SetPollError(nil)

	// Nothing was flushed; the current activity survives the hiccup.
	h.tick(t, &service.Observation{AppName: "Chrome", Title: "x"}, t0.Add(80*time.Second))

	sessions := h.sessions(t, t0)
	require.Len(t, sessions, 1)
	assert.Equal(t, 80*time.Second, sessions[0].TotalDuration)
}

func TestTracker_PauseAndResume(t *testing.T) {
	h := newHarness(t)

	notified := 0
	var last *model.CurrentActivity
	h.tracker.OnActivityChange(func(cur *model.CurrentActivity) {
		last = cur
		notified++
	})

	h.tick(t, &service.Observation{AppName: "Code", Title: "a.go - proj - Code"}, t0)

	h.tracker.Pause()
	assert.Equal(t, StatePaused, h.tracker.State())
	assert.Nil(t, last)
	assert.Equal(t, 2, notified)

	sessions := h.sessions(t, t0)
	require.Len(t, sessions, 1)
	assert.False(t, sessions[0].Active, "pause closes the session")

	// Ticks while paused do nothing.
	h.tick(t, &service.Observation{AppName: "Code", Title: "a.go - proj - Code"}, t0.Add(time.Minute))
	assert.Equal(t, 2, notified)

	h.tracker.Resume()
	assert.Equal(t, StateRunning, h.tracker.State())
	assert.Equal(t, 2, notified, "resume must not force an immediate activity change")

	h.tick(t, &service.Observation{AppName: "Code", Title: "a.go - proj - Code"}, t0.Add(2*time.Minute))
	require.NotNil(t, last)
	assert.Equal(t, t0.Add(2*time.Minute), last.StartTime)
}

func TestTracker_StartRefusesUnsupportedSensor(t *testing.T) {
	h := newHarness(t)
	h.tracker.state = StateStopped
	h.sensor.SetSupported(false)

	err := h.tracker.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrSensorUnsupported)
	assert.Equal(t, StateStopped, h.tracker.State())
}

func TestTracker_ReloadSettingsChangesThresholds(t *testing.T) {
	h := newHarness(t)

	h.settings.idleThreshold = 10 * time.Minute
	h.tracker.ReloadSettings()

	h.tick(t, &service.Observation{AppName: "Code", Title: "a.go - proj - Code"}, t0)
	h.sensor.SetIdle(120)
	h.tick(t, &service.Observation{AppName: "Code", Title: "a.go - proj - Code"}, t0.Add(2*time.Minute))

	assert.False(t, h.tracker.Idle(), "two minutes is under the raised threshold")
}

func TestTracker_ReloadSettingsConcurrentWithTicks(t *testing.T) {
	// Settings arrive from a config-watch goroutine while the poll loop
	// ticks; the race detector verifies the interval handoff is safe.
	h := newHarness(t)
	h.sensor.Queue(&service.Observation{AppName: "Code", Title: "a.go - proj - Code"})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			h.tracker.ReloadSettings()
		}
	}()

	for i := 0; i < 100; i++ {
		h.tracker.Tick(context.Background(), t0.Add(time.Duration(i)*time.Second))
	}
	<-done

	assert.Equal(t, StateRunning, h.tracker.State())
}

func TestSplitAtMidnights(t *testing.T) {
	loc := time.Local

	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		want  int
	}{
		{
			name:  "same day",
			start: time.Date(2026, 3, 2, 9, 0, 0, 0, loc),
			end:   time.Date(2026, 3, 2, 10, 0, 0, 0, loc),
			want:  1,
		},
		{
			name:  "crosses one midnight",
			start: time.Date(2026, 3, 2, 23, 58, 0, 0, loc),
			end:   time.Date(2026, 3, 3, 0, 3, 0, 0, loc),
			want:  2,
		},
		{
			name:  "crosses two midnights",
			start: time.Date(2026, 3, 2, 22, 0, 0, 0, loc),
			end:   time.Date(2026, 3, 4, 2, 0, 0, 0, loc),
			want:  3,
		},
		{
			name:  "ends exactly at midnight",
			start: time.Date(2026, 3, 2, 23, 0, 0, 0, loc),
			end:   time.Date(2026, 3, 3, 0, 0, 0, 0, loc),
			want:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spans := splitAtMidnights(tt.start, tt.end)
			require.Len(t, spans, tt.want)

			assert.Equal(t, tt.start, spans[0].start)
			assert.Equal(t, tt.end, spans[len(spans)-1].end)
			var total time.Duration
			for _, s := range spans {
				assert.True(t, s.end.After(s.start))
				total += s.end.Sub(s.start)
			}
			assert.Equal(t, tt.end.Sub(tt.start), total)
		})
	}
}
