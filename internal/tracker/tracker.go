// Package tracker implements the tracking state machine: the polling
// loop that decides, every tick, whether the current activity changed,
// whether the user went idle, and when session boundaries are crossed.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"chronolens/internal/categorize"
	"chronolens/internal/common"
	"chronolens/internal/extract"
	"chronolens/internal/model"
	"chronolens/internal/service"
)

// State is the tracker's lifecycle state.
type State int

// Tracker lifecycle states.
const (
	StateStopped State = iota
	StateRunning
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	}
	return "unknown"
}

// Config holds the tracker's own identity and defaults applied when the
// settings provider leaves a value unset.
type Config struct {
	// OwnApp is the tracker's own application name; focusing it is
	// treated as "nothing to track".
	OwnApp string
}

// DefaultConfig returns the default tracker configuration.
func DefaultConfig() Config {
	return Config{OwnApp: "chronolens"}
}

// Tracker owns the authoritative notion of what the user is doing right
// now. It is a single logical actor driven by a fixed-interval timer; the
// mutex only guards against control calls (Pause, Stop, ReloadSettings)
// arriving from other goroutines.
type Tracker struct {
	sensor   service.Sensor
	engine   *categorize.Engine
	store    service.ActivityStore
	settings service.Settings
	listener service.ActivityListener

	current   *model.CurrentActivity
	sessionID int64
	recent    []int
	idle      bool
	state     State

	pollInterval   time.Duration
	idleThreshold  time.Duration
	minDuration    time.Duration
	shortThreshold time.Duration
	excluded       map[string]bool

	ownApp   string
	reloadCh chan struct{}
	stopCh   chan struct{}
	doneCh   chan struct{}
	inFlight bool

	mu sync.Mutex
}

// New creates a tracker with the given collaborators.
func New(sensor service.Sensor, engine *categorize.Engine, store service.ActivityStore, settings service.Settings) *Tracker {
	return NewWithConfig(sensor, engine, store, settings, DefaultConfig())
}

// NewWithConfig creates a tracker with custom configuration.
func NewWithConfig(sensor service.Sensor, engine *categorize.Engine, store service.ActivityStore, settings service.Settings, config Config) *Tracker {
	t := &Tracker{
		sensor:   sensor,
		engine:   engine,
		store:    store,
		settings: settings,
		ownApp:   config.OwnApp,
		reloadCh: make(chan struct{}, 1),
	}
	t.applySettings()
	return t
}

// OnActivityChange registers the callback invoked with the new current
// activity, or nil, on every detected transition. This is the sole
// notification surface consumed by any surrounding UI.
func (t *Tracker) OnActivityChange(listener service.ActivityListener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listener = listener
}

// State returns the tracker's lifecycle state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Idle reports whether the tracker currently considers the user idle.
func (t *Tracker) Idle() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.idle
}

// Start verifies the sensor works on this platform, performs one
// immediate poll, and schedules the fixed-interval polling loop. It is
// the only operation allowed to fail loudly.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.state != StateStopped {
		t.mu.Unlock()
		return common.ErrAlreadyRunning
	}
	if !t.sensor.Supported() {
		t.mu.Unlock()
		return fmt.Errorf("%w", common.ErrSensorUnsupported)
	}
	t.state = StateRunning
	t.stopCh = make(chan struct{})
	t.doneCh = make(chan struct{})
	pollInterval := t.pollInterval
	t.mu.Unlock()

	slog.Info("tracker started", "poll_interval", pollInterval)

	go t.run(ctx)
	return nil
}

// run drives the polling loop until Stop or context cancellation.
func (t *Tracker) run(ctx context.Context) {
	defer close(t.doneCh)

	t.Tick(ctx, time.Now())

	ticker := time.NewTicker(t.currentPollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.finalFlush(time.Now())
			return
		case <-t.stopCh:
			return
		case <-t.reloadCh:
			ticker.Reset(t.currentPollInterval())
		case now := <-ticker.C:
			t.Tick(ctx, now)
		}
	}
}

// Stop cancels the polling loop and performs a final flush so no
// in-progress span is silently dropped.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if t.state == StateStopped {
		t.mu.Unlock()
		return
	}
	t.state = StateStopped
	stopCh, doneCh := t.stopCh, t.doneCh
	t.mu.Unlock()

	close(stopCh)
	<-doneCh

	t.finalFlush(time.Now())
	slog.Info("tracker stopped")
}

func (t *Tracker) currentPollInterval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pollInterval
}

func (t *Tracker) finalFlush(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.flushLocked(context.Background(), now, true)
	t.notifyLocked(nil)
}

// Pause flushes and clears the current activity, mirroring an idle
// transition, and suspends polling work until Resume.
func (t *Tracker) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateRunning {
		return
	}
	t.state = StatePaused
	t.flushLocked(context.Background(), time.Now(), true)
	t.notifyLocked(nil)
	slog.Info("tracking paused")
}

// Resume re-arms normal polling without forcing an immediate activity
// change; the next scheduled tick picks up from a clean slate.
func (t *Tracker) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StatePaused {
		return
	}
	t.state = StateRunning
	slog.Info("tracking resumed")
}

// ReloadSettings re-reads the settings provider. It is triggered by user
// settings changes, never by per-tick polling of the provider.
func (t *Tracker) ReloadSettings() {
	t.mu.Lock()
	old := t.pollInterval
	t.applySettings()
	pollInterval := t.pollInterval
	idleThreshold := t.idleThreshold
	excluded := len(t.excluded)
	t.mu.Unlock()

	if pollInterval != old {
		select {
		case t.reloadCh <- struct{}{}:
		default:
		}
	}
	slog.Info("tracker settings reloaded",
		"poll_interval", pollInterval,
		"idle_threshold", idleThreshold,
		"excluded_apps", excluded)
}

func (t *Tracker) applySettings() {
	t.pollInterval = t.settings.PollInterval()
	if t.pollInterval <= 0 {
		t.pollInterval = 5 * time.Second
	}
	t.idleThreshold = t.settings.IdleThreshold()
	if t.idleThreshold <= 0 {
		t.idleThreshold = 3 * time.Minute
	}
	t.minDuration = t.settings.MinActivityDuration()
	if t.minDuration <= 0 {
		t.minDuration = time.Second
	}
	t.shortThreshold = t.settings.ShortActivityThreshold()
	if t.shortThreshold <= 0 {
		t.shortThreshold = 30 * time.Second
	}

	t.excluded = make(map[string]bool)
	for _, app := range t.settings.ExcludedApps() {
		t.excluded[strings.ToLower(app)] = true
	}
}

// Tick performs one observation cycle. It is invoked by the polling loop
// with the tick's wall-clock time; tests drive it directly with synthetic
// times. Overlapping ticks are skipped rather than queued.
func (t *Tracker) Tick(ctx context.Context, now time.Time) {
	t.mu.Lock()
	if t.state != StateRunning || t.inFlight {
		t.mu.Unlock()
		return
	}
	t.inFlight = true
	pollInterval := t.pollInterval
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.inFlight = false
		t.mu.Unlock()
	}()

	pollCtx, cancel := context.WithTimeout(ctx, pollInterval)
	obs, err := t.sensor.Poll(pollCtx)
	cancel()
	if err != nil {
		// A transient sensor miss is not an error; this tick simply has
		// no observation.
		slog.Debug("sensor poll failed, skipping tick", "error", err)
		return
	}
	if obs == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.isExcludedLocked(obs.AppName) {
		// Nothing to track, but the user is not idle either.
		if t.current != nil {
			t.flushLocked(ctx, now, true)
			t.notifyLocked(nil)
		}
		return
	}

	input := model.ActivityInput{
		AppName:           obs.AppName,
		Title:             obs.Title,
		URL:               obs.URL,
		RecentCategoryIDs: t.recent,
	}
	result := t.engine.Categorize(input)
	passive := t.engine.IsPassive(result.CategoryID)

	idleNow := false
	if idleSecs, idleErr := t.sensor.IdleSeconds(ctx); idleErr == nil {
		// Watching a video or sitting in a call must not be
		// misclassified as "away", no matter how long the input devices
		// have been untouched.
		idleNow = idleSecs > t.idleThreshold.Seconds() && !passive
	} else {
		slog.Debug("idle probe failed, assuming active", "error", idleErr)
	}

	if idleNow {
		if !t.idle {
			t.idle = true
			t.flushLocked(ctx, now, true)
			t.notifyLocked(nil)
			slog.Info("user went idle")
		}
		return
	}
	if t.idle {
		t.idle = false
		slog.Info("user active again")
	}

	if t.current != nil && t.current.SameObservation(obs.AppName, obs.Title, obs.URL) {
		return
	}

	appChanged := t.current != nil && t.current.AppName != obs.AppName
	t.flushLocked(ctx, now, appChanged)

	category := t.engine.Category(result.CategoryID)
	if category == nil {
		category = t.engine.Sentinel()
	}

	t.current = &model.CurrentActivity{
		StartTime:     now,
		Context:       extract.FromObservation(obs.AppName, obs.Title, obs.URL),
		AppName:       obs.AppName,
		Title:         obs.Title,
		URL:           obs.URL,
		CategoryName:  category.Name,
		CategoryColor: category.Color,
		CategoryID:    category.ID,
	}
	t.pushRecentLocked(category.ID)
	t.notifyLocked(t.current)

	slog.Debug("activity changed",
		"app", obs.AppName,
		"category", category.Name,
		"confidence", result.Confidence)
}

func (t *Tracker) isExcludedLocked(appName string) bool {
	lower := strings.ToLower(appName)
	return lower == strings.ToLower(t.ownApp) || t.excluded[lower]
}

func (t *Tracker) pushRecentLocked(categoryID int) {
	t.recent = append([]int{categoryID}, t.recent...)
	if len(t.recent) > model.MaxRecentCategories {
		t.recent = t.recent[:model.MaxRecentCategories]
	}
}

func (t *Tracker) notifyLocked(current *model.CurrentActivity) {
	if t.listener != nil {
		t.listener(current)
	}
}
