// Package sensor implements the focused-window probe consumed by the
// tracker. The probe is a black-box collaborator: it reports what has
// focus and how long input devices have been idle, nothing more.
package sensor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"chronolens/internal/service"
)

// X11Sensor reads the focused window from an X11 session by shelling out
// to xprop and xprintidle. It refuses to operate under Wayland, where
// clients cannot observe other windows' focus for security reasons.
type X11Sensor struct {
	timeout time.Duration
}

// NewX11Sensor creates an X11 focus probe. Each external call is bounded
// by the given timeout; a timeout is reported as "no observation".
func NewX11Sensor(timeout time.Duration) *X11Sensor {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &X11Sensor{timeout: timeout}
}

// Supported reports whether the current platform allows focus probing.
func (s *X11Sensor) Supported() bool {
	if os.Getenv("DISPLAY") == "" {
		return false
	}
	if strings.EqualFold(os.Getenv("XDG_SESSION_TYPE"), "wayland") {
		return false
	}
	if _, err := exec.LookPath("xprop"); err != nil {
		return false
	}
	return true
}

// Poll reads the focused application name and window title. A transient
// probe failure returns (nil, nil): a sensor hiccup is not an error.
func (s *X11Sensor) Poll(ctx context.Context) (*service.Observation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	windowID, err := s.activeWindowID(ctx)
	if err != nil || windowID == "" {
		return nil, nil
	}

	appName, err := s.windowClass(ctx, windowID)
	if err != nil || appName == "" {
		return nil, nil
	}

	title, err := s.windowTitle(ctx, windowID)
	if err != nil {
		return nil, nil
	}

	return &service.Observation{
		AppName: appName,
		Title:   title,
	}, nil
}

// IdleSeconds reports how long input devices have been untouched.
func (s *X11Sensor) IdleSeconds(ctx context.Context) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "xprintidle").Output()
	if err != nil {
		return 0, fmt.Errorf("xprintidle failed: %w", err)
	}

	ms, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected xprintidle output: %w", err)
	}
	return ms / 1000, nil
}

func (s *X11Sensor) activeWindowID(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "xprop", "-root", "_NET_ACTIVE_WINDOW").Output()
	if err != nil {
		return "", fmt.Errorf("xprop root query failed: %w", err)
	}

	// _NET_ACTIVE_WINDOW(WINDOW): window id # 0x3e00007
	fields := strings.Fields(string(out))
	if len(fields) == 0 {
		return "", nil
	}
	id := fields[len(fields)-1]
	if !strings.HasPrefix(id, "0x") || id == "0x0" {
		return "", nil
	}
	return id, nil
}

func (s *X11Sensor) windowClass(ctx context.Context, windowID string) (string, error) {
	out, err := exec.CommandContext(ctx, "xprop", "-id", windowID, "WM_CLASS").Output()
	if err != nil {
		return "", fmt.Errorf("xprop WM_CLASS failed: %w", err)
	}

	// WM_CLASS(STRING) = "code", "Code"; the second value is the class name.
	parts := strings.Split(string(out), "\"")
	if len(parts) >= 4 {
		return parts[3], nil
	}
	if len(parts) >= 2 {
		return parts[1], nil
	}
	return "", nil
}

func (s *X11Sensor) windowTitle(ctx context.Context, windowID string) (string, error) {
	out, err := exec.CommandContext(ctx, "xprop", "-id", windowID, "_NET_WM_NAME").Output()
	if err != nil {
		return "", fmt.Errorf("xprop _NET_WM_NAME failed: %w", err)
	}

	_, value, ok := strings.Cut(string(out), "= ")
	if !ok {
		return "", nil
	}
	return strings.Trim(strings.TrimSpace(value), "\""), nil
}
