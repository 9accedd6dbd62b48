package view

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// Theme is the color scheme of a view.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// themePreferenceKey is the preference-store key the theme is persisted under.
const themePreferenceKey = "theme"

// ErrInvalidTheme is returned for anything other than "light" or "dark".
var ErrInvalidTheme = errors.New(`theme must be "light" or "dark"`)

// ParseTheme validates a theme name.
func ParseTheme(s string) (Theme, error) {
	switch Theme(strings.ToLower(strings.TrimSpace(s))) {
	case ThemeLight:
		return ThemeLight, nil
	case ThemeDark:
		return ThemeDark, nil
	default:
		return "", ErrInvalidTheme
	}
}

// PreferenceStore persists small per-client settings.
type PreferenceStore interface {
	GetPreference(ctx context.Context, clientID, key string) (string, bool, error)
	SetPreference(ctx context.Context, clientID, key, value string) error
}

// ThemeObserver is notified after a session's theme has changed.
type ThemeObserver func(ctx context.Context, s *Session, theme Theme)

// PersistTheme returns an observer that writes the theme to the preference
// store under the session's client id. Sessions without a client id are not
// persisted. Write failures are logged and otherwise ignored.
func PersistTheme(prefs PreferenceStore, logger *slog.Logger) ThemeObserver {
	return func(ctx context.Context, s *Session, theme Theme) {
		if s.ClientID == "" {
			return
		}
		if err := prefs.SetPreference(ctx, s.ClientID, themePreferenceKey, string(theme)); err != nil {
			logger.Warn("persist theme failed", "session_id", s.ID, "client_id", s.ClientID, "error", err)
		}
	}
}

// loadTheme reads the persisted theme, defaulting to light when nothing
// usable is stored.
func loadTheme(ctx context.Context, prefs PreferenceStore, clientID string, logger *slog.Logger) Theme {
	if prefs == nil || clientID == "" {
		return ThemeLight
	}
	v, ok, err := prefs.GetPreference(ctx, clientID, themePreferenceKey)
	if err != nil {
		logger.Warn("load theme failed", "client_id", clientID, "error", err)
		return ThemeLight
	}
	if !ok {
		return ThemeLight
	}
	theme, err := ParseTheme(v)
	if err != nil {
		return ThemeLight
	}
	return theme
}
