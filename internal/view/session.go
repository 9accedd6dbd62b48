// Package view keeps the server-side state of open map views: filters, the
// visitor's reference position, the search box and the theme.
package view

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/celulas/locator/internal/domain"
	"github.com/celulas/locator/internal/suggest"
)

// PositionSource records where the current reference position came from.
type PositionSource string

const (
	SourceDevice  PositionSource = "device"
	SourceAddress PositionSource = "address"
)

// Querier runs the filter/sort pipeline over the current catalog.
type Querier interface {
	Query(f domain.FilterState) []domain.Group
}

// FilterPatch updates the selectors of a view. Nil fields are left as they are;
// an empty string resets a selector to "all".
type FilterPatch struct {
	Query    *string `json:"query,omitempty"`
	Category *string `json:"category,omitempty"`
	Day      *string `json:"day,omitempty"`
}

// Session is one open view.
type Session struct {
	ID       string
	ClientID string

	// owner is the admin token a privileged session was opened with.
	owner     string
	catalog   Querier
	resolver  *suggest.Resolver
	observers []ThemeObserver

	mu       sync.Mutex
	filter   domain.FilterState
	source   PositionSource
	theme    Theme
	lastSeen time.Time
}

// View is everything the UI needs to draw a session. Cards and Markers come
// from the same pipeline output.
type View struct {
	ID             string             `json:"id"`
	Mode           domain.Mode        `json:"mode"`
	Theme          Theme              `json:"theme"`
	Filters        domain.FilterState `json:"filters"`
	PositionSource PositionSource     `json:"position_source,omitempty"`
	Total          int                `json:"total"`
	Search         suggest.State      `json:"search"`
	domain.Presentation
}

// Render runs the pipeline once and builds cards and markers from its output.
func (s *Session) Render() View {
	s.mu.Lock()
	f := s.filter
	if f.Position != nil {
		pos := *f.Position
		f.Position = &pos
	}
	v := View{ID: s.ID, Mode: f.Mode, Theme: s.theme, Filters: f, PositionSource: s.source}
	s.mu.Unlock()

	groups := s.catalog.Query(f)
	v.Presentation = domain.Present(groups, f.Mode, f.Position)
	v.Total = len(groups)
	v.Search = s.resolver.State()
	return v
}

// UpdateFilters applies a patch. Unknown category ids are rejected.
func (s *Session) UpdateFilters(p FilterPatch) error {
	if p.Category != nil {
		id := strings.ToLower(strings.TrimSpace(*p.Category))
		if _, ok := domain.LookupCategory(id); id != "" && !ok {
			return fmt.Errorf("%w: %q", ErrUnknownCategory, *p.Category)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Query != nil {
		s.filter.Query = *p.Query
	}
	if p.Category != nil {
		s.filter.CategoryID = strings.ToLower(strings.TrimSpace(*p.Category))
	}
	if p.Day != nil {
		s.filter.DayToken = strings.ToLower(strings.TrimSpace(*p.Day))
	}
	return nil
}

// Input is a keystroke in the search box: it sets the text filter and
// schedules a debounced address lookup.
func (s *Session) Input(text string) {
	s.mu.Lock()
	s.filter.Query = text
	s.mu.Unlock()
	s.resolver.Input(text)
}

// SelectSuggestion makes suggestion n the reference position. The typed text
// was a lookup, not a filter, so the text filter is cleared.
func (s *Session) SelectSuggestion(n int) (domain.Suggestion, error) {
	sug, err := s.resolver.Select(n)
	if err != nil {
		return domain.Suggestion{}, err
	}
	s.mu.Lock()
	s.filter.Query = ""
	s.mu.Unlock()
	s.setPosition(sug.Position(), SourceAddress)
	return sug, nil
}

// SetPosition records a device position, replacing any previous one.
func (s *Session) SetPosition(pos domain.Position) error {
	if err := pos.Check(); err != nil {
		return err
	}
	s.setPosition(pos, SourceDevice)
	return nil
}

func (s *Session) setPosition(pos domain.Position, source PositionSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter.Position = &pos
	s.source = source
}

// ClearPosition drops the reference position; the list returns to fetch order.
func (s *Session) ClearPosition() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter.Position = nil
	s.source = ""
}

// DismissNotice hides the lookup failure notice.
func (s *Session) DismissNotice() {
	s.resolver.DismissNotice()
}

// Theme returns the current theme.
func (s *Session) Theme() Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

// SetTheme updates the theme and then notifies observers. Setting the current
// theme again is a no-op.
func (s *Session) SetTheme(ctx context.Context, theme Theme) error {
	if _, err := ParseTheme(string(theme)); err != nil {
		return err
	}

	s.mu.Lock()
	if s.theme == theme {
		s.mu.Unlock()
		return nil
	}
	s.theme = theme
	observers := s.observers
	s.mu.Unlock()

	for _, o := range observers {
		o(ctx, s, theme)
	}
	return nil
}

// Owner returns the admin token of a privileged session, or "".
func (s *Session) Owner() string {
	return s.owner
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) close() {
	s.resolver.Close()
}
