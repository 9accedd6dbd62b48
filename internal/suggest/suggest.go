// Package suggest resolves search-box text to candidate positions. Lookups
// are debounced per view and sequenced by a request token so only the
// response to the latest input is ever applied.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"

	"github.com/celulas/locator/internal/domain"
	"github.com/celulas/locator/internal/observability"
)

// NoticeLookupFailed is shown when the geocoding service cannot be reached.
const NoticeLookupFailed = "Não foi possível buscar o endereço. Tente novamente."

// ErrNoSuggestion is returned when selecting an index outside the current list.
var ErrNoSuggestion = errors.New("no suggestion at that index")

// Options tune lookups.
type Options struct {
	Debounce time.Duration
	MinChars int
	Limit    int
	// Region is appended to every query, e.g. "Estado de São Paulo, Brazil".
	Region string
}

// Service runs region-scoped lookups and creates per-view Resolvers.
type Service struct {
	geocoder domain.Geocoder
	opts     Options
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewService creates a Service. A nil clock means the real clock.
func NewService(geocoder domain.Geocoder, opts Options, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{geocoder: geocoder, opts: opts, clock: clock, logger: logger, metrics: metrics}
}

// Search performs one immediate lookup. Text shorter than MinChars yields no
// suggestions and no request.
func (s *Service) Search(ctx context.Context, text string) ([]domain.Suggestion, error) {
	if !s.longEnough(text) {
		return nil, nil
	}
	res, err := s.geocoder.Search(ctx, domain.RegionQuery(text, s.opts.Region), s.opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("search address: %w", err)
	}
	return res, nil
}

// Reverse returns a label for pos.
func (s *Service) Reverse(ctx context.Context, pos domain.Position) (domain.Suggestion, error) {
	if err := pos.Check(); err != nil {
		return domain.Suggestion{}, err
	}
	res, err := s.geocoder.Reverse(ctx, pos.Lat, pos.Lon)
	if err != nil {
		return domain.Suggestion{}, fmt.Errorf("reverse geocode: %w", err)
	}
	return res, nil
}

func (s *Service) longEnough(text string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) >= s.opts.MinChars
}

// State is what a view shows of its search box.
type State struct {
	Query       string              `json:"query"`
	Suggestions []domain.Suggestion `json:"suggestions"`
	Pending     bool                `json:"pending"`
	Notice      string              `json:"notice,omitempty"`
}

// Resolver is the debounced search box of one view. Each Input supersedes any
// pending or in-flight lookup.
type Resolver struct {
	svc    *Service
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	token       uint64
	timer       clockwork.Timer
	query       string
	suggestions []domain.Suggestion
	pending     bool
	notice      string
}

// NewResolver creates a Resolver bound to the service's geocoder and clock.
func (s *Service) NewResolver() *Resolver {
	ctx, cancel := context.WithCancel(context.Background())
	return &Resolver{svc: s, ctx: ctx, cancel: cancel}
}

// Input records new search-box text. Below MinChars the suggestions are
// cleared at once; otherwise a lookup fires after the debounce quiet period.
func (r *Resolver) Input(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.token++
	r.query = text
	r.stopTimer()

	if !r.svc.longEnough(text) {
		r.suggestions = nil
		r.pending = false
		return
	}

	token := r.token
	r.pending = true
	r.timer = r.svc.clock.AfterFunc(r.svc.opts.Debounce, func() { r.lookup(token, text) })
}

func (r *Resolver) lookup(token uint64, text string) {
	res, err := r.svc.Search(r.ctx, text)

	r.mu.Lock()
	defer r.mu.Unlock()

	if token != r.token {
		r.svc.metrics.StaleSuggestions.Inc()
		r.svc.logger.Debug("dropping stale suggestions", "token", token, "latest", r.token)
		return
	}
	r.pending = false
	if err != nil {
		r.svc.logger.Warn("address lookup failed", "error", err)
		r.suggestions = nil
		r.notice = NoticeLookupFailed
		return
	}
	r.suggestions = res
}

// Select returns suggestion i and closes the list, superseding any pending lookup.
func (r *Resolver) Select(i int) (domain.Suggestion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i < 0 || i >= len(r.suggestions) {
		return domain.Suggestion{}, ErrNoSuggestion
	}
	s := r.suggestions[i]
	r.token++
	r.stopTimer()
	r.query = s.Label
	r.suggestions = nil
	r.pending = false
	return s, nil
}

// Clear empties the search box and drops any pending lookup.
func (r *Resolver) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.token++
	r.stopTimer()
	r.query = ""
	r.suggestions = nil
	r.pending = false
}

// DismissNotice clears the failure notice.
func (r *Resolver) DismissNotice() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notice = ""
}

// State returns a copy of the current search-box state.
func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := State{Query: r.query, Pending: r.pending, Notice: r.notice}
	if len(r.suggestions) > 0 {
		st.Suggestions = append([]domain.Suggestion(nil), r.suggestions...)
	}
	return st
}

// Close cancels pending and in-flight lookups.
func (r *Resolver) Close() {
	r.mu.Lock()
	r.token++
	r.stopTimer()
	r.mu.Unlock()
	r.cancel()
}

func (r *Resolver) stopTimer() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}
