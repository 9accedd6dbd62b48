package domain

import (
	"math"
	"sort"
	"strings"
)

// Mode selects the detail level of a view.
type Mode string

const (
	// ModePublic is the visitor map: approximate location, coordinator contact.
	ModePublic Mode = "public"
	// ModePrivileged is the leaders/admin view: full address, leader and
	// supervisor contacts, text search over names.
	ModePrivileged Mode = "privileged"
)

// ParseMode maps free text to a Mode, defaulting to ModePublic.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(ModePrivileged), "leader", "lider", "admin":
		return ModePrivileged
	default:
		return ModePublic
	}
}

// FilterState is the live view state the pipeline is parameterized by.
// Empty CategoryID and DayToken mean "all"; a nil Position means no
// reference point.
type FilterState struct {
	Query      string    `json:"query,omitempty"`
	CategoryID string    `json:"category,omitempty"`
	DayToken   string    `json:"day,omitempty"`
	Position   *Position `json:"position,omitempty"`
	Mode       Mode      `json:"mode,omitempty"`
}

// Apply runs annotate → text filter → category filter → day filter → sort.
// The input slice is never modified; the result is a fresh slice.
//
// While a position is set the text query is ignored: proximity replaces text
// relevance and the two do not compose.
func Apply(groups []Group, f FilterState) []Group {
	query := strings.ToLower(strings.TrimSpace(f.Query))
	category := strings.ToLower(strings.TrimSpace(f.CategoryID))
	day := strings.ToLower(strings.TrimSpace(f.DayToken))

	out := make([]Group, 0, len(groups))
	for _, g := range groups {
		g.Distance = nil
		if f.Position != nil {
			d := DistanceBetween(*f.Position, g.Position)
			g.Distance = &d
		}

		if query != "" && f.Position == nil && !strings.Contains(searchText(g, f.Mode), query) {
			continue
		}
		if category != "" && g.Category.ID != category {
			continue
		}
		if day != "" && !strings.Contains(strings.ToLower(g.Schedule), day) {
			continue
		}
		out = append(out, g)
	}

	if f.Position != nil {
		sort.SliceStable(out, func(i, j int) bool {
			return sortKey(out[i].Distance) < sortKey(out[j].Distance)
		})
	}
	return out
}

// searchText is the lower-cased haystack for the free-text filter.
func searchText(g Group, mode Mode) string {
	fields := []string{g.Address.Neighborhood, g.Address.Formatted}
	if mode == ModePrivileged {
		fields = []string{g.Name, g.Address.Neighborhood, g.LeaderDisplay}
	}
	return strings.ToLower(strings.Join(fields, " "))
}

// sortKey orders missing or NaN distances last.
func sortKey(d *float64) float64 {
	if d == nil || math.IsNaN(*d) {
		return math.Inf(1)
	}
	return *d
}
