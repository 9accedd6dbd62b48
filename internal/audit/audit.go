// Package audit checks backend rows for data problems that do not stop the
// locator from loading but hide groups or break their contact links.
package audit

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mmcloughlin/geohash"

	"github.com/celulas/locator/internal/domain"
)

// overlapPrecision gives ~5m cells; two markers in one cell cannot be told apart.
const overlapPrecision = 9

// Phase is one named check and the problems it found.
type Phase struct {
	Name   string
	Errors []string
}

func (p *Phase) errorf(format string, args ...any) {
	p.Errors = append(p.Errors, fmt.Sprintf(format, args...))
}

// Passed reports whether the phase found nothing.
func (p *Phase) Passed() bool { return len(p.Errors) == 0 }

// Report is the outcome of Run.
type Report struct {
	Rows     int
	Accepted int
	Phases   []*Phase
}

// Passed reports whether every phase passed.
func (r Report) Passed() bool {
	for _, p := range r.Phases {
		if !p.Passed() {
			return false
		}
	}
	return true
}

// Run normalizes rows with n and runs every check over the result.
func Run(rows []domain.RawRow, n domain.Normalizer) Report {
	res := n.NormalizeAll(rows)
	return Report{
		Rows:     len(rows),
		Accepted: len(res.Groups),
		Phases: []*Phase{
			checkCoordinates(res),
			checkCategories(rows),
			checkPublicContact(res.Groups),
			checkPhoneNumbers(res.Groups),
			checkAddresses(res.Groups),
			checkOverlaps(res.Groups),
		},
	}
}

func checkCoordinates(res domain.NormalizeResult) *Phase {
	p := &Phase{Name: "Coordinates"}
	for _, s := range res.Skipped {
		p.errorf("row %s: %s, group is hidden from the map", rowLabel(s.RowID), s.Reason)
	}
	for _, g := range res.Groups {
		if err := g.Position.Check(); err != nil {
			p.errorf("group %s (%s): %v", rowLabel(g.ID), g.Title, err)
		}
	}
	return p
}

func checkCategories(rows []domain.RawRow) *Phase {
	p := &Phase{Name: "Categories"}
	for _, row := range rows {
		raw, _ := row["categoria"].(string)
		if _, ok := domain.LookupCategory(raw); ok {
			continue
		}
		id := rowLabel(fmt.Sprint(row["id"]))
		if strings.TrimSpace(raw) == "" {
			p.errorf("row %s: category is empty", id)
			continue
		}
		p.errorf("row %s: unknown category %q", id, raw)
	}
	return p
}

func checkPublicContact(groups []domain.Group) *Phase {
	p := &Phase{Name: "Public contact"}
	for _, g := range groups {
		if g.Coordinator == nil || !g.Coordinator.Reachable() {
			p.errorf("group %s (%s): no coordinator WhatsApp, visitors cannot get in touch", rowLabel(g.ID), g.Title)
		}
	}
	return p
}

func checkPhoneNumbers(groups []domain.Group) *Phase {
	p := &Phase{Name: "Phone numbers"}
	check := func(g domain.Group, role string, c domain.Contact) {
		if c.WhatsApp != "" && !c.Reachable() {
			p.errorf("group %s (%s): %s number %q is too short", rowLabel(g.ID), g.Title, role, c.WhatsApp)
		}
	}
	for _, g := range groups {
		for _, l := range g.Leaders {
			check(g, "leader", l)
		}
		if g.Supervisor != nil {
			check(g, "supervisor", g.Supervisor.First)
			if g.Supervisor.Second != nil {
				check(g, "supervisor", *g.Supervisor.Second)
			}
		}
		if g.Coordinator != nil {
			check(g, "coordinator", g.Coordinator.Contact)
		}
	}
	return p
}

func checkAddresses(groups []domain.Group) *Phase {
	p := &Phase{Name: "Addresses"}
	for _, g := range groups {
		if strings.TrimSpace(g.Address.Neighborhood) == "" {
			p.errorf("group %s (%s): no neighborhood, public card shows no location", rowLabel(g.ID), g.Title)
		}
	}
	return p
}

func checkOverlaps(groups []domain.Group) *Phase {
	p := &Phase{Name: "Overlapping markers"}
	cells := make(map[string][]string)
	for _, g := range groups {
		cell := geohash.EncodeWithPrecision(g.Position.Lat, g.Position.Lon, overlapPrecision)
		cells[cell] = append(cells[cell], rowLabel(g.ID))
	}
	keys := make([]string, 0, len(cells))
	for k, ids := range cells {
		if len(ids) > 1 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		p.errorf("groups %s share one map position (%s)", strings.Join(cells[k], ", "), k)
	}
	return p
}

func rowLabel(id string) string {
	if id == "" || id == "<nil>" {
		return "#?"
	}
	return "#" + id
}
