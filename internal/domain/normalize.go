package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Skip reasons reported in SkippedRow.Reason.
const (
	ReasonMissingLatitude  = "missing latitude"
	ReasonMissingLongitude = "missing longitude"
	ReasonInvalidLatitude  = "latitude is not a finite number"
	ReasonInvalidLongitude = "longitude is not a finite number"
)

// leaderPlaceholder is shown when a row names no leader at all.
const leaderPlaceholder = "-"

// Normalizer maps raw backend rows into Groups.
type Normalizer struct {
	// DefaultCategoryID replaces unknown or missing categories.
	// Empty means DefaultCategoryID.
	DefaultCategoryID string
}

// NormalizeResult is the accepted set plus the rows that were skipped.
type NormalizeResult struct {
	Groups  []Group
	Skipped []SkippedRow
}

// NormalizeAll normalizes rows in order. Rows lacking valid coordinates are
// excluded from Groups and listed in Skipped, never treated as failures.
func (n Normalizer) NormalizeAll(rows []RawRow) NormalizeResult {
	res := NormalizeResult{Groups: make([]Group, 0, len(rows))}
	for _, row := range rows {
		g, reason, ok := n.normalize(row)
		if !ok {
			res.Skipped = append(res.Skipped, SkippedRow{RowID: stringField(row, "id"), Reason: reason})
			continue
		}
		res.Groups = append(res.Groups, g)
	}
	return res
}

// Normalize maps a single row. ok is false when the row is not representable.
func (n Normalizer) Normalize(row RawRow) (Group, bool) {
	g, _, ok := n.normalize(row)
	return g, ok
}

func (n Normalizer) normalize(row RawRow) (Group, string, bool) {
	pos, reason := rowPosition(row)
	if reason != "" {
		return Group{}, reason, false
	}

	fallback := n.DefaultCategoryID
	if fallback == "" {
		fallback = DefaultCategoryID
	}
	category := ResolveCategory(stringField(row, "categoria"), fallback)

	name := stringField(row, "nome")
	title := name
	if title == "" {
		title = category.Display
	}

	display, leaders := rowLeaders(row)

	return Group{
		ID:            stringField(row, "id"),
		Title:         title,
		Name:          name,
		Category:      category,
		Position:      pos,
		LeaderDisplay: display,
		Leaders:       leaders,
		Supervisor:    rowSupervisor(row["supervisores"]),
		Coordinator:   rowCoordinator(row),
		Schedule:      stringField(row, "dia"),
		Address:       rowAddress(row),
	}, "", true
}

// rowPosition reads lat/lon, falling back to the early "coords": [lat, lon]
// shape. A non-empty reason means the row must be skipped.
func rowPosition(row RawRow) (Position, string) {
	latRaw, hasLat := row["lat"]
	lonRaw, hasLon := row["lon"]
	if !hasLat && !hasLon {
		if pair, ok := row["coords"].([]any); ok && len(pair) == 2 {
			latRaw, hasLat = pair[0], true
			lonRaw, hasLon = pair[1], true
		}
	}

	if !hasLat || isBlank(latRaw) {
		return Position{}, ReasonMissingLatitude
	}
	if !hasLon || isBlank(lonRaw) {
		return Position{}, ReasonMissingLongitude
	}
	lat, ok := parseCoordinate(latRaw)
	if !ok {
		return Position{}, ReasonInvalidLatitude
	}
	lon, ok := parseCoordinate(lonRaw)
	if !ok {
		return Position{}, ReasonInvalidLongitude
	}
	return Position{Lat: lat, Lon: lon}, ""
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// parseCoordinate accepts numbers and numeric strings and rejects NaN/Inf.
func parseCoordinate(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case int32:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case []byte:
		return parseCoordinate(string(t))
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	return f, isFinite(f)
}

func rowLeaders(row RawRow) (string, []Contact) {
	first := stringField(row, "lider1_nome")
	second := stringField(row, "lider2_nome")

	if first != "" {
		leaders := []Contact{{Name: first, WhatsApp: firstNonEmpty(stringField(row, "lider1_whatsapp"), stringField(row, "whatsapp1"))}}
		if second == "" {
			return first, leaders
		}
		leaders = append(leaders, Contact{Name: second, WhatsApp: stringField(row, "lider2_whatsapp")})
		return first + " e " + second, leaders
	}

	if legacy := stringField(row, "lider"); legacy != "" {
		return legacy, []Contact{{Name: legacy, WhatsApp: stringField(row, "whatsapp1")}}
	}
	return leaderPlaceholder, nil
}

// rowSupervisor tolerates both the paired (nome_1/nome_2) and the single
// (nome/whatsapp) supervisor shapes, as an object or a one-element list.
func rowSupervisor(v any) *Supervisor {
	rel := relation(v)
	if rel == nil {
		return nil
	}
	first := Contact{
		Name:     firstNonEmpty(stringField(rel, "nome_1"), stringField(rel, "nome")),
		WhatsApp: firstNonEmpty(stringField(rel, "whatsapp_1"), stringField(rel, "whatsapp")),
	}
	if first.Name == "" && first.WhatsApp == "" {
		return nil
	}
	sup := &Supervisor{First: first}
	second := Contact{Name: stringField(rel, "nome_2"), WhatsApp: stringField(rel, "whatsapp_2")}
	if second.Name != "" || second.WhatsApp != "" {
		sup.Second = &second
	}
	return sup
}

func rowCoordinator(row RawRow) *Coordinator {
	if rel := relation(row["coordenadores"]); rel != nil {
		c := Contact{Name: stringField(rel, "nome"), WhatsApp: stringField(rel, "whatsapp")}
		if c.Name != "" || c.WhatsApp != "" {
			return &Coordinator{Contact: c}
		}
	}
	if wa := stringField(row, "whatsapp_coordenador"); wa != "" {
		return &Coordinator{Contact: Contact{WhatsApp: wa}}
	}
	return nil
}

func rowAddress(row RawRow) Address {
	a := Address{
		PostalCode:   stringField(row, "cep"),
		Street:       stringField(row, "logradouro"),
		Number:       stringField(row, "numero"),
		Complement:   stringField(row, "complemento"),
		Neighborhood: stringField(row, "bairro"),
		Legacy:       stringField(row, "endereco"),
	}
	a.Formatted = FormatAddress(a)
	return a
}

func relation(v any) RawRow {
	switch t := v.(type) {
	case RawRow:
		return t
	case map[string]any:
		return RawRow(t)
	case []any:
		if len(t) > 0 {
			return relation(t[0])
		}
	}
	return nil
}

// stringField renders a scalar field as trimmed text. Missing and null
// values become "".
func stringField(row RawRow, key string) string {
	switch t := row[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []byte:
		return strings.TrimSpace(string(t))
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case json.Number:
		return t.String()
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
