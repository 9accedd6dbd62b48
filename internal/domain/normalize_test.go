package domain

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testStreet       = "Rua das Flores"
	testNeighborhood = "Centro"
)

func TestNormalize_FullRow(t *testing.T) {
	row := RawRow{
		"id":              int64(7),
		"nome":            "Célula Jovem Centro",
		"categoria":       "  TEENS ",
		"lider1_nome":     "Matheus Silva",
		"lider1_whatsapp": "5511999990001",
		"lider2_nome":     "Ana",
		"lider2_whatsapp": "5511999990002",
		"dia":             "Sábado às 19h",
		"cep":             "01001-000",
		"logradouro":      testStreet,
		"numero":          "123",
		"complemento":     "apto 4",
		"bairro":          testNeighborhood,
		"endereco":        "Rua Velha, 1",
		"lat":             -23.55052,
		"lon":             "-46.63330",
		"supervisores": map[string]any{
			"nome_1": "Carlos", "whatsapp_1": "5511988880001",
			"nome_2": "Beatriz", "whatsapp_2": "5511988880002",
		},
		"coordenadores": map[string]any{"nome": "Pr. João", "whatsapp": "5511977770000"},
	}

	g, ok := Normalizer{}.Normalize(row)
	require.True(t, ok)

	assert.Equal(t, "7", g.ID)
	assert.Equal(t, "Célula Jovem Centro", g.Title)
	assert.Equal(t, "teens", g.Category.ID)
	assert.Equal(t, "Teens", g.Category.Label)
	assert.Equal(t, Position{Lat: -23.55052, Lon: -46.63330}, g.Position)
	assert.Equal(t, "Matheus Silva e Ana", g.LeaderDisplay)
	require.Len(t, g.Leaders, 2)
	assert.Equal(t, "5511999990002", g.Leaders[1].WhatsApp)
	assert.Equal(t, "Sábado às 19h", g.Schedule)
	assert.Equal(t, "Rua das Flores, 123 - apto 4", g.Address.Formatted)
	assert.Equal(t, testNeighborhood, g.Address.Neighborhood)
	require.NotNil(t, g.Supervisor)
	assert.Equal(t, "Carlos", g.Supervisor.First.Name)
	require.NotNil(t, g.Supervisor.Second)
	assert.Equal(t, "Beatriz", g.Supervisor.Second.Name)
	require.NotNil(t, g.Coordinator)
	assert.Equal(t, "5511977770000", g.Coordinator.WhatsApp)
	assert.Nil(t, g.Distance)
}

func TestNormalize_Coordinates(t *testing.T) {
	tests := []struct {
		name   string
		lat    any
		lon    any
		ok     bool
		reason string
	}{
		{"floats", -23.5, -46.6, true, ""},
		{"numeric strings", " -23.5 ", "-46.6", true, ""},
		{"json numbers", json.Number("-23.5"), json.Number("-46.6"), true, ""},
		{"ints", 0, 0, true, ""},
		{"bytes", []byte("-23.5"), []byte("-46.6"), true, ""},
		{"nil lat", nil, -46.6, false, ReasonMissingLatitude},
		{"empty lon", -23.5, "  ", false, ReasonMissingLongitude},
		{"not a number", "not-a-number", -46.6, false, ReasonInvalidLatitude},
		{"NaN string", "-23.5", "NaN", false, ReasonInvalidLongitude},
		{"infinite", math.Inf(1), -46.6, false, ReasonInvalidLatitude},
		{"unsupported type", true, -46.6, false, ReasonInvalidLatitude},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Normalizer{}.NormalizeAll([]RawRow{{"id": "x", "lat": tt.lat, "lon": tt.lon}})
			if tt.ok {
				assert.Len(t, res.Groups, 1)
				assert.Empty(t, res.Skipped)
				return
			}
			assert.Empty(t, res.Groups)
			require.Len(t, res.Skipped, 1)
			assert.Equal(t, SkippedRow{RowID: "x", Reason: tt.reason}, res.Skipped[0])
		})
	}
}

func TestNormalize_MissingKeys(t *testing.T) {
	res := Normalizer{}.NormalizeAll([]RawRow{
		{"id": 1, "lon": -46.6},
		{"id": 2, "lat": -23.5},
	})
	assert.Empty(t, res.Groups)
	assert.Equal(t, []SkippedRow{
		{RowID: "1", Reason: ReasonMissingLatitude},
		{RowID: "2", Reason: ReasonMissingLongitude},
	}, res.Skipped)
}

func TestNormalize_LegacyCoordsPair(t *testing.T) {
	g, ok := Normalizer{}.Normalize(RawRow{"id": 1, "coords": []any{-23.689, -46.559}})
	require.True(t, ok)
	assert.Equal(t, Position{Lat: -23.689, Lon: -46.559}, g.Position)
}

func TestNormalize_CategoryFallback(t *testing.T) {
	base := func(cat any) RawRow { return RawRow{"id": 1, "lat": 1.0, "lon": 1.0, "categoria": cat} }

	g, _ := Normalizer{}.Normalize(base("figeira"))
	assert.Equal(t, DefaultCategoryID, g.Category.ID)

	g, _ = Normalizer{}.Normalize(base(nil))
	assert.Equal(t, DefaultCategoryID, g.Category.ID)
	assert.Equal(t, "Célula Figueira", g.Title)

	g, _ = Normalizer{DefaultCategoryID: "valentes"}.Normalize(base("???"))
	assert.Equal(t, "valentes", g.Category.ID)

	g, _ = Normalizer{DefaultCategoryID: "nope"}.Normalize(base(""))
	assert.Equal(t, DefaultCategoryID, g.Category.ID)
}

func TestNormalize_LeaderDisplay(t *testing.T) {
	tests := []struct {
		name    string
		row     RawRow
		display string
		leaders int
	}{
		{"two leaders", RawRow{"lider1_nome": "João", "lider2_nome": "Maria"}, "João e Maria", 2},
		{"one leader", RawRow{"lider1_nome": "João"}, "João", 1},
		{"legacy leader", RawRow{"lider": "Pr. Carlos", "whatsapp1": "5511999999999"}, "Pr. Carlos", 1},
		{"second without first uses legacy", RawRow{"lider2_nome": "Maria", "lider": "Pr. Carlos"}, "Pr. Carlos", 1},
		{"nobody", RawRow{}, "-", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.row["lat"], tt.row["lon"] = 1.0, 1.0
			g, ok := Normalizer{}.Normalize(tt.row)
			require.True(t, ok)
			assert.Equal(t, tt.display, g.LeaderDisplay)
			assert.Len(t, g.Leaders, tt.leaders)
		})
	}
}

func TestNormalize_LegacyLeaderKeepsWhatsApp(t *testing.T) {
	g, _ := Normalizer{}.Normalize(RawRow{"lat": 1, "lon": 1, "lider": "Pr. Carlos", "whatsapp1": "5511999999999"})
	require.Len(t, g.Leaders, 1)
	assert.Equal(t, "5511999999999", g.Leaders[0].WhatsApp)
}

func TestNormalize_AddressPreference(t *testing.T) {
	tests := []struct {
		name string
		row  RawRow
		want string
	}{
		{"structured wins", RawRow{"logradouro": "Av. Kennedy", "numero": "500", "endereco": "Old St, 1"}, "Av. Kennedy, 500"},
		{"legacy fallback", RawRow{"endereco": "Rua Caminho do Mar, 200"}, "Rua Caminho do Mar, 200"},
		{"legacy with complement", RawRow{"endereco": "Rua A, 1", "complemento": "fundos"}, "Rua A, 1 - fundos"},
		{"street only", RawRow{"logradouro": "Rua B"}, "Rua B"},
		{"nothing", RawRow{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.row["lat"], tt.row["lon"] = 1.0, 1.0
			g, ok := Normalizer{}.Normalize(tt.row)
			require.True(t, ok)
			assert.Equal(t, tt.want, g.Address.Formatted)
		})
	}
}

func TestNormalize_Relations(t *testing.T) {
	t.Run("single supervisor shape", func(t *testing.T) {
		g, _ := Normalizer{}.Normalize(RawRow{"lat": 1, "lon": 1, "supervisores": map[string]any{"nome": "Rui", "whatsapp": "5511911112222"}})
		require.NotNil(t, g.Supervisor)
		assert.Equal(t, Contact{Name: "Rui", WhatsApp: "5511911112222"}, g.Supervisor.First)
		assert.Nil(t, g.Supervisor.Second)
	})

	t.Run("relation as list", func(t *testing.T) {
		g, _ := Normalizer{}.Normalize(RawRow{"lat": 1, "lon": 1, "coordenadores": []any{map[string]any{"nome": "Lia", "whatsapp": "5511900000000"}}})
		require.NotNil(t, g.Coordinator)
		assert.Equal(t, "Lia", g.Coordinator.Name)
	})

	t.Run("empty relation is absent", func(t *testing.T) {
		g, _ := Normalizer{}.Normalize(RawRow{"lat": 1, "lon": 1, "supervisores": map[string]any{}, "coordenadores": nil})
		assert.Nil(t, g.Supervisor)
		assert.Nil(t, g.Coordinator)
	})

	t.Run("flat coordinator number", func(t *testing.T) {
		g, _ := Normalizer{}.Normalize(RawRow{"lat": 1, "lon": 1, "whatsapp_coordenador": "5511955554444"})
		require.NotNil(t, g.Coordinator)
		assert.Equal(t, "5511955554444", g.Coordinator.WhatsApp)
	})
}

func TestNormalizeAll_OutputNeverLargerAndAlwaysFinite(t *testing.T) {
	rows := []RawRow{
		{"id": 1, "lat": -23.5, "lon": -46.6},
		{"id": 2, "lat": "abc", "lon": -46.6},
		{"id": 3, "lat": nil, "lon": nil},
		{"id": 4, "lat": "1e400", "lon": 1},
		{"id": 5, "lat": "-23.7", "lon": "-46.5"},
		{},
	}
	res := Normalizer{}.NormalizeAll(rows)

	assert.LessOrEqual(t, len(res.Groups), len(rows))
	assert.Equal(t, len(rows), len(res.Groups)+len(res.Skipped))
	for _, g := range res.Groups {
		assert.True(t, g.Position.Valid(), "group %s", g.ID)
	}
	assert.Equal(t, "1", res.Groups[0].ID)
	assert.Equal(t, "5", res.Groups[1].ID)
}

// Scenario B: one row with lat "not-a-number" among valid rows.
func TestNormalizeAll_ScenarioB(t *testing.T) {
	rows := seedRows()
	before := Normalizer{}.NormalizeAll(rows)

	rows = append(rows, RawRow{"id": 99, "lat": "not-a-number", "lon": -46.6})
	after := Normalizer{}.NormalizeAll(rows)

	assert.Equal(t, len(rows)-1, len(after.Groups))
	assert.Equal(t, len(before.Groups), len(after.Groups))
	require.Len(t, after.Skipped, 1)
	assert.Equal(t, "99", after.Skipped[0].RowID)
}
