package seed

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celulas/locator/internal/admin"
	"github.com/celulas/locator/internal/domain"
	"github.com/celulas/locator/internal/store"
)

const sample = `
supervisors:
  - key: carlos
    name_1: Carlos Lima
    whatsapp_1: "11988880001"
coordinators:
  - key: ana
    name: Ana Souza
    whatsapp: "11977770002"
groups:
  - name: Célula Figueira
    category: figueira
    leader1_name: João
    leader1_whatsapp: "11966660003"
    neighborhood: Centro
    lat: -23.55
    lon: -46.63
    supervisor: carlos
    coordinator: ana
  - name: Célula Sem Mapa
    category: teens
    street: Rua Augusta
    number: "100"
`

type stubResolver struct {
	calls []string
	sug   domain.Suggestion
	err   error
}

func (r *stubResolver) GeocodeAddress(_ context.Context, street, number, neighborhood string) (domain.Suggestion, error) {
	r.calls = append(r.calls, street+"|"+number+"|"+neighborhood)
	return r.sug, r.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), store.DriverSQLite, ":memory:", discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestParse(t *testing.T) {
	f, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	require.Len(t, f.Supervisors, 1)
	assert.Equal(t, "carlos", f.Supervisors[0].Key)
	assert.Equal(t, "Carlos Lima", f.Supervisors[0].Name1)
	require.Len(t, f.Groups, 2)
	assert.Equal(t, "ana", f.Groups[0].Coordinator)
	require.NotNil(t, f.Groups[0].Lat)
	assert.InDelta(t, -23.55, *f.Groups[0].Lat, 1e-9)
	assert.Nil(t, f.Groups[1].Lat)
}

func TestParse_Empty(t *testing.T) {
	f, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, f.Groups)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown field", "groups:\n  - name: x\n    colour: red\n", "colour"},
		{"missing key", "supervisors:\n  - name_1: x\n", "key is required"},
		{"duplicate key", "coordinators:\n  - key: a\n  - key: a\n", `duplicate coordinator key "a"`},
		{"dangling supervisor", "groups:\n  - name: x\n    supervisor: nobody\n", `unknown supervisor "nobody"`},
		{"dangling coordinator", "groups:\n  - name: x\n    coordinator: nobody\n", `unknown coordinator "nobody"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestApply_Direct(t *testing.T) {
	f, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	st := openStore(t)

	res, err := Apply(context.Background(), Direct(st), nil, f, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, Result{Supervisors: 1, Coordinators: 1, Groups: 2, Unlocated: []string{"Célula Sem Mapa"}}, res)

	rows, err := st.FetchGroups(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	norm := domain.Normalizer{}.NormalizeAll(rows)
	require.Len(t, norm.Groups, 1)
	require.Len(t, norm.Skipped, 1)

	g := norm.Groups[0]
	assert.Equal(t, "Célula Figueira", g.Name)
	require.NotNil(t, g.Supervisor)
	assert.Equal(t, "Carlos Lima", g.Supervisor.First.Name)
	require.NotNil(t, g.Coordinator)
	assert.Equal(t, "Ana Souza", g.Coordinator.Name)
}

func TestApply_Geocodes(t *testing.T) {
	f, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	st := openStore(t)
	resolver := &stubResolver{sug: domain.Suggestion{Label: "Rua Augusta, 100", Lat: -23.56, Lon: -46.65}}

	res, err := Apply(context.Background(), Direct(st), resolver, f, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Geocoded)
	assert.Empty(t, res.Unlocated)
	if diff := cmp.Diff([]string{"Rua Augusta|100|"}, resolver.calls); diff != "" {
		t.Errorf("geocode calls mismatch (-want +got):\n%s", diff)
	}

	rows, err := st.FetchGroups(context.Background())
	require.NoError(t, err)
	assert.Len(t, domain.Normalizer{}.NormalizeAll(rows).Groups, 2)
}

func TestApply_UnresolvedAddressStillInserted(t *testing.T) {
	f, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	st := openStore(t)
	resolver := &stubResolver{err: admin.ErrAddressNotFound}

	res, err := Apply(context.Background(), Direct(st), resolver, f, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Groups)
	assert.Equal(t, 0, res.Geocoded)
	assert.Equal(t, []string{"Célula Sem Mapa"}, res.Unlocated)
}

func TestApply_IgnoresIDsInFile(t *testing.T) {
	f, err := Parse(strings.NewReader("groups:\n  - id: 99\n    name: x\n    lat: 1\n    lon: 2\n"))
	require.NoError(t, err)
	st := openStore(t)

	_, err = Apply(context.Background(), Direct(st), nil, f, discardLogger())
	require.NoError(t, err)

	_, err = st.GetGroup(context.Background(), 99)
	require.ErrorIs(t, err, store.ErrNotFound)
}
