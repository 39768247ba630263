package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crm-electoral-api/internal/models"
)

var (
	admin    = models.Actor{Name: "Ana Admin", Role: models.ActorAdmin}
	operator = models.Actor{Name: "Omar", Role: models.ActorOperator, Seccional: "Barcelona"}
	now      = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"José", "jose"},
		{"  PÉREZ ", "perez"},
		{"Peña Núñez", "pena nunez"},
		{"Müller", "muller"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), tt.in)
	}
}

func TestResolve_AccentInsensitiveSearch(t *testing.T) {
	stored := &models.Affiliate{Nombre: "José", Apellidos: "Pérez", Cedula: "001-1111111-1"}

	for _, q := range []string{"jose", "José", "JOSE", "perez", "jose perez"} {
		c := Resolve(Filter{Query: q}, admin, now)
		assert.True(t, c.Matches(stored), "query %q should match", q)
	}

	c := Resolve(Filter{Query: "1111111"}, admin, now)
	assert.True(t, c.Matches(stored), "cedula substring should match")

	c = Resolve(Filter{Query: "maria"}, admin, now)
	assert.False(t, c.Matches(stored))
}

func TestResolve_OperatorIsConfinedToOwnSeccional(t *testing.T) {
	requested := []string{"", AllSeccionales, "Madrid", "Barcelona", "Valencia"}
	madrid := &models.Affiliate{Seccional: "Madrid"}
	barcelona := &models.Affiliate{Seccional: "Barcelona"}

	for _, sec := range requested {
		c := Resolve(Filter{Seccional: sec}, operator, now)
		assert.Equal(t, "Barcelona", c.Seccional, "requested %q", sec)
		assert.False(t, c.Matches(madrid), "requested %q leaked Madrid", sec)
		assert.True(t, c.Matches(barcelona))
	}
}

func TestResolve_OperatorWithoutSeccionalSeesNothing(t *testing.T) {
	c := Resolve(Filter{}, models.Actor{Role: models.ActorOperator}, now)
	assert.True(t, c.NoAccess)
	assert.False(t, c.Matches(&models.Affiliate{Seccional: "Madrid"}))

	where, args := c.Where()
	assert.Equal(t, "WHERE FALSE", where)
	assert.Empty(t, args)
}

func TestResolve_AdminSeesAllWithSentinel(t *testing.T) {
	c := Resolve(Filter{Seccional: AllSeccionales, Role: AllRoles, Status: AllStatus}, admin, now)
	assert.Empty(t, c.Seccional)
	assert.Empty(t, c.Role)
	assert.Nil(t, c.Validado)

	where, args := c.Where()
	assert.Empty(t, where)
	assert.Empty(t, args)
}

func TestResolve_StatusFilter(t *testing.T) {
	c := Resolve(Filter{Status: StatusValidated}, admin, now)
	require.NotNil(t, c.Validado)
	assert.True(t, *c.Validado)

	c = Resolve(Filter{Status: StatusPending}, admin, now)
	require.NotNil(t, c.Validado)
	assert.False(t, *c.Validado)
	assert.True(t, c.Matches(&models.Affiliate{Validado: false}))
	assert.False(t, c.Matches(&models.Affiliate{Validado: true}))
}

func TestResolve_LastSevenDays(t *testing.T) {
	c := Resolve(Filter{DateRange: Date7Days}, admin, now)

	eightDaysAgo := &models.Affiliate{CreatedAt: now.Add(-8 * 24 * time.Hour)}
	oneHourAgo := &models.Affiliate{CreatedAt: now.Add(-time.Hour)}

	assert.False(t, c.Matches(eightDaysAgo))
	assert.True(t, c.Matches(oneHourAgo))
}

func TestResolve_CustomRangeIsInclusive(t *testing.T) {
	c := Resolve(Filter{DateRange: DateCustom, From: "2025-03-01", To: "2025-03-10"}, admin, now)
	require.NotNil(t, c.CreatedFrom)
	require.NotNil(t, c.CreatedTo)

	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), *c.CreatedFrom)
	assert.Equal(t, time.Date(2025, 3, 10, 23, 59, 59, 999_000_000, time.UTC), *c.CreatedTo)

	assert.True(t, c.Matches(&models.Affiliate{CreatedAt: time.Date(2025, 3, 10, 23, 59, 59, 0, time.UTC)}))
	assert.False(t, c.Matches(&models.Affiliate{CreatedAt: time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)}))
	assert.False(t, c.Matches(&models.Affiliate{CreatedAt: time.Date(2025, 2, 28, 23, 0, 0, 0, time.UTC)}))
}

func TestResolve_SortOrders(t *testing.T) {
	tests := []struct {
		sort string
		want string
	}{
		{SortNewest, "ORDER BY created_at DESC, id ASC"},
		{SortOldest, "ORDER BY created_at ASC, id ASC"},
		{SortAZ, "ORDER BY nombre ASC, id ASC"},
		{SortZA, "ORDER BY nombre DESC, id ASC"},
		{"bogus", "ORDER BY created_at DESC, id ASC"},
		{"", "ORDER BY created_at DESC, id ASC"},
	}
	for _, tt := range tests {
		t.Run(tt.sort, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(Filter{Sort: tt.sort}, admin, now).OrderBy())
		})
	}
}

func TestCriteria_SortInMemory(t *testing.T) {
	items := []*models.Affiliate{
		{ID: "1", Nombre: "Carla", CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "2", Nombre: "Ana", CreatedAt: now.Add(-1 * time.Hour)},
		{ID: "3", Nombre: "Beto", CreatedAt: now.Add(-3 * time.Hour)},
	}

	Resolve(Filter{Sort: SortAZ}, admin, now).Sort(items)
	assert.Equal(t, []string{"Ana", "Beto", "Carla"}, names(items))

	Resolve(Filter{Sort: SortZA}, admin, now).Sort(items)
	assert.Equal(t, []string{"Carla", "Beto", "Ana"}, names(items))

	Resolve(Filter{Sort: SortNewest}, admin, now).Sort(items)
	assert.Equal(t, []string{"Ana", "Carla", "Beto"}, names(items))
}

func TestPageRange(t *testing.T) {
	from, to := PageRange(1)
	assert.Equal(t, 0, from)
	assert.Equal(t, 11, to)

	from, to = PageRange(3)
	assert.Equal(t, 24, from)
	assert.Equal(t, 35, to)

	from, _ = PageRange(0)
	assert.Equal(t, 0, from)
}

func TestWhere_BuildsPlaceholders(t *testing.T) {
	c := Resolve(Filter{Query: "50%_off", Seccional: "Madrid", Role: "Operador", Status: StatusPending}, admin, now)
	where, args := c.Where()

	assert.Contains(t, where, "nombre_search LIKE $1")
	assert.Contains(t, where, "cedula ILIKE $2")
	assert.Contains(t, where, "seccional = $3")
	assert.Contains(t, where, "role = $4")
	assert.Contains(t, where, "validado = $5")
	require.Len(t, args, 5)
	assert.Equal(t, `%50\%\_off%`, args[0])
	assert.Equal(t, false, args[4])
}

func TestFilter_WithSelectionResetsPage(t *testing.T) {
	base := Filter{Query: "ana", Seccional: "Madrid", Page: 4}

	changes := []Filter{
		{Query: "ana maria", Seccional: "Madrid", Page: 4},
		{Query: "ana", Seccional: "Valencia", Page: 4},
		{Query: "ana", Seccional: "Madrid", Role: "Miembro", Page: 4},
		{Query: "ana", Seccional: "Madrid", Status: StatusValidated, Page: 4},
		{Query: "ana", Seccional: "Madrid", DateRange: Date30Days, Page: 4},
		{Query: "ana", Seccional: "Madrid", Sort: SortAZ, Page: 4},
	}
	for _, next := range changes {
		assert.Equal(t, 1, base.WithSelection(next).Page, "%+v", next)
	}

	pageOnly := Filter{Query: "ana", Seccional: "Madrid", Page: 5}
	assert.Equal(t, 5, base.WithSelection(pageOnly).Page)
}

func TestNewPage(t *testing.T) {
	c := Resolve(Filter{Page: 2}, admin, now)
	items := make([]*models.Affiliate, 5)
	p := NewPage(items, 17, c)

	assert.Equal(t, 2, p.Page)
	assert.Equal(t, 2, p.TotalPages)
	assert.Equal(t, 13, p.ShowingFrom)
	assert.Equal(t, 17, p.ShowingTo)

	empty := NewPage(nil, 0, Resolve(Filter{}, admin, now))
	assert.NotNil(t, empty.Items)
	assert.Equal(t, 0, empty.TotalPages)
	assert.Equal(t, 0, empty.ShowingFrom)
}

func names(items []*models.Affiliate) []string {
	out := make([]string, len(items))
	for i, a := range items {
		out[i] = a.Nombre
	}
	return out
}
