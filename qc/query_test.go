package qc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQueryString(t *testing.T) {
	cases := []struct {
		name string
		q    *Query
		want string
	}{
		{"here", Here(), "here()"},
		{"path", Path("region", "name"), "region.name"},
		{"nav extends path", Path("region").Nav("name"), "region.name"},
		{"filter", Path("region").Filter(Path("name").Eq(Arg("name"))), "region.filter((name = $name))"},
		{"sort", Path("nation").Sort(Asc("name"), Desc("nation_id")), "nation.sort(name, nation_id-)"},
		{"count", Path("region").Count(), "region.count()"},
		{"first", Path("region").First(), "region.first()"},
		{"id", Here().ID(), "here().id()"},
		{"matches", Path("name").Matches(Lit("AFR")), "(name ~ AFR)"},
		{"in", Here().ID().In(Arg("ids")), "(here().id() in $ids)"},
		{"select", Path("region").Select(F("n", Path("name"))), "region.select(n := name)"},
		{"group", Path("nation").GroupBy(F("r", Path("region", "name"))), "nation.group(r := region.name)"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.q.String())
		})
	}
}

func TestQueryImmutability(t *testing.T) {
	base := Path("region")
	a := base.Nav("name")
	b := base.Nav("comment")
	require.Equal(t, "region", base.String())
	require.Equal(t, "region.name", a.String())
	require.Equal(t, "region.comment", b.String())
}

func TestPlaceholders(t *testing.T) {
	q := Path("nation").
		Filter(Path("name").Eq(Arg("name"))).
		Filter(Here().ID().In(Param("visible"))).
		Paginate(Arg("limit"), nil)

	got := Placeholders(q)
	require.Len(t, got, 3)
	require.Equal(t, "name", got[0].Name)
	require.False(t, got[0].IsParam)
	require.Equal(t, "visible", got[1].Name)
	require.True(t, got[1].IsParam)
	require.Equal(t, "limit", got[2].Name)
}

func TestSingleStep(t *testing.T) {
	step, ok := SingleStep(Path("name"))
	require.True(t, ok)
	require.Equal(t, "name", step)

	_, ok = SingleStep(Path("region", "name"))
	require.False(t, ok)
	_, ok = SingleStep(Path("name").Count())
	require.False(t, ok)
	_, ok = SingleStep(Here())
	require.False(t, ok)
}

func TestBarePlaceholder(t *testing.T) {
	ph, ok := BarePlaceholder(Arg("user"))
	require.True(t, ok)
	require.Equal(t, "user", ph.Name)
	require.False(t, ph.IsParam)

	ph, ok = BarePlaceholder(Param("user"))
	require.True(t, ok)
	require.True(t, ph.IsParam)

	_, ok = BarePlaceholder(Path("user"))
	require.False(t, ok)
}
