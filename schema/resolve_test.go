package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/relgraph/qc"
)

func buildTestSchema(t *testing.T, eng *stubEngine) *Schema {
	t.Helper()
	region, _ := regionNationSpecs()
	s, err := Build(context.Background(), eng, func() Fields {
		return Fields{
			"regions": Connect(region),
		}
	})
	require.NoError(t, err)
	return s
}

func (s *Schema) resolve(t *testing.T, req *Request, typeName, fieldName string, parent any, args map[string]any) any {
	t.Helper()
	typ := s.Types[typeName]
	require.NotNil(t, typ)
	f := typ.GetField(fieldName)
	require.NotNil(t, f)
	v, err := s.ResolveField(context.Background(), &ResolveInfo{
		Schema:   s,
		Request:  req,
		TypeName: typeName,
		Field:    f,
		Parent:   parent,
		Args:     args,
	})
	require.NoError(t, err)
	return v
}

func TestResolveFastColumn(t *testing.T) {
	eng := &stubEngine{cat: testCatalog()}
	s := buildTestSchema(t, eng)
	req := s.NewRequest()

	row := &qc.Row{Entity: "region", Key: int64(1), Values: map[string]any{"name": "ASIA", "comment": ""}}
	got := s.resolve(t, req, "region", "name", row, nil)
	require.Equal(t, "ASIA", got)
	require.Empty(t, eng.produced, "single-attribute reads must not hit the engine")
}

func TestResolveID(t *testing.T) {
	eng := &stubEngine{cat: testCatalog()}
	s := buildTestSchema(t, eng)
	req := s.NewRequest()

	row := &qc.Row{Entity: "region", Key: int64(3), Values: map[string]any{}}
	require.Equal(t, int64(3), s.resolve(t, req, "region", "id", row, nil))
}

func TestResolveConnection(t *testing.T) {
	newSchema := func(t *testing.T, produce func(q *qc.Query, params qc.Params, anchor *qc.Anchor) (*qc.Product, error)) (*stubEngine, *Schema) {
		eng := &stubEngine{cat: testCatalog(), produce: produce}
		return eng, buildTestSchema(t, eng)
	}

	t.Run("count", func(t *testing.T) {
		eng, s := newSchema(t, func(q *qc.Query, params qc.Params, anchor *qc.Anchor) (*qc.Product, error) {
			return &qc.Product{Kind: qc.ProductValue, Value: int64(5)}, nil
		})
		req := s.NewRequest()
		cv := s.resolve(t, req, "Root", "regions", nil, nil)
		got := s.resolve(t, req, "region_connection", "count", cv, nil)
		require.Equal(t, int64(5), got)
		require.Len(t, eng.produced, 1)
		require.Equal(t, "region.count()", eng.produced[0].Query)
		require.Nil(t, eng.produced[0].Anchor)
	})

	t.Run("get filters by identifier", func(t *testing.T) {
		want := &qc.Row{Entity: "region", Key: int64(2), Values: map[string]any{"name": "ASIA"}}
		eng, s := newSchema(t, func(q *qc.Query, params qc.Params, anchor *qc.Anchor) (*qc.Product, error) {
			return &qc.Product{Kind: qc.ProductRow, Row: want}, nil
		})
		req := s.NewRequest()
		cv := s.resolve(t, req, "Root", "regions", nil, nil)
		got := s.resolve(t, req, "region_connection", "get", cv, map[string]any{"id": int64(2)})
		require.Same(t, want, got)
		require.Equal(t, "region.filter((here().id() = 2)).first()", eng.produced[0].Query)
	})

	t.Run("get_many reorders and drops missing", func(t *testing.T) {
		rows := []*qc.Row{
			{Entity: "region", Key: int64(1), Values: map[string]any{}},
			{Entity: "region", Key: int64(2), Values: map[string]any{}},
		}
		eng, s := newSchema(t, func(q *qc.Query, params qc.Params, anchor *qc.Anchor) (*qc.Product, error) {
			return &qc.Product{Kind: qc.ProductRows, Rows: rows}, nil
		})
		req := s.NewRequest()
		cv := s.resolve(t, req, "Root", "regions", nil, nil)
		got := s.resolve(t, req, "region_connection", "get_many", cv,
			map[string]any{"id": []any{int64(2), int64(9), int64(1)}})

		list, ok := got.([]any)
		require.True(t, ok)
		require.Len(t, list, 2)
		require.Same(t, rows[1], list[0])
		require.Same(t, rows[0], list[1])
		require.Len(t, eng.produced, 1)
	})

	t.Run("get_many with no identifiers skips the engine", func(t *testing.T) {
		eng, s := newSchema(t, nil)
		req := s.NewRequest()
		cv := s.resolve(t, req, "Root", "regions", nil, nil)
		got := s.resolve(t, req, "region_connection", "get_many", cv, map[string]any{"id": []any{}})
		require.Equal(t, []any{}, got)
		require.Empty(t, eng.produced)
	})

	t.Run("paginated", func(t *testing.T) {
		eng, s := newSchema(t, func(q *qc.Query, params qc.Params, anchor *qc.Anchor) (*qc.Product, error) {
			return &qc.Product{Kind: qc.ProductRows}, nil
		})
		req := s.NewRequest()
		cv := s.resolve(t, req, "Root", "regions", nil, nil)
		s.resolve(t, req, "region_connection", "paginated", cv,
			map[string]any{"limit": int64(2), "offset": int64(1)})
		require.Equal(t, "region.paginate()", eng.produced[0].Query)
	})

	t.Run("anchored at the parent row", func(t *testing.T) {
		eng, s := newSchema(t, func(q *qc.Query, params qc.Params, anchor *qc.Anchor) (*qc.Product, error) {
			return &qc.Product{Kind: qc.ProductValue, Value: int64(5)}, nil
		})
		req := s.NewRequest()
		row := &qc.Row{Entity: "region", Key: int64(1), Values: map[string]any{}}
		cv := s.resolve(t, req, "region", "nations", row, nil)
		s.resolve(t, req, "nation_connection", "count", cv, nil)
		require.Len(t, eng.produced, 1)
		require.Equal(t, &qc.Anchor{Entity: "region", Key: int64(1)}, eng.produced[0].Anchor)
		require.Equal(t, "nation.count()", eng.produced[0].Query)
	})
}

func TestApplyFilters(t *testing.T) {
	t.Run("predicate applies only when all arguments are present", func(t *testing.T) {
		f := &Filter{
			pred: qc.Path("name").Eq(qc.Arg("name")),
			args: []*Argument{Arg("name", String)},
		}
		base := qc.Path("region")

		got := applyFilters(base, []*Filter{f}, map[string]any{"name": "ASIA"})
		require.Equal(t, "region.filter((name = $name))", got.String())

		got = applyFilters(base, []*Filter{f}, map[string]any{})
		require.Equal(t, "region", got.String())
	})

	t.Run("generator always runs", func(t *testing.T) {
		var seen map[string]any
		f := FilterFunc(func(values map[string]any) []*qc.Query {
			seen = values
			if _, ok := values["name"]; !ok {
				return nil
			}
			return []*qc.Query{qc.Path("name").Eq(qc.Lit(values["name"]))}
		}, Arg("name", String))

		got := applyFilters(qc.Path("region"), []*Filter{f}, map[string]any{})
		require.Equal(t, "region", got.String())
		require.NotNil(t, seen)

		got = applyFilters(qc.Path("region"), []*Filter{f}, map[string]any{"name": "ASIA"})
		require.Equal(t, "region.filter((name = ASIA))", got.String())
	})
}

func TestRequestParamCaching(t *testing.T) {
	calls := 0
	viewer := Param("viewer", String, func(ctx context.Context) (any, error) {
		calls++
		return "u-1", nil
	})
	eng := &stubEngine{cat: testCatalog()}
	s, err := Build(context.Background(), eng, func() Fields {
		return Fields{
			"me": QueryField(qc.Expr(viewer), WithType(String)),
		}
	})
	require.NoError(t, err)

	req := s.NewRequest()
	for i := 0; i < 3; i++ {
		got := s.resolve(t, req, "Root", "me", nil, nil)
		require.Equal(t, "u-1", got)
	}
	require.Equal(t, 1, calls)
	require.Empty(t, eng.produced, "bare parameters resolve without the engine")
}
