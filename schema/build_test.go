package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/relgraph/qc"
)

func testCatalog() *qc.Catalog {
	return &qc.Catalog{Entities: map[string]*qc.EntityDef{
		"region": {
			Name:    "region",
			Key:     "region_id",
			KeyKind: qc.KindInt,
			Attributes: map[string]qc.ScalarKind{
				"name":    qc.KindText,
				"comment": qc.KindText,
			},
			Links: map[string]*qc.LinkDef{
				"nation": {Target: "nation", Many: true, Column: "region_id"},
			},
		},
		"nation": {
			Name:    "nation",
			Key:     "nation_id",
			KeyKind: qc.KindInt,
			Attributes: map[string]qc.ScalarKind{
				"name":       qc.KindText,
				"population": qc.KindInt,
			},
			Links: map[string]*qc.LinkDef{
				"region": {Target: "region", Column: "region_id"},
			},
		},
	}}
}

type producedQuery struct {
	Query  string
	Params qc.Params
	Anchor *qc.Anchor
}

// stubEngine records every produced query and answers from a canned
// function, so resolution behavior is observable without a database.
type stubEngine struct {
	cat      *qc.Catalog
	produced []producedQuery
	produce  func(q *qc.Query, params qc.Params, anchor *qc.Anchor) (*qc.Product, error)
}

func (e *stubEngine) Catalog(ctx context.Context) (*qc.Catalog, error) { return e.cat, nil }

func (e *stubEngine) Produce(ctx context.Context, q *qc.Query, params qc.Params, anchor *qc.Anchor) (*qc.Product, error) {
	e.produced = append(e.produced, producedQuery{Query: q.String(), Params: params, Anchor: anchor})
	if e.produce != nil {
		return e.produce(q, params, anchor)
	}
	return &qc.Product{Kind: qc.ProductValue}, nil
}

func regionNationSpecs() (region, nation *TypeSpec) {
	region = Entity("region", func() Fields {
		return Fields{
			"name":    QueryField(qc.Path("name")),
			"comment": QueryField(qc.Path("comment")),
			"nations": Connect(nation),
		}
	})
	nation = Entity("nation", func() Fields {
		return Fields{
			"name":   QueryField(qc.Path("name")),
			"region": QueryField(qc.Path("region"), WithType(region)),
		}
	})
	return region, nation
}

func TestBuildEntitySchema(t *testing.T) {
	eng := &stubEngine{cat: testCatalog()}
	region, _ := regionNationSpecs()

	s, err := Build(context.Background(), eng, func() Fields {
		return Fields{
			"regions":      Connect(region),
			"region_names": QueryField(qc.Path("region", "name")),
		}
	})
	require.NoError(t, err)

	root := s.GetQueryType()
	require.NotNil(t, root)
	require.Equal(t, "Root", root.Name)

	t.Run("scalar type inference", func(t *testing.T) {
		f := root.GetField("region_names")
		require.NotNil(t, f)
		require.Equal(t, "[String]!", f.Type.String())
	})

	t.Run("implicit id field", func(t *testing.T) {
		rt := s.Types["region"]
		require.NotNil(t, rt)
		idField := rt.GetField("id")
		require.NotNil(t, idField)
		require.Equal(t, "region_id!", idField.Type.String())
		require.Equal(t, TypeKindScalar, s.Types["region_id"].Kind)
	})

	t.Run("connection type", func(t *testing.T) {
		f := root.GetField("regions")
		require.NotNil(t, f)
		require.Equal(t, "region_connection!", f.Type.String())

		conn := s.Types["region_connection"]
		require.NotNil(t, conn)
		for _, name := range []string{"all", "count", "get", "get_many", "paginated"} {
			require.NotNil(t, conn.GetField(name), "missing connection field %s", name)
		}
		get := conn.GetField("get")
		require.Equal(t, "region_id!", get.GetArgument("id").Type.String())
		require.Equal(t, "[region_id!]!", conn.GetField("get_many").GetArgument("id").Type.String())
		require.Equal(t, "Int", conn.GetField("paginated").GetArgument("limit").Type.String())
	})

	t.Run("entity link field", func(t *testing.T) {
		nt := s.Types["nation"]
		require.NotNil(t, nt)
		require.Equal(t, "region", nt.GetField("region").Type.String())
	})

	t.Run("nested connection follows the link", func(t *testing.T) {
		b := s.Binding("region", "nations")
		require.NotNil(t, b)
		require.Equal(t, BindConnect, b.Kind)
		require.Equal(t, "nation", b.Query.String())
	})
}

func TestBuildFilterArguments(t *testing.T) {
	eng := &stubEngine{cat: testCatalog()}
	region, _ := regionNationSpecs()

	s, err := Build(context.Background(), eng, func() Fields {
		return Fields{
			"regions": Connect(region, WithFilters(
				FilterExpr(qc.Path("name").Eq(Arg("name", String))),
			)),
		}
	})
	require.NoError(t, err)

	// Filtered connections get their own type so that the extra
	// arguments do not leak into other uses of the entity.
	f := s.GetQueryType().GetField("regions")
	require.Equal(t, "Root_regions_connection!", f.Type.String())

	conn := s.Types["Root_regions_connection"]
	require.NotNil(t, conn)
	all := conn.GetField("all")
	require.NotNil(t, all.GetArgument("name"))
	require.Equal(t, "String", all.GetArgument("name").Type.String())
}

func TestBuildArgumentsAndDefaults(t *testing.T) {
	eng := &stubEngine{cat: testCatalog()}

	limit := Arg("max", Int, WithDefault(int64(10)), ExposedAs("limit"))
	s, err := Build(context.Background(), eng, func() Fields {
		return Fields{
			"top_names": QueryField(
				qc.Path("nation", "name").Paginate(limit, nil),
			),
		}
	})
	require.NoError(t, err)

	f := s.GetQueryType().GetField("top_names")
	arg := f.GetArgument("limit")
	require.NotNil(t, arg)
	require.True(t, arg.HasDefault)
	require.Equal(t, int64(10), arg.DefaultValue)

	b := s.Binding("Root", "top_names")
	require.Len(t, b.Args, 1)
	require.Equal(t, "limit", b.Args[0].Name)
}

func TestBuildErrors(t *testing.T) {
	cat := testCatalog()

	t.Run("compute needs an explicit type", func(t *testing.T) {
		_, err := Build(context.Background(), nil, func() Fields {
			return Fields{"x": Compute(nil, func(ctx context.Context, info *ResolveInfo) (any, error) { return nil, nil })}
		})
		require.EqualError(t, err, "field Root.x: compute fields need an explicit type")
	})

	t.Run("JSON is not an input type", func(t *testing.T) {
		_, err := Build(context.Background(), nil, func() Fields {
			return Fields{"x": Compute(String,
				func(ctx context.Context, info *ResolveInfo) (any, error) { return nil, nil },
				WithArgs(Arg("data", JSON)))}
		})
		require.ErrorContains(t, err, "JSON cannot be used as an argument type")
	})

	t.Run("explicit type required without an engine", func(t *testing.T) {
		_, err := Build(context.Background(), nil, func() Fields {
			return Fields{"names": QueryField(qc.Path("region", "name"))}
		})
		require.ErrorContains(t, err, "explicit type required when building without an engine")
	})

	t.Run("record never bound", func(t *testing.T) {
		rec := Record("region_stats", func() Fields {
			return Fields{"n": QueryField(qc.Path("n"))}
		})
		_, err := Build(context.Background(), nil, func() Fields {
			return Fields{"stats": QueryField(qc.Path("region"), WithType(rec))}
		})
		require.EqualError(t, err, `record type "region_stats" is never bound to a query`)
	})

	t.Run("entity type mismatch", func(t *testing.T) {
		eng := &stubEngine{cat: cat}
		region, _ := regionNationSpecs()
		_, err := Build(context.Background(), eng, func() Fields {
			return Fields{"rows": QueryField(qc.Path("nation"), WithType(region))}
		})
		require.ErrorContains(t, err, `query produces "nation" rows but field type is "region"`)
	})

	t.Run("unknown entity", func(t *testing.T) {
		eng := &stubEngine{cat: cat}
		city := Entity("city", func() Fields { return Fields{} })
		_, err := Build(context.Background(), eng, func() Fields {
			return Fields{"cities": Connect(city)}
		})
		require.ErrorContains(t, err, `unknown entity "city"`)
	})

	t.Run("duplicate type name", func(t *testing.T) {
		eng := &stubEngine{cat: cat}
		a := Entity("region", func() Fields { return Fields{} })
		b := Entity("region", func() Fields { return Fields{} })
		_, err := Build(context.Background(), eng, func() Fields {
			return Fields{
				"a": QueryField(qc.Path("region"), WithType(a)),
				"b": QueryField(qc.Path("region"), WithType(b)),
			}
		})
		require.ErrorContains(t, err, `duplicate type name "region"`)
	})

	t.Run("mutation root must be an object", func(t *testing.T) {
		_, err := Build(context.Background(), nil,
			func() Fields {
				return Fields{"x": Compute(String, func(ctx context.Context, info *ResolveInfo) (any, error) { return "", nil })}
			},
			WithMutation(Enum("Color", "RED")))
		require.ErrorContains(t, err, `mutation root "Color" must be an object type`)
	})
}

func TestBuildRecordBinding(t *testing.T) {
	eng := &stubEngine{cat: testCatalog()}

	rec := Record("region_stat", func() Fields {
		return Fields{
			"region_name":  QueryField(qc.Path("region_name")),
			"nation_count": QueryField(qc.Path("nation_count")),
		}
	})
	s, err := Build(context.Background(), eng, func() Fields {
		return Fields{
			"stats": QueryField(
				qc.Path("region").Select(
					qc.F("region_name", qc.Path("name")),
					qc.F("nation_count", qc.Path("nation").Count()),
				),
				WithType(rec),
			),
		}
	})
	require.NoError(t, err)

	require.Equal(t, "[region_stat]!", s.GetQueryType().GetField("stats").Type.String())

	rt := s.Types["region_stat"]
	require.NotNil(t, rt)
	require.Equal(t, "String", rt.GetField("region_name").Type.String())
	require.Equal(t, "Int", rt.GetField("nation_count").Type.String())
}
