package executor

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/relgraph/schema"
)

func introspectionSchema(t *testing.T) *schema.Schema {
	return buildSchema(t, schema.Fields{
		"hello": schema.Compute(schema.String, value("world")),
		"color": schema.Compute(schema.Enum("Color", "RED", "GREEN"), value("RED")),
		"region": schema.Compute(schema.Int,
			func(ctx context.Context, info *schema.ResolveInfo) (any, error) { return int64(0), nil },
			schema.WithArgs(schema.Arg("count", schema.NonNull(schema.Int)))),
	})
}

func TestIntrospectSchema(t *testing.T) {
	s := introspectionSchema(t)
	res := Execute(context.Background(), s, `{
		__schema {
			queryType { name }
			mutationType { name }
		}
	}`)
	require.False(t, res.Invalid)
	require.Empty(t, res.Errors)

	want := map[string]any{"__schema": map[string]any{
		"queryType":    map[string]any{"name": "Root"},
		"mutationType": nil,
	}}
	if diff := cmp.Diff(want, res.Data.Plain()); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestIntrospectType(t *testing.T) {
	s := introspectionSchema(t)

	t.Run("object fields", func(t *testing.T) {
		res := Execute(context.Background(), s, `{
			__type(name: "Root") { kind name fields { name } }
		}`)
		require.Empty(t, res.Errors)
		want := map[string]any{"__type": map[string]any{
			"kind": "OBJECT",
			"name": "Root",
			"fields": []any{
				map[string]any{"name": "color"},
				map[string]any{"name": "hello"},
				map[string]any{"name": "region"},
			},
		}}
		if diff := cmp.Diff(want, res.Data.Plain()); diff != "" {
			t.Fatalf("data mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("enum values", func(t *testing.T) {
		res := Execute(context.Background(), s, `{
			__type(name: "Color") { kind enumValues { name } }
		}`)
		require.Empty(t, res.Errors)
		want := map[string]any{"__type": map[string]any{
			"kind": "ENUM",
			"enumValues": []any{
				map[string]any{"name": "RED"},
				map[string]any{"name": "GREEN"},
			},
		}}
		if diff := cmp.Diff(want, res.Data.Plain()); diff != "" {
			t.Fatalf("data mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("scalar", func(t *testing.T) {
		res := Execute(context.Background(), s, `{ __type(name: "String") { kind name } }`)
		require.Empty(t, res.Errors)
		want := map[string]any{"__type": map[string]any{"kind": "SCALAR", "name": "String"}}
		if diff := cmp.Diff(want, res.Data.Plain()); diff != "" {
			t.Fatalf("data mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("unknown type is null", func(t *testing.T) {
		res := Execute(context.Background(), s, `{ __type(name: "Ghost") { name } }`)
		require.Empty(t, res.Errors)
		want := map[string]any{"__type": nil}
		if diff := cmp.Diff(want, res.Data.Plain()); diff != "" {
			t.Fatalf("data mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestIntrospectWrappedTypes(t *testing.T) {
	s := introspectionSchema(t)
	res := Execute(context.Background(), s, `{
		__type(name: "Root") {
			fields {
				name
				args { name type { kind name ofType { kind name } } }
			}
		}
	}`)
	require.Empty(t, res.Errors)

	fields, _ := res.Data.Plain()["__type"].(map[string]any)["fields"].([]any)
	var region map[string]any
	for _, f := range fields {
		if f.(map[string]any)["name"] == "region" {
			region = f.(map[string]any)
		}
	}
	require.NotNil(t, region)

	want := []any{map[string]any{
		"name": "count",
		"type": map[string]any{
			"kind": "NON_NULL",
			"name": nil,
			"ofType": map[string]any{
				"kind": "SCALAR",
				"name": "Int",
			},
		},
	}}
	if diff := cmp.Diff(want, region["args"]); diff != "" {
		t.Fatalf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestIntrospectDirectives(t *testing.T) {
	s := introspectionSchema(t)
	res := Execute(context.Background(), s, `{
		__schema { directives { name } }
	}`)
	require.Empty(t, res.Errors)

	want := map[string]any{"__schema": map[string]any{
		"directives": []any{
			map[string]any{"name": "include"},
			map[string]any{"name": "skip"},
		},
	}}
	if diff := cmp.Diff(want, res.Data.Plain()); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}
