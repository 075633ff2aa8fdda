package executor

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/relgraph/schema"
)

func buildSchema(t *testing.T, fields schema.Fields, opts ...schema.BuildOption) *schema.Schema {
	t.Helper()
	s, err := schema.Build(context.Background(), nil, func() schema.Fields { return fields }, opts...)
	require.NoError(t, err)
	return s
}

func value(v any) schema.ResolveFunc {
	return func(ctx context.Context, info *schema.ResolveInfo) (any, error) { return v, nil }
}

func helloSchema(t *testing.T) *schema.Schema {
	return buildSchema(t, schema.Fields{
		"hello": schema.Compute(schema.String, value("world")),
		"num":   schema.Compute(schema.Int, value(int64(7))),
	})
}

func TestExecuteSimple(t *testing.T) {
	s := helloSchema(t)
	res := Execute(context.Background(), s, "{ hello num }")
	require.False(t, res.Invalid)
	require.Empty(t, res.Errors)

	want := map[string]any{"hello": "world", "num": int64(7)}
	if diff := cmp.Diff(want, res.Data.Plain()); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestExecuteFieldOrder(t *testing.T) {
	s := helloSchema(t)
	res := Execute(context.Background(), s, "{ num hello num2: num }")
	require.Empty(t, res.Errors)
	require.Equal(t, []string{"num", "hello", "num2"}, res.Data.Keys())
}

func TestExecuteAliases(t *testing.T) {
	s := helloSchema(t)
	res := Execute(context.Background(), s, "{ greeting: hello }")
	require.Empty(t, res.Errors)
	got, ok := res.Data.Get("greeting")
	require.True(t, ok)
	require.Equal(t, "world", got)
	_, ok = res.Data.Get("hello")
	require.False(t, ok)
}

func TestExecuteTypename(t *testing.T) {
	s := helloSchema(t)
	res := Execute(context.Background(), s, "{ __typename hello }")
	require.Empty(t, res.Errors)
	got, _ := res.Data.Get("__typename")
	require.Equal(t, "Root", got)
}

func TestExecuteDirectives(t *testing.T) {
	s := helloSchema(t)

	t.Run("skip and include", func(t *testing.T) {
		res := Execute(context.Background(), s, `{
			a: hello @skip(if: true)
			b: hello @skip(if: false)
			c: hello @include(if: false)
			d: hello @include(if: true)
		}`)
		require.Empty(t, res.Errors)
		require.Equal(t, []string{"b", "d"}, res.Data.Keys())
	})

	t.Run("skip wins over include", func(t *testing.T) {
		res := Execute(context.Background(), s, `{ a: hello @skip(if: true) @include(if: true) }`)
		require.Empty(t, res.Errors)
		require.Equal(t, 0, res.Data.Len())
	})

	t.Run("variable condition", func(t *testing.T) {
		res := Execute(context.Background(), s,
			`query ($hide: Boolean!) { hello @skip(if: $hide) }`,
			WithVariables(map[string]any{"hide": true}))
		require.Empty(t, res.Errors)
		require.Equal(t, 0, res.Data.Len())
	})
}

func TestExecuteFragments(t *testing.T) {
	profile := schema.Object("Profile", func() schema.Fields {
		return schema.Fields{
			"name": schema.Compute(schema.String, value("alice")),
			"age":  schema.Compute(schema.Int, value(int64(30))),
		}
	})
	s := buildSchema(t, schema.Fields{
		"me": schema.Compute(profile, value(struct{}{})),
	})

	t.Run("named fragment", func(t *testing.T) {
		res := Execute(context.Background(), s, `
			{ me { ...parts } }
			fragment parts on Profile { name age }
		`)
		require.Empty(t, res.Errors)
		want := map[string]any{"me": map[string]any{"name": "alice", "age": int64(30)}}
		if diff := cmp.Diff(want, res.Data.Plain()); diff != "" {
			t.Fatalf("data mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("inline fragment", func(t *testing.T) {
		res := Execute(context.Background(), s, `{ me { ... on Profile { name } } }`)
		require.Empty(t, res.Errors)
		want := map[string]any{"me": map[string]any{"name": "alice"}}
		if diff := cmp.Diff(want, res.Data.Plain()); diff != "" {
			t.Fatalf("data mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("non-matching type condition", func(t *testing.T) {
		res := Execute(context.Background(), s, `{ me { ... on Root { name } } }`)
		require.Empty(t, res.Errors)
		want := map[string]any{"me": map[string]any{}}
		if diff := cmp.Diff(want, res.Data.Plain()); diff != "" {
			t.Fatalf("data mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestExecuteVariables(t *testing.T) {
	s := buildSchema(t, schema.Fields{
		"echo": schema.Compute(schema.String,
			func(ctx context.Context, info *schema.ResolveInfo) (any, error) {
				v, _ := info.Args["name"].(string)
				return v, nil
			},
			schema.WithArgs(schema.Arg("name", schema.NonNull(schema.String)))),
	})

	t.Run("provided", func(t *testing.T) {
		res := Execute(context.Background(), s,
			`query ($name: String!) { echo(name: $name) }`,
			WithVariables(map[string]any{"name": "hi"}))
		require.Empty(t, res.Errors)
		got, _ := res.Data.Get("echo")
		require.Equal(t, "hi", got)
	})

	t.Run("default value", func(t *testing.T) {
		res := Execute(context.Background(), s,
			`query ($name: String! = "fallback") { echo(name: $name) }`)
		require.Empty(t, res.Errors)
		got, _ := res.Data.Get("echo")
		require.Equal(t, "fallback", got)
	})

	t.Run("literal argument", func(t *testing.T) {
		res := Execute(context.Background(), s, `{ echo(name: "lit") }`)
		require.Empty(t, res.Errors)
		got, _ := res.Data.Get("echo")
		require.Equal(t, "lit", got)
	})
}

func TestExecuteOperationSelection(t *testing.T) {
	s := helloSchema(t)
	source := `
		query A { hello }
		query B { num }
	`

	res := Execute(context.Background(), s, source, WithOperationName("B"))
	require.False(t, res.Invalid)
	require.Equal(t, []string{"num"}, res.Data.Keys())

	res = Execute(context.Background(), s, source)
	require.True(t, res.Invalid)
	require.Equal(t, "operation not found", res.Errors[0].Message)
}

func TestExecuteMutation(t *testing.T) {
	var stored string
	mutation := schema.Object("Mutation", func() schema.Fields {
		return schema.Fields{
			"set_name": schema.Mutation(schema.String,
				func(ctx context.Context, info *schema.ResolveInfo) (any, error) {
					stored, _ = info.Args["name"].(string)
					return stored, nil
				},
				schema.WithArgs(schema.Arg("name", schema.NonNull(schema.String)))),
		}
	})
	s := buildSchema(t, schema.Fields{
		"hello": schema.Compute(schema.String, value("world")),
	}, schema.WithMutation(mutation))

	res := Execute(context.Background(), s, `mutation { set_name(name: "bob") }`)
	require.False(t, res.Invalid)
	require.Empty(t, res.Errors)
	require.Equal(t, "bob", stored)
}

func TestExecuteParseError(t *testing.T) {
	s := helloSchema(t)
	res := Execute(context.Background(), s, "{ hello")
	require.True(t, res.Invalid)
	require.NotEmpty(t, res.Errors)
	require.Nil(t, res.Data)
}
