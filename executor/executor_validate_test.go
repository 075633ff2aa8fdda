package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/relgraph/schema"
)

func regionArgSchema(t *testing.T) *schema.Schema {
	return buildSchema(t, schema.Fields{
		"hello": schema.Compute(schema.String, value("world")),
		"region": schema.Compute(schema.Int,
			func(ctx context.Context, info *schema.ResolveInfo) (any, error) {
				return info.Args["count"], nil
			},
			schema.WithArgs(schema.Arg("count", schema.NonNull(schema.Int)))),
	})
}

func requireInvalid(t *testing.T, res *Result, message string) {
	t.Helper()
	require.True(t, res.Invalid)
	require.Nil(t, res.Data)
	require.Len(t, res.Errors, 1)
	require.Equal(t, message, res.Errors[0].Message)
}

func TestValidateVariables(t *testing.T) {
	s := regionArgSchema(t)

	t.Run("unexpected variables", func(t *testing.T) {
		res := Execute(context.Background(), s, "{ hello }",
			WithVariables(map[string]any{"count": int64(1)}))
		requireInvalid(t, res, `Unexpected variables: "count"`)
	})

	t.Run("unexpected variables are sorted", func(t *testing.T) {
		res := Execute(context.Background(), s, "{ hello }",
			WithVariables(map[string]any{"b": 1, "a": 2}))
		requireInvalid(t, res, `Unexpected variables: "a", "b"`)
	})

	t.Run("non-null variable not provided", func(t *testing.T) {
		res := Execute(context.Background(), s, `query ($n: Int!) { region(count: $n) }`)
		requireInvalid(t, res, `Variable "$n : Int!" was not provided.`)
	})

	t.Run("invalid variable value", func(t *testing.T) {
		res := Execute(context.Background(), s, `query ($n: Int!) { region(count: $n) }`,
			WithVariables(map[string]any{"n": "abc"}))
		requireInvalid(t, res, "Variable \"$n : Int!\" got invalid value:\nExpected \"Int\"")
	})
}

func TestValidateArguments(t *testing.T) {
	s := regionArgSchema(t)

	t.Run("missing required argument", func(t *testing.T) {
		res := Execute(context.Background(), s, "{ region }")
		requireInvalid(t, res, `Argument "count : Int!" was not provided. At Root.region.`)
	})

	t.Run("argument supplied by an absent variable", func(t *testing.T) {
		res := Execute(context.Background(), s, `query ($count: Int) { region(count: $count) }`)
		requireInvalid(t, res,
			`Argument "count : Int!" (supplied by "$count" variable) was not provided. At Root.region.`)
	})

	t.Run("incompatible variable type", func(t *testing.T) {
		res := Execute(context.Background(), s, `query ($count: String) { region(count: $count) }`)
		requireInvalid(t, res,
			`Variable "$count : String" is attempted to be used as a value of incompatible type "Int!". At Root.region.`)
	})

	t.Run("unknown arguments", func(t *testing.T) {
		res := Execute(context.Background(), s, `{ hello(some: 1) }`)
		requireInvalid(t, res, `The following arguments: "some" are not allowed for this field`)
	})

	t.Run("bad literal value", func(t *testing.T) {
		res := Execute(context.Background(), s, `{ region(count: "x") }`)
		requireInvalid(t, res, "Argument \"count : Int!\":\nExpected \"Int\"")
	})

	t.Run("undeclared variable for required argument", func(t *testing.T) {
		res := Execute(context.Background(), s, `{ region(count: $ghost) }`)
		requireInvalid(t, res,
			`Argument "count : Int!" (supplied by "$ghost" variable) was not provided. At Root.region.`)
	})
}

func TestValidateSelections(t *testing.T) {
	s := regionArgSchema(t)

	t.Run("unknown field", func(t *testing.T) {
		res := Execute(context.Background(), s, "{ nope }")
		requireInvalid(t, res, `Cannot query field "nope" on type "Root"`)
	})

	t.Run("unknown fragment", func(t *testing.T) {
		res := Execute(context.Background(), s, "{ ...missing }")
		requireInvalid(t, res, `Unknown fragment "missing"`)
	})

	t.Run("unknown type condition", func(t *testing.T) {
		res := Execute(context.Background(), s, "{ ... on Ghost { hello } }")
		requireInvalid(t, res, `Unknown type "Ghost"`)
	})
}

func TestValidateInputObjects(t *testing.T) {
	filter := schema.InputObject("RegionFilter", func() schema.InputFields {
		return schema.InputFields{
			"required": {Type: schema.NonNull(schema.String)},
			"optional": {Type: schema.Int},
		}
	})
	s := buildSchema(t, schema.Fields{
		"find": schema.Compute(schema.Int,
			func(ctx context.Context, info *schema.ResolveInfo) (any, error) { return int64(0), nil },
			schema.WithArgs(schema.Arg("filter", filter), schema.Arg("ids", schema.List(schema.Int)))),
	})

	t.Run("missing required field", func(t *testing.T) {
		res := Execute(context.Background(), s,
			`query ($f: RegionFilter) { find(filter: $f) }`,
			WithVariables(map[string]any{"f": map[string]any{"optional": int64(1)}}))
		require.True(t, res.Invalid)
		require.Contains(t, res.Errors[0].Message, `Variable "$f : RegionFilter" got invalid value:`)
		require.Contains(t, res.Errors[0].Message, `Field "RegionFilter.required": missing value`)
	})

	t.Run("missing required field in a literal value", func(t *testing.T) {
		res := Execute(context.Background(), s, `{ find(filter: {optional: 1}) }`)
		require.True(t, res.Invalid)
		require.Contains(t, res.Errors[0].Message, `Argument "filter : RegionFilter":`)
		require.Contains(t, res.Errors[0].Message, `Missing field "RegionFilter.required"`)
	})

	t.Run("unknown field", func(t *testing.T) {
		res := Execute(context.Background(), s,
			`query ($f: RegionFilter) { find(filter: $f) }`,
			WithVariables(map[string]any{"f": map[string]any{"required": "x", "bogus": int64(1)}}))
		require.True(t, res.Invalid)
		require.Contains(t, res.Errors[0].Message, `Unknown field "RegionFilter.bogus"`)
	})

	t.Run("list item errors carry the index", func(t *testing.T) {
		res := Execute(context.Background(), s,
			`query ($ids: [Int]) { find(ids: $ids) }`,
			WithVariables(map[string]any{"ids": []any{int64(1), "x"}}))
		require.True(t, res.Invalid)
		require.Contains(t, res.Errors[0].Message, `- At index 1: Expected "Int".`)
	})

	t.Run("lone value coerces to a singleton list", func(t *testing.T) {
		var got any
		s := buildSchema(t, schema.Fields{
			"find": schema.Compute(schema.Int,
				func(ctx context.Context, info *schema.ResolveInfo) (any, error) {
					got = info.Args["ids"]
					return int64(0), nil
				},
				schema.WithArgs(schema.Arg("ids", schema.List(schema.Int)))),
		})
		res := Execute(context.Background(), s, `{ find(ids: 3) }`)
		require.Empty(t, res.Errors)
		require.Equal(t, []any{int64(3)}, got)
	})

	t.Run("valid input passes", func(t *testing.T) {
		res := Execute(context.Background(), s,
			`{ find(filter: {required: "x", optional: 2}, ids: [1, 2]) }`)
		require.False(t, res.Invalid)
		require.Empty(t, res.Errors)
	})
}
