package schema

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestRenderSDL(t *testing.T) {
	s, err := Build(context.Background(), nil, func() Fields {
		return Fields{
			"greet": Compute(String,
				func(ctx context.Context, info *ResolveInfo) (any, error) { return "hi", nil },
				WithArgs(Arg("name", String, WithDefault("world")))),
			"color": Compute(Enum("Color", "RED", "GREEN"),
				func(ctx context.Context, info *ResolveInfo) (any, error) { return "RED", nil }),
		}
	})
	require.NoError(t, err)

	want := `enum Color {
  RED
  GREEN
}

scalar Date

scalar Datetime

scalar Decimal

scalar JSON

type Root {
  color: Color
  greet(name: String = "world"): String
}
`
	if diff := cmp.Diff(want, Render(s)); diff != "" {
		t.Fatalf("SDL mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderDeprecatedField(t *testing.T) {
	s, err := Build(context.Background(), nil, func() Fields {
		return Fields{
			"old": Compute(Int,
				func(ctx context.Context, info *ResolveInfo) (any, error) { return int64(0), nil },
				WithDeprecated("use something newer")),
		}
	})
	require.NoError(t, err)

	require.Contains(t, Render(s), `old: Int @deprecated(reason: "use something newer")`)
}

func TestRenderEntityID(t *testing.T) {
	eng := &stubEngine{cat: testCatalog()}
	region, _ := regionNationSpecs()
	s, err := Build(context.Background(), eng, func() Fields {
		return Fields{"regions": Connect(region)}
	})
	require.NoError(t, err)

	sdl := Render(s)
	require.Contains(t, sdl, "scalar region_id")
	require.Contains(t, sdl, "get(id: region_id!): region")
	require.Contains(t, sdl, "type region_connection {")
}
