package schema

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func coercionSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := Build(context.Background(), &stubEngine{cat: testCatalog()}, func() Fields {
		return Fields{
			"regions": Connect(Entity("region", func() Fields { return Fields{} })),
		}
	})
	require.NoError(t, err)
	return s
}

func TestCoerceScalar(t *testing.T) {
	s := coercionSchema(t)

	t.Run("Int", func(t *testing.T) {
		v, err := s.CoerceScalar("Int", float64(42))
		require.NoError(t, err)
		require.Equal(t, int64(42), v)

		_, err = s.CoerceScalar("Int", float64(1.5))
		require.EqualError(t, err, `Expected "Int"`)
		_, err = s.CoerceScalar("Int", "42")
		require.EqualError(t, err, `Expected "Int"`)
	})

	t.Run("ID accepts integers", func(t *testing.T) {
		v, err := s.CoerceScalar("ID", int64(7))
		require.NoError(t, err)
		require.Equal(t, "7", v)
	})

	t.Run("Date", func(t *testing.T) {
		v, err := s.CoerceScalar("Date", "1998-04-01")
		require.NoError(t, err)
		require.Equal(t, time.Date(1998, 4, 1, 0, 0, 0, 0, time.UTC), v)

		_, err = s.CoerceScalar("Date", "not a date")
		require.EqualError(t, err, `Expected "Date"`)
	})

	t.Run("Datetime", func(t *testing.T) {
		v, err := s.CoerceScalar("Datetime", "1998-04-01T12:30:00")
		require.NoError(t, err)
		require.Equal(t, time.Date(1998, 4, 1, 12, 30, 0, 0, time.UTC), v)
	})

	t.Run("Decimal", func(t *testing.T) {
		v, err := s.CoerceScalar("Decimal", "12.34")
		require.NoError(t, err)
		require.True(t, v.(decimal.Decimal).Equal(decimal.RequireFromString("12.34")))
	})

	t.Run("entity identifier follows the key kind", func(t *testing.T) {
		v, err := s.CoerceScalar("region_id", "3")
		require.NoError(t, err)
		require.Equal(t, int64(3), v)

		v, err = s.CoerceScalar("region_id", float64(3))
		require.NoError(t, err)
		require.Equal(t, int64(3), v)

		_, err = s.CoerceScalar("region_id", "abc")
		require.EqualError(t, err, `Expected "region_id"`)
	})

	t.Run("unknown scalar", func(t *testing.T) {
		_, err := s.CoerceScalar("Blob", "x")
		require.EqualError(t, err, `Expected "Blob"`)
	})
}

func TestSerializeScalar(t *testing.T) {
	s := coercionSchema(t)

	require.Equal(t, "1998-04-01", s.SerializeScalar("Date", time.Date(1998, 4, 1, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, "1998-04-01T12:30:00", s.SerializeScalar("Datetime", time.Date(1998, 4, 1, 12, 30, 0, 0, time.UTC)))
	require.Equal(t, "12.34", s.SerializeScalar("Decimal", decimal.RequireFromString("12.34")))
	require.Equal(t, int64(5), s.SerializeScalar("Int", 5))
	require.Equal(t, "5", s.SerializeScalar("ID", int64(5)))
	require.Nil(t, s.SerializeScalar("String", nil))
}
