package qcsql

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hanpama/relgraph/qc"
)

const (
	dateLayout     = "2006-01-02"
	datetimeLayout = "2006-01-02T15:04:05"
	// SQLite convention for datetime() output.
	sqliteDatetimeLayout = "2006-01-02 15:04:05"
)

// bindValue converts a Go value to its SQLite bind representation.
func bindValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(dateLayout)
		}
		return x.Format(datetimeLayout)
	case decimal.Decimal:
		return x.InexactFloat64()
	default:
		return v
	}
}

// bindTyped converts a value for a bind position whose column kind is
// known. A time.Time bound against a Datetime column keeps its time part
// even at midnight, where bindValue alone would format a bare date.
func bindTyped(v any, kind qc.ScalarKind) any {
	if t, ok := v.(time.Time); ok {
		switch kind {
		case qc.KindDate:
			return t.Format(dateLayout)
		case qc.KindDatetime:
			return t.Format(datetimeLayout)
		}
	}
	return bindValue(v)
}

// convertValue aligns a scanned SQLite value with its catalog kind.
func convertValue(v any, kind qc.ScalarKind) any {
	if v == nil {
		return nil
	}
	switch kind {
	case qc.KindInt:
		switch x := v.(type) {
		case int64:
			return x
		case float64:
			return int64(x)
		}
	case qc.KindFloat:
		switch x := v.(type) {
		case float64:
			return x
		case int64:
			return float64(x)
		}
	case qc.KindBool:
		switch x := v.(type) {
		case bool:
			return x
		case int64:
			return x != 0
		}
	case qc.KindDate:
		if s, ok := asString(v); ok {
			if t, err := time.Parse(dateLayout, s); err == nil {
				return t
			}
		}
		if t, ok := v.(time.Time); ok {
			return t
		}
	case qc.KindDatetime:
		if s, ok := asString(v); ok {
			for _, layout := range []string{datetimeLayout, sqliteDatetimeLayout, time.RFC3339} {
				if t, err := time.Parse(layout, s); err == nil {
					return t
				}
			}
		}
		if t, ok := v.(time.Time); ok {
			return t
		}
	case qc.KindDecimal:
		switch x := v.(type) {
		case float64:
			return decimal.NewFromFloat(x)
		case int64:
			return decimal.NewFromInt(x)
		default:
			if s, ok := asString(v); ok {
				if d, err := decimal.NewFromString(s); err == nil {
					return d
				}
			}
		}
	case qc.KindText:
		if s, ok := asString(v); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func asString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case []byte:
		return string(x), true
	}
	return "", false
}
