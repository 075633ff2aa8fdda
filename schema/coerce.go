package schema

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hanpama/relgraph/qc"
)

const (
	dateLayout     = "2006-01-02"
	datetimeLayout = "2006-01-02T15:04:05"
)

// CoerceScalar converts an input value to the named scalar's runtime
// representation. The error text is the bare expectation; callers prefix
// it with argument or variable context.
func (s *Schema) CoerceScalar(name string, v any) (any, error) {
	spec, ok := s.scalars[name]
	if !ok {
		return nil, fmt.Errorf("Expected %q", name)
	}
	if spec.idEntity != "" {
		return s.coerceEntityID(spec, v)
	}

	switch name {
	case "Int":
		if n, ok := asInt(v); ok {
			return n, nil
		}
	case "Float":
		switch x := v.(type) {
		case float64:
			return x, nil
		case int64:
			return float64(x), nil
		case int:
			return float64(x), nil
		}
	case "String":
		if x, ok := v.(string); ok {
			return x, nil
		}
	case "Boolean":
		if x, ok := v.(bool); ok {
			return x, nil
		}
	case "ID":
		if x, ok := v.(string); ok {
			return x, nil
		}
		if n, ok := asInt(v); ok {
			return strconv.FormatInt(n, 10), nil
		}
	case "Date":
		if x, ok := v.(string); ok {
			if t, err := time.Parse(dateLayout, x); err == nil {
				return t, nil
			}
		}
	case "Datetime":
		if x, ok := v.(string); ok {
			if t, err := time.Parse(datetimeLayout, x); err == nil {
				return t, nil
			}
		}
	case "Decimal":
		switch x := v.(type) {
		case string:
			if d, err := decimal.NewFromString(x); err == nil {
				return d, nil
			}
		case int64:
			return decimal.NewFromInt(x), nil
		case float64:
			return decimal.NewFromFloat(x), nil
		}
	case "JSON":
		return v, nil
	}
	return nil, fmt.Errorf("Expected %q", name)
}

// coerceEntityID accepts a string or integer identifier and aligns it
// with the entity's key kind when the catalog is known.
func (s *Schema) coerceEntityID(spec *TypeSpec, v any) (any, error) {
	kind := qc.KindText
	if s.catalog != nil {
		if e := s.catalog.Entity(spec.idEntity); e != nil {
			kind = e.KeyKind
		}
	}
	switch kind {
	case qc.KindInt:
		if n, ok := asInt(v); ok {
			return n, nil
		}
		if x, ok := v.(string); ok {
			if n, err := strconv.ParseInt(x, 10, 64); err == nil {
				return n, nil
			}
		}
	default:
		if x, ok := v.(string); ok {
			return x, nil
		}
		if n, ok := asInt(v); ok {
			return strconv.FormatInt(n, 10), nil
		}
	}
	return nil, fmt.Errorf("Expected %q", spec.name)
}

func asInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case float64:
		if x == float64(int64(x)) {
			return int64(x), true
		}
	}
	return 0, false
}

// SerializeScalar renders a resolved value in its response form.
func (s *Schema) SerializeScalar(name string, v any) any {
	if v == nil {
		return nil
	}
	switch name {
	case "Date":
		if t, ok := v.(time.Time); ok {
			return t.Format(dateLayout)
		}
	case "Datetime":
		if t, ok := v.(time.Time); ok {
			return t.Format(datetimeLayout)
		}
	case "Decimal":
		if d, ok := v.(decimal.Decimal); ok {
			return d.String()
		}
	case "Int":
		if n, ok := asInt(v); ok {
			return n
		}
	case "ID":
		if x, ok := v.(string); ok {
			return x
		}
		if n, ok := asInt(v); ok {
			return strconv.FormatInt(n, 10)
		}
	}
	return v
}
