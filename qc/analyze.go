package qc

import "fmt"

// KindAny marks a scalar whose kind cannot be determined statically, such
// as a placeholder operand.
const KindAny ScalarKind = -1

// ShapeKind classifies what a query produces.
type ShapeKind int

const (
	ShapeEntity ShapeKind = iota
	ShapeScalar
	ShapeRecord
)

// Shape is the statically-determined result description of a query.
type Shape struct {
	Kind   ShapeKind
	Many   bool
	Entity string     // ShapeEntity: produced entity name
	Scalar ScalarKind // ShapeScalar

	// ShapeScalar: set when the scalar is an entity identifier.
	IDEntity string

	// ShapeRecord: produced columns in declaration order.
	Columns []ShapedColumn
}

// ShapedColumn is one named column of a record shape.
type ShapedColumn struct {
	Name  string
	Shape *Shape
}

// Column returns the named column shape, or nil.
func (s *Shape) Column(name string) *Shape {
	for _, c := range s.Columns {
		if c.Name == name {
			return c.Shape
		}
	}
	return nil
}

// Scope is the static context a query is analyzed in.
type Scope struct {
	// Universe scopes the query at the database root.
	Universe bool
	// Entity scopes the query at a row of the named entity.
	Entity string
	// Columns scopes the query at a record row (output of Select/GroupBy).
	Columns []ShapedColumn
}

// UniverseScope is the root scope.
func UniverseScope() Scope { return Scope{Universe: true} }

// EntityScope scopes analysis at a row of the named entity.
func EntityScope(entity string) Scope { return Scope{Entity: entity} }

// RecordScope scopes analysis at a record row with the given columns.
func RecordScope(columns []ShapedColumn) Scope { return Scope{Columns: columns} }

// ScopeOf derives the row scope of a produced shape.
func ScopeOf(s *Shape) Scope {
	switch s.Kind {
	case ShapeEntity:
		return EntityScope(s.Entity)
	case ShapeRecord:
		return RecordScope(s.Columns)
	default:
		return Scope{}
	}
}

// Analyze resolves q against the catalog within scope and reports the shape
// it will produce. Navigation mistakes (unknown entities, attributes or
// links) surface here, which is what lets the schema layer fail at build
// time instead of per request.
func Analyze(q *Query, cat *Catalog, scope Scope) (*Shape, error) {
	return analyzeNode(q.n, cat, scope)
}

func analyzeNode(n node, cat *Catalog, scope Scope) (*Shape, error) {
	switch x := n.(type) {
	case nil:
		return scopeShape(scope), nil

	case navNode:
		var cur *Shape
		var err error
		if x.base != nil {
			cur, err = analyzeNode(x.base, cat, scope)
			if err != nil {
				return nil, err
			}
		} else {
			cur = scopeShape(scope)
		}
		for _, step := range x.steps {
			cur, err = analyzeStep(cur, step, cat)
			if err != nil {
				return nil, err
			}
		}
		return cur, nil

	case filterNode:
		base, err := analyzeNode(x.base, cat, scope)
		if err != nil {
			return nil, err
		}
		if _, err := analyzeNode(x.pred, cat, ScopeOf(base)); err != nil {
			return nil, err
		}
		return base, nil

	case sortNode:
		base, err := analyzeNode(x.base, cat, scope)
		if err != nil {
			return nil, err
		}
		rowScope := ScopeOf(base)
		for _, k := range x.keys {
			if _, err := analyzeNode(navNode{steps: k.Steps}, cat, rowScope); err != nil {
				return nil, err
			}
		}
		return base, nil

	case selectNode:
		base, err := analyzeNode(x.base, cat, scope)
		if err != nil {
			return nil, err
		}
		rowScope := ScopeOf(base)
		cols := make([]ShapedColumn, 0, len(x.fields))
		for _, f := range x.fields {
			fs, err := analyzeNode(f.Expr.n, cat, rowScope)
			if err != nil {
				return nil, err
			}
			cols = append(cols, ShapedColumn{Name: f.Name, Shape: fs})
		}
		return &Shape{Kind: ShapeRecord, Many: base.Many, Columns: cols}, nil

	case groupNode:
		base, err := analyzeNode(x.base, cat, scope)
		if err != nil {
			return nil, err
		}
		if base.Kind != ShapeEntity || !base.Many {
			return nil, fmt.Errorf("group() requires a plural entity query, got %s", renderNode(x.base))
		}
		rowScope := ScopeOf(base)
		cols := make([]ShapedColumn, 0, len(x.keys)+1)
		for _, f := range x.keys {
			fs, err := analyzeNode(f.Expr.n, cat, rowScope)
			if err != nil {
				return nil, err
			}
			cols = append(cols, ShapedColumn{Name: f.Name, Shape: fs})
		}
		// The grouped partition remains navigable under the entity name.
		cols = append(cols, ShapedColumn{
			Name:  base.Entity,
			Shape: &Shape{Kind: ShapeEntity, Entity: base.Entity, Many: true},
		})
		return &Shape{Kind: ShapeRecord, Many: true, Columns: cols}, nil

	case countNode:
		if _, err := analyzeNode(x.base, cat, scope); err != nil {
			return nil, err
		}
		return &Shape{Kind: ShapeScalar, Scalar: KindInt}, nil

	case firstNode:
		base, err := analyzeNode(x.base, cat, scope)
		if err != nil {
			return nil, err
		}
		out := *base
		out.Many = false
		return &out, nil

	case sliceNode:
		return analyzeNode(x.base, cat, scope)

	case idNode:
		base, err := analyzeNode(x.base, cat, scope)
		if err != nil {
			return nil, err
		}
		if base.Kind != ShapeEntity {
			return nil, fmt.Errorf("id() requires an entity query, got %s", renderNode(x.base))
		}
		kind := KindText
		if e := cat.Entity(base.Entity); e != nil {
			kind = e.KeyKind
		}
		return &Shape{Kind: ShapeScalar, Many: base.Many, Scalar: kind, IDEntity: base.Entity}, nil

	case binaryNode:
		if _, err := analyzeNode(x.lhs, cat, scope); err != nil {
			return nil, err
		}
		if _, err := analyzeNode(x.rhs, cat, scope); err != nil {
			return nil, err
		}
		return &Shape{Kind: ShapeScalar, Scalar: KindBool}, nil

	case litNode, argNode, paramNode:
		return &Shape{Kind: ShapeScalar, Scalar: KindAny}, nil

	default:
		return nil, fmt.Errorf("unsupported query node %T", n)
	}
}

func scopeShape(scope Scope) *Shape {
	switch {
	case scope.Universe:
		return &Shape{Kind: ShapeRecord} // nothing navigable without a step
	case scope.Entity != "":
		return &Shape{Kind: ShapeEntity, Entity: scope.Entity}
	default:
		return &Shape{Kind: ShapeRecord, Columns: scope.Columns}
	}
}

func analyzeStep(cur *Shape, step string, cat *Catalog) (*Shape, error) {
	switch cur.Kind {
	case ShapeRecord:
		if len(cur.Columns) == 0 {
			// Universe: the step must name an entity.
			if cat.Entity(step) == nil {
				return nil, fmt.Errorf("unknown entity %q", step)
			}
			return &Shape{Kind: ShapeEntity, Entity: step, Many: true}, nil
		}
		col := cur.Column(step)
		if col == nil {
			return nil, fmt.Errorf("unknown field %q in record", step)
		}
		out := *col
		out.Many = out.Many || cur.Many
		return &out, nil

	case ShapeEntity:
		e := cat.Entity(cur.Entity)
		if e == nil {
			return nil, fmt.Errorf("unknown entity %q", cur.Entity)
		}
		if step == e.Key {
			return &Shape{Kind: ShapeScalar, Many: cur.Many, Scalar: e.KeyKind}, nil
		}
		if kind, ok := e.Attributes[step]; ok {
			return &Shape{Kind: ShapeScalar, Many: cur.Many, Scalar: kind}, nil
		}
		if link, ok := e.Links[step]; ok {
			return &Shape{Kind: ShapeEntity, Entity: link.Target, Many: cur.Many || link.Many}, nil
		}
		return nil, fmt.Errorf("unknown field %q for entity %q", step, cur.Entity)

	default:
		return nil, fmt.Errorf("cannot navigate %q from a scalar", step)
	}
}

// SingleStep reports whether q is a plain one-step navigation from the
// current scope, returning the step name. Such reads can be served from an
// already-produced row without consulting the engine.
func SingleStep(q *Query) (string, bool) {
	nav, ok := q.n.(navNode)
	if !ok || nav.base != nil || len(nav.steps) != 1 {
		return "", false
	}
	return nav.steps[0], true
}

// BarePlaceholder reports whether q consists of a single Arg or Param
// placeholder and nothing else.
func BarePlaceholder(q *Query) (Placeholder, bool) {
	switch x := q.n.(type) {
	case argNode:
		return Placeholder{Name: x.name, Meta: x.meta}, true
	case paramNode:
		return Placeholder{Name: x.name, Meta: x.meta, IsParam: true}, true
	}
	return Placeholder{}, false
}

// Placeholder is one Arg or Param occurrence found in a query.
type Placeholder struct {
	Name    string
	Meta    any
	IsParam bool
}

// Placeholders lists every Arg and Param occurrence in q, in syntactic
// order, without deduplication.
func Placeholders(q *Query) []Placeholder {
	var out []Placeholder
	collectPlaceholders(q.n, &out)
	return out
}

func collectPlaceholders(n node, out *[]Placeholder) {
	switch x := n.(type) {
	case navNode:
		if x.base != nil {
			collectPlaceholders(x.base, out)
		}
	case filterNode:
		collectPlaceholders(x.base, out)
		collectPlaceholders(x.pred, out)
	case sortNode:
		collectPlaceholders(x.base, out)
	case selectNode:
		collectPlaceholders(x.base, out)
		for _, f := range x.fields {
			collectPlaceholders(f.Expr.n, out)
		}
	case groupNode:
		collectPlaceholders(x.base, out)
		for _, f := range x.keys {
			collectPlaceholders(f.Expr.n, out)
		}
	case countNode:
		collectPlaceholders(x.base, out)
	case firstNode:
		collectPlaceholders(x.base, out)
	case sliceNode:
		collectPlaceholders(x.base, out)
		if x.limit != nil {
			collectPlaceholders(x.limit, out)
		}
		if x.offset != nil {
			collectPlaceholders(x.offset, out)
		}
	case idNode:
		collectPlaceholders(x.base, out)
	case binaryNode:
		collectPlaceholders(x.lhs, out)
		collectPlaceholders(x.rhs, out)
	case argNode:
		*out = append(*out, Placeholder{Name: x.name, Meta: x.meta})
	case paramNode:
		*out = append(*out, Placeholder{Name: x.name, Meta: x.meta, IsParam: true})
	}
}
