package qc

import (
	"fmt"
	"strings"
)

// Query is an immutable combinator expression. The zero value is not useful;
// construct queries with Here, Path or Arg and extend them with the
// combinator methods, each of which returns a new Query.
type Query struct {
	n node
}

type node interface{ isNode() }

type (
	// navNode navigates zero or more steps from the current scope.
	// Each step names an entity (from the universe), a link or an
	// attribute (from an entity scope).
	navNode struct {
		base  node // nil means current scope
		steps []string
	}

	filterNode struct {
		base node
		pred node
	}

	sortNode struct {
		base node
		keys []SortKey
	}

	selectNode struct {
		base   node
		fields []Selection
	}

	groupNode struct {
		base node
		keys []Selection
	}

	countNode struct{ base node }

	firstNode struct{ base node }

	sliceNode struct {
		base          node
		limit, offset node // nil when unbounded
	}

	idNode struct{ base node }

	binaryNode struct {
		op       binaryOp
		lhs, rhs node
	}

	litNode struct{ value any }

	// argNode is a placeholder for a per-request argument value.
	argNode struct {
		name string
		meta any
	}

	// paramNode is a placeholder for a context-computed parameter value.
	paramNode struct {
		name string
		meta any
	}
)

type binaryOp string

const (
	opEq      binaryOp = "="
	opMatches binaryOp = "~"
	opIn      binaryOp = "in"
)

func (navNode) isNode()    {}
func (filterNode) isNode() {}
func (sortNode) isNode()   {}
func (selectNode) isNode() {}
func (groupNode) isNode()  {}
func (countNode) isNode()  {}
func (firstNode) isNode()  {}
func (sliceNode) isNode()  {}
func (idNode) isNode()     {}
func (binaryNode) isNode() {}
func (litNode) isNode()    {}
func (argNode) isNode()    {}
func (paramNode) isNode()  {}

// SortKey orders produced rows by an attribute navigation.
type SortKey struct {
	Steps []string
	Desc  bool
}

// Asc sorts ascending by the attribute at the given navigation path.
func Asc(steps ...string) SortKey { return SortKey{Steps: steps} }

// Desc sorts descending by the attribute at the given navigation path.
func Desc(steps ...string) SortKey { return SortKey{Steps: steps, Desc: true} }

// Selection names a sub-expression inside Select or GroupBy.
type Selection struct {
	Name string
	Expr *Query
}

// F builds a named selection.
func F(name string, expr *Query) Selection { return Selection{Name: name, Expr: expr} }

// Here is the current scope itself: the anchor row for anchored queries.
func Here() *Query { return &Query{n: navNode{}} }

// Path navigates from the current scope through the named steps.
func Path(steps ...string) *Query { return &Query{n: navNode{steps: steps}} }

// Lit wraps a literal value for use as an operand.
func Lit(v any) *Query { return &Query{n: litNode{value: v}} }

// Expr wraps any operand, including placeholders, as a standalone query.
func Expr(v any) *Query { return &Query{n: operand(v)} }

// ArgPlaceholder is implemented by values usable as named argument
// placeholders inside expressions. The schema layer implements it so that
// GraphQL arguments can be embedded directly in combinator expressions.
type ArgPlaceholder interface {
	ArgName() string
	ArgMeta() any
}

// ParamPlaceholder is implemented by values usable as named context-computed
// parameters inside expressions.
type ParamPlaceholder interface {
	ParamName() string
	ParamMeta() any
}

// Arg is a bare argument placeholder with no attached metadata.
func Arg(name string) *Query { return &Query{n: argNode{name: name}} }

// Param is a bare parameter placeholder with no attached metadata.
func Param(name string) *Query { return &Query{n: paramNode{name: name}} }

// Nav extends the query with one navigation step.
func (q *Query) Nav(step string) *Query {
	if nav, ok := q.n.(navNode); ok {
		steps := make([]string, len(nav.steps)+1)
		copy(steps, nav.steps)
		steps[len(nav.steps)] = step
		return &Query{n: navNode{base: nav.base, steps: steps}}
	}
	return &Query{n: navNode{base: q.n, steps: []string{step}}}
}

// Filter keeps only rows for which pred holds.
func (q *Query) Filter(pred *Query) *Query {
	return &Query{n: filterNode{base: q.n, pred: pred.n}}
}

// Sort orders the produced rows.
func (q *Query) Sort(keys ...SortKey) *Query {
	return &Query{n: sortNode{base: q.n, keys: keys}}
}

// Select projects named sub-expressions out of each row, producing records.
func (q *Query) Select(fields ...Selection) *Query {
	return &Query{n: selectNode{base: q.n, fields: fields}}
}

// GroupBy partitions rows by the given key expressions. The result is a
// record stream scoped so that subsequent Select sees the keys plus the
// grouped rows under the entity name.
func (q *Query) GroupBy(keys ...Selection) *Query {
	return &Query{n: groupNode{base: q.n, keys: keys}}
}

// Count reduces the query to the number of produced rows.
func (q *Query) Count() *Query { return &Query{n: countNode{base: q.n}} }

// First reduces the query to its first produced row, or null.
func (q *Query) First() *Query { return &Query{n: firstNode{base: q.n}} }

// Paginate limits the produced rows. Operands may be literals or
// placeholders; a nil operand leaves that bound open.
func (q *Query) Paginate(limit, offset any) *Query {
	s := sliceNode{base: q.n}
	if limit != nil {
		s.limit = operand(limit)
	}
	if offset != nil {
		s.offset = operand(offset)
	}
	return &Query{n: s}
}

// ID reduces an entity query to the entity identifier.
func (q *Query) ID() *Query { return &Query{n: idNode{base: q.n}} }

// Eq builds an equality predicate against a literal, a placeholder or
// another expression.
func (q *Query) Eq(v any) *Query {
	return &Query{n: binaryNode{op: opEq, lhs: q.n, rhs: operand(v)}}
}

// Matches builds a substring-match predicate.
func (q *Query) Matches(v any) *Query {
	return &Query{n: binaryNode{op: opMatches, lhs: q.n, rhs: operand(v)}}
}

// In builds a membership predicate against a list operand.
func (q *Query) In(v any) *Query {
	return &Query{n: binaryNode{op: opIn, lhs: q.n, rhs: operand(v)}}
}

func operand(v any) node {
	switch x := v.(type) {
	case *Query:
		return x.n
	case ArgPlaceholder:
		return argNode{name: x.ArgName(), meta: x.ArgMeta()}
	case ParamPlaceholder:
		return paramNode{name: x.ParamName(), meta: x.ParamMeta()}
	default:
		return litNode{value: v}
	}
}

// String renders the expression for diagnostics.
func (q *Query) String() string { return renderNode(q.n) }

func renderNode(n node) string {
	switch x := n.(type) {
	case nil:
		return "here()"
	case navNode:
		s := strings.Join(x.steps, ".")
		if x.base != nil {
			return renderNode(x.base) + "." + s
		}
		if s == "" {
			return "here()"
		}
		return s
	case filterNode:
		return fmt.Sprintf("%s.filter(%s)", renderNode(x.base), renderNode(x.pred))
	case sortNode:
		keys := make([]string, len(x.keys))
		for i, k := range x.keys {
			keys[i] = strings.Join(k.Steps, ".")
			if k.Desc {
				keys[i] += "-"
			}
		}
		return fmt.Sprintf("%s.sort(%s)", renderNode(x.base), strings.Join(keys, ", "))
	case selectNode:
		parts := make([]string, len(x.fields))
		for i, f := range x.fields {
			parts[i] = f.Name + " := " + renderNode(f.Expr.n)
		}
		return fmt.Sprintf("%s.select(%s)", renderNode(x.base), strings.Join(parts, ", "))
	case groupNode:
		parts := make([]string, len(x.keys))
		for i, f := range x.keys {
			parts[i] = f.Name + " := " + renderNode(f.Expr.n)
		}
		return fmt.Sprintf("%s.group(%s)", renderNode(x.base), strings.Join(parts, ", "))
	case countNode:
		return renderNode(x.base) + ".count()"
	case firstNode:
		return renderNode(x.base) + ".first()"
	case sliceNode:
		return renderNode(x.base) + ".paginate()"
	case idNode:
		return renderNode(x.base) + ".id()"
	case binaryNode:
		return fmt.Sprintf("(%s %s %s)", renderNode(x.lhs), x.op, renderNode(x.rhs))
	case litNode:
		return fmt.Sprintf("%v", x.value)
	case argNode:
		return "$" + x.name
	case paramNode:
		return "$" + x.name
	default:
		return "?"
	}
}
