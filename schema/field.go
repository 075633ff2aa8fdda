package schema

import (
	"context"

	"github.com/hanpama/relgraph/qc"
)

// ResolveFunc computes a field value in Go. It receives the coerced
// arguments and the parent value through info.
type ResolveFunc func(ctx context.Context, info *ResolveInfo) (any, error)

type fieldKind int

const (
	fieldQuery fieldKind = iota
	fieldCompute
	fieldConnect
)

// FieldDef is one declared field of an entity, record or object type.
type FieldDef struct {
	kind        fieldKind
	query       *qc.Query
	typ         *TypeSpec
	filters     []*Filter
	sort        []qc.SortKey
	paginate    bool
	transform   func(any) (any, error)
	resolve     ResolveFunc
	args        []*Argument
	description string
	deprecated  string
}

// QueryField binds a field to a query expression evaluated by the engine.
// The result type is inferred from the expression where possible; Select
// and GroupBy results need an explicit Record type via WithType.
func QueryField(q *qc.Query, opts ...FieldOption) *FieldDef {
	f := &FieldDef{kind: fieldQuery, query: q}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Compute binds a field to a Go function.
func Compute(typ *TypeSpec, fn ResolveFunc, opts ...FieldOption) *FieldDef {
	f := &FieldDef{kind: fieldCompute, typ: typ, resolve: fn}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Mutation binds a mutation field to a Go function. It behaves exactly
// like Compute; the separate name keeps mutation roots readable.
func Mutation(typ *TypeSpec, fn ResolveFunc, opts ...FieldOption) *FieldDef {
	return Compute(typ, fn, opts...)
}

// Connect binds a field to the connection object of an entity type. The
// connection exposes count, get, get_many, paginated and all, each scoped
// to the parent anchor and the configured filters.
func Connect(target *TypeSpec, opts ...FieldOption) *FieldDef {
	f := &FieldDef{kind: fieldConnect, typ: target}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FieldOption configures a field declaration.
type FieldOption func(*FieldDef)

// WithType fixes the field's GraphQL type instead of inferring it.
func WithType(t *TypeSpec) FieldOption { return func(f *FieldDef) { f.typ = t } }

// WithFilters attaches optional filters. A filter applies only when all
// of its arguments were provided in the request.
func WithFilters(filters ...*Filter) FieldOption {
	return func(f *FieldDef) { f.filters = append(f.filters, filters...) }
}

// WithSort orders the produced rows.
func WithSort(keys ...qc.SortKey) FieldOption {
	return func(f *FieldDef) { f.sort = append(f.sort, keys...) }
}

// WithPaginate adds limit and offset arguments to the field.
func WithPaginate() FieldOption { return func(f *FieldDef) { f.paginate = true } }

// WithTransform post-processes the produced value before completion.
func WithTransform(fn func(any) (any, error)) FieldOption {
	return func(f *FieldDef) { f.transform = fn }
}

// WithArgs declares the arguments of a Compute or Mutation field.
func WithArgs(args ...*Argument) FieldOption {
	return func(f *FieldDef) { f.args = append(f.args, args...) }
}

// WithDescription sets the field description.
func WithDescription(s string) FieldOption { return func(f *FieldDef) { f.description = s } }

// WithDeprecated marks the field deprecated.
func WithDeprecated(reason string) FieldOption { return func(f *FieldDef) { f.deprecated = reason } }

// Argument declares a GraphQL argument. Embedded in a query expression it
// doubles as the placeholder the engine binds at run time.
type Argument struct {
	name        string // placeholder name, also the default GraphQL name
	gqlName     string
	typ         *TypeSpec
	def         any
	hasDef      bool
	description string
}

// Arg declares an argument with the given placeholder name and type.
func Arg(name string, typ *TypeSpec, opts ...ArgOption) *Argument {
	a := &Argument{name: name, gqlName: name, typ: typ}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ArgOption configures an argument declaration.
type ArgOption func(*Argument)

// WithDefault sets the argument's default value.
func WithDefault(v any) ArgOption {
	return func(a *Argument) { a.def = v; a.hasDef = true }
}

// ExposedAs renames the argument in the GraphQL schema while keeping the
// placeholder name inside query expressions.
func ExposedAs(gqlName string) ArgOption {
	return func(a *Argument) { a.gqlName = gqlName }
}

// WithArgDescription sets the argument description.
func WithArgDescription(s string) ArgOption {
	return func(a *Argument) { a.description = s }
}

// ArgName implements qc.ArgPlaceholder.
func (a *Argument) ArgName() string { return a.name }

// ArgMeta implements qc.ArgPlaceholder.
func (a *Argument) ArgMeta() any { return a }

// Filter is an optional predicate on a query or connection field.
type Filter struct {
	pred *qc.Query
	fn   func(values map[string]any) []*qc.Query
	args []*Argument
}

// FilterExpr declares a filter from a predicate expression. Its arguments
// are the placeholders embedded in the predicate.
func FilterExpr(pred *qc.Query) *Filter { return &Filter{pred: pred} }

// FilterFunc declares a filter from a generator function. The function
// receives the argument values that were provided and returns zero or
// more predicates to apply.
func FilterFunc(fn func(values map[string]any) []*qc.Query, args ...*Argument) *Filter {
	return &Filter{fn: fn, args: args}
}

// ParamDef declares a named value computed from the request context, such
// as the authenticated user. Params never surface as GraphQL arguments.
type ParamDef struct {
	name string
	typ  *TypeSpec
	fn   func(ctx context.Context) (any, error)
}

// Param declares a context-computed parameter placeholder.
func Param(name string, typ *TypeSpec, fn func(ctx context.Context) (any, error)) *ParamDef {
	return &ParamDef{name: name, typ: typ, fn: fn}
}

// ParamName implements qc.ParamPlaceholder.
func (p *ParamDef) ParamName() string { return p.name }

// ParamMeta implements qc.ParamPlaceholder.
func (p *ParamDef) ParamMeta() any { return p }
