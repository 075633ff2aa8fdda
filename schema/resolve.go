package schema

import (
	"context"
	"fmt"
	"sync"

	"github.com/hanpama/relgraph/qc"
)

// BindingKind tells the resolver how a field produces its value.
type BindingKind int

const (
	BindQuery BindingKind = iota
	BindCompute
	BindConnect
	BindConnAll
	BindConnCount
	BindConnGet
	BindConnGetMany
	BindConnPaginated
	BindID
)

// BoundArg ties a GraphQL argument name to its placeholder declaration.
type BoundArg struct {
	Name string
	Arg  *Argument
}

// Binding is the compiled runtime behavior of one field.
type Binding struct {
	Kind       BindingKind
	Query      *qc.Query
	FastColumn string // single-attribute reads served from the parent row
	Entity     string
	Args       []BoundArg
	Filters    []*Filter
	Sort       []qc.SortKey
	Paginate   bool
	Many       bool
	Transform  func(any) (any, error)
	Resolve    ResolveFunc
	OutSpec    *TypeSpec
}

// ResolveInfo carries the resolution context into field bindings and
// compute functions.
type ResolveInfo struct {
	Schema   *Schema
	Request  *Request
	TypeName string
	Field    *Field
	Parent   any
	// Args holds the coerced argument values that were provided, keyed
	// by GraphQL argument name. Absent nullable arguments have no entry.
	Args map[string]any
}

// Request is per-request resolution state, mainly the parameter cache.
// Parameters are computed at most once per request.
type Request struct {
	schema *Schema
	mu     sync.Mutex
	params map[string]any
}

// NewRequest starts resolution state for one operation.
func (s *Schema) NewRequest() *Request {
	return &Request{schema: s, params: map[string]any{}}
}

// Param computes or recalls a context parameter by name.
func (r *Request) Param(ctx context.Context, name string) (any, error) {
	r.mu.Lock()
	if v, ok := r.params[name]; ok {
		r.mu.Unlock()
		return v, nil
	}
	r.mu.Unlock()
	def, ok := r.schema.params[name]
	if !ok {
		return nil, fmt.Errorf("unknown parameter %q", name)
	}
	v, err := def.fn(ctx)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.params[name] = v
	r.mu.Unlock()
	return v, nil
}

// connectValue is the runtime value of a connection field. It remembers
// the anchor and base expression so the connection's own fields can run
// engine queries scoped to where the connection was reached.
type connectValue struct {
	anchor  *qc.Anchor
	base    *qc.Query
	filters []*Filter
	sort    []qc.SortKey
}

// ResolveField computes the value of one field. The executor completes
// the returned value against the field's type: *qc.Row values become
// nested objects, slices become lists, everything else is a leaf.
func (s *Schema) ResolveField(ctx context.Context, info *ResolveInfo) (any, error) {
	binding := s.Binding(info.TypeName, info.Field.Name)
	if binding == nil {
		return nil, fmt.Errorf("no binding for %s.%s", info.TypeName, info.Field.Name)
	}

	var value any
	var err error
	switch binding.Kind {
	case BindID:
		row, ok := info.Parent.(*qc.Row)
		if !ok {
			return nil, fmt.Errorf("%s.id resolved against %T", info.TypeName, info.Parent)
		}
		return row.Key, nil

	case BindCompute:
		value, err = binding.Resolve(ctx, info)

	case BindQuery:
		value, err = s.resolveQuery(ctx, binding, info)

	case BindConnect:
		cv := &connectValue{base: binding.Query, filters: binding.Filters, sort: binding.Sort}
		if row, ok := info.Parent.(*qc.Row); ok && row.Entity != "" {
			cv.anchor = &qc.Anchor{Entity: row.Entity, Key: row.Key}
		}
		return cv, nil

	default:
		value, err = s.resolveConnection(ctx, binding, info)
	}
	if err != nil {
		return nil, err
	}
	if binding.Transform != nil {
		return binding.Transform(value)
	}
	return value, nil
}

func (s *Schema) resolveQuery(ctx context.Context, binding *Binding, info *ResolveInfo) (any, error) {
	// A bare placeholder expression just echoes its value.
	if ph, ok := qc.BarePlaceholder(binding.Query); ok {
		if ph.IsParam {
			return info.Request.Param(ctx, ph.Name)
		}
		for _, bound := range binding.Args {
			if bound.Arg.name == ph.Name {
				return info.Args[bound.Name], nil
			}
		}
		return nil, nil
	}

	if binding.FastColumn != "" {
		if row, ok := info.Parent.(*qc.Row); ok {
			if v, ok := row.Values[binding.FastColumn]; ok {
				return v, nil
			}
		}
	}

	// Projected rows carry no anchor; a count over a materialized
	// partition column is served from the rows already produced.
	if row, ok := info.Parent.(*qc.Row); ok && row.Entity == "" {
		n := binding.Query.Node()
		if n.Kind == qc.NodeCount && n.Base != nil && n.Base.Kind == qc.NodeNav &&
			n.Base.Base == nil && len(n.Base.Steps) == 1 {
			if list, ok := row.Values[n.Base.Steps[0]].([]any); ok {
				return int64(len(list)), nil
			}
		}
	}

	if s.engine == nil {
		return nil, fmt.Errorf("%s.%s needs an engine to resolve", info.TypeName, info.Field.Name)
	}

	q := applyFilters(binding.Query, binding.Filters, info.Args)
	if len(binding.Sort) > 0 {
		q = q.Sort(binding.Sort...)
	}
	if binding.Paginate {
		q = q.Paginate(litArg(info.Args, "limit"), litArg(info.Args, "offset"))
	}

	params, err := s.queryParams(ctx, q, binding, info)
	if err != nil {
		return nil, err
	}
	product, err := s.engine.Produce(ctx, q, params, anchorOf(info.Parent))
	if err != nil {
		return nil, err
	}
	return productValue(product), nil
}

func (s *Schema) resolveConnection(ctx context.Context, binding *Binding, info *ResolveInfo) (any, error) {
	cv, ok := info.Parent.(*connectValue)
	if !ok {
		return nil, fmt.Errorf("%s.%s resolved against %T", info.TypeName, info.Field.Name, info.Parent)
	}
	if s.engine == nil {
		return nil, fmt.Errorf("%s.%s needs an engine to resolve", info.TypeName, info.Field.Name)
	}

	q := applyFilters(cv.base, cv.filters, info.Args)
	if len(cv.sort) > 0 {
		q = q.Sort(cv.sort...)
	}

	switch binding.Kind {
	case BindConnCount:
		q = q.Count()
	case BindConnGet:
		q = q.Filter(qc.Here().ID().Eq(qc.Lit(info.Args["id"]))).First()
	case BindConnGetMany:
		ids, _ := info.Args["id"].([]any)
		if len(ids) == 0 {
			return []any{}, nil
		}
		q = q.Filter(qc.Here().ID().In(qc.Lit(ids)))
	case BindConnPaginated:
		q = q.Paginate(litArg(info.Args, "limit"), litArg(info.Args, "offset"))
	}

	params, err := s.queryParams(ctx, q, binding, info)
	if err != nil {
		return nil, err
	}
	product, err := s.engine.Produce(ctx, q, params, cv.anchor)
	if err != nil {
		return nil, err
	}
	value := productValue(product)

	if binding.Kind == BindConnGetMany {
		ids, _ := info.Args["id"].([]any)
		return reorderByKey(value, ids), nil
	}
	return value, nil
}

// queryParams gathers engine parameter values: provided arguments by
// placeholder name, absent ones as null, and context parameters through
// the request cache.
func (s *Schema) queryParams(ctx context.Context, q *qc.Query, binding *Binding, info *ResolveInfo) (qc.Params, error) {
	params := qc.Params{}
	for _, bound := range binding.Args {
		if v, ok := info.Args[bound.Name]; ok {
			params[bound.Arg.name] = v
		} else {
			params[bound.Arg.name] = nil
		}
	}
	for _, ph := range qc.Placeholders(q) {
		if !ph.IsParam {
			continue
		}
		v, err := info.Request.Param(ctx, ph.Name)
		if err != nil {
			return nil, err
		}
		params[ph.Name] = v
	}
	return params, nil
}

// applyFilters narrows q with every filter whose arguments allow it. A
// predicate filter applies only when all of its arguments were provided;
// a generator filter always runs and decides for itself.
func applyFilters(q *qc.Query, filters []*Filter, args map[string]any) *qc.Query {
	for _, f := range filters {
		if f.pred != nil {
			provided := true
			for _, a := range f.args {
				if _, ok := args[a.gqlName]; !ok {
					provided = false
					break
				}
			}
			if provided {
				q = q.Filter(f.pred)
			}
			continue
		}
		values := map[string]any{}
		for _, a := range f.args {
			if v, ok := args[a.gqlName]; ok {
				values[a.name] = v
			}
		}
		for _, pred := range f.fn(values) {
			q = q.Filter(pred)
		}
	}
	return q
}

func litArg(args map[string]any, name string) any {
	if v, ok := args[name]; ok && v != nil {
		return qc.Lit(v)
	}
	return nil
}

func anchorOf(parent any) *qc.Anchor {
	if row, ok := parent.(*qc.Row); ok && row.Entity != "" {
		return &qc.Anchor{Entity: row.Entity, Key: row.Key}
	}
	return nil
}

func productValue(p *qc.Product) any {
	switch p.Kind {
	case qc.ProductRows:
		out := make([]any, len(p.Rows))
		for i, r := range p.Rows {
			out[i] = r
		}
		return out
	case qc.ProductRow:
		if p.Row == nil {
			return nil
		}
		return p.Row
	default:
		return p.Value
	}
}

// reorderByKey puts rows in the order their identifiers were requested,
// dropping identifiers that matched nothing.
func reorderByKey(value any, ids []any) any {
	rows, ok := value.([]any)
	if !ok {
		return value
	}
	byKey := make(map[string]any, len(rows))
	for _, v := range rows {
		if row, ok := v.(*qc.Row); ok {
			byKey[fmt.Sprint(row.Key)] = row
		}
	}
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		if row, ok := byKey[fmt.Sprint(id)]; ok {
			out = append(out, row)
		}
	}
	return out
}
