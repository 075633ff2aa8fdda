package schema

import (
	"context"
	"fmt"
	"sort"

	"github.com/hanpama/relgraph/qc"
)

// BuildOption configures schema construction.
type BuildOption func(*buildOptions)

type buildOptions struct {
	queryTypeName string
	mutation      *TypeSpec
	description   string
}

// WithMutation installs a mutation root object.
func WithMutation(t *TypeSpec) BuildOption {
	return func(o *buildOptions) { o.mutation = t }
}

// WithQueryTypeName overrides the query root type name. The default is
// "Root".
func WithQueryTypeName(name string) BuildOption {
	return func(o *buildOptions) { o.queryTypeName = name }
}

// WithSchemaDescription sets the schema description.
func WithSchemaDescription(s string) BuildOption {
	return func(o *buildOptions) { o.description = s }
}

// Build compiles a code-first field map into an executable schema. Every
// query expression is analyzed against the engine's catalog, so unknown
// entities, attributes and incompatible bindings fail here rather than at
// request time. A nil engine skips catalog validation; fields then need
// explicit types and engine-backed fields fail when resolved.
func Build(ctx context.Context, engine qc.Engine, fields func() Fields, opts ...BuildOption) (*Schema, error) {
	bo := buildOptions{queryTypeName: "Root"}
	for _, opt := range opts {
		opt(&bo)
	}

	var cat *qc.Catalog
	if engine != nil {
		var err error
		cat, err = engine.Catalog(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading catalog: %w", err)
		}
	}

	b := &builder{
		s: &Schema{
			QueryType:   bo.queryTypeName,
			Description: bo.description,
			Types:       map[string]*Type{},
			Directives: map[string]*Directive{
				"include": includeDirective,
				"skip":    skipDirective,
			},
			engine:   engine,
			catalog:  cat,
			bindings: map[string]map[string]*Binding{},
			params:   map[string]*ParamDef{},
			scalars:  map[string]*TypeSpec{},
		},
		cat:     cat,
		specs:   map[string]*TypeSpec{},
		records: map[string]*recordInfo{},
	}
	for _, sc := range []*TypeSpec{Int, Float, String, Boolean, ID, Date, Datetime, Decimal, JSON} {
		b.specs[sc.name] = sc
		b.s.scalars[sc.name] = sc
	}
	b.s.Types["String"] = stringType
	b.s.Types["Int"] = intType
	b.s.Types["Float"] = floatType
	b.s.Types["Boolean"] = booleanType
	b.s.Types["ID"] = idType
	b.s.Types["Date"] = dateType
	b.s.Types["Datetime"] = datetimeType
	b.s.Types["Decimal"] = decimalType
	b.s.Types["JSON"] = jsonType

	root := &TypeSpec{kind: specObject, name: bo.queryTypeName, fieldsFn: fields}
	if err := b.compileNamed(root); err != nil {
		return nil, err
	}
	if bo.mutation != nil {
		m := bo.mutation.named()
		if m.kind != specObject {
			return nil, fmt.Errorf("mutation root %q must be an object type", m.name)
		}
		if err := b.compileNamed(m); err != nil {
			return nil, err
		}
		b.s.MutationType = m.name
	}
	for name, rec := range b.records {
		if !rec.compiled {
			return nil, fmt.Errorf("record type %q is never bound to a query", name)
		}
	}
	return b.s, nil
}

type builder struct {
	s       *Schema
	cat     *qc.Catalog
	specs   map[string]*TypeSpec
	records map[string]*recordInfo
}

type recordInfo struct {
	spec     *TypeSpec
	defs     Fields
	compiled bool
}

// compileNamed registers and compiles the innermost named spec of t.
// Cycles are fine: the type shell is registered before its fields are
// compiled, so recursive references resolve by name.
func (b *builder) compileNamed(t *TypeSpec) error {
	t = t.named()
	if prev, ok := b.specs[t.name]; ok {
		if prev == t || sameScalar(prev, t) {
			return nil
		}
		return fmt.Errorf("duplicate type name %q", t.name)
	}
	b.specs[t.name] = t

	switch t.kind {
	case specScalar:
		b.s.scalars[t.name] = t
		b.s.Types[t.name] = &Type{
			Name:        t.name,
			Kind:        TypeKindScalar,
			Description: fmt.Sprintf("Identifier of the `%s` entity.", t.idEntity),
		}
		return nil

	case specEnum:
		values := make([]*EnumValue, len(t.enumValues))
		for i, v := range t.enumValues {
			values[i] = &EnumValue{Name: v}
		}
		b.s.Types[t.name] = &Type{Name: t.name, Kind: TypeKindEnum, EnumValues: values}
		return nil

	case specInput:
		typ := &Type{Name: t.name, Kind: TypeKindInputObject}
		b.s.Types[t.name] = typ
		defs := t.inputFn()
		for _, name := range sortedKeys(defs) {
			f := defs[name]
			if err := b.validateInput(f.Type); err != nil {
				return fmt.Errorf("input field %s.%s: %w", t.name, name, err)
			}
			typ.InputFields = append(typ.InputFields, &InputValue{
				Name:        name,
				Description: f.Description,
				Type:        f.Type.typeRef(),
				DefaultValue: f.Default,
				HasDefault:   f.HasDefault,
			})
		}
		return nil

	case specEntity:
		if b.cat != nil && b.cat.Entity(t.name) == nil {
			return fmt.Errorf("unknown entity %q", t.name)
		}
		typ := &Type{Name: t.name, Kind: TypeKindObject}
		b.s.Types[t.name] = typ
		b.s.bindings[t.name] = map[string]*Binding{}
		defs := t.fieldsFn()
		if _, declared := defs["id"]; !declared {
			idSpec := EntityID(t.name)
			if err := b.compileNamed(idSpec); err != nil {
				return err
			}
			typ.Fields = append(typ.Fields, &Field{
				Name: "id",
				Type: NonNullType(NamedType(idSpec.name)),
			})
			b.s.bindings[t.name]["id"] = &Binding{Kind: BindID, Entity: t.name}
		}
		return b.compileFields(t.name, defs, qc.EntityScope(t.name), typ)

	case specObject:
		typ := &Type{Name: t.name, Kind: TypeKindObject}
		b.s.Types[t.name] = typ
		b.s.bindings[t.name] = map[string]*Binding{}
		return b.compileFields(t.name, t.fieldsFn(), qc.UniverseScope(), typ)

	case specRecord:
		// Field compilation waits for the first query binding, which
		// supplies the row scope the field expressions are checked
		// against.
		b.s.Types[t.name] = &Type{Name: t.name, Kind: TypeKindObject}
		b.s.bindings[t.name] = map[string]*Binding{}
		b.records[t.name] = &recordInfo{spec: t, defs: t.fieldsFn()}
		return nil

	default:
		return fmt.Errorf("type %q cannot be compiled", t.name)
	}
}

func sameScalar(a, c *TypeSpec) bool {
	return a.kind == specScalar && c.kind == specScalar &&
		a.name == c.name && a.idEntity == c.idEntity && a.scalar == c.scalar
}

func (b *builder) compileFields(owner string, defs Fields, scope qc.Scope, typ *Type) error {
	for _, name := range sortedKeys(defs) {
		field, err := b.compileField(owner, name, defs[name], scope)
		if err != nil {
			return err
		}
		typ.Fields = append(typ.Fields, field)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (b *builder) compileField(owner, name string, def *FieldDef, scope qc.Scope) (*Field, error) {
	wrap := func(err error) error { return fmt.Errorf("field %s.%s: %w", owner, name, err) }

	switch def.kind {
	case fieldCompute:
		if def.typ == nil {
			return nil, wrap(fmt.Errorf("compute fields need an explicit type"))
		}
		if err := b.compileOutput(def.typ); err != nil {
			return nil, wrap(err)
		}
		field := &Field{
			Name:        name,
			Description: def.description,
			Type:        def.typ.typeRef(),
		}
		applyDeprecation(field, def)
		binding := &Binding{Kind: BindCompute, Resolve: def.resolve, Transform: def.transform, OutSpec: def.typ.named()}
		for _, a := range def.args {
			if err := b.addArgument(field, binding, a); err != nil {
				return nil, wrap(err)
			}
		}
		b.s.bindings[owner][name] = binding
		return field, nil

	case fieldQuery:
		return b.compileQueryField(owner, name, def, scope, wrap)

	case fieldConnect:
		return b.compileConnectField(owner, name, def, scope, wrap)

	default:
		return nil, wrap(fmt.Errorf("unsupported field kind"))
	}
}

func applyDeprecation(f *Field, def *FieldDef) {
	if def.deprecated != "" {
		f.IsDeprecated = true
		f.DeprecationReason = def.deprecated
	}
}

func (b *builder) compileQueryField(owner, name string, def *FieldDef, scope qc.Scope, wrap func(error) error) (*Field, error) {
	var shape *qc.Shape
	if b.cat != nil {
		var err error
		shape, err = qc.Analyze(def.query, b.cat, scope)
		if err != nil {
			return nil, wrap(err)
		}
	}

	field := &Field{Name: name, Description: def.description}
	applyDeprecation(field, def)
	binding := &Binding{
		Kind:      BindQuery,
		Query:     def.query,
		Filters:   def.filters,
		Sort:      def.sort,
		Paginate:  def.paginate,
		Transform: def.transform,
	}
	if col, ok := qc.SingleStep(def.query); ok {
		binding.FastColumn = col
	}
	if shape != nil {
		binding.Many = shape.Many
	}

	// Placeholders embedded in the base expression become arguments of
	// this field; params are registered schema-wide.
	for _, ph := range qc.Placeholders(def.query) {
		if err := b.bindPlaceholder(field, binding, ph); err != nil {
			return nil, wrap(err)
		}
	}
	var rowScope qc.Scope
	if shape != nil {
		rowScope = qc.ScopeOf(shape)
	}
	for _, f := range def.filters {
		if err := b.compileFilter(f, rowScope, shape != nil); err != nil {
			return nil, wrap(err)
		}
		for _, a := range f.args {
			if err := b.addArgument(field, binding, a); err != nil {
				return nil, wrap(err)
			}
		}
	}
	if def.paginate {
		for _, a := range []*Argument{Arg("limit", Int), Arg("offset", Int)} {
			if err := b.addArgument(field, binding, a); err != nil {
				return nil, wrap(err)
			}
		}
	}

	ref, outSpec, err := b.queryFieldType(def, shape)
	if err != nil {
		return nil, wrap(err)
	}
	field.Type = ref
	binding.OutSpec = outSpec
	b.s.bindings[owner][name] = binding
	return field, nil
}

// queryFieldType resolves the GraphQL type of a query field, either from
// the explicit declaration or by inference from the analyzed shape.
func (b *builder) queryFieldType(def *FieldDef, shape *qc.Shape) (*TypeRef, *TypeSpec, error) {
	if def.typ != nil {
		named := def.typ.named()
		if err := b.compileOutput(def.typ); err != nil {
			return nil, nil, err
		}
		if shape != nil {
			switch {
			case shape.Kind == qc.ShapeEntity && named.kind == specEntity:
				if named.name != shape.Entity {
					return nil, nil, fmt.Errorf("query produces %q rows but field type is %q", shape.Entity, named.name)
				}
			case named.kind == specRecord:
				if err := b.bindRecord(named, shape); err != nil {
					return nil, nil, err
				}
			}
			if shape.Many && def.typ.kind != specList &&
				!(def.typ.kind == specNonNull && def.typ.ofType.kind == specList) {
				return NonNullType(ListType(def.typ.typeRef())), named, nil
			}
		}
		return def.typ.typeRef(), named, nil
	}

	if shape == nil {
		return nil, nil, fmt.Errorf("explicit type required when building without an engine")
	}
	switch shape.Kind {
	case qc.ShapeScalar:
		spec, err := b.scalarSpec(shape)
		if err != nil {
			return nil, nil, err
		}
		if shape.Many {
			return NonNullType(ListType(NamedType(spec.name))), spec, nil
		}
		return NamedType(spec.name), spec, nil
	default:
		return nil, nil, fmt.Errorf("query produces rows; declare the field type explicitly")
	}
}

func (b *builder) scalarSpec(shape *qc.Shape) (*TypeSpec, error) {
	if shape.IDEntity != "" {
		spec := EntityID(shape.IDEntity)
		if err := b.compileNamed(spec); err != nil {
			return nil, err
		}
		return b.specs[spec.name], nil
	}
	switch shape.Scalar {
	case qc.KindText:
		return String, nil
	case qc.KindInt:
		return Int, nil
	case qc.KindFloat:
		return Float, nil
	case qc.KindBool:
		return Boolean, nil
	case qc.KindDate:
		return Date, nil
	case qc.KindDatetime:
		return Datetime, nil
	case qc.KindDecimal:
		return Decimal, nil
	default:
		return nil, fmt.Errorf("cannot infer a type for this expression; declare it explicitly")
	}
}

// bindPlaceholder wires one Arg or Param occurrence from a query
// expression into the field being compiled.
func (b *builder) bindPlaceholder(field *Field, binding *Binding, ph qc.Placeholder) error {
	if ph.IsParam {
		p, ok := ph.Meta.(*ParamDef)
		if !ok {
			return fmt.Errorf("parameter %q must be declared with Param", ph.Name)
		}
		return b.registerParam(p)
	}
	a, ok := ph.Meta.(*Argument)
	if !ok {
		return fmt.Errorf("argument %q must be declared with Arg", ph.Name)
	}
	return b.addArgument(field, binding, a)
}

func (b *builder) registerParam(p *ParamDef) error {
	if prev, ok := b.s.params[p.name]; ok {
		if prev != p {
			return fmt.Errorf("conflicting declarations for parameter %q", p.name)
		}
		return nil
	}
	if err := b.validateInput(p.typ); err != nil {
		return fmt.Errorf("parameter %q: %w", p.name, err)
	}
	b.s.params[p.name] = p
	return nil
}

func (b *builder) addArgument(field *Field, binding *Binding, a *Argument) error {
	if prev := field.GetArgument(a.gqlName); prev != nil {
		for _, bound := range binding.Args {
			if bound.Name == a.gqlName && bound.Arg == a {
				return nil // same placeholder used twice in one expression
			}
		}
		return fmt.Errorf("duplicate argument %q", a.gqlName)
	}
	if a.typ == nil {
		return fmt.Errorf("argument %q has no type", a.name)
	}
	if err := b.validateInput(a.typ); err != nil {
		return fmt.Errorf("argument %q: %w", a.gqlName, err)
	}
	field.Arguments = append(field.Arguments, &InputValue{
		Name:         a.gqlName,
		Description:  a.description,
		Type:         a.typ.typeRef(),
		DefaultValue: a.def,
		HasDefault:   a.hasDef,
	})
	binding.Args = append(binding.Args, BoundArg{Name: a.gqlName, Arg: a})
	return nil
}

// validateInput checks that a spec is usable as an input type and compiles
// any named input types it references.
func (b *builder) validateInput(t *TypeSpec) error {
	if t == nil {
		return fmt.Errorf("missing type")
	}
	named := t.named()
	switch named.kind {
	case specScalar:
		if named.name == "JSON" {
			return fmt.Errorf("JSON cannot be used as an argument type")
		}
		return b.compileNamed(named)
	case specEnum, specInput:
		return b.compileNamed(named)
	default:
		return fmt.Errorf("type %q cannot be used as input", named.name)
	}
}

// compileOutput compiles a spec used in output position.
func (b *builder) compileOutput(t *TypeSpec) error {
	return b.compileNamed(t.named())
}

// compileFilter analyzes a filter against the row scope of the rows it
// will be applied to and resolves its argument set.
func (b *builder) compileFilter(f *Filter, rowScope qc.Scope, validate bool) error {
	if f.pred != nil {
		if validate {
			if _, err := qc.Analyze(f.pred, b.cat, rowScope); err != nil {
				return fmt.Errorf("filter %s: %w", f.pred, err)
			}
		}
		if f.args == nil {
			for _, ph := range qc.Placeholders(f.pred) {
				if ph.IsParam {
					p, ok := ph.Meta.(*ParamDef)
					if !ok {
						return fmt.Errorf("parameter %q must be declared with Param", ph.Name)
					}
					if err := b.registerParam(p); err != nil {
						return err
					}
					continue
				}
				a, ok := ph.Meta.(*Argument)
				if !ok {
					return fmt.Errorf("argument %q must be declared with Arg", ph.Name)
				}
				f.args = append(f.args, a)
			}
		}
	}
	return nil
}

// bindRecord compiles or revalidates a record type against the row scope
// of a query it is bound to. The first binding fixes the field types;
// later bindings must stay compatible.
func (b *builder) bindRecord(rec *TypeSpec, shape *qc.Shape) error {
	info, ok := b.records[rec.name]
	if !ok {
		return fmt.Errorf("record type %q was not registered", rec.name)
	}
	scope := qc.ScopeOf(shape)
	if !info.compiled {
		info.compiled = true
		return b.compileFields(rec.name, info.defs, scope, b.s.Types[rec.name])
	}
	for _, name := range sortedKeys(info.defs) {
		def := info.defs[name]
		if def.kind != fieldQuery || b.cat == nil {
			continue
		}
		if _, err := qc.Analyze(def.query, b.cat, scope); err != nil {
			return fmt.Errorf("record %q is not compatible with this query: %w", rec.name, err)
		}
	}
	return nil
}

func (b *builder) compileConnectField(owner, name string, def *FieldDef, scope qc.Scope, wrap func(error) error) (*Field, error) {
	if def.typ == nil {
		return nil, wrap(fmt.Errorf("connect needs a target entity type"))
	}
	target := def.typ.named()
	if target.kind != specEntity {
		return nil, wrap(fmt.Errorf("connect target %q must be an entity type", target.name))
	}
	if err := b.compileNamed(target); err != nil {
		return nil, wrap(err)
	}

	// The base expression depends on where the connection hangs: at the
	// root it ranges over the whole entity set, on an entity it follows
	// the link to the target.
	var base *qc.Query
	switch {
	case scope.Entity != "":
		if b.cat == nil {
			return nil, wrap(fmt.Errorf("connect requires an engine"))
		}
		link, err := findLink(b.cat, scope.Entity, target.name)
		if err != nil {
			return nil, wrap(err)
		}
		base = qc.Path(link)
	default:
		base = qc.Path(target.name)
	}

	for _, f := range def.filters {
		if err := b.compileFilter(f, qc.EntityScope(target.name), b.cat != nil); err != nil {
			return nil, wrap(err)
		}
	}

	connName := target.name + "_connection"
	if len(def.filters) > 0 || len(def.sort) > 0 {
		connName = owner + "_" + name + "_connection"
	}
	if err := b.compileConnection(connName, target, def); err != nil {
		return nil, wrap(err)
	}

	field := &Field{
		Name:        name,
		Description: def.description,
		Type:        NonNullType(NamedType(connName)),
	}
	applyDeprecation(field, def)
	b.s.bindings[owner][name] = &Binding{
		Kind:    BindConnect,
		Query:   base,
		Entity:  target.name,
		Filters: def.filters,
		Sort:    def.sort,
	}
	return field, nil
}

func findLink(cat *qc.Catalog, from, to string) (string, error) {
	e := cat.Entity(from)
	if e == nil {
		return "", fmt.Errorf("unknown entity %q", from)
	}
	if link, ok := e.Links[to]; ok && link.Target == to {
		return to, nil
	}
	for name, link := range e.Links {
		if link.Target == to {
			return name, nil
		}
	}
	return "", fmt.Errorf("entity %q has no link to %q", from, to)
}

// compileConnection synthesizes the connection object type with its
// count, get, get_many, paginated and all fields.
func (b *builder) compileConnection(connName string, target *TypeSpec, def *FieldDef) error {
	if _, exists := b.s.Types[connName]; exists {
		return nil
	}
	idSpec := EntityID(target.name)
	if err := b.compileNamed(idSpec); err != nil {
		return err
	}

	typ := &Type{
		Name:        connName,
		Kind:        TypeKindObject,
		Description: fmt.Sprintf("Access to the `%s` entity set.", target.name),
	}
	b.s.Types[connName] = typ
	b.s.bindings[connName] = map[string]*Binding{}

	rowRef := func() *TypeRef { return NamedType(target.name) }
	listRef := func() *TypeRef { return NonNullType(ListType(NonNullType(rowRef()))) }

	add := func(field *Field, binding *Binding, extra ...*Argument) error {
		binding.Entity = target.name
		binding.OutSpec = target
		for _, a := range extra {
			if err := b.addArgument(field, binding, a); err != nil {
				return fmt.Errorf("field %s.%s: %w", connName, field.Name, err)
			}
		}
		for _, f := range def.filters {
			for _, a := range f.args {
				if err := b.addArgument(field, binding, a); err != nil {
					return fmt.Errorf("field %s.%s: %w", connName, field.Name, err)
				}
			}
		}
		typ.Fields = append(typ.Fields, field)
		b.s.bindings[connName][field.Name] = binding
		return nil
	}

	if err := add(
		&Field{Name: "all", Type: listRef(), Description: "All reachable rows."},
		&Binding{Kind: BindConnAll, Many: true},
	); err != nil {
		return err
	}
	if err := add(
		&Field{Name: "count", Type: NonNullType(NamedType("Int")), Description: "Number of reachable rows."},
		&Binding{Kind: BindConnCount},
	); err != nil {
		return err
	}
	getField := &Field{Name: "get", Type: rowRef(), Description: "Fetch a single row by identifier."}
	if err := add(getField, &Binding{Kind: BindConnGet},
		Arg("id", NonNull(idSpec))); err != nil {
		return err
	}
	getManyField := &Field{Name: "get_many", Type: listRef(), Description: "Fetch rows by identifier, skipping missing ones."}
	if err := add(getManyField, &Binding{Kind: BindConnGetMany, Many: true},
		Arg("id", NonNull(List(NonNull(idSpec))))); err != nil {
		return err
	}
	paginatedField := &Field{Name: "paginated", Type: listRef(), Description: "A window of the reachable rows."}
	if err := add(paginatedField, &Binding{Kind: BindConnPaginated, Many: true, Paginate: true},
		Arg("limit", Int), Arg("offset", Int)); err != nil {
		return err
	}
	return nil
}
