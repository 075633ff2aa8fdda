package schema

import "github.com/hanpama/relgraph/qc"

// TypeSpec is a code-first type declaration. Named specs (entities,
// records, objects, enums, input objects and scalars) compile to named
// GraphQL types; List and NonNull wrap other specs.
type TypeSpec struct {
	kind       specKind
	name       string
	scalar     qc.ScalarKind // specScalar
	idEntity   string        // specScalar: set for entity identifier scalars
	fieldsFn   func() Fields // specEntity, specRecord, specObject
	inputFn    func() InputFields
	enumValues []string
	ofType     *TypeSpec // specList, specNonNull
}

type specKind int

const (
	specScalar specKind = iota
	specEntity
	specRecord
	specObject
	specEnum
	specInput
	specList
	specNonNull
)

// Fields declares the GraphQL fields of an entity, record or object type.
type Fields map[string]*FieldDef

// InputFields declares the fields of an input object type.
type InputFields map[string]*InputField

// InputField is one field of an input object.
type InputField struct {
	Type        *TypeSpec
	Default     any
	HasDefault  bool
	Description string
}

// Built-in scalars.
var (
	Int      = &TypeSpec{kind: specScalar, name: "Int", scalar: qc.KindInt}
	Float    = &TypeSpec{kind: specScalar, name: "Float", scalar: qc.KindFloat}
	String   = &TypeSpec{kind: specScalar, name: "String", scalar: qc.KindText}
	Boolean  = &TypeSpec{kind: specScalar, name: "Boolean", scalar: qc.KindBool}
	ID       = &TypeSpec{kind: specScalar, name: "ID", scalar: qc.KindText}
	Date     = &TypeSpec{kind: specScalar, name: "Date", scalar: qc.KindDate}
	Datetime = &TypeSpec{kind: specScalar, name: "Datetime", scalar: qc.KindDatetime}
	Decimal  = &TypeSpec{kind: specScalar, name: "Decimal", scalar: qc.KindDecimal}
	JSON     = &TypeSpec{kind: specScalar, name: "JSON", scalar: qc.KindAny}
)

// EntityID declares the opaque identifier scalar of the named entity. The
// compiled type is named "<entity>_id".
func EntityID(entity string) *TypeSpec {
	return &TypeSpec{kind: specScalar, name: entity + "_id", idEntity: entity, scalar: qc.KindAny}
}

// Entity declares a GraphQL type backed by the catalog entity of the same
// name. The fields callback runs lazily at build time, so mutually
// recursive entities can reference each other.
func Entity(name string, fields func() Fields) *TypeSpec {
	return &TypeSpec{kind: specEntity, name: name, fieldsFn: fields}
}

// Record declares a GraphQL type for rows produced by Select or GroupBy.
// Its fields are validated against the columns of the query it is bound to.
func Record(name string, fields func() Fields) *TypeSpec {
	return &TypeSpec{kind: specRecord, name: name, fieldsFn: fields}
}

// Object declares a plain GraphQL object whose fields are computed from a
// parent Go value.
func Object(name string, fields func() Fields) *TypeSpec {
	return &TypeSpec{kind: specObject, name: name, fieldsFn: fields}
}

// Enum declares an enum type with the given value names.
func Enum(name string, values ...string) *TypeSpec {
	return &TypeSpec{kind: specEnum, name: name, enumValues: values}
}

// InputObject declares an input object type.
func InputObject(name string, fields func() InputFields) *TypeSpec {
	return &TypeSpec{kind: specInput, name: name, inputFn: fields}
}

// List wraps a spec in a list type.
func List(t *TypeSpec) *TypeSpec { return &TypeSpec{kind: specList, ofType: t} }

// NonNull wraps a spec in a non-null type.
func NonNull(t *TypeSpec) *TypeSpec { return &TypeSpec{kind: specNonNull, ofType: t} }

// Name returns the spec's type name; wrappers report the wrapped name.
func (t *TypeSpec) Name() string { return t.named().name }

func (t *TypeSpec) named() *TypeSpec {
	for t.kind == specList || t.kind == specNonNull {
		t = t.ofType
	}
	return t
}

func (t *TypeSpec) isNonNull() bool { return t.kind == specNonNull }

// typeRef renders the spec as a compiled type reference.
func (t *TypeSpec) typeRef() *TypeRef {
	switch t.kind {
	case specList:
		return ListType(t.ofType.typeRef())
	case specNonNull:
		return NonNullType(t.ofType.typeRef())
	default:
		return NamedType(t.name)
	}
}
