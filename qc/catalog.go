package qc

// ScalarKind classifies attribute values as the engine reports them.
type ScalarKind int

const (
	KindText ScalarKind = iota
	KindInt
	KindFloat
	KindBool
	KindDate
	KindDatetime
	KindDecimal
)

func (k ScalarKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindInt:
		return "integer"
	case KindFloat:
		return "float"
	case KindBool:
		return "boolean"
	case KindDate:
		return "date"
	case KindDatetime:
		return "datetime"
	case KindDecimal:
		return "decimal"
	default:
		return "unknown"
	}
}

// Catalog describes the entities an engine can navigate. It is consulted
// once, when the GraphQL schema is built, so that navigation mistakes fail
// at startup instead of per request.
type Catalog struct {
	Entities map[string]*EntityDef
}

// EntityDef is one navigable entity (a table, in relational engines).
type EntityDef struct {
	Name       string
	Key        string // identifier attribute
	KeyKind    ScalarKind
	Attributes map[string]ScalarKind
	Links      map[string]*LinkDef
}

// LinkDef is a navigable relationship between two entities.
type LinkDef struct {
	Target string
	Many   bool
	// Column is the foreign-key attribute: on the source entity for
	// to-one links, on the target entity for to-many links.
	Column string
}

// Entity returns the named entity definition, or nil.
func (c *Catalog) Entity(name string) *EntityDef {
	if c == nil {
		return nil
	}
	return c.Entities[name]
}
