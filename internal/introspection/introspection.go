// Package introspection serves the GraphQL meta schema: the __schema and
// __type root fields and the __Type family of types, enough for schema
// explorers to load the full type system.
package introspection

import (
	"fmt"
	"sort"

	"github.com/hanpama/relgraph/schema"
)

var metaTypes = map[string]*schema.Type{
	"__Schema":            schemaType(),
	"__Type":              typeType(),
	"__Field":             fieldType(),
	"__InputValue":        inputValueType(),
	"__EnumValue":         enumValueType(),
	"__Directive":         directiveType(),
	"__TypeKind":          typeKindEnum(),
	"__DirectiveLocation": directiveLocationEnum(),
}

var rootFields = map[string]*schema.Field{
	"__schema": {
		Name:        "__schema",
		Description: "Access the current type schema of this server.",
		Type:        schema.NonNullType(schema.NamedType("__Schema")),
	},
	"__type": {
		Name:        "__type",
		Description: "Request the type information of a single type.",
		Arguments: []*schema.InputValue{
			{
				Name:        "name",
				Description: "The name of the type to look up.",
				Type:        schema.NonNullType(schema.NamedType("String")),
			},
		},
		Type: schema.NamedType("__Type"),
	},
}

// TypeDef returns a meta type definition by name, or nil.
func TypeDef(name string) *schema.Type { return metaTypes[name] }

// RootField returns the definition of a meta field available on the
// query root, or nil.
func RootField(name string) *schema.Field { return rootFields[name] }

// SchemaValue is the source value of the __schema field.
func SchemaValue(s *schema.Schema) any { return s }

// TypeValue is the source value of the __type field.
func TypeValue(s *schema.Schema, name string) any {
	if t, ok := s.Types[name]; ok {
		return t
	}
	return nil
}

// ResolveField resolves a field of a meta type by switching on the kind
// of source value flowing through the introspection tree.
func ResolveField(s *schema.Schema, typeName, fieldName string, source any, args map[string]any) (any, error) {
	switch src := source.(type) {
	case *schema.Schema:
		if v, ok := resolveSchemaField(src, fieldName); ok {
			return v, nil
		}
	case *schema.Type:
		if v, ok := resolveTypeField(s, src, fieldName, args); ok {
			return v, nil
		}
	case *schema.TypeRef:
		if v, ok := resolveTypeRefField(s, src, fieldName, args); ok {
			return v, nil
		}
	case *schema.Field:
		if v, ok := resolveFieldField(src, fieldName, args); ok {
			return v, nil
		}
	case *schema.InputValue:
		if v, ok := resolveInputValueField(src, fieldName); ok {
			return v, nil
		}
	case *schema.EnumValue:
		if v, ok := resolveEnumValueField(src, fieldName); ok {
			return v, nil
		}
	case *schema.Directive:
		if v, ok := resolveDirectiveField(src, fieldName, args); ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("cannot resolve %s.%s against %T", typeName, fieldName, source)
}

func resolveSchemaField(s *schema.Schema, field string) (any, bool) {
	switch field {
	case "types":
		out := make([]*schema.Type, 0, len(s.Types))
		for _, t := range s.Types {
			out = append(out, t)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return out, true
	case "queryType":
		return s.GetQueryType(), true
	case "mutationType":
		return s.GetMutationType(), true
	case "subscriptionType":
		return nil, true
	case "directives":
		out := make([]*schema.Directive, 0, len(s.Directives))
		for _, d := range s.Directives {
			out = append(out, d)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return out, true
	case "description":
		return nullableString(s.Description), true
	}
	return nil, false
}

func resolveTypeField(s *schema.Schema, t *schema.Type, field string, args map[string]any) (any, bool) {
	switch field {
	case "kind":
		return string(t.Kind), true
	case "name":
		return t.Name, true
	case "description":
		return nullableString(t.Description), true
	case "specifiedByURL":
		return t.SpecifiedByURL, true
	case "fields":
		if t.Kind != schema.TypeKindObject && t.Kind != schema.TypeKindInterface {
			return nil, true
		}
		includeDeprecated := boolArg(args, "includeDeprecated", false)
		out := []*schema.Field{}
		for _, f := range t.Fields {
			if !includeDeprecated && f.IsDeprecated {
				continue
			}
			out = append(out, f)
		}
		return out, true
	case "interfaces":
		if t.Kind != schema.TypeKindObject && t.Kind != schema.TypeKindInterface {
			return nil, true
		}
		return []*schema.Type{}, true
	case "possibleTypes":
		return nil, true
	case "enumValues":
		if t.Kind != schema.TypeKindEnum {
			return nil, true
		}
		includeDeprecated := boolArg(args, "includeDeprecated", false)
		out := []*schema.EnumValue{}
		for _, ev := range t.EnumValues {
			if !includeDeprecated && ev.IsDeprecated {
				continue
			}
			out = append(out, ev)
		}
		return out, true
	case "inputFields":
		if t.Kind != schema.TypeKindInputObject {
			return nil, true
		}
		out := append([]*schema.InputValue{}, t.InputFields...)
		return out, true
	case "isOneOf":
		return t.OneOf, true
	case "ofType":
		return nil, true
	}
	return nil, false
}

// resolveTypeRefField treats wrapper references (LIST, NON_NULL) as
// anonymous types and delegates named references to their definition.
func resolveTypeRefField(s *schema.Schema, tr *schema.TypeRef, field string, args map[string]any) (any, bool) {
	if tr.Kind == schema.TypeRefKindNamed {
		def := s.Types[tr.Named]
		if def == nil {
			def = TypeDef(tr.Named)
		}
		if def == nil {
			return nil, true
		}
		return resolveTypeField(s, def, field, args)
	}
	switch field {
	case "kind":
		return string(tr.Kind), true
	case "name", "description", "fields", "interfaces", "possibleTypes",
		"enumValues", "inputFields", "specifiedByURL", "isOneOf":
		return nil, true
	case "ofType":
		return tr.OfType, true
	}
	return nil, false
}

func resolveFieldField(f *schema.Field, field string, args map[string]any) (any, bool) {
	switch field {
	case "name":
		return f.Name, true
	case "description":
		return nullableString(f.Description), true
	case "args":
		includeDeprecated := boolArg(args, "includeDeprecated", false)
		out := []*schema.InputValue{}
		for _, a := range f.Arguments {
			if !includeDeprecated && a.IsDeprecated {
				continue
			}
			out = append(out, a)
		}
		return out, true
	case "type":
		return f.Type, true
	case "isDeprecated":
		return f.IsDeprecated, true
	case "deprecationReason":
		if f.IsDeprecated {
			return f.DeprecationReason, true
		}
		return nil, true
	}
	return nil, false
}

func resolveInputValueField(a *schema.InputValue, field string) (any, bool) {
	switch field {
	case "name":
		return a.Name, true
	case "description":
		return nullableString(a.Description), true
	case "type":
		return a.Type, true
	case "defaultValue":
		if a.HasDefault && a.DefaultValue != nil {
			return fmt.Sprintf("%v", a.DefaultValue), true
		}
		return nil, true
	case "isDeprecated":
		return a.IsDeprecated, true
	case "deprecationReason":
		if a.IsDeprecated {
			return a.DeprecationReason, true
		}
		return nil, true
	}
	return nil, false
}

func resolveEnumValueField(ev *schema.EnumValue, field string) (any, bool) {
	switch field {
	case "name":
		return ev.Name, true
	case "description":
		return nullableString(ev.Description), true
	case "isDeprecated":
		return ev.IsDeprecated, true
	case "deprecationReason":
		if ev.IsDeprecated {
			return ev.DeprecationReason, true
		}
		return nil, true
	}
	return nil, false
}

func resolveDirectiveField(d *schema.Directive, field string, args map[string]any) (any, bool) {
	switch field {
	case "name":
		return d.Name, true
	case "description":
		return nullableString(d.Description), true
	case "isRepeatable":
		return d.IsRepeatable, true
	case "locations":
		return append([]string{}, d.Locations...), true
	case "args":
		includeDeprecated := boolArg(args, "includeDeprecated", false)
		out := []*schema.InputValue{}
		for _, a := range d.Arguments {
			if !includeDeprecated && a.IsDeprecated {
				continue
			}
			out = append(out, a)
		}
		return out, true
	}
	return nil, false
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolArg(args map[string]any, name string, def bool) bool {
	if v, ok := args[name]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}
