package introspection

import "github.com/hanpama/relgraph/schema"

func schemaType() *schema.Type {
	return &schema.Type{
		Name:        "__Schema",
		Kind:        schema.TypeKindObject,
		Description: "A GraphQL Schema defines the capabilities of a GraphQL server. It exposes all available types and directives on the server, as well as the entry points for query and mutation operations.",
		Fields: []*schema.Field{
			{
				Name: "description",
				Type: schema.NamedType("String"),
			},
			{
				Name:        "types",
				Description: "A list of all types supported by this server.",
				Type:        schema.NonNullType(schema.ListType(schema.NonNullType(schema.NamedType("__Type")))),
			},
			{
				Name:        "queryType",
				Description: "The type that query operations will be rooted at.",
				Type:        schema.NonNullType(schema.NamedType("__Type")),
			},
			{
				Name:        "mutationType",
				Description: "If this server supports mutation, the type that mutation operations will be rooted at.",
				Type:        schema.NamedType("__Type"),
			},
			{
				Name:        "subscriptionType",
				Description: "If this server supports subscription, the type that subscription operations will be rooted at.",
				Type:        schema.NamedType("__Type"),
			},
			{
				Name:        "directives",
				Description: "A list of all directives supported by this server.",
				Type:        schema.NonNullType(schema.ListType(schema.NonNullType(schema.NamedType("__Directive")))),
			},
		},
	}
}

func typeType() *schema.Type {
	return &schema.Type{
		Name:        "__Type",
		Kind:        schema.TypeKindObject,
		Description: "The fundamental unit of any GraphQL Schema is the type. There are many kinds of types in GraphQL as represented by the `__TypeKind` enum.",
		Fields: []*schema.Field{
			{Name: "kind", Type: schema.NonNullType(schema.NamedType("__TypeKind"))},
			{Name: "name", Type: schema.NamedType("String")},
			{Name: "description", Type: schema.NamedType("String")},
			{Name: "specifiedByURL", Type: schema.NamedType("String")},
			{
				Name:      "fields",
				Type:      schema.ListType(schema.NonNullType(schema.NamedType("__Field"))),
				Arguments: []*schema.InputValue{includeDeprecatedArg()},
			},
			{
				Name: "interfaces",
				Type: schema.ListType(schema.NonNullType(schema.NamedType("__Type"))),
			},
			{
				Name: "possibleTypes",
				Type: schema.ListType(schema.NonNullType(schema.NamedType("__Type"))),
			},
			{
				Name:      "enumValues",
				Type:      schema.ListType(schema.NonNullType(schema.NamedType("__EnumValue"))),
				Arguments: []*schema.InputValue{includeDeprecatedArg()},
			},
			{
				Name: "inputFields",
				Type: schema.ListType(schema.NonNullType(schema.NamedType("__InputValue"))),
			},
			{Name: "ofType", Type: schema.NamedType("__Type")},
			{Name: "isOneOf", Type: schema.NamedType("Boolean")},
		},
	}
}

func fieldType() *schema.Type {
	return &schema.Type{
		Name:        "__Field",
		Kind:        schema.TypeKindObject,
		Description: "Object and Interface types are described by a list of Fields, each of which has a name, potentially a list of arguments, and a return type.",
		Fields: []*schema.Field{
			{Name: "name", Type: schema.NonNullType(schema.NamedType("String"))},
			{Name: "description", Type: schema.NamedType("String")},
			{
				Name:      "args",
				Type:      schema.NonNullType(schema.ListType(schema.NonNullType(schema.NamedType("__InputValue")))),
				Arguments: []*schema.InputValue{includeDeprecatedArg()},
			},
			{Name: "type", Type: schema.NonNullType(schema.NamedType("__Type"))},
			{Name: "isDeprecated", Type: schema.NonNullType(schema.NamedType("Boolean"))},
			{Name: "deprecationReason", Type: schema.NamedType("String")},
		},
	}
}

func inputValueType() *schema.Type {
	return &schema.Type{
		Name:        "__InputValue",
		Kind:        schema.TypeKindObject,
		Description: "Arguments provided to Fields or Directives and the input fields of an InputObject are represented as Input Values which describe their type and optionally a default value.",
		Fields: []*schema.Field{
			{Name: "name", Type: schema.NonNullType(schema.NamedType("String"))},
			{Name: "description", Type: schema.NamedType("String")},
			{Name: "type", Type: schema.NonNullType(schema.NamedType("__Type"))},
			{
				Name:        "defaultValue",
				Description: "A GraphQL-formatted string representing the default value for this input value.",
				Type:        schema.NamedType("String"),
			},
			{Name: "isDeprecated", Type: schema.NonNullType(schema.NamedType("Boolean"))},
			{Name: "deprecationReason", Type: schema.NamedType("String")},
		},
	}
}

func enumValueType() *schema.Type {
	return &schema.Type{
		Name:        "__EnumValue",
		Kind:        schema.TypeKindObject,
		Description: "One possible value for a given Enum. Enum values are unique values, not a placeholder for a string or numeric value. However an Enum value is returned in a JSON response as a string.",
		Fields: []*schema.Field{
			{Name: "name", Type: schema.NonNullType(schema.NamedType("String"))},
			{Name: "description", Type: schema.NamedType("String")},
			{Name: "isDeprecated", Type: schema.NonNullType(schema.NamedType("Boolean"))},
			{Name: "deprecationReason", Type: schema.NamedType("String")},
		},
	}
}

func directiveType() *schema.Type {
	return &schema.Type{
		Name:        "__Directive",
		Kind:        schema.TypeKindObject,
		Description: "A Directive provides a way to describe alternate runtime execution and type validation behavior in a GraphQL document.",
		Fields: []*schema.Field{
			{Name: "name", Type: schema.NonNullType(schema.NamedType("String"))},
			{Name: "description", Type: schema.NamedType("String")},
			{Name: "isRepeatable", Type: schema.NonNullType(schema.NamedType("Boolean"))},
			{
				Name: "locations",
				Type: schema.NonNullType(schema.ListType(schema.NonNullType(schema.NamedType("__DirectiveLocation")))),
			},
			{
				Name:      "args",
				Type:      schema.NonNullType(schema.ListType(schema.NonNullType(schema.NamedType("__InputValue")))),
				Arguments: []*schema.InputValue{includeDeprecatedArg()},
			},
		},
	}
}

func typeKindEnum() *schema.Type {
	return &schema.Type{
		Name:        "__TypeKind",
		Kind:        schema.TypeKindEnum,
		Description: "An enum describing what kind of type a given `__Type` is.",
		EnumValues: []*schema.EnumValue{
			{Name: "SCALAR", Description: "Indicates this type is a scalar."},
			{Name: "OBJECT", Description: "Indicates this type is an object. `fields` and `interfaces` are valid fields."},
			{Name: "INTERFACE", Description: "Indicates this type is an interface. `fields`, `interfaces`, and `possibleTypes` are valid fields."},
			{Name: "UNION", Description: "Indicates this type is a union. `possibleTypes` is a valid field."},
			{Name: "ENUM", Description: "Indicates this type is an enum. `enumValues` is a valid field."},
			{Name: "INPUT_OBJECT", Description: "Indicates this type is an input object. `inputFields` is a valid field."},
			{Name: "LIST", Description: "Indicates this type is a list. `ofType` is a valid field."},
			{Name: "NON_NULL", Description: "Indicates this type is a non-null. `ofType` is a valid field."},
		},
	}
}

func directiveLocationEnum() *schema.Type {
	names := []string{
		"QUERY", "MUTATION", "SUBSCRIPTION", "FIELD", "FRAGMENT_DEFINITION",
		"FRAGMENT_SPREAD", "INLINE_FRAGMENT", "VARIABLE_DEFINITION",
		"SCHEMA", "SCALAR", "OBJECT", "FIELD_DEFINITION", "ARGUMENT_DEFINITION",
		"INTERFACE", "UNION", "ENUM", "ENUM_VALUE", "INPUT_OBJECT", "INPUT_FIELD_DEFINITION",
	}
	values := make([]*schema.EnumValue, len(names))
	for i, n := range names {
		values[i] = &schema.EnumValue{Name: n}
	}
	return &schema.Type{
		Name:        "__DirectiveLocation",
		Kind:        schema.TypeKindEnum,
		Description: "A Directive can be adjacent to many parts of the GraphQL language, a __DirectiveLocation describes one such possible adjacencies.",
		EnumValues:  values,
	}
}

func includeDeprecatedArg() *schema.InputValue {
	return &schema.InputValue{
		Name:         "includeDeprecated",
		Type:         schema.NamedType("Boolean"),
		DefaultValue: false,
		HasDefault:   true,
	}
}
