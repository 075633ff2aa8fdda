package executor

import (
	"fmt"
	"strings"

	"github.com/hanpama/relgraph/internal/introspection"
	language "github.com/hanpama/relgraph/internal/language"
	"github.com/hanpama/relgraph/schema"
)

// validator walks the operation before execution. Anything it reports
// marks the whole request invalid.
type validator struct {
	schema    *schema.Schema
	document  *language.QueryDocument
	operation *language.OperationDefinition
	variables map[string]any
	visited   map[string]bool
	errs      []GraphQLError
}

func validateOperation(
	s *schema.Schema,
	doc *language.QueryDocument,
	op *language.OperationDefinition,
	variables map[string]any,
	rootType *schema.Type,
) []GraphQLError {
	v := &validator{
		schema:    s,
		document:  doc,
		operation: op,
		variables: variables,
		visited:   map[string]bool{},
	}
	v.selectionSet(rootType, op.SelectionSet)
	return v.errs
}

func (v *validator) addError(format string, args ...any) {
	v.errs = append(v.errs, GraphQLError{Message: fmt.Sprintf(format, args...)})
}

func (v *validator) selectionSet(typ *schema.Type, set language.SelectionSet) {
	for _, selection := range set {
		switch sel := selection.(type) {
		case *language.Field:
			v.field(typ, sel)
		case *language.InlineFragment:
			target := typ
			if sel.TypeCondition != "" && sel.TypeCondition != typ.Name {
				if target = v.typeByName(sel.TypeCondition); target == nil {
					v.addError("Unknown type %q", sel.TypeCondition)
					continue
				}
			}
			v.selectionSet(target, sel.SelectionSet)
		case *language.FragmentSpread:
			if v.visited[sel.Name] {
				continue
			}
			v.visited[sel.Name] = true
			def := v.document.Fragments.ForName(sel.Name)
			if def == nil {
				v.addError("Unknown fragment %q", sel.Name)
				continue
			}
			target := typ
			if def.TypeCondition != "" && def.TypeCondition != typ.Name {
				if target = v.typeByName(def.TypeCondition); target == nil {
					v.addError("Unknown type %q", def.TypeCondition)
					continue
				}
			}
			v.selectionSet(target, def.SelectionSet)
		}
	}
}

func (v *validator) field(typ *schema.Type, field *language.Field) {
	if field.Name == "__typename" {
		return
	}
	fieldDef := v.fieldDef(typ, field.Name)
	if fieldDef == nil {
		v.addError("Cannot query field %q on type %q", field.Name, typ.Name)
		return
	}
	v.arguments(typ.Name, fieldDef, field)
	if len(field.SelectionSet) > 0 {
		if inner := v.typeByName(fieldDef.Type.GetNamedType()); inner != nil && inner.Kind == schema.TypeKindObject {
			v.selectionSet(inner, field.SelectionSet)
		}
	}
}

func (v *validator) fieldDef(typ *schema.Type, name string) *schema.Field {
	if typ.Name == v.schema.QueryType {
		if meta := introspection.RootField(name); meta != nil {
			return meta
		}
	}
	return typ.GetField(name)
}

func (v *validator) typeByName(name string) *schema.Type {
	if strings.HasPrefix(name, "__") {
		return introspection.TypeDef(name)
	}
	return v.schema.Types[name]
}

// arguments checks one field's argument usage: unknown arguments, missing
// required arguments, literal values of the wrong shape, and variables of
// incompatible declared types.
func (v *validator) arguments(typeName string, fieldDef *schema.Field, field *language.Field) {
	at := fmt.Sprintf(" At %s.%s.", typeName, fieldDef.Name)

	var extra []string
	for _, a := range field.Arguments {
		if fieldDef.GetArgument(a.Name) == nil {
			extra = append(extra, fmt.Sprintf("%q", a.Name))
		}
	}
	if len(extra) > 0 {
		v.addError("The following arguments: %s are not allowed for this field", strings.Join(extra, ", "))
	}

	for _, argDef := range fieldDef.Arguments {
		label := fmt.Sprintf("%s : %s", argDef.Name, argDef.Type)
		provided := field.Arguments.ForName(argDef.Name)
		if provided == nil {
			if argDef.Type.IsNonNull() && !argDef.HasDefault {
				v.addError("Argument %q was not provided.%s", label, at)
			}
			continue
		}

		if provided.Value.Kind == language.Variable {
			varName := provided.Value.Raw
			varDef := v.operation.VariableDefinitions.ForName(varName)
			if varDef == nil {
				if argDef.Type.IsNonNull() && !argDef.HasDefault {
					v.addError("Argument %q (supplied by \"$%s\" variable) was not provided.%s", label, varName, at)
				}
				continue
			}
			if !compatibleTypes(varDef.Type, argDef.Type) {
				v.addError("Variable \"$%s : %s\" is attempted to be used as a value of incompatible type %q.%s",
					varName, varDef.Type.String(), argDef.Type, at)
				continue
			}
			if argDef.Type.IsNonNull() && !argDef.HasDefault {
				if val, ok := v.variables[varName]; !ok || val == nil {
					v.addError("Argument %q (supplied by \"$%s\" variable) was not provided.%s", label, varName, at)
				}
			}
			continue
		}

		val := astValueToGo(provided.Value, v.variables)
		if _, err := coerceInput(v.schema, argDef.Type, val, true); err != nil {
			v.addError("Argument %q:\n%s", label, err)
		}
	}
}

// compatibleTypes checks that a variable's declared type can flow into an
// argument position. Nullability differences are deliberately not flagged
// here; a null that reaches a non-null argument reports a missing
// argument instead.
func compatibleTypes(vt *language.Type, lt *schema.TypeRef) bool {
	if vt == nil || lt == nil {
		return false
	}
	if lt.IsNonNull() {
		lt = lt.Unwrap()
	}
	stripped := vt
	if stripped.NonNull {
		stripped = &language.Type{NamedType: stripped.NamedType, Elem: stripped.Elem}
	}
	if lt.IsList() {
		if stripped.NamedType != "" || stripped.Elem == nil {
			return false
		}
		return compatibleTypes(stripped.Elem, lt.Unwrap())
	}
	if stripped.NamedType == "" {
		return false
	}
	return stripped.NamedType == lt.GetNamedType()
}
