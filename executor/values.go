package executor

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	language "github.com/hanpama/relgraph/internal/language"
	"github.com/hanpama/relgraph/schema"
)

func typeRefFromAST(t *language.Type) *schema.TypeRef {
	if t == nil {
		return nil
	}
	if t.NonNull {
		return schema.NonNullType(typeRefFromAST(&language.Type{NamedType: t.NamedType, Elem: t.Elem}))
	}
	if t.NamedType != "" {
		return schema.NamedType(t.NamedType)
	}
	if t.Elem != nil {
		return schema.ListType(typeRefFromAST(t.Elem))
	}
	return nil
}

// checkUnexpectedVariables rejects variables the operation never declares.
func checkUnexpectedVariables(op *language.OperationDefinition, supplied map[string]any) error {
	declared := map[string]bool{}
	for _, vd := range op.VariableDefinitions {
		declared[vd.Variable] = true
	}
	var extra []string
	for name := range supplied {
		if !declared[name] {
			extra = append(extra, name)
		}
	}
	if len(extra) == 0 {
		return nil
	}
	sort.Strings(extra)
	quoted := make([]string, len(extra))
	for i, n := range extra {
		quoted[i] = strconv.Quote(n)
	}
	return fmt.Errorf("Unexpected variables: %s", strings.Join(quoted, ", "))
}

// coerceVariableValues validates and coerces the supplied variables
// against the operation's declarations. Each failing variable yields one
// error.
func coerceVariableValues(
	s *schema.Schema,
	op *language.OperationDefinition,
	supplied map[string]any,
) (map[string]any, []GraphQLError) {
	coerced := make(map[string]any)
	var errs []GraphQLError
	for _, vd := range op.VariableDefinitions {
		ref := typeRefFromAST(vd.Type)
		label := fmt.Sprintf("$%s : %s", vd.Variable, vd.Type.String())

		var defaultValue any
		hasDefault := vd.DefaultValue != nil
		if hasDefault {
			dv := astValueToGo(vd.DefaultValue, nil)
			cv, err := coerceInput(s, ref, dv, true)
			if err != nil {
				errs = append(errs, GraphQLError{
					Message: fmt.Sprintf("Variable %q has invalid default value:\n%s", label, err),
				})
				continue
			}
			defaultValue = cv
		}

		if v, ok := supplied[vd.Variable]; ok {
			cv, err := coerceInput(s, ref, v, false)
			if err != nil {
				errs = append(errs, GraphQLError{
					Message: fmt.Sprintf("Variable %q got invalid value:\n%s", label, err),
				})
				continue
			}
			coerced[vd.Variable] = cv
			continue
		}
		if hasDefault {
			coerced[vd.Variable] = defaultValue
			continue
		}
		if vd.Type.NonNull {
			errs = append(errs, GraphQLError{
				Message: fmt.Sprintf("Variable %q was not provided.", label),
			})
		}
	}
	return coerced, errs
}

// coerceInput coerces one input value against a type reference. The error
// text carries no argument or variable context; callers add it. The
// literal flag marks values written in the document itself, whose
// missing-field diagnostics read differently from variable values.
func coerceInput(s *schema.Schema, ref *schema.TypeRef, v any, literal bool) (any, error) {
	if ref.IsNonNull() {
		if v == nil {
			return nil, errors.New("value could not be null")
		}
		return coerceInput(s, ref.Unwrap(), v, literal)
	}
	if v == nil {
		return nil, nil
	}
	if ref.IsList() {
		return coerceInputList(s, ref, v, literal)
	}

	named := ref.GetNamedType()
	typ := s.Types[named]
	if typ == nil {
		return nil, fmt.Errorf("Expected %q", named)
	}
	switch typ.Kind {
	case schema.TypeKindScalar:
		return s.CoerceScalar(named, v)
	case schema.TypeKindEnum:
		if x, ok := v.(string); ok {
			for _, ev := range typ.EnumValues {
				if ev.Name == x {
					return x, nil
				}
			}
		}
		return nil, fmt.Errorf("Expected %q", named)
	case schema.TypeKindInputObject:
		return coerceInputObject(s, typ, v, literal)
	default:
		return nil, fmt.Errorf("Expected %q", named)
	}
}

// coerceInputList accepts a list value, coercing a lone non-list value to
// a single-element list per the GraphQL input coercion rules.
func coerceInputList(s *schema.Schema, ref *schema.TypeRef, v any, literal bool) (any, error) {
	items, ok := v.([]any)
	if !ok {
		items = []any{v}
	}
	inner := ref.Unwrap()
	out := make([]any, len(items))
	var lines []string
	for i, item := range items {
		cv, err := coerceInput(s, inner, item, literal)
		if err != nil {
			lines = append(lines, fmt.Sprintf("- At index %d: %s.", i, err))
			continue
		}
		out[i] = cv
	}
	if lines != nil {
		return nil, errors.New(strings.Join(lines, "\n"))
	}
	return out, nil
}

func coerceInputObject(s *schema.Schema, typ *schema.Type, v any, literal bool) (any, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("Expected %q", typ.Name)
	}
	out := make(map[string]any, len(obj))
	var lines []string
	for _, f := range typ.InputFields {
		fv, present := obj[f.Name]
		if !present {
			switch {
			case f.HasDefault:
				cv, err := coerceInput(s, f.Type, f.DefaultValue, true)
				if err == nil {
					out[f.Name] = cv
				}
			case f.Type.IsNonNull():
				if literal {
					lines = append(lines, fmt.Sprintf("Missing field \"%s.%s\"", typ.Name, f.Name))
				} else {
					lines = append(lines, fmt.Sprintf("Field \"%s.%s\": missing value", typ.Name, f.Name))
				}
			}
			continue
		}
		cv, err := coerceInput(s, f.Type, fv, literal)
		if err != nil {
			lines = append(lines, fmt.Sprintf("Field \"%s.%s\": %s", typ.Name, f.Name, err))
			continue
		}
		out[f.Name] = cv
	}
	for name := range obj {
		if typ.GetInputField(name) == nil {
			lines = append(lines, fmt.Sprintf("Unknown field \"%s.%s\"", typ.Name, name))
		}
	}
	if lines != nil {
		sort.Strings(lines)
		return nil, errors.New(strings.Join(lines, "\n"))
	}
	return out, nil
}

// astValueToGo converts a literal AST value to a Go value, substituting
// variables when vars is non-nil.
func astValueToGo(value *language.Value, vars map[string]any) any {
	if value == nil {
		return nil
	}
	switch value.Kind {
	case language.Variable:
		if vars != nil {
			return vars[value.Raw]
		}
		return nil
	case language.IntValue:
		iv, _ := strconv.ParseInt(value.Raw, 10, 64)
		return iv
	case language.FloatValue:
		fv, _ := strconv.ParseFloat(value.Raw, 64)
		return fv
	case language.StringValue, language.BlockValue:
		return value.Raw
	case language.BooleanValue:
		return value.Raw == "true"
	case language.NullValue:
		return nil
	case language.EnumValue:
		return value.Raw
	case language.ListValue:
		out := make([]any, len(value.Children))
		for i, c := range value.Children {
			out[i] = astValueToGo(c.Value, vars)
		}
		return out
	case language.ObjectValue:
		m := make(map[string]any)
		for _, f := range value.Children {
			m[f.Name] = astValueToGo(f.Value, vars)
		}
		return m
	default:
		return nil
	}
}

// argumentValues computes the coerced argument map for one field at
// execution time. Validation already happened, so failures here simply
// leave the argument out.
func argumentValues(s *schema.Schema, fieldDef *schema.Field, field *language.Field, vars map[string]any) map[string]any {
	args := make(map[string]any)
	for _, argDef := range fieldDef.Arguments {
		provided := field.Arguments.ForName(argDef.Name)
		if provided == nil {
			if argDef.HasDefault {
				if cv, err := coerceInput(s, argDef.Type, argDef.DefaultValue, true); err == nil {
					args[argDef.Name] = cv
				}
			}
			continue
		}
		if provided.Value.Kind == language.Variable {
			v, ok := vars[provided.Value.Raw]
			if !ok {
				if argDef.HasDefault {
					if cv, err := coerceInput(s, argDef.Type, argDef.DefaultValue, true); err == nil {
						args[argDef.Name] = cv
					}
				}
				continue
			}
			if cv, err := coerceInput(s, argDef.Type, v, false); err == nil {
				args[argDef.Name] = cv
			}
			continue
		}
		val := astValueToGo(provided.Value, vars)
		if cv, err := coerceInput(s, argDef.Type, val, true); err == nil {
			args[argDef.Name] = cv
		}
	}
	return args
}
