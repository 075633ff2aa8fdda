package executor

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/hanpama/relgraph/internal/introspection"
	language "github.com/hanpama/relgraph/internal/language"
	"github.com/hanpama/relgraph/schema"
)

// Option configures one execution.
type Option func(*options)

type options struct {
	variables     map[string]any
	operationName string
}

// WithVariables supplies the operation's variable values.
func WithVariables(vars map[string]any) Option {
	return func(o *options) { o.variables = vars }
}

// WithOperationName selects the operation to run from a multi-operation
// document.
func WithOperationName(name string) Option {
	return func(o *options) { o.operationName = name }
}

// executionState holds the state during one execution
type executionState struct {
	ctx       context.Context
	schema    *schema.Schema
	document  *language.QueryDocument
	variables map[string]any
	request   *schema.Request
	errors    []GraphQLError
	// response paths that already produced a resolver error, so non-null
	// propagation does not report the same occurrence twice
	errored map[string]struct{}
}

// Execute runs one GraphQL request against the schema.
//
// A request that fails to parse or validate comes back with Invalid set
// and no data. Errors raised by individual fields produce partial data:
// the failing field becomes null (propagating through non-null wrappers)
// and execution continues elsewhere.
func Execute(ctx context.Context, s *schema.Schema, source string, opts ...Option) *Result {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	document, err := language.ParseQuery(source)
	if err != nil {
		return &Result{Invalid: true, Errors: []GraphQLError{{Message: err.Error(), Cause: err}}}
	}
	operation := getOperation(document, o.operationName)
	if operation == nil {
		return &Result{Invalid: true, Errors: []GraphQLError{{Message: "operation not found"}}}
	}

	var rootType *schema.Type
	switch operation.Operation {
	case language.Query:
		rootType = s.GetQueryType()
	case language.Mutation:
		rootType = s.GetMutationType()
	default:
		return &Result{Invalid: true, Errors: []GraphQLError{{Message: fmt.Sprintf("unsupported operation type: %s", operation.Operation)}}}
	}
	if rootType == nil {
		return &Result{Invalid: true, Errors: []GraphQLError{{Message: fmt.Sprintf("root type not found for %s operation", operation.Operation)}}}
	}

	if err := checkUnexpectedVariables(operation, o.variables); err != nil {
		return &Result{Invalid: true, Errors: []GraphQLError{{Message: err.Error()}}}
	}
	variables, varErrs := coerceVariableValues(s, operation, o.variables)
	if len(varErrs) > 0 {
		return &Result{Invalid: true, Errors: varErrs}
	}
	if errs := validateOperation(s, document, operation, variables, rootType); len(errs) > 0 {
		return &Result{Invalid: true, Errors: errs}
	}

	state := &executionState{
		ctx:       ctx,
		schema:    s,
		document:  document,
		variables: variables,
		request:   s.NewRequest(),
		errored:   map[string]struct{}{},
	}
	data := executeSelectionSet(state, rootType, operation.SelectionSet, nil, Path{})
	return &Result{Data: data, Errors: state.errors}
}

// executeSelectionSet resolves one object level. A nil return means a
// non-null child was null and the whole object must collapse.
func executeSelectionSet(state *executionState, objectType *schema.Type, selectionSet language.SelectionSet, objectValue any, path Path) *Map {
	groupedFields := collectFields(state, objectType, selectionSet)
	result := NewMap()
	collapsed := false

	for _, collected := range groupedFields.orderedFields() {
		field := collected.Fields[0]
		fieldPath := appendPath(path, collected.ResponseName)

		if field.Name == "__typename" {
			result.Set(collected.ResponseName, objectType.Name)
			continue
		}
		fieldDef := state.fieldDef(objectType, field.Name)
		if fieldDef == nil {
			continue // validation already rejected the request
		}

		label := objectType.Name + "." + field.Name
		args := argumentValues(state.schema, fieldDef, field, state.variables)
		value, resolveErr := resolveField(state, objectType, fieldDef, field, objectValue, args)
		if resolveErr != nil {
			state.errors = append(state.errors, GraphQLError{
				Message: fmt.Sprintf("Error while executing %s", label),
				Path:    fieldPath,
				Cause:   resolveErr,
			})
			state.errored[pathKey(fieldPath)] = struct{}{}
		}

		completed := completeValue(state, fieldDef.Type, collected.Fields, value, label, fieldPath)
		if fieldDef.Type.IsNonNull() && isNullish(completed) {
			// the object collapses, but siblings still execute and report
			collapsed = true
			continue
		}
		if isNullish(completed) {
			result.Set(collected.ResponseName, nil)
		} else {
			result.Set(collected.ResponseName, completed)
		}
	}
	if collapsed {
		return nil
	}
	return result
}

func (state *executionState) fieldDef(objectType *schema.Type, name string) *schema.Field {
	if objectType.Name == state.schema.QueryType {
		if meta := introspection.RootField(name); meta != nil {
			return meta
		}
	}
	if strings.HasPrefix(objectType.Name, "__") {
		return introspection.TypeDef(objectType.Name).GetField(name)
	}
	return getFieldDefinition(objectType, name)
}

func (state *executionState) typeByName(name string) *schema.Type {
	if strings.HasPrefix(name, "__") {
		return introspection.TypeDef(name)
	}
	return state.schema.Types[name]
}

func resolveField(state *executionState, objectType *schema.Type, fieldDef *schema.Field, field *language.Field, objectValue any, args map[string]any) (any, error) {
	switch {
	case objectType.Name == state.schema.QueryType && field.Name == "__schema":
		return introspection.SchemaValue(state.schema), nil
	case objectType.Name == state.schema.QueryType && field.Name == "__type":
		name, _ := args["name"].(string)
		return introspection.TypeValue(state.schema, name), nil
	case strings.HasPrefix(objectType.Name, "__"):
		return introspection.ResolveField(state.schema, objectType.Name, field.Name, objectValue, args)
	}
	return state.schema.ResolveField(state.ctx, &schema.ResolveInfo{
		Schema:   state.schema,
		Request:  state.request,
		TypeName: objectType.Name,
		Field:    fieldDef,
		Parent:   objectValue,
		Args:     args,
	})
}

func completeValue(state *executionState, fieldType *schema.TypeRef, fields []*language.Field, result any, label string, path Path) any {
	if fieldType.IsNonNull() {
		if isNullish(result) {
			if _, errored := state.errored[pathKey(path)]; !errored {
				state.errors = append(state.errors, GraphQLError{
					Message: fmt.Sprintf("Cannot return null for non-nullable field %s", label),
					Path:    path,
				})
				state.errored[pathKey(path)] = struct{}{}
			}
			return nil
		}
		return completeValue(state, fieldType.Unwrap(), fields, result, label, path)
	}

	if isNullish(result) {
		return nil
	}

	if fieldType.IsList() {
		return completeListValue(state, fieldType, fields, result, label, path)
	}

	namedType := fieldType.GetNamedType()
	typeObj := state.typeByName(namedType)
	if typeObj == nil {
		state.addError(fmt.Sprintf("Unknown type: %s", namedType), path)
		return nil
	}

	switch typeObj.Kind {
	case schema.TypeKindScalar:
		return state.schema.SerializeScalar(namedType, result)
	case schema.TypeKindEnum:
		return result
	case schema.TypeKindObject:
		sub := mergeSelectionSets(fields)
		return executeSelectionSet(state, typeObj, sub, result, path)
	default:
		state.addError(fmt.Sprintf("Cannot complete value of unexpected type: %s", typeObj.Kind), path)
		return nil
	}
}

func completeListValue(state *executionState, listType *schema.TypeRef, fields []*language.Field, result any, label string, path Path) any {
	var items []any
	if direct, ok := result.([]any); ok {
		items = direct
	} else if rv := reflect.ValueOf(result); rv.Kind() == reflect.Slice {
		items = make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			items[i] = rv.Index(i).Interface()
		}
	} else {
		// A lone value serves as a single-element list.
		items = []any{result}
	}

	inner := listType.Unwrap()
	completed := make([]any, len(items))
	collapsed := false
	for i, item := range items {
		p := appendPath(path, i)
		v := completeValue(state, inner, fields, item, label, p)
		if inner.IsNonNull() && isNullish(v) {
			// keep completing so every violating item reports its path
			collapsed = true
			continue
		}
		completed[i] = v
	}
	if collapsed {
		return nil
	}
	return completed
}

func getOperation(document *language.QueryDocument, operationName string) *language.OperationDefinition {
	if operationName == "" && len(document.Operations) == 1 {
		for _, op := range document.Operations {
			return op
		}
	}
	for _, op := range document.Operations {
		if op.Name == operationName {
			return op
		}
	}
	return nil
}

func mergeSelectionSets(fields []*language.Field) language.SelectionSet {
	var merged language.SelectionSet
	for _, f := range fields {
		merged = append(merged, f.SelectionSet...)
	}
	return merged
}

func (state *executionState) addError(message string, path Path) {
	state.errors = append(state.errors, GraphQLError{Message: message, Path: path})
}

func pathKey(path Path) string {
	return fmt.Sprintf("%v", []PathElement(path))
}

func appendPath(path Path, elem PathElement) Path {
	newPath := make(Path, len(path)+1)
	copy(newPath, path)
	newPath[len(path)] = elem
	return newPath
}

// isNullish returns true for nil interfaces and typed nils
func isNullish(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Interface, reflect.Ptr, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
