package executor

import (
	language "github.com/hanpama/relgraph/internal/language"
	"github.com/hanpama/relgraph/schema"
)

// collectedFieldMap preserves field order from the original query
type collectedFieldMap struct {
	fields []collectedField
	index  map[string]int
}

type collectedField struct {
	ResponseName string
	Fields       []*language.Field
}

func newCollectedFieldMap() *collectedFieldMap {
	return &collectedFieldMap{index: make(map[string]int)}
}

func (cfm *collectedFieldMap) add(responseName string, field *language.Field) {
	if idx, exists := cfm.index[responseName]; exists {
		cfm.fields[idx].Fields = append(cfm.fields[idx].Fields, field)
	} else {
		cfm.index[responseName] = len(cfm.fields)
		cfm.fields = append(cfm.fields, collectedField{
			ResponseName: responseName,
			Fields:       []*language.Field{field},
		})
	}
}

func (cfm *collectedFieldMap) orderedFields() []collectedField {
	return cfm.fields
}

func collectFields(state *executionState, objectType *schema.Type, selectionSet language.SelectionSet) *collectedFieldMap {
	groupedFields := newCollectedFieldMap()
	visitedFragments := make(map[string]bool)
	collectFieldsImpl(state, objectType, selectionSet, groupedFields, visitedFragments)
	return groupedFields
}

func collectFieldsImpl(state *executionState, objectType *schema.Type, selectionSet language.SelectionSet, groupedFields *collectedFieldMap, visitedFragments map[string]bool) {
	for _, selection := range selectionSet {
		switch sel := selection.(type) {
		case *language.Field:
			if !shouldIncludeNode(state, sel.Directives) {
				continue
			}
			responseName := sel.Alias
			if responseName == "" {
				responseName = sel.Name
			}
			groupedFields.add(responseName, sel)

		case *language.InlineFragment:
			if !shouldIncludeNode(state, sel.Directives) {
				continue
			}
			if sel.TypeCondition != "" && sel.TypeCondition != objectType.Name {
				continue
			}
			collectFieldsImpl(state, objectType, sel.SelectionSet, groupedFields, visitedFragments)

		case *language.FragmentSpread:
			if !shouldIncludeNode(state, sel.Directives) {
				continue
			}
			if visitedFragments[sel.Name] {
				continue
			}
			visitedFragments[sel.Name] = true
			fragmentDef := state.document.Fragments.ForName(sel.Name)
			if fragmentDef == nil {
				continue
			}
			if fragmentDef.TypeCondition != "" && fragmentDef.TypeCondition != objectType.Name {
				continue
			}
			if !shouldIncludeNode(state, fragmentDef.Directives) {
				continue
			}
			collectFieldsImpl(state, objectType, fragmentDef.SelectionSet, groupedFields, visitedFragments)
		}
	}
}

// directiveRule is one entry in the inclusion rule table. The table is
// evaluated in order; @skip wins over @include.
type directiveRule struct {
	name    string
	exclude func(ifValue bool) bool
}

var directiveRules = []directiveRule{
	{name: "skip", exclude: func(ifValue bool) bool { return ifValue }},
	{name: "include", exclude: func(ifValue bool) bool { return !ifValue }},
}

func shouldIncludeNode(state *executionState, directives language.DirectiveList) bool {
	for _, rule := range directiveRules {
		d := directives.ForName(rule.name)
		if d == nil {
			continue
		}
		arg := d.Arguments.ForName("if")
		if arg == nil {
			continue
		}
		ifValue, ok := astValueToGo(arg.Value, state.variables).(bool)
		if ok && rule.exclude(ifValue) {
			return false
		}
	}
	return true
}

func getFieldDefinition(objectType *schema.Type, fieldName string) *schema.Field {
	return objectType.GetField(fieldName)
}
