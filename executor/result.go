package executor

// GraphQLError is one error produced while validating or executing an
// operation.
type GraphQLError struct {
	Message    string         `json:"message"`
	Path       Path           `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`

	// Cause keeps the underlying resolver error for logging. It is never
	// serialized; clients only see the generic message.
	Cause error `json:"-"`
}

func (e GraphQLError) Error() string {
	return e.Message
}

// Result is the outcome of executing a GraphQL request.
//
// Invalid reports that the request itself was rejected: it failed to
// parse, referenced unknown fields or arguments, or carried unusable
// variables. Errors raised while resolving individual fields leave
// Invalid false and produce a partial Data tree instead.
type Result struct {
	Data    *Map           `json:"data"`
	Errors  []GraphQLError `json:"errors,omitempty"`
	Invalid bool           `json:"-"`
}

type Path []PathElement

type PathElement any
