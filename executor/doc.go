// Package executor runs GraphQL operations against a compiled schema.
//
// Execution is depth-first and synchronous: every field resolves through
// its schema binding, which either reads the parent row, calls the
// engine, or invokes a compute function. Value completion follows the
// GraphQL specification for lists, leaves, objects and Non-Null
// propagation.
//
// The executor distinguishes two failure classes. Requests that cannot
// be accepted at all (parse errors, unknown fields or arguments,
// unusable variables) come back with Result.Invalid set and no data.
// Failures inside individual resolvers never invalidate the request:
// the field collapses to null, the error list gains a generic message
// that does not leak resolver internals, and the rest of the selection
// still resolves.
package executor
