// Package qc defines the relational query-combinator language that GraphQL
// fields are bound to: composable query descriptions built from navigation,
// filtering, sorting, selection and aggregation, plus the Engine boundary
// that evaluates them against a database.
//
// A *Query is an immutable description; nothing touches the database until an
// Engine produces it. Queries are built relative to a scope: the universe
// (the database as a whole) for root fields, or an entity row when a field is
// resolved against a parent value. Placeholders (Arg, Param) stand in for
// values that arrive per request and are bound by name when the query is
// produced.
package qc
