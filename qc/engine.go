package qc

import "context"

// Params carries per-request values for Arg and Param placeholders, keyed
// by placeholder name. All placeholders reachable from a query must be
// bound before the engine produces it.
type Params map[string]any

// Anchor pins a query's scope to one entity row, identified by its key.
// A nil anchor scopes the query at the universe.
type Anchor struct {
	Entity string
	Key    any
}

// ProductKind tells how to interpret a Product.
type ProductKind int

const (
	// ProductRows is an ordered sequence of rows.
	ProductRows ProductKind = iota
	// ProductRow is a single row or absent (nil Row).
	ProductRow
	// ProductValue is a scalar, an aggregate, or a list of scalars.
	ProductValue
)

// Row is one produced entity or record row. Entity rows carry the entity
// name and key so that child fields can anchor follow-up queries; record
// rows carry values only.
type Row struct {
	Entity string
	Key    any
	Values map[string]any
}

// Product is the result of producing a query.
type Product struct {
	Kind  ProductKind
	Rows  []*Row
	Row   *Row
	Value any
}

// Engine evaluates combinator queries against a database. It owns the
// connection and transaction lifecycle; the GraphQL layer never sees SQL or
// connections, only catalogs and products.
//
// Implementations must be safe for concurrent use: one immutable schema is
// shared across requests and each request produces queries independently.
type Engine interface {
	// Catalog reports the navigable entities. Called at schema-build time.
	Catalog(ctx context.Context) (*Catalog, error)

	// Produce evaluates q with the given placeholder bindings, scoped at
	// anchor (or the universe when anchor is nil).
	Produce(ctx context.Context, q *Query, params Params, anchor *Anchor) (*Product, error)
}
