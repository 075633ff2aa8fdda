// Package qcsql evaluates combinator queries against SQLite. It
// introspects the database schema into a catalog and compiles each query
// into a single SQL statement, with follow-up anchored statements for
// nested row columns.
package qcsql

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hanpama/relgraph/internal/eventbus"
	"github.com/hanpama/relgraph/internal/events"
	"github.com/hanpama/relgraph/qc"
)

// Engine is a qc.Engine over a SQLite database.
type Engine struct {
	db *sql.DB

	catOnce sync.Once
	cat     *qc.Catalog
	catErr  error
}

// Open opens the SQLite database at path.
func Open(path string) (*Engine, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return New(db), nil
}

// New wraps an existing database handle.
func New(db *sql.DB) *Engine { return &Engine{db: db} }

// DB exposes the underlying handle, mainly for loading fixtures.
func (e *Engine) DB() *sql.DB { return e.db }

// Close releases the database handle.
func (e *Engine) Close() error { return e.db.Close() }

// Catalog introspects the schema once and caches the result.
func (e *Engine) Catalog(ctx context.Context) (*qc.Catalog, error) {
	e.catOnce.Do(func() {
		e.cat, e.catErr = loadCatalog(ctx, e.db)
	})
	return e.cat, e.catErr
}

// Produce evaluates q with the given placeholder bindings, scoped at
// anchor or at the universe.
func (e *Engine) Produce(ctx context.Context, q *qc.Query, params qc.Params, anchor *qc.Anchor) (*qc.Product, error) {
	cat, err := e.Catalog(ctx)
	if err != nil {
		return nil, err
	}

	label := q.String()
	eventbus.Publish(ctx, events.EngineProduceStart{Query: label, Anchor: anchorLabel(anchor)})
	start := time.Now()

	prod, sqlText, err := e.produceNode(ctx, cat, q.Node(), params, anchor)

	eventbus.Publish(ctx, events.EngineProduceFinish{
		Query:    label,
		Anchor:   anchorLabel(anchor),
		SQL:      sqlText,
		Rows:     productSize(prod),
		Err:      err,
		Duration: time.Since(start),
	})
	return prod, err
}

func (e *Engine) produceNode(ctx context.Context, cat *qc.Catalog, n *qc.Node, params qc.Params, anchor *qc.Anchor) (*qc.Product, string, error) {
	// Bare operands echo their value without touching the database.
	switch n.Kind {
	case qc.NodeLit:
		return &qc.Product{Kind: qc.ProductValue, Value: n.Value}, "", nil
	case qc.NodeArg, qc.NodeParam:
		v, ok := params[n.Name]
		if !ok {
			return nil, "", fmt.Errorf("unbound placeholder %q", n.Name)
		}
		return &qc.Product{Kind: qc.ProductValue, Value: v}, "", nil
	}

	c := &compiler{cat: cat, params: params, anchor: anchor}
	p, err := c.plan(n)
	if err != nil {
		return nil, "", err
	}

	switch p.mode {
	case planCount:
		return e.runCount(ctx, p)
	case planColumn:
		return e.runColumn(ctx, p)
	case planRecord:
		return e.runRecord(ctx, cat, p, params)
	default:
		return e.runRows(ctx, cat, p)
	}
}

func (e *Engine) runRows(ctx context.Context, cat *qc.Catalog, p *plan) (*qc.Product, string, error) {
	rows, sqlText, err := e.queryRows(ctx, cat, p.s)
	if err != nil {
		return nil, sqlText, err
	}
	if p.single {
		prod := &qc.Product{Kind: qc.ProductRow}
		if len(rows) > 0 {
			prod.Row = rows[0]
		}
		return prod, sqlText, nil
	}
	return &qc.Product{Kind: qc.ProductRows, Rows: rows}, sqlText, nil
}

// queryRows runs a stream as an entity row query, selecting the key and
// every attribute column.
func (e *Engine) queryRows(ctx context.Context, cat *qc.Catalog, s *stream) ([]*qc.Row, string, error) {
	ed := cat.Entity(s.entity)
	if ed == nil {
		return nil, "", fmt.Errorf("unknown entity %q", s.entity)
	}
	attrs := make([]string, 0, len(ed.Attributes))
	for name := range ed.Attributes {
		attrs = append(attrs, name)
	}
	sort.Strings(attrs)

	cols := make([]string, 0, len(attrs)+1)
	cols = append(cols, s.alias+"."+quoteIdent(ed.Key))
	for _, a := range attrs {
		cols = append(cols, s.alias+"."+quoteIdent(a))
	}

	sqlText, args := renderSQL(joinList(cols), nil, s, nil)
	raw, err := e.scanAll(ctx, sqlText, args, len(cols))
	if err != nil {
		return nil, sqlText, err
	}

	out := make([]*qc.Row, 0, len(raw))
	for _, vals := range raw {
		row := &qc.Row{
			Entity: ed.Name,
			Key:    convertValue(vals[0], ed.KeyKind),
			Values: make(map[string]any, len(attrs)),
		}
		for i, a := range attrs {
			row.Values[a] = convertValue(vals[i+1], ed.Attributes[a])
		}
		out = append(out, row)
	}
	return out, sqlText, nil
}

func (e *Engine) runColumn(ctx context.Context, p *plan) (*qc.Product, string, error) {
	sqlText, args := renderSQL(p.col.expr.sql, p.col.expr.args, p.s, nil)
	raw, err := e.scanAll(ctx, sqlText, args, 1)
	if err != nil {
		return nil, sqlText, err
	}
	if p.single {
		prod := &qc.Product{Kind: qc.ProductValue}
		if len(raw) > 0 {
			prod.Value = convertValue(raw[0][0], p.col.kind)
		}
		return prod, sqlText, nil
	}
	values := make([]any, len(raw))
	for i, vals := range raw {
		values[i] = convertValue(vals[0], p.col.kind)
	}
	return &qc.Product{Kind: qc.ProductValue, Value: values}, sqlText, nil
}

func (e *Engine) runCount(ctx context.Context, p *plan) (*qc.Product, string, error) {
	sqlText, args := renderSQL("count(*)", nil, p.s, nil)
	var n int64
	if err := e.db.QueryRowContext(ctx, sqlText, args...).Scan(&n); err != nil {
		return nil, sqlText, err
	}
	return &qc.Product{Kind: qc.ProductValue, Value: n}, sqlText, nil
}

func (e *Engine) runRecord(ctx context.Context, cat *qc.Catalog, p *plan, params qc.Params) (*qc.Product, string, error) {
	// Anchored follow-ups for nested row columns need the base row key.
	needKey := false
	for _, f := range p.fields {
		if f.sub != nil {
			needKey = true
		}
	}

	var (
		cols       []string
		selectArgs []any
		ed         = cat.Entity(p.s.entity)
	)
	if needKey {
		if ed == nil {
			return nil, "", fmt.Errorf("unknown entity %q", p.s.entity)
		}
		cols = append(cols, p.s.alias+"."+quoteIdent(ed.Key))
	}
	scalarAt := map[int]int{} // field index -> result column index
	for i, f := range p.fields {
		if f.col == nil {
			continue
		}
		scalarAt[i] = len(cols)
		cols = append(cols, f.col.expr.sql)
		selectArgs = append(selectArgs, f.col.expr.args...)
	}
	if len(cols) == 0 {
		cols = append(cols, "1")
	}

	sqlText, args := renderSQL(joinList(cols), selectArgs, p.s, p.groupBy)
	raw, err := e.scanAll(ctx, sqlText, args, len(cols))
	if err != nil {
		return nil, sqlText, err
	}

	out := make([]*qc.Row, 0, len(raw))
	for _, vals := range raw {
		rec := &qc.Row{Values: make(map[string]any, len(p.fields))}
		for i, f := range p.fields {
			switch {
			case f.col != nil:
				rec.Values[f.name] = convertValue(vals[scalarAt[i]], f.col.kind)

			case f.partition:
				rows, err := e.partitionRows(ctx, cat, p, vals)
				if err != nil {
					return nil, sqlText, err
				}
				rec.Values[f.name] = rowList(rows)

			default:
				anchor := &qc.Anchor{Entity: ed.Name, Key: convertValue(vals[0], ed.KeyKind)}
				prod, _, err := e.produceNode(ctx, cat, f.sub, params, anchor)
				if err != nil {
					return nil, sqlText, err
				}
				rec.Values[f.name] = productAny(prod)
			}
		}
		out = append(out, rec)
	}

	if p.single {
		prod := &qc.Product{Kind: qc.ProductRow}
		if len(out) > 0 {
			prod.Row = out[0]
		}
		return prod, sqlText, nil
	}
	return &qc.Product{Kind: qc.ProductRows, Rows: out}, sqlText, nil
}

// partitionRows re-runs the grouped stream constrained to one group, so
// that the partition stays navigable as plain entity rows.
func (e *Engine) partitionRows(ctx context.Context, cat *qc.Catalog, p *plan, groupVals []any) ([]*qc.Row, error) {
	s := *p.s
	s.where = append([]frag{}, p.s.where...)
	for i, g := range p.groupBy {
		// IS compares null group keys too
		s.where = append(s.where, frag{sql: g.sql + " IS ?", args: []any{groupVals[i]}})
	}
	rows, _, err := e.queryRows(ctx, cat, &s)
	return rows, err
}

func (e *Engine) scanAll(ctx context.Context, sqlText string, args []any, width int) ([][]any, error) {
	rows, err := e.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", sqlText, err)
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		vals := make([]any, width)
		dest := make([]any, width)
		for i := range vals {
			dest[i] = &vals[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		out = append(out, vals)
	}
	return out, rows.Err()
}

func productAny(p *qc.Product) any {
	switch p.Kind {
	case qc.ProductRows:
		return rowList(p.Rows)
	case qc.ProductRow:
		if p.Row == nil {
			return nil
		}
		return p.Row
	default:
		return p.Value
	}
}

func rowList(rows []*qc.Row) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out
}

func productSize(p *qc.Product) int {
	if p == nil {
		return 0
	}
	switch p.Kind {
	case qc.ProductRows:
		return len(p.Rows)
	case qc.ProductRow:
		if p.Row != nil {
			return 1
		}
		return 0
	default:
		return 1
	}
}

func anchorLabel(anchor *qc.Anchor) string {
	if anchor == nil {
		return ""
	}
	return fmt.Sprintf("%s:%v", anchor.Entity, anchor.Key)
}

func joinList(cols []string) string { return strings.Join(cols, ", ") }
