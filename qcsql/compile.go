package qcsql

import (
	"fmt"
	"strings"

	"github.com/hanpama/relgraph/qc"
)

// frag is a SQL fragment with its positional bind values.
type frag struct {
	sql  string
	args []any
}

// stream is a compiled entity row source: a FROM clause with joins,
// conditions and ordering, positioned at one entity alias.
type stream struct {
	entity string
	alias  string
	from   string
	joins  []frag
	where  []frag
	order  []frag
	limit  *frag
	offset *frag
	many   bool
}

type planMode int

const (
	planRows planMode = iota
	planColumn
	planCount
	planRecord
)

// colPlan is a scalar select expression over a stream.
type colPlan struct {
	expr frag
	kind qc.ScalarKind
}

// recordField is one output column of a Select or GroupBy plan. Scalar
// columns come back in the main statement; entity-valued columns are
// materialized per row with a follow-up anchored production.
type recordField struct {
	name string
	col  *colPlan
	sub  *qc.Node
	// partition marks the grouped rows column of a GroupBy plan.
	partition bool
}

type plan struct {
	mode    planMode
	s       *stream
	col     *colPlan
	fields  []recordField
	groupBy []frag
	single  bool
}

type compiler struct {
	cat    *qc.Catalog
	params qc.Params
	anchor *qc.Anchor
	n      int
}

func (c *compiler) nextAlias() string {
	a := fmt.Sprintf("t%d", c.n)
	c.n++
	return a
}

func (c *compiler) plan(n *qc.Node) (*plan, error) {
	switch n.Kind {
	case qc.NodeNav:
		return c.nav(n)

	case qc.NodeFilter:
		p, err := c.plan(n.Base)
		if err != nil {
			return nil, err
		}
		if p.mode != planRows {
			return nil, fmt.Errorf("filter() needs a row query")
		}
		cond, err := c.boolExpr(n.Pred, p.s)
		if err != nil {
			return nil, err
		}
		p.s.where = append(p.s.where, cond)
		return p, nil

	case qc.NodeSort:
		p, err := c.plan(n.Base)
		if err != nil {
			return nil, err
		}
		if p.mode != planRows {
			return nil, fmt.Errorf("sort() needs a row query")
		}
		for _, key := range n.Keys {
			expr, _, err := c.attrExpr(p.s, key.Steps)
			if err != nil {
				return nil, err
			}
			if key.Desc {
				expr.sql += " DESC"
			}
			p.s.order = append(p.s.order, expr)
		}
		return p, nil

	case qc.NodeSlice:
		p, err := c.plan(n.Base)
		if err != nil {
			return nil, err
		}
		if p.mode != planRows && p.mode != planColumn {
			return nil, fmt.Errorf("paginate() needs a row query")
		}
		if n.Limit != nil {
			f, err := c.operand(n.Limit)
			if err != nil {
				return nil, err
			}
			p.s.limit = &f
		}
		if n.Offset != nil {
			f, err := c.operand(n.Offset)
			if err != nil {
				return nil, err
			}
			p.s.offset = &f
		}
		return p, nil

	case qc.NodeFirst:
		p, err := c.plan(n.Base)
		if err != nil {
			return nil, err
		}
		one := frag{sql: "?", args: []any{1}}
		p.s.limit = &one
		p.single = true
		return p, nil

	case qc.NodeCount:
		p, err := c.plan(n.Base)
		if err != nil {
			return nil, err
		}
		if p.mode != planRows && p.mode != planColumn {
			return nil, fmt.Errorf("count() needs a row query")
		}
		return &plan{mode: planCount, s: p.s}, nil

	case qc.NodeID:
		p, err := c.plan(n.Base)
		if err != nil {
			return nil, err
		}
		if p.mode != planRows {
			return nil, fmt.Errorf("id() needs an entity query")
		}
		e := c.cat.Entity(p.s.entity)
		if e == nil {
			return nil, fmt.Errorf("unknown entity %q", p.s.entity)
		}
		p.mode = planColumn
		p.col = &colPlan{
			expr: frag{sql: p.s.alias + "." + quoteIdent(e.Key)},
			kind: e.KeyKind,
		}
		return p, nil

	case qc.NodeSelect:
		return c.selectPlan(n)

	case qc.NodeGroup:
		return c.groupPlan(n)

	default:
		return nil, fmt.Errorf("cannot produce a %v expression on its own", n.Kind)
	}
}

// nav compiles a navigation chain into a row stream, or into a column
// plan when the final step names an attribute.
func (c *compiler) nav(n *qc.Node) (*plan, error) {
	var p *plan
	switch {
	case n.Base != nil:
		base, err := c.plan(n.Base)
		if err != nil {
			return nil, err
		}
		if base.mode != planRows {
			return nil, fmt.Errorf("cannot navigate from a %v plan", base.mode)
		}
		p = base
	case c.anchor != nil:
		s, err := c.anchorStream()
		if err != nil {
			return nil, err
		}
		p = &plan{mode: planRows, s: s}
	default:
		if len(n.Steps) == 0 {
			return nil, fmt.Errorf("nothing to produce at the universe")
		}
		e := c.cat.Entity(n.Steps[0])
		if e == nil {
			return nil, fmt.Errorf("unknown entity %q", n.Steps[0])
		}
		alias := c.nextAlias()
		p = &plan{mode: planRows, s: &stream{
			entity: e.Name,
			alias:  alias,
			from:   quoteIdent(e.Name) + " " + alias,
			many:   true,
		}}
		n = &qc.Node{Kind: qc.NodeNav, Steps: n.Steps[1:]}
	}

	for _, step := range n.Steps {
		if p.mode != planRows {
			return nil, fmt.Errorf("cannot navigate %q from a scalar", step)
		}
		if err := c.step(p, step); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (c *compiler) anchorStream() (*stream, error) {
	e := c.cat.Entity(c.anchor.Entity)
	if e == nil {
		return nil, fmt.Errorf("unknown entity %q", c.anchor.Entity)
	}
	alias := c.nextAlias()
	return &stream{
		entity: e.Name,
		alias:  alias,
		from:   quoteIdent(e.Name) + " " + alias,
		where: []frag{{
			sql:  alias + "." + quoteIdent(e.Key) + " = ?",
			args: []any{bindTyped(c.anchor.Key, e.KeyKind)},
		}},
	}, nil
}

func (c *compiler) step(p *plan, step string) error {
	s := p.s
	e := c.cat.Entity(s.entity)
	if e == nil {
		return fmt.Errorf("unknown entity %q", s.entity)
	}
	if step == e.Key {
		p.mode = planColumn
		p.col = &colPlan{expr: frag{sql: s.alias + "." + quoteIdent(e.Key)}, kind: e.KeyKind}
		return nil
	}
	if kind, ok := e.Attributes[step]; ok {
		p.mode = planColumn
		p.col = &colPlan{expr: frag{sql: s.alias + "." + quoteIdent(step)}, kind: kind}
		return nil
	}
	link, ok := e.Links[step]
	if !ok {
		return fmt.Errorf("unknown field %q for entity %q", step, s.entity)
	}
	c.join(s, e, link)
	return nil
}

// join extends the stream along a link, repositioning it at the target.
func (c *compiler) join(s *stream, e *qc.EntityDef, link *qc.LinkDef) {
	target := c.cat.Entity(link.Target)
	alias := c.nextAlias()
	var on string
	if link.Many {
		on = fmt.Sprintf("%s.%s = %s.%s",
			alias, quoteIdent(link.Column), s.alias, quoteIdent(e.Key))
		s.many = true
	} else {
		on = fmt.Sprintf("%s.%s = %s.%s",
			alias, quoteIdent(target.Key), s.alias, quoteIdent(link.Column))
	}
	s.joins = append(s.joins, frag{
		sql: fmt.Sprintf("JOIN %s %s ON %s", quoteIdent(target.Name), alias, on),
	})
	s.entity = link.Target
	s.alias = alias
}

// attrExpr resolves an attribute path from the stream's current row,
// joining through to-one links as needed.
func (c *compiler) attrExpr(s *stream, steps []string) (frag, qc.ScalarKind, error) {
	cur := *s
	// joins accumulated on the copy carry over; the alias position does not
	defer func() { s.joins = cur.joins }()
	for i, step := range steps {
		e := c.cat.Entity(cur.entity)
		if e == nil {
			return frag{}, 0, fmt.Errorf("unknown entity %q", cur.entity)
		}
		last := i == len(steps)-1
		if step == e.Key {
			if !last {
				return frag{}, 0, fmt.Errorf("cannot navigate %q from a scalar", steps[i+1])
			}
			return frag{sql: cur.alias + "." + quoteIdent(e.Key)}, e.KeyKind, nil
		}
		if kind, ok := e.Attributes[step]; ok {
			if !last {
				return frag{}, 0, fmt.Errorf("cannot navigate %q from a scalar", steps[i+1])
			}
			return frag{sql: cur.alias + "." + quoteIdent(step)}, kind, nil
		}
		link, ok := e.Links[step]
		if !ok {
			return frag{}, 0, fmt.Errorf("unknown field %q for entity %q", step, cur.entity)
		}
		c.join(&cur, e, link)
	}
	return frag{}, 0, fmt.Errorf("path %q does not end at an attribute", strings.Join(steps, "."))
}

func (c *compiler) boolExpr(n *qc.Node, s *stream) (frag, error) {
	if n.Kind != qc.NodeBinary {
		f, _, err := c.scalarExpr(n, s, qc.KindAny)
		return f, err
	}
	lhs, lhsKind, err := c.scalarExpr(n.LHS, s, qc.KindAny)
	if err != nil {
		return frag{}, err
	}
	switch n.Op {
	case "=":
		// the column kind of the LHS decides how the RHS value binds
		rhs, _, err := c.scalarExpr(n.RHS, s, lhsKind)
		if err != nil {
			return frag{}, err
		}
		return frag{
			sql:  lhs.sql + " = " + rhs.sql,
			args: append(lhs.args, rhs.args...),
		}, nil
	case "~":
		rhs, _, err := c.scalarExpr(n.RHS, s, lhsKind)
		if err != nil {
			return frag{}, err
		}
		return frag{
			sql:  "instr(" + lhs.sql + ", " + rhs.sql + ") > 0",
			args: append(lhs.args, rhs.args...),
		}, nil
	case "in":
		values, err := c.listOperand(n.RHS)
		if err != nil {
			return frag{}, err
		}
		if len(values) == 0 {
			return frag{sql: "1 = 0"}, nil
		}
		marks := strings.Repeat("?, ", len(values))
		f := frag{
			sql:  lhs.sql + " IN (" + marks[:len(marks)-2] + ")",
			args: append([]any{}, lhs.args...),
		}
		for _, v := range values {
			f.args = append(f.args, bindTyped(v, lhsKind))
		}
		return f, nil
	default:
		return frag{}, fmt.Errorf("unsupported operator %q", n.Op)
	}
}

// scalarExpr compiles an expression to a scalar SQL fragment relative to
// the stream's current row, reporting the kind of the value it yields.
// The hint kind shapes how literal and placeholder values bind when the
// expression itself carries no column kind.
func (c *compiler) scalarExpr(n *qc.Node, s *stream, hint qc.ScalarKind) (frag, qc.ScalarKind, error) {
	switch n.Kind {
	case qc.NodeNav:
		if n.Base != nil {
			return frag{}, 0, fmt.Errorf("nested row expressions are not supported in predicates")
		}
		return c.attrExpr(s, n.Steps)

	case qc.NodeID:
		base := n.Base
		if base == nil || base.Kind != qc.NodeNav || base.Base != nil {
			return frag{}, 0, fmt.Errorf("id() in a predicate must follow a navigation")
		}
		cur := *s
		for _, step := range base.Steps {
			e := c.cat.Entity(cur.entity)
			if e == nil {
				return frag{}, 0, fmt.Errorf("unknown entity %q", cur.entity)
			}
			link, ok := e.Links[step]
			if !ok {
				return frag{}, 0, fmt.Errorf("unknown link %q for entity %q", step, cur.entity)
			}
			c.join(&cur, e, link)
		}
		s.joins = cur.joins
		e := c.cat.Entity(cur.entity)
		return frag{sql: cur.alias + "." + quoteIdent(e.Key)}, e.KeyKind, nil

	case qc.NodeCount:
		f, err := c.countSubquery(n.Base, s)
		return f, qc.KindInt, err

	case qc.NodeLit:
		return frag{sql: "?", args: []any{bindTyped(n.Value, hint)}}, hint, nil

	case qc.NodeArg, qc.NodeParam:
		v, err := c.placeholderValue(n)
		if err != nil {
			return frag{}, 0, err
		}
		return frag{sql: "?", args: []any{bindTyped(v, hint)}}, hint, nil

	default:
		return frag{}, 0, fmt.Errorf("unsupported expression node")
	}
}

// countSubquery builds a correlated count over a navigation from the
// current row.
func (c *compiler) countSubquery(n *qc.Node, s *stream) (frag, error) {
	if n == nil || n.Kind != qc.NodeNav || n.Base != nil || len(n.Steps) == 0 {
		return frag{}, fmt.Errorf("count() in an expression must follow a navigation")
	}
	e := c.cat.Entity(s.entity)
	if e == nil {
		return frag{}, fmt.Errorf("unknown entity %q", s.entity)
	}
	link, ok := e.Links[n.Steps[0]]
	if !ok {
		return frag{}, fmt.Errorf("unknown link %q for entity %q", n.Steps[0], s.entity)
	}
	target := c.cat.Entity(link.Target)
	alias := c.nextAlias()
	sub := &stream{
		entity: link.Target,
		alias:  alias,
		from:   quoteIdent(target.Name) + " " + alias,
	}
	if link.Many {
		sub.where = append(sub.where, frag{
			sql: fmt.Sprintf("%s.%s = %s.%s", alias, quoteIdent(link.Column), s.alias, quoteIdent(e.Key)),
		})
	} else {
		sub.where = append(sub.where, frag{
			sql: fmt.Sprintf("%s.%s = %s.%s", alias, quoteIdent(target.Key), s.alias, quoteIdent(link.Column)),
		})
	}
	for _, step := range n.Steps[1:] {
		se := c.cat.Entity(sub.entity)
		l, ok := se.Links[step]
		if !ok {
			return frag{}, fmt.Errorf("unknown link %q for entity %q", step, sub.entity)
		}
		c.join(sub, se, l)
	}
	sql, args := renderSQL("count(*)", nil, sub, nil)
	return frag{sql: "(" + sql + ")", args: args}, nil
}

func (c *compiler) selectPlan(n *qc.Node) (*plan, error) {
	base, err := c.plan(n.Base)
	if err != nil {
		return nil, err
	}
	if base.mode != planRows {
		return nil, fmt.Errorf("select() needs a row query")
	}
	p := &plan{mode: planRecord, s: base.s, single: base.single}
	for _, f := range n.Fields {
		rf, err := c.recordField(f, base.s)
		if err != nil {
			return nil, err
		}
		p.fields = append(p.fields, rf)
	}
	return p, nil
}

func (c *compiler) groupPlan(n *qc.Node) (*plan, error) {
	base, err := c.plan(n.Base)
	if err != nil {
		return nil, err
	}
	if base.mode != planRows {
		return nil, fmt.Errorf("group() needs a row query")
	}
	p := &plan{mode: planRecord, s: base.s}
	for _, f := range n.Fields {
		rf, err := c.recordField(f, base.s)
		if err != nil {
			return nil, err
		}
		if rf.col == nil {
			return nil, fmt.Errorf("group key %q must be a scalar expression", f.Name)
		}
		p.fields = append(p.fields, rf)
		p.groupBy = append(p.groupBy, rf.col.expr)
	}
	// the grouped partition stays navigable under the entity name
	p.fields = append(p.fields, recordField{name: base.s.entity, partition: true})
	return p, nil
}

// recordField classifies one projected column: entity-valued navigations
// become follow-up productions, everything else a scalar expression.
func (c *compiler) recordField(f qc.NodeField, s *stream) (recordField, error) {
	if c.isRowExpr(f.Expr, s.entity) {
		return recordField{name: f.Name, sub: f.Expr}, nil
	}
	expr, kind, err := c.scalarExpr(f.Expr, s, qc.KindAny)
	if err != nil {
		return recordField{}, err
	}
	return recordField{name: f.Name, col: &colPlan{expr: expr, kind: kind}}, nil
}

// isRowExpr reports whether the expression produces entity rows when
// evaluated at a row of the given entity.
func (c *compiler) isRowExpr(n *qc.Node, entity string) bool {
	if n.Kind != qc.NodeNav || n.Base != nil {
		return false
	}
	cur := entity
	for _, step := range n.Steps {
		e := c.cat.Entity(cur)
		if e == nil {
			return false
		}
		link, ok := e.Links[step]
		if !ok {
			return false
		}
		cur = link.Target
	}
	return true
}

func (c *compiler) operand(n *qc.Node) (frag, error) {
	switch n.Kind {
	case qc.NodeLit:
		return frag{sql: "?", args: []any{bindValue(n.Value)}}, nil
	case qc.NodeArg, qc.NodeParam:
		v, err := c.placeholderValue(n)
		if err != nil {
			return frag{}, err
		}
		return frag{sql: "?", args: []any{bindValue(v)}}, nil
	default:
		return frag{}, fmt.Errorf("operand must be a literal or a placeholder")
	}
}

func (c *compiler) listOperand(n *qc.Node) ([]any, error) {
	var v any
	switch n.Kind {
	case qc.NodeLit:
		v = n.Value
	case qc.NodeArg, qc.NodeParam:
		var err error
		v, err = c.placeholderValue(n)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("in() operand must be a literal or a placeholder")
	}
	if v == nil {
		return nil, nil
	}
	if list, ok := v.([]any); ok {
		return list, nil
	}
	return []any{v}, nil
}

func (c *compiler) placeholderValue(n *qc.Node) (any, error) {
	v, ok := c.params[n.Name]
	if !ok {
		return nil, fmt.Errorf("unbound placeholder %q", n.Name)
	}
	return v, nil
}

// renderSQL assembles a statement from a select list and a stream, with
// bind values ordered to match their position in the text.
func renderSQL(selectList string, selectArgs []any, s *stream, groupBy []frag) (string, []any) {
	var b strings.Builder
	args := append([]any{}, selectArgs...)

	b.WriteString("SELECT ")
	b.WriteString(selectList)
	b.WriteString(" FROM ")
	b.WriteString(s.from)
	for _, j := range s.joins {
		b.WriteString(" ")
		b.WriteString(j.sql)
		args = append(args, j.args...)
	}
	if len(s.where) > 0 {
		conds := make([]string, len(s.where))
		for i, w := range s.where {
			conds[i] = w.sql
			args = append(args, w.args...)
		}
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	if len(groupBy) > 0 {
		exprs := make([]string, len(groupBy))
		for i, g := range groupBy {
			exprs[i] = g.sql
			args = append(args, g.args...)
		}
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(exprs, ", "))
	}
	if len(s.order) > 0 {
		exprs := make([]string, len(s.order))
		for i, o := range s.order {
			exprs[i] = o.sql
			args = append(args, o.args...)
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(exprs, ", "))
	}
	if s.limit != nil {
		b.WriteString(" LIMIT ")
		b.WriteString(s.limit.sql)
		args = append(args, s.limit.args...)
	} else if s.offset != nil {
		b.WriteString(" LIMIT -1")
	}
	if s.offset != nil {
		b.WriteString(" OFFSET ")
		b.WriteString(s.offset.sql)
		args = append(args, s.offset.args...)
	}
	return b.String(), args
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
