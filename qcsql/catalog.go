package qcsql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hanpama/relgraph/qc"
)

// loadCatalog builds the navigable catalog from the SQLite schema. Foreign
// key columns become links instead of attributes: a to-one link on the
// referencing table named after the referenced table, and a to-many link
// back from the referenced table named after the referencing one.
func loadCatalog(ctx context.Context, db *sql.DB) (*qc.Catalog, error) {
	tables, err := tableNames(ctx, db)
	if err != nil {
		return nil, err
	}

	cat := &qc.Catalog{Entities: map[string]*qc.EntityDef{}}
	fkCols := map[string]map[string]bool{}

	for _, table := range tables {
		def := &qc.EntityDef{
			Name:       table,
			Attributes: map[string]qc.ScalarKind{},
			Links:      map[string]*qc.LinkDef{},
		}
		cat.Entities[table] = def
		fkCols[table] = map[string]bool{}

		fks, err := foreignKeys(ctx, db, table)
		if err != nil {
			return nil, err
		}
		for _, fk := range fks {
			fkCols[table][fk.from] = true
		}
	}

	for _, table := range tables {
		def := cat.Entities[table]

		cols, err := tableColumns(ctx, db, table)
		if err != nil {
			return nil, err
		}
		for _, col := range cols {
			kind := kindOf(col.declType)
			if col.pk {
				def.Key = col.name
				def.KeyKind = kind
				continue
			}
			if fkCols[table][col.name] {
				continue
			}
			def.Attributes[col.name] = kind
		}
		if def.Key == "" {
			def.Key = "rowid"
			def.KeyKind = qc.KindInt
		}
	}

	for _, table := range tables {
		fks, err := foreignKeys(ctx, db, table)
		if err != nil {
			return nil, err
		}
		for _, fk := range fks {
			target := cat.Entities[fk.table]
			if target == nil {
				continue
			}
			src := cat.Entities[table]
			src.Links[linkName(src.Links, fk.table, fk.from)] = &qc.LinkDef{
				Target: fk.table,
				Column: fk.from,
			}
			target.Links[linkName(target.Links, table, fk.from)] = &qc.LinkDef{
				Target: table,
				Many:   true,
				Column: fk.from,
			}
		}
	}
	return cat, nil
}

// linkName prefers the target entity name; a second link to the same
// target falls back to the foreign key column without its _id suffix.
func linkName(links map[string]*qc.LinkDef, target, column string) string {
	if _, taken := links[target]; !taken {
		return target
	}
	return strings.TrimSuffix(column, "_id")
}

func tableNames(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

type columnInfo struct {
	name     string
	declType string
	pk       bool
}

func tableColumns(ctx context.Context, db *sql.DB, table string) ([]columnInfo, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, fmt.Errorf("describing %s: %w", table, err)
	}
	defer rows.Close()

	var cols []columnInfo
	for rows.Next() {
		var (
			cid, notnull, pk int
			name, declType   string
			dflt             any
		)
		if err := rows.Scan(&cid, &name, &declType, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, columnInfo{name: name, declType: declType, pk: pk > 0})
	}
	return cols, rows.Err()
}

type foreignKey struct {
	table string // referenced table
	from  string // referencing column
	to    string // referenced column
}

func foreignKeys(ctx context.Context, db *sql.DB, table string) ([]foreignKey, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%q)", table))
	if err != nil {
		return nil, fmt.Errorf("foreign keys of %s: %w", table, err)
	}
	defer rows.Close()

	var fks []foreignKey
	for rows.Next() {
		var (
			id, seq                          int
			refTable, from                   string
			to, onUpdate, onDelete, matching any
		)
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &matching); err != nil {
			return nil, err
		}
		fk := foreignKey{table: refTable, from: from}
		if s, ok := to.(string); ok {
			fk.to = s
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

// kindOf maps a declared SQLite column type to a scalar kind by affinity.
func kindOf(declType string) qc.ScalarKind {
	t := strings.ToUpper(declType)
	switch {
	case strings.Contains(t, "DATETIME"), strings.Contains(t, "TIMESTAMP"):
		return qc.KindDatetime
	case strings.Contains(t, "DATE"):
		return qc.KindDate
	case strings.Contains(t, "DECIMAL"), strings.Contains(t, "NUMERIC"):
		return qc.KindDecimal
	case strings.Contains(t, "BOOL"):
		return qc.KindBool
	case strings.Contains(t, "INT"):
		return qc.KindInt
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"):
		return qc.KindFloat
	default:
		return qc.KindText
	}
}
