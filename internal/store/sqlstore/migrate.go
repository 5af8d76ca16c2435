package sqlstore

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/hanpama/memberql/internal/store"
)

// Schema returns the CREATE TABLE statements for every table, in
// dependency order.
func (d Dialect) Schema() []string {
	var stmts []string
	for _, meta := range store.Tables() {
		stmts = append(stmts, d.createTable(meta))
	}
	return stmts
}

func (d Dialect) createTable(meta *store.TableMeta) string {
	var defs []string
	for _, col := range meta.Columns {
		defs = append(defs, col.Name+" "+d.types[col.Type]+" NOT NULL")
	}
	if len(meta.Key) > 0 {
		defs = append(defs, "PRIMARY KEY ("+columnList(meta, meta.Key)+")")
	}
	for _, set := range meta.Unique {
		defs = append(defs, "UNIQUE ("+columnList(meta, set)+")")
	}
	for _, fk := range meta.ForeignKeys {
		def := "FOREIGN KEY (" + columnList(meta, []string{fk.Field}) + ") REFERENCES " + fk.Table
		if ref := tableMeta(fk.Table); ref != nil {
			def += " (" + columnList(ref, []string{fk.RefField}) + ")"
		}
		if fk.Cascade {
			def += " ON DELETE CASCADE"
		}
		defs = append(defs, def)
	}
	return "CREATE TABLE IF NOT EXISTS " + meta.Name + " (\n\t" + strings.Join(defs, ",\n\t") + "\n)"
}

func columnList(meta *store.TableMeta, fields []string) string {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		if col, ok := meta.Column(f); ok {
			names = append(names, col.Name)
		} else {
			names = append(names, f)
		}
	}
	return strings.Join(names, ", ")
}

func tableMeta(name string) *store.TableMeta {
	for _, m := range store.Tables() {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// Migrate creates missing tables. Existing tables are left untouched.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.Schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "migrating %s schema failed", s.dialect.Name)
		}
	}
	return nil
}
