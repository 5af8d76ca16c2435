// Package sqlstore is a Data Store Gateway over database/sql. Postgres is
// reached through the pgx stdlib driver and SQLite through go-sqlite3.
package sqlstore

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/hanpama/memberql/internal/model"
	"github.com/hanpama/memberql/internal/store"
)

// Store implements store.Gateway.
type Store struct {
	db      *sql.DB
	dialect Dialect

	users         *collection[model.User]
	posts         *collection[model.Post]
	profiles      *collection[model.Profile]
	memberTypes   *collection[model.MemberType]
	subscriptions *collection[model.Subscription]
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s database failed", dialect.Name)
	}
	if dialect.Name == SQLite.Name {
		// One connection keeps in-memory databases shared and serializes
		// writers the way SQLite expects.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "connecting to %s database failed", dialect.Name)
	}
	return New(db, dialect), nil
}

// New wraps an existing handle.
func New(db *sql.DB, dialect Dialect) *Store {
	s := &Store{db: db, dialect: dialect}
	s.users = &collection[model.User]{s: s, def: store.UserTable}
	s.posts = &collection[model.Post]{s: s, def: store.PostTable}
	s.profiles = &collection[model.Profile]{s: s, def: store.ProfileTable}
	s.memberTypes = &collection[model.MemberType]{s: s, def: store.MemberTypeTable}
	s.subscriptions = &collection[model.Subscription]{s: s, def: store.SubscriptionTable}
	return s
}

func (s *Store) Users() store.Collection[model.User]                 { return s.users }
func (s *Store) Posts() store.Collection[model.Post]                 { return s.posts }
func (s *Store) Profiles() store.Collection[model.Profile]           { return s.profiles }
func (s *Store) MemberTypes() store.Collection[model.MemberType]     { return s.memberTypes }
func (s *Store) Subscriptions() store.Collection[model.Subscription] { return s.subscriptions }

func (s *Store) Ping(ctx context.Context) error {
	return errors.Wrap(s.db.PingContext(ctx), "pinging database failed")
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// wrap converts driver constraint errors to store.ErrConstraint and
// annotates everything else.
func (s *Store) wrap(err error, table, op string) error {
	if err == nil {
		return nil
	}
	if s.dialect.isConstraint(err) {
		return &store.ConstraintError{Table: table, Detail: op, Err: err}
	}
	return errors.Wrapf(err, "%s %s failed", op, table)
}

type collection[T any] struct {
	s   *Store
	def *store.Table[T]
}

// builder accumulates SQL text and positional arguments.
type builder struct {
	d    Dialect
	sb   strings.Builder
	args []any
}

func (b *builder) write(parts ...string) {
	for _, p := range parts {
		b.sb.WriteString(p)
	}
}

func (b *builder) arg(v any) {
	b.args = append(b.args, v)
	b.sb.WriteString(b.d.placeholder(len(b.args)))
}

func (b *builder) String() string { return b.sb.String() }

func (c *collection[T]) columns() string {
	names := make([]string, len(c.def.Meta.Columns))
	for i, col := range c.def.Meta.Columns {
		names[i] = col.Name
	}
	return strings.Join(names, ", ")
}

func (c *collection[T]) where(b *builder, filter store.Filter) error {
	if err := filter.Validate(&c.def.Meta); err != nil {
		return err
	}
	for i, cond := range filter {
		if i == 0 {
			b.write(" WHERE ")
		} else {
			b.write(" AND ")
		}
		col, _ := c.def.Meta.Column(cond.Field)
		switch {
		case cond.Op == store.OpEq && len(cond.Values) == 1:
			b.write(col.Name, " = ")
			b.arg(cond.Values[0])
		case len(cond.Values) == 0:
			b.write("1 = 0")
		default:
			b.write(col.Name, " IN (")
			for j, v := range cond.Values {
				if j > 0 {
					b.write(", ")
				}
				b.arg(v)
			}
			b.write(")")
		}
	}
	return nil
}

func (c *collection[T]) query(ctx context.Context, op string, b *builder) ([]*T, error) {
	rows, err := c.s.db.QueryContext(ctx, b.String(), b.args...)
	if err != nil {
		return nil, c.s.wrap(err, c.def.Meta.Name, op)
	}
	defer rows.Close()
	var out []*T
	for rows.Next() {
		v := new(T)
		if err := rows.Scan(c.def.ScanTargets(v)...); err != nil {
			return nil, errors.Wrapf(err, "scanning %s row failed", c.def.Meta.Name)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, c.s.wrap(err, c.def.Meta.Name, op)
	}
	return out, nil
}

func (c *collection[T]) FindMany(ctx context.Context, filter store.Filter) ([]*T, error) {
	b := &builder{d: c.s.dialect}
	b.write("SELECT ", c.columns(), " FROM ", c.def.Meta.Name)
	if err := c.where(b, filter); err != nil {
		return nil, err
	}
	if len(c.def.Meta.Key) > 0 {
		b.write(" ORDER BY ", c.orderBy())
	}
	out, err := c.query(ctx, "findMany", b)
	if out == nil && err == nil {
		out = []*T{}
	}
	return out, err
}

func (c *collection[T]) FindUnique(ctx context.Context, filter store.Filter) (*T, error) {
	b := &builder{d: c.s.dialect}
	b.write("SELECT ", c.columns(), " FROM ", c.def.Meta.Name)
	if err := c.where(b, filter); err != nil {
		return nil, err
	}
	b.write(" LIMIT 1")
	out, err := c.query(ctx, "findUnique", b)
	if err != nil || len(out) == 0 {
		return nil, err
	}
	return out[0], nil
}

func (c *collection[T]) Create(ctx context.Context, v T) (*T, error) {
	b := &builder{d: c.s.dialect}
	b.write("INSERT INTO ", c.def.Meta.Name, " (", c.columns(), ") VALUES (")
	for i, val := range c.def.Values(&v) {
		if i > 0 {
			b.write(", ")
		}
		b.arg(val)
	}
	b.write(") RETURNING ", c.columns())
	out, err := c.query(ctx, "create", b)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.Errorf("create %s returned no row", c.def.Meta.Name)
	}
	return out[0], nil
}

// Update rewrites the rows matched by filter; the filter is expected to
// select a single row by key.
func (c *collection[T]) Update(ctx context.Context, filter store.Filter, patch store.Patch) (*T, error) {
	patch, err := c.def.CheckPatch(patch)
	if err != nil {
		return nil, err
	}
	if len(patch) == 0 {
		found, err := c.FindUnique(ctx, filter)
		if err == nil && found == nil {
			err = errors.WithStack(store.ErrNotFound)
		}
		return found, err
	}
	b := &builder{d: c.s.dialect}
	b.write("UPDATE ", c.def.Meta.Name, " SET ")
	i := 0
	// Column order keeps the generated statement stable.
	for _, col := range c.def.Meta.Columns {
		value, ok := patch[col.Field]
		if !ok {
			continue
		}
		if i > 0 {
			b.write(", ")
		}
		b.write(col.Name, " = ")
		b.arg(value)
		i++
	}
	if err := c.where(b, filter); err != nil {
		return nil, err
	}
	b.write(" RETURNING ", c.columns())
	out, err := c.query(ctx, "update", b)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.WithStack(store.ErrNotFound)
	}
	return out[0], nil
}

func (c *collection[T]) exec(ctx context.Context, op string, filter store.Filter) (int64, error) {
	b := &builder{d: c.s.dialect}
	b.write("DELETE FROM ", c.def.Meta.Name)
	if err := c.where(b, filter); err != nil {
		return 0, err
	}
	res, err := c.s.db.ExecContext(ctx, b.String(), b.args...)
	if err != nil {
		return 0, c.s.wrap(err, c.def.Meta.Name, op)
	}
	n, err := res.RowsAffected()
	return n, errors.Wrap(err, "reading affected rows failed")
}

func (c *collection[T]) Delete(ctx context.Context, filter store.Filter) error {
	n, err := c.exec(ctx, "delete", filter)
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.WithStack(store.ErrNotFound)
	}
	return nil
}

func (c *collection[T]) DeleteMany(ctx context.Context, filter store.Filter) (int64, error) {
	return c.exec(ctx, "deleteMany", filter)
}

func (c *collection[T]) orderBy() string {
	names := make([]string, 0, len(c.def.Meta.Key))
	for _, field := range c.def.Meta.Key {
		col, _ := c.def.Meta.Column(field)
		names = append(names, col.Name)
	}
	return strings.Join(names, ", ")
}
