package sqlstore

import (
	"database/sql"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/hanpama/memberql/internal/store"
)

// sqliteDriver is go-sqlite3 with foreign key enforcement switched on for
// every connection, whatever the DSN says.
const sqliteDriver = "sqlite3_fk"

func init() {
	sql.Register(sqliteDriver, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			_, err := conn.Exec("PRAGMA foreign_keys = ON", nil)
			return err
		},
	})
}

// Dialect captures the differences between the supported SQL engines.
type Dialect struct {
	Name   string
	Driver string

	placeholder  func(n int) string
	types        map[store.ColumnType]string
	isConstraint func(err error) bool
}

var Postgres = Dialect{
	Name:        "postgres",
	Driver:      "pgx",
	placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	types: map[store.ColumnType]string{
		store.Text:  "TEXT",
		store.Float: "DOUBLE PRECISION",
		store.Int:   "INTEGER",
		store.Bool:  "BOOLEAN",
	},
	isConstraint: func(err error) bool {
		var pgErr *pgconn.PgError
		// class 23: integrity constraint violation
		return errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23")
	},
}

var SQLite = Dialect{
	Name:        "sqlite",
	Driver:      sqliteDriver,
	placeholder: func(int) string { return "?" },
	types: map[store.ColumnType]string{
		store.Text:  "TEXT",
		store.Float: "REAL",
		store.Int:   "INTEGER",
		store.Bool:  "BOOLEAN",
	},
	isConstraint: func(err error) bool {
		var sqliteErr sqlite3.Error
		return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
	},
}

// DialectFor returns the dialect registered under name.
func DialectFor(name string) (Dialect, error) {
	switch name {
	case Postgres.Name, "postgresql", "pgx":
		return Postgres, nil
	case SQLite.Name, "sqlite3":
		return SQLite, nil
	}
	return Dialect{}, errors.Errorf("unsupported sql dialect %q", name)
}
