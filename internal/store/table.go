package store

import (
	"math"

	"github.com/pkg/errors"

	"github.com/hanpama/memberql/internal/model"
)

// ColumnType is the storage class of a column.
type ColumnType int

const (
	Text ColumnType = iota
	Float
	Int
	Bool
)

func (t ColumnType) String() string {
	switch t {
	case Text:
		return "text"
	case Float:
		return "float"
	case Int:
		return "int"
	case Bool:
		return "bool"
	}
	return "unknown"
}

// ColumnMeta maps a logical field name to its column.
type ColumnMeta struct {
	Field string
	Name  string
	Type  ColumnType
}

// ForeignKey references a column of another table by logical field name.
type ForeignKey struct {
	Field    string
	Table    string
	RefField string
	Cascade  bool
}

// TableMeta describes a table independently of the backend.
type TableMeta struct {
	Name        string
	Columns     []ColumnMeta
	Key         []string
	Unique      [][]string
	ForeignKeys []ForeignKey
}

func (m *TableMeta) Column(field string) (ColumnMeta, bool) {
	for _, c := range m.Columns {
		if c.Field == field {
			return c, true
		}
	}
	return ColumnMeta{}, false
}

// UniqueSets returns the key followed by the declared unique sets.
func (m *TableMeta) UniqueSets() [][]string {
	sets := make([][]string, 0, len(m.Unique)+1)
	if len(m.Key) > 0 {
		sets = append(sets, m.Key)
	}
	return append(sets, m.Unique...)
}

// Record is a row keyed by logical field name with normalized values.
type Record map[string]any

func (r Record) Clone() Record {
	c := make(Record, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

type accessor[T any] struct {
	get func(*T) any
	ptr func(*T) any
}

// Table binds a TableMeta to the Go type stored in it.
type Table[T any] struct {
	Meta      TableMeta
	accessors []accessor[T]
}

func newTable[T any](name string, key ...string) *Table[T] {
	return &Table[T]{Meta: TableMeta{Name: name, Key: key}}
}

func (t *Table[T]) add(field, column string, typ ColumnType, a accessor[T]) *Table[T] {
	t.Meta.Columns = append(t.Meta.Columns, ColumnMeta{Field: field, Name: column, Type: typ})
	t.accessors = append(t.accessors, a)
	return t
}

func (t *Table[T]) text(field, column string, p func(*T) *string) *Table[T] {
	return t.add(field, column, Text, accessor[T]{
		get: func(v *T) any { return *p(v) },
		ptr: func(v *T) any { return p(v) },
	})
}

func (t *Table[T]) float(field, column string, p func(*T) *float64) *Table[T] {
	return t.add(field, column, Float, accessor[T]{
		get: func(v *T) any { return *p(v) },
		ptr: func(v *T) any { return p(v) },
	})
}

func (t *Table[T]) integer(field, column string, p func(*T) *int) *Table[T] {
	return t.add(field, column, Int, accessor[T]{
		get: func(v *T) any { return *p(v) },
		ptr: func(v *T) any { return p(v) },
	})
}

func (t *Table[T]) boolean(field, column string, p func(*T) *bool) *Table[T] {
	return t.add(field, column, Bool, accessor[T]{
		get: func(v *T) any { return *p(v) },
		ptr: func(v *T) any { return p(v) },
	})
}

func (t *Table[T]) unique(fields ...string) *Table[T] {
	t.Meta.Unique = append(t.Meta.Unique, fields)
	return t
}

func (t *Table[T]) references(field, table, refField string, cascade bool) *Table[T] {
	t.Meta.ForeignKeys = append(t.Meta.ForeignKeys, ForeignKey{Field: field, Table: table, RefField: refField, Cascade: cascade})
	return t
}

// Record converts v to a Record.
func (t *Table[T]) Record(v *T) Record {
	r := make(Record, len(t.accessors))
	for i, a := range t.accessors {
		r[t.Meta.Columns[i].Field] = Normalize(a.get(v))
	}
	return r
}

// Decode builds a T from a Record.
func (t *Table[T]) Decode(r Record) (*T, error) {
	var v T
	for i, a := range t.accessors {
		field := t.Meta.Columns[i].Field
		if err := Assign(a.ptr(&v), r[field]); err != nil {
			return nil, errors.Wrapf(err, "%s.%s", t.Meta.Name, field)
		}
	}
	return &v, nil
}

// Values returns the column values of v in column order.
func (t *Table[T]) Values(v *T) []any {
	out := make([]any, len(t.accessors))
	for i, a := range t.accessors {
		out[i] = a.get(v)
	}
	return out
}

// ScanTargets returns pointers into v in column order.
func (t *Table[T]) ScanTargets(v *T) []any {
	out := make([]any, len(t.accessors))
	for i, a := range t.accessors {
		out[i] = a.ptr(v)
	}
	return out
}

// CheckPatch validates patch field names and value types against the
// table and returns the normalized patch.
func (t *Table[T]) CheckPatch(patch Patch) (Patch, error) {
	out := make(Patch, len(patch))
	for field, value := range patch {
		col, ok := t.Meta.Column(field)
		if !ok {
			return nil, &fieldError{table: t.Meta.Name, field: field}
		}
		value = Normalize(value)
		if !col.Type.accepts(value) {
			return nil, errors.Errorf("store: %s.%s: cannot store %T as %s", t.Meta.Name, field, value, col.Type)
		}
		out[field] = value
	}
	return out, nil
}

func (t ColumnType) accepts(v any) bool {
	switch v := v.(type) {
	case string:
		return t == Text
	case float64:
		return t == Float || (t == Int && v == math.Trunc(v))
	case int:
		return t == Int || t == Float
	case bool:
		return t == Bool
	}
	return false
}

// Assign stores a normalized value into one of the pointer kinds used by
// Table accessors.
func Assign(dst any, v any) error {
	v = Normalize(v)
	switch d := dst.(type) {
	case *string:
		if s, ok := v.(string); ok {
			*d = s
			return nil
		}
	case *float64:
		switch n := v.(type) {
		case float64:
			*d = n
			return nil
		case int:
			*d = float64(n)
			return nil
		}
	case *int:
		switch n := v.(type) {
		case int:
			*d = n
			return nil
		case float64:
			if n == math.Trunc(n) {
				*d = int(n)
				return nil
			}
		}
	case *bool:
		if b, ok := v.(bool); ok {
			*d = b
			return nil
		}
	}
	return errors.Errorf("cannot assign %T to %T", v, dst)
}

var (
	UserTable = newTable[model.User]("users", "id").
		text("id", "id", func(u *model.User) *string { return &u.ID }).
		text("name", "name", func(u *model.User) *string { return &u.Name }).
		float("balance", "balance", func(u *model.User) *float64 { return &u.Balance })

	PostTable = newTable[model.Post]("posts", "id").
		text("id", "id", func(p *model.Post) *string { return &p.ID }).
		text("title", "title", func(p *model.Post) *string { return &p.Title }).
		text("content", "content", func(p *model.Post) *string { return &p.Content }).
		text("authorId", "author_id", func(p *model.Post) *string { return &p.AuthorID }).
		references("authorId", "users", "id", true)

	ProfileTable = newTable[model.Profile]("profiles", "id").
		text("id", "id", func(p *model.Profile) *string { return &p.ID }).
		boolean("isMale", "is_male", func(p *model.Profile) *bool { return &p.IsMale }).
		integer("yearOfBirth", "year_of_birth", func(p *model.Profile) *int { return &p.YearOfBirth }).
		text("userId", "user_id", func(p *model.Profile) *string { return &p.UserID }).
		text("memberTypeId", "member_type_id", func(p *model.Profile) *string { return &p.MemberTypeID }).
		unique("userId").
		references("userId", "users", "id", true)

	MemberTypeTable = newTable[model.MemberType]("member_types", "id").
		text("id", "id", func(m *model.MemberType) *string { return (*string)(&m.ID) }).
		float("discount", "discount", func(m *model.MemberType) *float64 { return &m.Discount }).
		integer("postsLimitPerMonth", "posts_limit_per_month", func(m *model.MemberType) *int { return &m.PostsLimitPerMonth })

	// Subscription rows have no key; duplicate pairs are a resolver policy.
	SubscriptionTable = newTable[model.Subscription]("subscriptions").
		text("authorId", "author_id", func(s *model.Subscription) *string { return &s.AuthorID }).
		text("subscriberId", "subscriber_id", func(s *model.Subscription) *string { return &s.SubscriberID }).
		references("authorId", "users", "id", true).
		references("subscriberId", "users", "id", true)
)

// Tables lists every table in dependency order.
func Tables() []*TableMeta {
	return []*TableMeta{
		&MemberTypeTable.Meta,
		&UserTable.Meta,
		&PostTable.Meta,
		&ProfileTable.Meta,
		&SubscriptionTable.Meta,
	}
}
