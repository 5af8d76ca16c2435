package store

import (
	"reflect"
)

type Op int

const (
	OpEq Op = iota
	OpIn
)

// Cond is a single condition on a logical field.
type Cond struct {
	Field  string
	Op     Op
	Values []any
}

// Filter is a conjunction of conditions. An empty filter matches every row.
type Filter []Cond

func Where(conds ...Cond) Filter { return Filter(conds) }

func Eq(field string, v any) Cond {
	return Cond{Field: field, Op: OpEq, Values: []any{Normalize(v)}}
}

// In matches rows whose field equals any of vs. An empty vs matches nothing.
func In[V any](field string, vs []V) Cond {
	values := make([]any, len(vs))
	for i, v := range vs {
		values[i] = Normalize(v)
	}
	return Cond{Field: field, Op: OpIn, Values: values}
}

// Match reports whether v satisfies the condition.
func (c Cond) Match(v any) bool {
	v = Normalize(v)
	for _, want := range c.Values {
		if want == v {
			return true
		}
	}
	return false
}

// Match reports whether the record satisfies every condition.
func (f Filter) Match(r Record) bool {
	for _, c := range f {
		if !c.Match(r[c.Field]) {
			return false
		}
	}
	return true
}

// Validate checks that every condition names a column of the table.
func (f Filter) Validate(meta *TableMeta) error {
	for _, c := range f {
		if _, ok := meta.Column(c.Field); !ok {
			return &fieldError{table: meta.Name, field: c.Field}
		}
	}
	return nil
}

// Normalize reduces named basic types to their underlying kind so values
// compare equal regardless of the Go type they were declared with.
func Normalize(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Ptr:
		if rv.IsNil() {
			return nil
		}
		return Normalize(rv.Elem().Interface())
	}
	return v
}

type fieldError struct {
	table string
	field string
}

func (e *fieldError) Error() string {
	return "store: " + e.table + ": unknown field " + e.field
}

func (e *fieldError) Is(target error) bool { return target == ErrUnknownField }
