package executor

import (
	"context"
	"testing"

	language "github.com/hanpama/memberql/internal/language"
	schema "github.com/hanpama/memberql/internal/schema"
)

// mustParseQuery parses a GraphQL query and fails the test on error.
func mustParseQuery(t *testing.T, q string) *language.QueryDocument {
	t.Helper()
	d, err := language.ParseQuery(q)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return d
}

func newSchemaWithQueryType(query *schema.Type, additional ...*schema.Type) *schema.Schema {
	sch := schema.NewSchema("")
	if query != nil {
		sch.SetQueryType(query.Name)
		sch.AddType(query)
	}
	for _, t := range additional {
		sch.AddType(t)
	}
	return sch
}

func newObjectType(name string, fields ...*schema.Field) *schema.Type {
	t := schema.NewType(name, schema.TypeKindObject, "")
	for _, field := range fields {
		t.AddField(field)
	}
	return t
}

func syncField(name string, typ *schema.TypeRef) *schema.Field {
	return schema.NewField(name, "", typ)
}

func asyncField(name string, typ *schema.TypeRef) *schema.Field {
	return schema.NewField(name, "", typ).SetAsync(true)
}

var (
	stringType    = schema.NamedType("String")
	stringNonNull = schema.NonNullType(schema.NamedType("String"))
)

// srcField resolves to a key of a map[string]any source.
func srcField(key string) MockResolver {
	return func(_ context.Context, source any, _ map[string]any) (any, error) {
		return source.(map[string]any)[key], nil
	}
}
