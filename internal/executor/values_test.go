package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"

	language "github.com/hanpama/memberql/internal/language"
	schema "github.com/hanpama/memberql/internal/schema"
)

func newCoercer(sch *schema.Schema, rt Runtime) coercer {
	if rt == nil {
		rt = NewMockRuntime(nil)
	}
	return coercer{ctx: context.Background(), schema: sch, runtime: rt}
}

func TestCoerceVariableValues_InputObjectValidation(t *testing.T) {
	sch := schema.NewSchema("")

	input := schema.NewType("FilterInput", schema.TypeKindInputObject, "")
	input.AddInputField(schema.NewInputValue("required", "", schema.NonNullType(schema.NamedType("String"))))
	input.AddInputField(schema.NewInputValue("optional", "", schema.NamedType("Int")))
	input.AddInputField(schema.NewInputValue("limit", "", schema.NamedType("Int")).SetDefault(10))
	sch.AddType(input)

	op := &language.OperationDefinition{
		Operation: language.Query,
		VariableDefinitions: ast.VariableDefinitionList{
			&ast.VariableDefinition{
				Variable: "input",
				Type:     &ast.Type{NamedType: "FilterInput", NonNull: true},
			},
		},
	}

	_, err := coerceVariableValues(newCoercer(sch, nil), op, map[string]any{
		"input": map[string]any{"optional": 10},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "required field 'required'")

	_, err = coerceVariableValues(newCoercer(sch, nil), op, map[string]any{
		"input": map[string]any{"required": "x", "extra": 1},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), `Field "extra" is not defined by type "FilterInput".`)

	got, err := coerceVariableValues(newCoercer(sch, nil), op, map[string]any{
		"input": map[string]any{"required": "x"},
	})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"input": map[string]any{"required": "x", "limit": 10}}, got)
}

func TestCoerceVariableValues_ScalarTypeMismatch(t *testing.T) {
	sch := schema.NewSchema("")

	op := &language.OperationDefinition{
		Operation: language.Query,
		VariableDefinitions: ast.VariableDefinitionList{
			&ast.VariableDefinition{
				Variable: "count",
				Type:     &ast.Type{NamedType: "Int", NonNull: true},
			},
		},
	}

	_, err := coerceVariableValues(newCoercer(sch, nil), op, map[string]any{"count": "42"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "cannot coerce")

	_, err = coerceVariableValues(newCoercer(sch, nil), op, nil)
	require.EqualError(t, err, `Variable "$count" of required type "Int!" was not provided.`)

	_, err = coerceVariableValues(newCoercer(sch, nil), op, map[string]any{"count": nil})
	require.EqualError(t, err, `Variable "$count" of non-null type "Int!" must not be null.`)
}

func TestCoerce_BuiltinScalars(t *testing.T) {
	c := newCoercer(schema.NewSchema(""), nil)
	named := schema.NamedType

	cases := []struct {
		name    string
		value   any
		typ     *schema.TypeRef
		want    any
		wantErr string
	}{
		{name: "int from int", value: 3, typ: named("Int"), want: 3},
		{name: "int from integral float", value: 2.0, typ: named("Int"), want: 2},
		{name: "int rejects fraction", value: 1.5, typ: named("Int"), wantErr: "Int cannot represent non-integer value: 1.5"},
		{name: "int rejects overflow", value: int64(1) << 40, typ: named("Int"), wantErr: "Int cannot represent non 32-bit signed integer value: 1099511627776"},
		{name: "float from int", value: 4, typ: named("Float"), want: 4.0},
		{name: "float rejects string", value: "4", typ: named("Float"), wantErr: "cannot coerce 4 (string) to Float"},
		{name: "string rejects number", value: 4, typ: named("String"), wantErr: "cannot coerce 4 (int) to String"},
		{name: "boolean", value: true, typ: named("Boolean"), want: true},
		{name: "boolean rejects string", value: "true", typ: named("Boolean"), wantErr: "cannot coerce true (string) to Boolean"},
		{name: "id from int", value: 7, typ: named("ID"), want: "7"},
		{name: "null for nullable", value: nil, typ: named("Int"), want: nil},
		{name: "null for non-null", value: nil, typ: schema.NonNullType(named("Int")), wantErr: `Expected non-nullable type "Int!" not to be null.`},
		{name: "single value becomes list", value: 1, typ: schema.ListType(named("Int")), want: []any{1}},
		{name: "list items", value: []any{1, 2.0}, typ: schema.ListType(named("Int")), want: []any{1, 2}},
		{name: "unknown type", value: 1, typ: named("Nope"), wantErr: `Unknown type "Nope".`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := c.coerce(tc.value, tc.typ)
			if tc.wantErr != "" {
				require.EqualError(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestCoerce_CustomScalarUsesLeafParser(t *testing.T) {
	sch := schema.NewSchema("")
	sch.AddType(schema.NewType("UUID", schema.TypeKindScalar, ""))
	rt := NewMockRuntime(nil)
	var seen []string
	SetLeafParser(rt, func(typeName string, val any) (any, error) {
		seen = append(seen, typeName)
		if val == "bad" {
			return nil, errors.New("invalid uuid")
		}
		return val, nil
	})
	c := newCoercer(sch, rt)

	got, err := c.coerce("ok", schema.NonNullType(schema.NamedType("UUID")))
	require.NoError(t, err)
	require.Equal(t, "ok", got)

	_, err = c.coerce("bad", schema.NamedType("UUID"))
	require.EqualError(t, err, "invalid uuid")
	require.Equal(t, []string{"UUID", "UUID"}, seen)
}

func TestValueFromAST_NestedVariables(t *testing.T) {
	doc := mustParseQuery(t, `query($a: Int, $b: String) { f(x: [1, $a], y: {k: $b, n: null}) }`)
	args := doc.Operations[0].SelectionSet[0].(*language.Field).Arguments
	vars := map[string]any{"a": 5, "b": "s"}

	require.Equal(t, []any{1, 5}, valueFromAST(args.ForName("x").Value, vars))
	require.Equal(t, map[string]any{"k": "s", "n": nil}, valueFromAST(args.ForName("y").Value, vars))
}
