package introspection

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	executor "github.com/hanpama/memberql/internal/executor"
	schema "github.com/hanpama/memberql/internal/schema"
)

const testSDL = `
schema { query: Root mutation: Mutation }

"Entry point"
type Root {
  node(id: ID!): Node
  users: [User!]!
  legacy: String @deprecated(reason: "use users")
}

type Mutation {
  rename(input: RenameInput!): User
}

interface Node { id: ID! }

type User implements Node {
  id: ID!
  role: Role!
}

enum Role { ADMIN MEMBER }

input RenameInput {
  id: ID!
  name: String = "anon"
}
`

func run(t *testing.T, query string) string {
	t.Helper()
	sch, err := schema.BuildFromSDL("test.graphql", testSDL)
	require.NoError(t, err)

	wrapped := Wrap(executor.NewMockRuntime(nil), sch)
	res := executor.NewExecutor(wrapped.Runtime, wrapped.Schema).
		Execute(context.Background(), executor.Request{Query: query})
	require.Empty(t, res.Errors)

	body, err := json.Marshal(res.Data)
	require.NoError(t, err)
	return string(body)
}

func TestWrap_DoesNotModifyOriginal(t *testing.T) {
	sch, err := schema.BuildFromSDL("test.graphql", testSDL)
	require.NoError(t, err)

	wrapped := Wrap(executor.NewMockRuntime(nil), sch)

	require.Nil(t, sch.Types["__Schema"])
	require.Nil(t, sch.Types["Root"].Field("__schema"))
	require.NotNil(t, wrapped.Schema.Types["__Schema"])
	require.NotNil(t, wrapped.Schema.Types["Root"].Field("__type"))
}

func TestIntrospection_RootTypes(t *testing.T) {
	got := run(t, `{ __schema { queryType { name } mutationType { name } subscriptionType { name } } }`)
	require.JSONEq(t, `{"__schema": {
		"queryType": {"name": "Root"},
		"mutationType": {"name": "Mutation"},
		"subscriptionType": null
	}}`, got)
}

func TestIntrospection_TypeFields(t *testing.T) {
	got := run(t, `{
		__type(name: "Root") {
			kind name description
			fields { name type { kind name ofType { kind name ofType { kind name } } } }
		}
	}`)
	require.JSONEq(t, `{"__type": {
		"kind": "OBJECT", "name": "Root", "description": "Entry point",
		"fields": [
			{"name": "node", "type": {"kind": "INTERFACE", "name": "Node", "ofType": null}},
			{"name": "users", "type": {"kind": "NON_NULL", "name": null, "ofType": {
				"kind": "LIST", "name": null, "ofType": {"kind": "NON_NULL", "name": null}
			}}}
		]
	}}`, got)
}

func TestIntrospection_IncludeDeprecated(t *testing.T) {
	got := run(t, `{ __type(name: "Root") { fields(includeDeprecated: true) { name isDeprecated deprecationReason } } }`)
	require.JSONEq(t, `{"__type": {"fields": [
		{"name": "node", "isDeprecated": false, "deprecationReason": null},
		{"name": "users", "isDeprecated": false, "deprecationReason": null},
		{"name": "legacy", "isDeprecated": true, "deprecationReason": "use users"}
	]}}`, got)
}

func TestIntrospection_AbstractAndEnum(t *testing.T) {
	got := run(t, `{
		node: __type(name: "Node") { possibleTypes { name } fields { name } }
		user: __type(name: "User") { interfaces { name } enumValues { name } }
		role: __type(name: "Role") { kind enumValues { name } fields { name } }
	}`)
	require.JSONEq(t, `{
		"node": {"possibleTypes": [{"name": "User"}], "fields": [{"name": "id"}]},
		"user": {"interfaces": [{"name": "Node"}], "enumValues": null},
		"role": {"kind": "ENUM", "enumValues": [{"name": "ADMIN"}, {"name": "MEMBER"}], "fields": null}
	}`, got)
}

func TestIntrospection_InputObject(t *testing.T) {
	got := run(t, `{ __type(name: "RenameInput") { kind isOneOf inputFields { name defaultValue type { kind name } } } }`)
	require.JSONEq(t, `{"__type": {"kind": "INPUT_OBJECT", "isOneOf": false, "inputFields": [
		{"name": "id", "defaultValue": null, "type": {"kind": "NON_NULL", "name": null}},
		{"name": "name", "defaultValue": "\"anon\"", "type": {"kind": "SCALAR", "name": "String"}}
	]}}`, got)
}

func TestIntrospection_UnknownTypeIsNull(t *testing.T) {
	require.JSONEq(t, `{"__type": null}`, run(t, `{ __type(name: "Missing") { name } }`))
}

func TestIntrospection_Directives(t *testing.T) {
	got := run(t, `{ __schema { directives { name isRepeatable args { name } } } }`)

	var out struct {
		Schema struct {
			Directives []struct {
				Name string
				Args []struct{ Name string }
			}
		} `json:"__schema"`
	}
	require.NoError(t, json.Unmarshal([]byte(got), &out))
	var names []string
	for _, d := range out.Schema.Directives {
		names = append(names, d.Name)
	}
	require.Contains(t, names, "skip")
	require.Contains(t, names, "include")
}

func TestIntrospection_TypesAreSorted(t *testing.T) {
	got := run(t, `{ __schema { types { name } } }`)

	var out struct {
		Schema struct {
			Types []struct{ Name string }
		} `json:"__schema"`
	}
	require.NoError(t, json.Unmarshal([]byte(got), &out))
	var names []string
	for _, ty := range out.Schema.Types {
		names = append(names, ty.Name)
	}
	require.IsIncreasing(t, names)
	require.Contains(t, names, "__Type")
	require.Contains(t, names, "User")
}

func TestIntrospection_DelegatesOtherFields(t *testing.T) {
	sch, err := schema.BuildFromSDL("test.graphql", testSDL)
	require.NoError(t, err)
	base := executor.NewMockRuntime(map[string]executor.MockResolver{
		"Root.legacy": executor.NewMockValueResolver("old"),
	})
	wrapped := Wrap(base, sch)

	res := executor.NewExecutor(wrapped.Runtime, wrapped.Schema).
		Execute(context.Background(), executor.Request{Query: `{ legacy __typename }`})
	require.Empty(t, res.Errors)
	body, err := json.Marshal(res.Data)
	require.NoError(t, err)
	require.Equal(t, `{"legacy":"old","__typename":"Root"}`, string(body))
	require.Len(t, base.GetCalls(), 1)
}
