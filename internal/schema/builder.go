package schema

import (
	"strings"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

// BuildOption customizes BuildFromSDL.
type BuildOption func(*buildConfig)

type buildConfig struct {
	async func(typeName, fieldName string) bool
}

// WithAsync classifies object fields as async (resolved in batches) or sync
// (resolved inline). Without it every field is sync.
func WithAsync(f func(typeName, fieldName string) bool) BuildOption {
	return func(c *buildConfig) { c.async = f }
}

// BuildFromSDL validates sdl and converts it into an executable Schema.
// Declaration order of fields, arguments and enum values is preserved.
func BuildFromSDL(name, sdl string, opts ...BuildOption) (*Schema, error) {
	cfg := buildConfig{async: func(string, string) bool { return false }}
	for _, opt := range opts {
		opt(&cfg)
	}

	doc, err := gqlparser.LoadSchema(&ast.Source{Name: name, Input: sdl})
	if err != nil {
		return nil, err
	}

	s := NewSchema(doc.Description)
	s.source = doc
	if doc.Query != nil {
		s.SetQueryType(doc.Query.Name)
	}
	if doc.Mutation != nil {
		s.SetMutationType(doc.Mutation.Name)
	}
	if doc.Subscription != nil {
		s.SetSubscriptionType(doc.Subscription.Name)
	}

	for typeName, def := range doc.Types {
		if def.BuiltIn || strings.HasPrefix(typeName, "__") {
			continue
		}
		s.AddType(buildType(def, cfg))
	}
	for _, dir := range doc.Directives {
		if isBuiltinSource(dir.Position) {
			continue
		}
		s.AddDirective(buildDirective(dir))
	}
	return s, nil
}

func isBuiltinSource(pos *ast.Position) bool {
	return pos != nil && pos.Src != nil && pos.Src.BuiltIn
}

func buildType(def *ast.Definition, cfg buildConfig) *Type {
	t := NewType(def.Name, kindOf(def.Kind), def.Description)
	switch def.Kind {
	case ast.Object, ast.Interface:
		for _, name := range def.Interfaces {
			t.AddInterface(name)
		}
		for _, fd := range def.Fields {
			if strings.HasPrefix(fd.Name, "__") {
				continue
			}
			t.AddField(buildField(fd, cfg.async(def.Name, fd.Name)))
		}
	case ast.Union:
		for _, name := range def.Types {
			t.AddPossibleType(name)
		}
	case ast.Enum:
		for _, ev := range def.EnumValues {
			v := NewEnumValue(ev.Name, ev.Description)
			if reason, ok := deprecation(ev.Directives); ok {
				v.Deprecate(reason)
			}
			t.AddEnumValue(v)
		}
	case ast.InputObject:
		t.SetOneOf(def.Directives.ForName("oneOf") != nil)
		for _, fd := range def.Fields {
			in := NewInputValue(fd.Name, fd.Description, buildTypeRef(fd.Type)).SetDefault(literal(fd.DefaultValue))
			if reason, ok := deprecation(fd.Directives); ok {
				in.Deprecate(reason)
			}
			t.AddInputField(in)
		}
	case ast.Scalar:
		if d := def.Directives.ForName("specifiedBy"); d != nil {
			if arg := d.Arguments.ForName("url"); arg != nil && arg.Value != nil {
				t.SetSpecifiedByURL(arg.Value.Raw)
			}
		}
	}
	return t
}

func buildField(def *ast.FieldDefinition, async bool) *Field {
	f := NewField(def.Name, def.Description, buildTypeRef(def.Type)).SetAsync(async)
	if reason, ok := deprecation(def.Directives); ok {
		f.Deprecate(reason)
	}
	for _, arg := range def.Arguments {
		f.AddArgument(buildArgument(arg))
	}
	return f
}

func buildArgument(def *ast.ArgumentDefinition) *InputValue {
	in := NewInputValue(def.Name, def.Description, buildTypeRef(def.Type)).SetDefault(literal(def.DefaultValue))
	if reason, ok := deprecation(def.Directives); ok {
		in.Deprecate(reason)
	}
	return in
}

func buildDirective(def *ast.DirectiveDefinition) *Directive {
	d := NewDirective(def.Name, def.Description).SetRepeatable(def.IsRepeatable)
	for _, loc := range def.Locations {
		d.AddLocation(string(loc))
	}
	for _, arg := range def.Arguments {
		d.AddArgument(buildArgument(arg))
	}
	return d
}

func buildTypeRef(t *ast.Type) *TypeRef {
	if t == nil {
		return nil
	}
	var ref *TypeRef
	if t.Elem != nil {
		ref = ListType(buildTypeRef(t.Elem))
	} else {
		ref = NamedType(t.NamedType)
	}
	if t.NonNull {
		return NonNullType(ref)
	}
	return ref
}

func kindOf(k ast.DefinitionKind) TypeKind {
	switch k {
	case ast.Object:
		return TypeKindObject
	case ast.Interface:
		return TypeKindInterface
	case ast.Union:
		return TypeKindUnion
	case ast.Enum:
		return TypeKindEnum
	case ast.InputObject:
		return TypeKindInputObject
	}
	return TypeKindScalar
}

func deprecation(dirs ast.DirectiveList) (string, bool) {
	d := dirs.ForName("deprecated")
	if d == nil {
		return "", false
	}
	if arg := d.Arguments.ForName("reason"); arg != nil && arg.Value != nil {
		return arg.Value.Raw, true
	}
	return "No longer supported", true
}

// literal converts a default value literal to the Go values the executor
// works with: int, float64, string, bool, []any and map[string]any.
func literal(v *ast.Value) any {
	if v == nil {
		return nil
	}
	raw, err := v.Value(nil)
	if err != nil {
		return nil
	}
	return normalizeLiteral(raw)
}

func normalizeLiteral(v any) any {
	switch x := v.(type) {
	case int64:
		return int(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalizeLiteral(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalizeLiteral(e)
		}
		return out
	}
	return v
}
