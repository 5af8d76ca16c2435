package introspection

import (
	"context"
	"fmt"
	"sort"
	"strings"

	executor "github.com/hanpama/memberql/internal/executor"
	schema "github.com/hanpama/memberql/internal/schema"
)

// IntrospectionWrapper holds both the runtime and extended schema
type IntrospectionWrapper struct {
	Runtime executor.Runtime
	Schema  *schema.Schema
}

// Wrap returns a Runtime that answers __schema and __type on the query root
// and delegates every other field to base. The returned Schema must be the
// one handed to the executor.
func Wrap(base executor.Runtime, sch *schema.Schema) *IntrospectionWrapper {
	extended := extend(sch)
	return &IntrospectionWrapper{
		Runtime: &runtime{base: base, schema: extended},
		Schema:  extended,
	}
}

type runtime struct {
	base   executor.Runtime
	schema *schema.Schema
}

func (r *runtime) ResolveSync(ctx context.Context, objectType, field string, source any, args map[string]any) (any, error) {
	switch src := source.(type) {
	case *schema.Schema:
		if v, ok := r.schemaField(src, field); ok {
			return v, nil
		}
	case *schema.Type:
		if v, ok := r.typeField(src, field, args); ok {
			return v, nil
		}
	case *schema.TypeRef:
		if v, ok := r.wrapperField(src, field); ok {
			return v, nil
		}
	case *schema.Field:
		if v, ok := r.fieldField(src, field, args); ok {
			return v, nil
		}
	case *schema.InputValue:
		if v, ok := r.inputValueField(src, field); ok {
			return v, nil
		}
	case *schema.EnumValue:
		if v, ok := enumValueField(src, field); ok {
			return v, nil
		}
	case *schema.Directive:
		if v, ok := directiveField(src, field, args); ok {
			return v, nil
		}
	}

	if objectType == r.schema.QueryType {
		switch field {
		case "__schema":
			return r.schema, nil
		case "__type":
			name, _ := args["name"].(string)
			if t := r.schema.Types[name]; t != nil {
				return t, nil
			}
			return nil, nil
		}
	}
	return r.base.ResolveSync(ctx, objectType, field, source, args)
}

func (r *runtime) BatchResolveAsync(ctx context.Context, tasks []executor.AsyncResolveTask) []executor.AsyncResolveResult {
	return r.base.BatchResolveAsync(ctx, tasks)
}

func (r *runtime) ResolveType(ctx context.Context, abstractType string, value any) (string, error) {
	return r.base.ResolveType(ctx, abstractType, value)
}

func (r *runtime) ParseLeafValue(ctx context.Context, typeName string, value any) (any, error) {
	return r.base.ParseLeafValue(ctx, typeName, value)
}

func (r *runtime) SerializeLeafValue(ctx context.Context, typeName string, value any) (any, error) {
	if strings.HasPrefix(typeName, "__") {
		return fmt.Sprint(value), nil
	}
	return r.base.SerializeLeafValue(ctx, typeName, value)
}

func (r *runtime) schemaField(s *schema.Schema, field string) (any, bool) {
	switch field {
	case "description":
		return optional(s.Description), true
	case "types":
		names := make([]string, 0, len(s.Types))
		for name := range s.Types {
			names = append(names, name)
		}
		sort.Strings(names)
		types := make([]*schema.Type, len(names))
		for i, name := range names {
			types[i] = s.Types[name]
		}
		return types, true
	case "queryType":
		return r.namedType(s.QueryType), true
	case "mutationType":
		return r.namedType(s.MutationType), true
	case "subscriptionType":
		return r.namedType(s.SubscriptionType), true
	case "directives":
		names := make([]string, 0, len(s.Directives))
		for name := range s.Directives {
			names = append(names, name)
		}
		sort.Strings(names)
		dirs := make([]*schema.Directive, len(names))
		for i, name := range names {
			dirs[i] = s.Directives[name]
		}
		return dirs, true
	}
	return nil, false
}

func (r *runtime) typeField(t *schema.Type, field string, args map[string]any) (any, bool) {
	switch field {
	case "kind":
		return string(t.Kind), true
	case "name":
		return t.Name, true
	case "description":
		return optional(t.Description), true
	case "specifiedByURL":
		if t.SpecifiedByURL == nil {
			return nil, true
		}
		return *t.SpecifiedByURL, true
	case "fields":
		if t.Kind != schema.TypeKindObject && t.Kind != schema.TypeKindInterface {
			return nil, true
		}
		all := withDeprecated(args)
		fields := make([]*schema.Field, 0, len(t.Fields))
		for _, f := range t.Fields {
			if strings.HasPrefix(f.Name, "__") || (f.IsDeprecated && !all) {
				continue
			}
			fields = append(fields, f)
		}
		return fields, true
	case "interfaces":
		if t.Kind != schema.TypeKindObject && t.Kind != schema.TypeKindInterface {
			return nil, true
		}
		return r.namedTypes(t.Interfaces), true
	case "possibleTypes":
		switch t.Kind {
		case schema.TypeKindUnion:
			return r.namedTypes(t.PossibleTypes), true
		case schema.TypeKindInterface:
			var impls []string
			for name, candidate := range r.schema.Types {
				if candidate.Kind == schema.TypeKindObject && r.schema.IsPossibleType(t.Name, name) {
					impls = append(impls, name)
				}
			}
			sort.Strings(impls)
			return r.namedTypes(impls), true
		}
		return nil, true
	case "enumValues":
		if t.Kind != schema.TypeKindEnum {
			return nil, true
		}
		all := withDeprecated(args)
		values := make([]*schema.EnumValue, 0, len(t.EnumValues))
		for _, v := range t.EnumValues {
			if v.IsDeprecated && !all {
				continue
			}
			values = append(values, v)
		}
		return values, true
	case "inputFields":
		if t.Kind != schema.TypeKindInputObject {
			return nil, true
		}
		return filterInputValues(t.InputFields, withDeprecated(args)), true
	case "ofType":
		return nil, true
	case "isOneOf":
		if t.Kind != schema.TypeKindInputObject {
			return nil, true
		}
		return t.OneOf, true
	}
	return nil, false
}

// wrapperField answers __Type fields for LIST and NON_NULL references.
// Named references never reach here; typeOf resolves them to their *schema.Type.
func (r *runtime) wrapperField(ref *schema.TypeRef, field string) (any, bool) {
	switch field {
	case "kind":
		return string(ref.Kind), true
	case "ofType":
		return r.typeOf(ref.OfType), true
	case "name", "description", "specifiedByURL", "fields", "interfaces",
		"possibleTypes", "enumValues", "inputFields", "isOneOf":
		return nil, true
	}
	return nil, false
}

func (r *runtime) fieldField(f *schema.Field, field string, args map[string]any) (any, bool) {
	switch field {
	case "name":
		return f.Name, true
	case "description":
		return optional(f.Description), true
	case "args":
		return filterInputValues(f.Arguments, withDeprecated(args)), true
	case "type":
		return r.typeOf(f.Type), true
	case "isDeprecated":
		return f.IsDeprecated, true
	case "deprecationReason":
		return deprecationReason(f.IsDeprecated, f.DeprecationReason), true
	}
	return nil, false
}

func (r *runtime) inputValueField(v *schema.InputValue, field string) (any, bool) {
	switch field {
	case "name":
		return v.Name, true
	case "description":
		return optional(v.Description), true
	case "type":
		return r.typeOf(v.Type), true
	case "defaultValue":
		if v.DefaultValue == nil {
			return nil, true
		}
		return schema.FormatValue(v.DefaultValue), true
	case "isDeprecated":
		return v.IsDeprecated, true
	case "deprecationReason":
		return deprecationReason(v.IsDeprecated, v.DeprecationReason), true
	}
	return nil, false
}

func enumValueField(v *schema.EnumValue, field string) (any, bool) {
	switch field {
	case "name":
		return v.Name, true
	case "description":
		return optional(v.Description), true
	case "isDeprecated":
		return v.IsDeprecated, true
	case "deprecationReason":
		return deprecationReason(v.IsDeprecated, v.DeprecationReason), true
	}
	return nil, false
}

func directiveField(d *schema.Directive, field string, args map[string]any) (any, bool) {
	switch field {
	case "name":
		return d.Name, true
	case "description":
		return optional(d.Description), true
	case "isRepeatable":
		return d.IsRepeatable, true
	case "locations":
		return append([]string{}, d.Locations...), true
	case "args":
		return filterInputValues(d.Arguments, withDeprecated(args)), true
	}
	return nil, false
}

// typeOf maps a type reference onto the value used as a __Type source.
func (r *runtime) typeOf(ref *schema.TypeRef) any {
	if ref == nil {
		return nil
	}
	if ref.Kind == schema.TypeRefKindNamed {
		return r.namedType(ref.Named)
	}
	return ref
}

func (r *runtime) namedType(name string) *schema.Type {
	if name == "" {
		return nil
	}
	return r.schema.Types[name]
}

func (r *runtime) namedTypes(names []string) []*schema.Type {
	types := make([]*schema.Type, 0, len(names))
	for _, name := range names {
		if t := r.schema.Types[name]; t != nil {
			types = append(types, t)
		}
	}
	return types
}

func filterInputValues(values []*schema.InputValue, all bool) []*schema.InputValue {
	out := make([]*schema.InputValue, 0, len(values))
	for _, v := range values {
		if v.IsDeprecated && !all {
			continue
		}
		out = append(out, v)
	}
	return out
}

func withDeprecated(args map[string]any) bool {
	all, _ := args["includeDeprecated"].(bool)
	return all
}

func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func deprecationReason(deprecated bool, reason string) any {
	if !deprecated {
		return nil
	}
	if reason == "" {
		return "No longer supported"
	}
	return reason
}
