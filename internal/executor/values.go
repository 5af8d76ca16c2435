package executor

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	language "github.com/hanpama/memberql/internal/language"
	schema "github.com/hanpama/memberql/internal/schema"
)

// coercer converts external input values (variables and literals) into the
// values resolvers see.
type coercer struct {
	ctx     context.Context
	schema  *schema.Schema
	runtime Runtime
}

// coerceVariableValues coerces variable values according to their types
func coerceVariableValues(
	c coercer,
	operation *language.OperationDefinition,
	variableValues map[string]any,
) (map[string]any, error) {
	if variableValues == nil {
		variableValues = make(map[string]any)
	}
	coerced := make(map[string]any)
	for _, varDef := range operation.VariableDefinitions {
		name := varDef.Variable
		t := varDef.Type
		val, ok := variableValues[name]
		if !ok {
			if v2, ok2 := variableValues[strings.TrimPrefix(name, "$")]; ok2 {
				val = v2
				ok = true
			}
		}
		if !ok {
			if varDef.DefaultValue != nil {
				val = astValueToGo(varDef.DefaultValue)
			} else if t.NonNull {
				return nil, fmt.Errorf("Variable \"$%s\" of required type \"%s\" was not provided.", name, t.String())
			} else {
				continue
			}
		}
		if val == nil && t.NonNull {
			return nil, fmt.Errorf("Variable \"$%s\" of non-null type \"%s\" must not be null.", name, t.String())
		}
		cv, err := c.coerce(val, typeRefFromAST(t))
		if err != nil {
			return nil, fmt.Errorf("Variable \"$%s\" got invalid value: %v", name, err)
		}
		coerced[name] = cv
	}
	return coerced, nil
}

// coerceArgumentValues coerces argument values for a field. Arguments that
// were neither given nor defaulted are absent from the result. Any problem is
// reported as a BAD_USER_INPUT error for the field.
func coerceArgumentValues(
	c coercer,
	fieldDef *schema.Field,
	arguments language.ArgumentList,
	variableValues map[string]any,
) (map[string]any, error) {
	coerced := make(map[string]any)
	for _, argDef := range fieldDef.Arguments {
		name := argDef.Name
		arg := arguments.ForName(name)

		provided := arg != nil
		var raw any
		if provided {
			if arg.Value.Kind == language.Variable {
				raw, provided = lookupVariable(variableValues, arg.Value.Raw)
			} else {
				raw = valueFromAST(arg.Value, variableValues)
			}
		}

		if !provided {
			if argDef.DefaultValue != nil {
				coerced[name] = argDef.DefaultValue
			} else if schema.IsNonNull(argDef.Type) {
				return nil, NewError(CodeBadUserInput, "Argument %q of required type %q was not provided.", name, argDef.Type.String())
			}
			continue
		}

		cv, err := c.coerce(raw, argDef.Type)
		if err != nil {
			return nil, &CodedError{code: CodeBadUserInput, msg: fmt.Sprintf("Argument %q has invalid value: %v", name, err), err: err}
		}
		coerced[name] = cv
	}
	return coerced, nil
}

func lookupVariable(variableValues map[string]any, name string) (any, bool) {
	if v, ok := variableValues[name]; ok {
		return v, true
	}
	v, ok := variableValues[strings.TrimPrefix(name, "$")]
	return v, ok
}

// valueFromAST converts an AST value to a runtime value, substituting
// variables at any depth.
func valueFromAST(value *language.Value, variableValues map[string]any) any {
	if value == nil {
		return nil
	}
	switch value.Kind {
	case language.Variable:
		v, _ := lookupVariable(variableValues, value.Raw)
		return v
	case language.ListValue:
		out := make([]any, len(value.Children))
		for i, c := range value.Children {
			out[i] = valueFromAST(c.Value, variableValues)
		}
		return out
	case language.ObjectValue:
		m := make(map[string]any, len(value.Children))
		for _, f := range value.Children {
			m[f.Name] = valueFromAST(f.Value, variableValues)
		}
		return m
	default:
		return astValueToGo(value)
	}
}

// astValueToGo converts a constant AST value to a Go value
func astValueToGo(value *language.Value) any {
	if value == nil {
		return nil
	}
	switch value.Kind {
	case language.IntValue:
		if iv, err := strconv.ParseInt(value.Raw, 10, 64); err == nil {
			return int(iv)
		}
		fv, _ := strconv.ParseFloat(value.Raw, 64)
		return fv
	case language.FloatValue:
		fv, _ := strconv.ParseFloat(value.Raw, 64)
		return fv
	case language.StringValue, language.BlockValue:
		return value.Raw
	case language.BooleanValue:
		return value.Raw == "true"
	case language.NullValue:
		return nil
	case language.EnumValue:
		return value.Raw
	case language.ListValue:
		out := make([]any, len(value.Children))
		for i, c := range value.Children {
			out[i] = astValueToGo(c.Value)
		}
		return out
	case language.ObjectValue:
		m := make(map[string]any)
		for _, f := range value.Children {
			m[f.Name] = astValueToGo(f.Value)
		}
		return m
	default:
		return nil
	}
}

// coerce coerces a value to the specified GraphQL input type
func (c coercer) coerce(value any, targetType *schema.TypeRef) (any, error) {
	if schema.IsNonNull(targetType) {
		if value == nil {
			return nil, fmt.Errorf("Expected non-nullable type %q not to be null.", targetType.String())
		}
		return c.coerce(value, schema.Unwrap(targetType))
	}

	if value == nil {
		return nil, nil
	}

	if schema.IsList(targetType) {
		return c.coerceList(value, targetType)
	}

	namedType := schema.GetNamedType(targetType)
	switch namedType {
	case "Int":
		return coerceToInt(value)
	case "Float":
		return coerceToFloat(value)
	case "String":
		return coerceToString(value)
	case "Boolean":
		return coerceToBoolean(value)
	case "ID":
		return coerceToID(value)
	}

	typ := c.schema.Types[namedType]
	if typ == nil {
		return nil, fmt.Errorf("Unknown type %q.", namedType)
	}
	switch typ.Kind {
	case schema.TypeKindEnum:
		s, ok := value.(string)
		if !ok || !typ.HasEnumValue(s) {
			return nil, fmt.Errorf("Value %v does not exist in %q enum.", value, namedType)
		}
		return c.runtime.ParseLeafValue(c.ctx, namedType, s)
	case schema.TypeKindScalar:
		return c.runtime.ParseLeafValue(c.ctx, namedType, value)
	case schema.TypeKindInputObject:
		return c.coerceInputObject(value, typ)
	}
	return nil, fmt.Errorf("Type %q is not an input type.", namedType)
}

// coerceList coerces a value to a list; a single value becomes a list of one
func (c coercer) coerceList(value any, listType *schema.TypeRef) (any, error) {
	innerType := schema.Unwrap(listType)
	if slice, ok := value.([]any); ok {
		coercedSlice := make([]any, len(slice))
		for i, item := range slice {
			coercedItem, err := c.coerce(item, innerType)
			if err != nil {
				return nil, err
			}
			coercedSlice[i] = coercedItem
		}
		return coercedSlice, nil
	}
	coercedItem, err := c.coerce(value, innerType)
	if err != nil {
		return nil, err
	}
	return []any{coercedItem}, nil
}

func (c coercer) coerceInputObject(value any, typ *schema.Type) (any, error) {
	fields, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("Expected type %q to be an object.", typ.Name)
	}
	for name := range fields {
		if typ.InputField(name) == nil {
			return nil, fmt.Errorf("Field %q is not defined by type %q.", name, typ.Name)
		}
	}
	out := make(map[string]any, len(typ.InputFields))
	for _, def := range typ.InputFields {
		v, ok := fields[def.Name]
		if !ok {
			if def.DefaultValue != nil {
				out[def.Name] = def.DefaultValue
			} else if schema.IsNonNull(def.Type) {
				return nil, fmt.Errorf("required field '%s' of type %q was not provided", def.Name, typ.Name)
			}
			continue
		}
		cv, err := c.coerce(v, def.Type)
		if err != nil {
			return nil, fmt.Errorf("field '%s': %w", def.Name, err)
		}
		out[def.Name] = cv
	}
	return out, nil
}

func coerceToInt(value any) (any, error) {
	var n int64
	switch v := value.(type) {
	case int:
		n = int64(v)
	case int32:
		n = int64(v)
	case int64:
		n = v
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("Int cannot represent non-integer value: %v", v)
		}
		n = int64(v)
	case float32:
		if float64(v) != math.Trunc(float64(v)) {
			return nil, fmt.Errorf("Int cannot represent non-integer value: %v", v)
		}
		n = int64(v)
	default:
		return nil, fmt.Errorf("cannot coerce %v (%T) to Int", value, value)
	}
	if n > math.MaxInt32 || n < math.MinInt32 {
		return nil, fmt.Errorf("Int cannot represent non 32-bit signed integer value: %d", n)
	}
	return int(n), nil
}

func coerceToFloat(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to Float", value, value)
}

func coerceToString(value any) (any, error) {
	if v, ok := value.(string); ok {
		return v, nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to String", value, value)
}

func coerceToBoolean(value any) (any, error) {
	if v, ok := value.(bool); ok {
		return v, nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to Boolean", value, value)
}

func coerceToID(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10), nil
		}
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to ID", value, value)
}
