package resolver

import (
	"math"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/hanpama/memberql/internal/executor"
	"github.com/hanpama/memberql/internal/model"
	"github.com/hanpama/memberql/internal/store"
)

// ParseUUID accepts only the canonical hyphenated form and returns s
// unchanged. uuid.Parse alone also accepts braces, urn:uuid: and the
// unhyphenated form.
func ParseUUID(s string) (string, error) {
	if len(s) != 36 || s[8] != '-' || s[13] != '-' || s[18] != '-' || s[23] != '-' {
		return "", executor.NewError(executor.CodeBadUserInput, "UUID cannot represent value: %q", s)
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", executor.NewError(executor.CodeBadUserInput, "UUID cannot represent value: %q", s)
	}
	return s, nil
}

func parseLeaf(typeName string, value any) (any, error) {
	switch typeName {
	case "UUID":
		s, ok := value.(string)
		if !ok {
			return nil, executor.NewError(executor.CodeBadUserInput, "UUID cannot represent a non string value: %v", value)
		}
		return ParseUUID(s)
	case "MemberTypeId":
		s, _ := value.(string)
		id := model.MemberTypeID(s)
		if !id.Valid() {
			return nil, executor.NewError(executor.CodeBadUserInput, "Value %v does not exist in \"MemberTypeId\" enum.", value)
		}
		return id, nil
	}
	return nil, executor.NewError(executor.CodeBadUserInput, "no parser for type %q", typeName)
}

func serializeLeaf(typeName string, value any) (any, error) {
	v := store.Normalize(value)
	switch typeName {
	case "String", "ID":
		if s, ok := v.(string); ok {
			return s, nil
		}
	case "Int":
		switch n := v.(type) {
		case int:
			return n, nil
		case float64:
			if n == math.Trunc(n) {
				return int(n), nil
			}
		}
	case "Float":
		switch n := v.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		}
	case "Boolean":
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case "UUID":
		if s, ok := v.(string); ok {
			if _, err := ParseUUID(s); err == nil {
				return s, nil
			}
		}
	case "MemberTypeId":
		if s, ok := v.(string); ok && model.MemberTypeID(s).Valid() {
			return s, nil
		}
	default:
		return nil, errors.Errorf("no serializer for type %q", typeName)
	}
	return nil, errors.Errorf("%s cannot represent value: %v", typeName, value)
}
