package executor

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/validator"
	"github.com/vektah/gqlparser/v2/validator/rules"

	language "github.com/hanpama/memberql/internal/language"
	schema "github.com/hanpama/memberql/internal/schema"
)

var documentRules = rules.NewDefaultRules()

// Validate checks doc against s and returns GRAPHQL_VALIDATION_FAILED errors
// for every problem found. A nil result means the document can be executed
// with the given operation name.
//
// The standard rule set runs against the gqlparser form of s. Documents that
// pass are then checked against the executable schema itself, which is where
// introspection fields are missing when introspection is off.
func Validate(s *schema.Schema, doc *language.QueryDocument, operationName string) []GraphQLError {
	var errs []GraphQLError
	if _, err := getOperation(doc, operationName); err != nil {
		errs = append(errs, documentError(CodeValidationFailed, err.Error(), nil))
		if len(doc.Operations) == 0 {
			return errs
		}
	}

	src, err := s.Source()
	if err != nil {
		return append(errs, documentError(CodeInternal, fmt.Sprintf("schema unavailable: %v", err), nil))
	}
	for _, e := range validator.ValidateWithRules(src, doc, documentRules) {
		errs = append(errs, validationError(e))
	}
	if len(errs) > 0 {
		return errs
	}

	v := &executable{schema: s, doc: doc, visiting: map[string]bool{}}
	for _, op := range doc.Operations {
		v.operation(op)
	}
	return v.errors
}

func validationError(e *gqlerror.Error) GraphQLError {
	out := GraphQLError{Message: e.Message, Extensions: map[string]any{"code": CodeValidationFailed}}
	for _, loc := range e.Locations {
		out.Locations = append(out.Locations, Location{Line: loc.Line, Column: loc.Column})
	}
	return out
}

// executable walks a document that is already valid GraphQL and reports what
// this executor cannot run.
type executable struct {
	schema   *schema.Schema
	doc      *language.QueryDocument
	errors   []GraphQLError
	visiting map[string]bool
}

func (v *executable) report(message string, pos *language.Position) {
	v.errors = append(v.errors, documentError(CodeValidationFailed, message, pos))
}

func (v *executable) operation(op *language.OperationDefinition) {
	if op.Operation == language.Subscription {
		v.report("Subscriptions are not supported.", op.Position)
		return
	}
	if root := v.schema.RootType(string(op.Operation)); root != nil {
		v.selectionSet(root, op.SelectionSet)
	}
}

func (v *executable) selectionSet(parent *schema.Type, set language.SelectionSet) {
	for _, sel := range set {
		switch sel := sel.(type) {
		case *language.Field:
			v.field(parent, sel)
		case *language.InlineFragment:
			target := parent
			if sel.TypeCondition != "" {
				target = v.schema.Types[sel.TypeCondition]
			}
			if target != nil {
				v.selectionSet(target, sel.SelectionSet)
			}
		case *language.FragmentSpread:
			frag := v.doc.Fragments.ForName(sel.Name)
			if frag == nil || v.visiting[sel.Name] {
				continue
			}
			if target := v.schema.Types[frag.TypeCondition]; target != nil {
				v.visiting[sel.Name] = true
				v.selectionSet(target, frag.SelectionSet)
				delete(v.visiting, sel.Name)
			}
		}
	}
}

func (v *executable) field(parent *schema.Type, f *language.Field) {
	if f.Name == "__typename" {
		return
	}
	def := parent.Field(f.Name)
	if def == nil {
		v.report(fmt.Sprintf("Cannot query field %q on type %q.", f.Name, parent.Name), f.Position)
		return
	}
	if named := v.schema.Types[schema.GetNamedType(def.Type)]; named != nil && named.IsComposite() {
		v.selectionSet(named, f.SelectionSet)
	}
}
