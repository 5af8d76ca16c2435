package executor

import (
	"context"
	"fmt"
	"reflect"

	language "github.com/hanpama/memberql/internal/language"
	schema "github.com/hanpama/memberql/internal/schema"
)

type Path []PathElement

type PathElement any

type NodeID uint64

// executionState holds the state during query execution
type executionState struct {
	runtime        Runtime
	schema         *schema.Schema
	document       *language.QueryDocument
	variableValues map[string]any
	context        context.Context
	coerce         coercer
	asyncTaskGroup []asyncTask
	errors         []GraphQLError
	// simple incremental id generator
	nextID uint64
	// prefixes of paths that have been nullified (tombstoned)
	nullifiedPrefix map[string]struct{}
}

// asyncTask represents a pending async field resolution
type asyncTask struct {
	ID           NodeID
	Task         AsyncResolveTask
	ResponsePath Path
	FieldType    *schema.TypeRef
	Fields       []*language.Field
}

// asyncPending marks a response slot whose value arrives with a later batch.
type asyncPending struct{}

type Executor struct {
	runtime Runtime
	schema  *schema.Schema
}

func NewExecutor(runtime Runtime, schema *schema.Schema) *Executor {
	return &Executor{runtime: runtime, schema: schema}
}

// Schema returns the schema the executor runs against.
func (e *Executor) Schema() *schema.Schema { return e.schema }

// ExecuteRequest executes an already parsed document. Execute is the usual
// entry point; this skips parsing and validation.
func (e *Executor) ExecuteRequest(
	ctx context.Context,
	document *language.QueryDocument,
	operationName string,
	variableValues map[string]any,
	initialValue any,
) *ExecutionResult {
	operation, err := getOperation(document, operationName)
	if err != nil {
		return &ExecutionResult{Errors: []GraphQLError{documentError(CodeValidationFailed, err.Error(), nil)}}
	}
	return e.executeOperation(ctx, document, operation, variableValues, initialValue)
}

func (e *Executor) executeOperation(
	ctx context.Context,
	document *language.QueryDocument,
	operation *language.OperationDefinition,
	variableValues map[string]any,
	initialValue any,
) *ExecutionResult {
	c := coercer{ctx: ctx, schema: e.schema, runtime: e.runtime}
	coercedVariableValues, err := coerceVariableValues(c, operation, variableValues)
	if err != nil {
		return &ExecutionResult{Errors: []GraphQLError{{
			Message:    err.Error(),
			Extensions: map[string]any{"code": CodeBadUserInput},
		}}}
	}

	rootType := e.schema.RootType(string(operation.Operation))
	if rootType == nil {
		return &ExecutionResult{Errors: []GraphQLError{documentError(CodeValidationFailed,
			fmt.Sprintf("Schema is not configured to execute %s operation.", operation.Operation), operation.Position)}}
	}

	state := &executionState{
		runtime:         e.runtime,
		schema:          e.schema,
		document:        document,
		variableValues:  coercedVariableValues,
		context:         ctx,
		coerce:          c,
		asyncTaskGroup:  []asyncTask{},
		errors:          []GraphQLError{},
		nextID:          1,
		nullifiedPrefix: make(map[string]struct{}),
	}

	responseRoot := &Object{}
	fields := collectFields(state, rootType, operation.SelectionSet)

	if operation.Operation == language.Mutation {
		// Root fields run serially; each subtree is drained before the next.
		for _, cf := range fields.orderedFields() {
			executeCollectedField(state, rootType, initialValue, cf, Path{}, responseRoot)
			state.drain(responseRoot)
		}
	} else {
		// Root selection set: sync immediate expansion, async queued
		for _, cf := range fields.orderedFields() {
			executeCollectedField(state, rootType, initialValue, cf, Path{}, responseRoot)
		}
		state.drain(responseRoot)
	}

	return &ExecutionResult{Data: responseRoot, Errors: state.errors}
}

// drain runs the depth-wise batch loop until no async task is pending.
func (state *executionState) drain(responseRoot *Object) {
	for len(state.asyncTaskGroup) > 0 {
		filtered, results := flushAsyncTasks(state)
		for i, at := range filtered {
			var r AsyncResolveResult
			if i < len(results) {
				r = results[i]
			} else {
				r = AsyncResolveResult{Error: NewError(CodeInternal, "missing result for %s.%s", at.Task.ObjectType, at.Task.Field)}
			}
			completeAsyncField(state, at, r, responseRoot)
		}
	}
}

// executeSelectionSet executes a selection set without flushing. A nil result
// means a non-null child resolved to null and the object itself becomes null.
func executeSelectionSet(state *executionState, objectType *schema.Type, selectionSet language.SelectionSet, objectValue any, path Path) *Object {
	groupedFields := collectFields(state, objectType, selectionSet)
	result := &Object{Fields: make([]ObjectField, 0, len(groupedFields.fields))}

	for _, collectedField := range groupedFields.orderedFields() {
		if !executeCollectedField(state, objectType, objectValue, collectedField, path, result) {
			// Drop async work queued under the discarded object
			state.markNullifiedPrefix(path)
			return nil
		}
	}
	return result
}

// executeCollectedField executes one response key and stores it in out. It
// reports false when a non-null field below the root came back null.
func executeCollectedField(state *executionState, objectType *schema.Type, objectValue any, collectedField collectedField, path Path, out *Object) bool {
	responseName := collectedField.ResponseName
	fields := collectedField.Fields
	fieldPath := appendPath(path, responseName)

	fieldResult := executeFieldGroup(state, objectType, objectValue, fields, fieldPath)

	if fields[0].Name == "__typename" {
		out.Set(responseName, fieldResult)
		return true
	}

	fieldDef := objectType.Field(fields[0].Name)
	if fieldDef == nil {
		// Unknown field; error was already recorded in executeFieldGroup
		return true
	}

	if isNullish(fieldResult) {
		if schema.IsNonNull(fieldDef.Type) && len(path) > 0 {
			return false
		}
		// Root level: keep going but write nil
		out.Set(responseName, nil)
		return true
	}
	out.Set(responseName, fieldResult)
	return true
}

func executeFieldGroup(state *executionState, objectType *schema.Type, objectValue any, fields []*language.Field, path Path) any {
	field := fields[0]
	fieldName := field.Name

	// Handle __typename meta field
	if fieldName == "__typename" {
		return objectType.Name
	}

	fieldDef := objectType.Field(fieldName)
	if fieldDef == nil {
		state.errors = append(state.errors, GraphQLError{
			Message:    fmt.Sprintf("Cannot query field %q on type %q.", fieldName, objectType.Name),
			Path:       path,
			Extensions: map[string]any{"code": CodeValidationFailed},
		})
		return nil
	}

	argumentValues, err := coerceArgumentValues(state.coerce, fieldDef, field.Arguments, state.variableValues)
	if err != nil {
		state.addFieldError(err, path)
		return nil
	}

	if !fieldDef.Async {
		resolvedValue := resolveSyncField(state, objectType.Name, fieldName, objectValue, argumentValues, path)
		return completeValue(state, fieldDef.Type, fields, resolvedValue, path)
	}

	id := NodeID(state.nextID)
	state.nextID++
	state.asyncTaskGroup = append(state.asyncTaskGroup, asyncTask{
		ID: id,
		Task: AsyncResolveTask{
			ObjectType: objectType.Name,
			Field:      fieldName,
			Source:     objectValue,
			Args:       argumentValues,
		},
		ResponsePath: path,
		FieldType:    fieldDef.Type,
		Fields:       fields,
	})
	return asyncPending{}
}

// flushAsyncTasks flushes tasks and returns results (filtered by tombstones)
func flushAsyncTasks(state *executionState) ([]asyncTask, []AsyncResolveResult) {
	filtered := make([]asyncTask, 0, len(state.asyncTaskGroup))
	for _, at := range state.asyncTaskGroup {
		if state.hasNullifiedPrefix(at.ResponsePath) {
			continue
		}
		filtered = append(filtered, at)
	}

	// Clear group before executing
	state.asyncTaskGroup = nil
	if len(filtered) == 0 {
		return nil, nil
	}

	tasks := make([]AsyncResolveTask, len(filtered))
	for i, at := range filtered {
		tasks[i] = at.Task
	}
	results := state.runtime.BatchResolveAsync(state.context, tasks)
	return filtered, results
}

// completeAsyncField completes a single async result, with non-null propagation and pruning
func completeAsyncField(state *executionState, at asyncTask, res AsyncResolveResult, responseRoot *Object) {
	path := at.ResponsePath
	// If this path is already nullified by an ancestor, ignore
	if state.hasNullifiedPrefix(path) {
		return
	}

	if res.Error != nil {
		state.addFieldError(res.Error, path)
		if schema.IsNonNull(at.FieldType) {
			state.nullifyTopLevel(responseRoot, path)
			return
		}
		setValueAtPath(responseRoot, path, nil)
		return
	}

	completed := completeValue(state, at.FieldType, at.Fields, res.Value, path)

	if schema.IsNonNull(at.FieldType) && isNullish(completed) {
		state.nullifyTopLevel(responseRoot, path)
		return
	}

	if isNullish(completed) {
		setValueAtPath(responseRoot, path, nil)
	} else {
		setValueAtPath(responseRoot, path, completed)
	}
}

func (state *executionState) nullifyTopLevel(responseRoot *Object, path Path) {
	top := topLevelFieldPath(path)
	setValueAtPath(responseRoot, top, nil)
	state.markNullifiedPrefix(top)
}

// completeValue completes a value
func completeValue(state *executionState, fieldType *schema.TypeRef, fields []*language.Field, result any, path Path) any {
	if schema.IsNonNull(fieldType) {
		if isNullish(result) {
			if !state.hasErrorAtPath(path) {
				state.errors = append(state.errors, GraphQLError{
					Message: fmt.Sprintf("Cannot return null for non-nullable field %s", pathToString(path)),
					Path:    path,
				})
			}
			return nil
		}
		completed := completeValue(state, schema.Unwrap(fieldType), fields, result, path)
		if isNullish(completed) {
			// Error already recorded at original path; propagate only
			return nil
		}
		return completed
	}

	if isNullish(result) {
		return nil
	}

	if schema.IsList(fieldType) {
		return completeListValue(state, fieldType, fields, result, path)
	}
	namedType := schema.GetNamedType(fieldType)
	typeObj := state.schema.Types[namedType]
	if typeObj == nil {
		state.addError(fmt.Sprintf("Unknown type: %s", namedType), path)
		return nil
	}

	switch typeObj.Kind {
	case schema.TypeKindScalar, schema.TypeKindEnum:
		serialized, err := state.runtime.SerializeLeafValue(state.context, namedType, result)
		if err != nil {
			state.addFieldError(err, path)
			return nil
		}
		return serialized
	case schema.TypeKindObject:
		return completeObjectValue(state, typeObj, fields, result, path)
	case schema.TypeKindInterface, schema.TypeKindUnion:
		return completeAbstractValue(state, namedType, fields, result, path)
	default:
		state.addError(fmt.Sprintf("Cannot complete value of unexpected type: %s", typeObj.Kind), path)
		return nil
	}
}

// completeListValue completes a list value
func completeListValue(state *executionState, listType *schema.TypeRef, fields []*language.Field, result any, path Path) any {
	var items []any
	if direct, ok := result.([]any); ok {
		items = direct
	} else {
		rv := reflect.ValueOf(result)
		if rv.Kind() != reflect.Slice {
			state.addError(fmt.Sprintf("Expected list value, got %T", result), path)
			return nil
		}
		items = make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			items[i] = rv.Index(i).Interface()
		}
	}

	inner := schema.Unwrap(listType)
	completed := make([]any, len(items))
	for i, item := range items {
		v := completeValue(state, inner, fields, item, appendPath(path, i))
		if schema.IsNonNull(inner) && isNullish(v) {
			// Propagate null to the list field; error already recorded by inner completion
			return nil
		}
		completed[i] = v
	}
	return completed
}

func completeObjectValue(state *executionState, objectType *schema.Type, fields []*language.Field, result any, path Path) any {
	sub := mergeSelectionSets(fields)
	obj := executeSelectionSet(state, objectType, sub, result, path)
	if obj == nil {
		return nil
	}
	return obj
}

func completeAbstractValue(state *executionState, abstractTypeName string, fields []*language.Field, result any, path Path) any {
	typeName, err := state.runtime.ResolveType(state.context, abstractTypeName, result)
	if err != nil {
		state.addFieldError(err, path)
		return nil
	}
	objectType := state.schema.Types[typeName]
	if objectType == nil || objectType.Kind != schema.TypeKindObject || !state.schema.IsPossibleType(abstractTypeName, typeName) {
		state.addError(fmt.Sprintf("Abstract type %s must resolve to an Object type at runtime. Got: %s", abstractTypeName, typeName), path)
		return nil
	}
	return completeObjectValue(state, objectType, fields, result, path)
}

func pathToString(path Path) string {
	result := ""
	for i, elem := range path {
		switch v := elem.(type) {
		case string:
			if i > 0 {
				result += "."
			}
			result += v
		case int:
			result += fmt.Sprintf("[%d]", v)
		}
	}
	return result
}

func appendPath(path Path, elem PathElement) Path {
	newPath := make(Path, len(path)+1)
	copy(newPath, path)
	newPath[len(path)] = elem
	return newPath
}

// Prefix tombstone helpers
func (s *executionState) markNullifiedPrefix(p Path) {
	key := pathToString(p)
	if key != "" {
		s.nullifiedPrefix[key] = struct{}{}
	}
}

func (s *executionState) hasNullifiedPrefix(p Path) bool {
	if len(s.nullifiedPrefix) == 0 {
		return false
	}
	cur := Path{}
	for _, elem := range p {
		cur = append(cur, elem)
		if _, ok := s.nullifiedPrefix[pathToString(cur)]; ok {
			return true
		}
	}
	return false
}

func topLevelFieldPath(p Path) Path {
	for _, elem := range p {
		if name, ok := elem.(string); ok {
			return Path{name}
		}
	}
	return Path{}
}

// getOperation selects the operation to run from the document.
func getOperation(document *language.QueryDocument, operationName string) (*language.OperationDefinition, error) {
	if len(document.Operations) == 0 {
		return nil, fmt.Errorf("Document does not contain any operations.")
	}
	if operationName == "" {
		if len(document.Operations) > 1 {
			return nil, fmt.Errorf("Must provide operation name if query contains multiple operations.")
		}
		return document.Operations[0], nil
	}
	for _, op := range document.Operations {
		if op.Name == operationName {
			return op, nil
		}
	}
	return nil, fmt.Errorf("Unknown operation named %q.", operationName)
}

func typeRefFromAST(t *language.Type) *schema.TypeRef {
	if t == nil {
		return nil
	}
	if t.NonNull {
		return schema.NonNullType(typeRefFromAST(&language.Type{NamedType: t.NamedType, Elem: t.Elem}))
	}
	if t.NamedType != "" {
		return schema.NamedType(t.NamedType)
	}
	if t.Elem != nil {
		return schema.ListType(typeRefFromAST(t.Elem))
	}
	return nil
}

// Helper function to add an error to the execution state
func (state *executionState) addError(message string, path Path) {
	state.errors = append(state.errors, GraphQLError{Message: message, Path: path})
}

// addFieldError records err at path, carrying its code when it declares one.
func (state *executionState) addFieldError(err error, path Path) {
	state.errors = append(state.errors, GraphQLError{
		Message:    err.Error(),
		Path:       path,
		Extensions: extensionsFor(err),
	})
}

// hasErrorAtPath reports whether an error with the given path already exists.
func (state *executionState) hasErrorAtPath(path Path) bool {
	for _, err := range state.errors {
		if reflect.DeepEqual(err.Path, path) {
			return true
		}
	}
	return false
}

// resolveSyncField resolves a field synchronously
func resolveSyncField(state *executionState, objectType string, fieldName string, source any, args map[string]any, path Path) any {
	value, err := state.runtime.ResolveSync(state.context, objectType, fieldName, source, args)
	if err != nil {
		state.addFieldError(err, path)
		return nil
	}
	return value
}

// setValueAtPath replaces the value at path in the response tree. Slots are
// created by the pass that queued the task, so missing parents mean the
// subtree was discarded and the write is dropped.
func setValueAtPath(responseRoot *Object, path Path, value any) {
	if len(path) == 0 {
		return
	}
	var current any = responseRoot
	for _, elem := range path[:len(path)-1] {
		switch e := elem.(type) {
		case string:
			obj, ok := current.(*Object)
			if !ok || obj == nil {
				return
			}
			next, exists := obj.Get(e)
			if !exists {
				return
			}
			current = next
		case int:
			list, ok := current.([]any)
			if !ok || e >= len(list) {
				return
			}
			current = list[e]
		}
	}
	switch fe := path[len(path)-1].(type) {
	case string:
		if obj, ok := current.(*Object); ok && obj != nil {
			obj.Set(fe, value)
		}
	case int:
		if list, ok := current.([]any); ok && fe < len(list) {
			list[fe] = value
		}
	}
}

// mergeSelectionSets merges selection sets from multiple fields
func mergeSelectionSets(fields []*language.Field) language.SelectionSet {
	var merged language.SelectionSet
	for _, f := range fields {
		merged = append(merged, f.SelectionSet...)
	}
	return merged
}

// isNullish returns true for nil interfaces and typed nils (map, slice, ptr, interface)
func isNullish(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Interface, reflect.Ptr, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
