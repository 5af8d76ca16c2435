package executor

import (
	"context"

	language "github.com/hanpama/memberql/internal/language"
)

// Request is one GraphQL request as received from a client.
type Request struct {
	Query         string
	OperationName string
	Variables     map[string]any
}

// Prepared is a parsed and validated request ready for execution.
type Prepared struct {
	Document  *language.QueryDocument
	Operation *language.OperationDefinition
	Variables map[string]any
}

// OperationType returns "query" or "mutation".
func (p *Prepared) OperationType() string {
	return string(p.Operation.Operation)
}

// Prepare parses and validates req. On failure it returns the result to send
// back instead: errors only, no data.
func (e *Executor) Prepare(req Request) (*Prepared, *ExecutionResult) {
	doc, err := language.ParseQuery(req.Query)
	if err != nil {
		return nil, &ExecutionResult{Errors: []GraphQLError{syntaxError(err)}}
	}
	if errs := Validate(e.schema, doc, req.OperationName); len(errs) > 0 {
		return nil, &ExecutionResult{Errors: errs}
	}
	op, err := getOperation(doc, req.OperationName)
	if err != nil {
		return nil, &ExecutionResult{Errors: []GraphQLError{documentError(CodeValidationFailed, err.Error(), nil)}}
	}
	return &Prepared{Document: doc, Operation: op, Variables: req.Variables}, nil
}

// ExecutePrepared runs a request returned by Prepare.
func (e *Executor) ExecutePrepared(ctx context.Context, p *Prepared) *ExecutionResult {
	return e.executeOperation(ctx, p.Document, p.Operation, p.Variables, nil)
}

// Execute parses, validates and executes req.
func (e *Executor) Execute(ctx context.Context, req Request) *ExecutionResult {
	p, res := e.Prepare(req)
	if res != nil {
		return res
	}
	return e.ExecutePrepared(ctx, p)
}
