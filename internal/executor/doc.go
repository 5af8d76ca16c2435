// Package executor implements a breadth-first, batch-friendly GraphQL executor
// with explicit runtime hooks for synchronous resolution, depth-wise batching of
// asynchronous work, abstract-type resolution, and leaf parsing and
// serialization.
//
// # Request pipeline
//
// Execute takes a Request (query text, optional operation name, variables) and:
//  1. Parses the document. Syntax errors produce a single
//     GRAPHQL_PARSE_FAILED error with its location and no data.
//  2. Validates it against the schema (Validate). Every violation is reported
//     with code GRAPHQL_VALIDATION_FAILED and no data.
//  3. Coerces variables against the operation's variable definitions. A bad
//     variable fails the whole request with BAD_USER_INPUT.
//  4. Executes the selected operation and returns data plus any field errors.
//
// Prepare and ExecutePrepared split the pipeline for callers that need the
// operation type before running it.
//
// # Execution model
//
// Fields are classified through schema.Field.Async:
//
//   - Synchronous fields are resolved immediately via Runtime.ResolveSync and
//     completed in place. Descending through them does not add batch depth.
//   - Asynchronous fields are queued and resolved together, one call to
//     Runtime.BatchResolveAsync per depth.
//
// For a query with asynchronous depth d, BatchResolveAsync is invoked exactly d
// times. Mutations are the exception to "everything at once": root mutation
// fields run one after another in document order and each subtree is drained
// before the next root field starts.
//
// Responses are built as *Object values, which keep selection order and encode
// to JSON in that order.
//
// # Arguments
//
// Arguments are coerced per field. Builtin scalars are handled here; enum
// membership is checked against the schema; custom scalars and enums are then
// passed through Runtime.ParseLeafValue. A coercion failure nulls only the
// affected field and records a BAD_USER_INPUT error at its path; the resolver
// is not called.
//
// # Errors and partial success
//
// Errors carry the response path. An error returned by the runtime that
// implements Code() string (see CodedError) contributes extensions.code. A
// null produced for a Non-Null field nulls the enclosing top-level field and
// drops async work queued beneath it. Other fields keep their values.
//
// Fragment type conditions may name the object type or any interface or union
// containing it.
package executor
