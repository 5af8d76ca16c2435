// Package resolver binds the domain type graph to a store.Gateway. It
// implements executor.Runtime: record fields are projected synchronously,
// relationships and root queries are resolved in concurrent batches, and
// mutations run inline in document order.
package resolver

import (
	"context"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"github.com/hanpama/memberql/internal/eventbus"
	"github.com/hanpama/memberql/internal/events"
	"github.com/hanpama/memberql/internal/executor"
	"github.com/hanpama/memberql/internal/store"
)

// Runtime implements executor.Runtime over a store.Gateway.
// It holds no mutable state of its own and is safe for concurrent use.
type Runtime struct {
	gw   store.Gateway
	opts Options
}

var _ executor.Runtime = (*Runtime)(nil)

// New returns a Runtime reading and writing through gw.
func New(gw store.Gateway, opts Options) (*Runtime, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Runtime{gw: gw, opts: opts.withDefaults()}, nil
}

// Options returns the effective options.
func (r *Runtime) Options() Options { return r.opts }

// ResolveSync projects record fields and runs mutation root fields.
func (r *Runtime) ResolveSync(ctx context.Context, objectType, field string, source any, args map[string]any) (any, error) {
	key := objectType + "." + field
	if m, ok := mutations[key]; ok {
		return r.guard(ctx, objectType, field, func() (any, error) {
			return m(r, ctx, source, args)
		})
	}
	if p, ok := projections[key]; ok {
		v, ok := p(source)
		if !ok {
			return nil, executor.NewError(executor.CodeInternal, "unexpected source %T for %s", source, key)
		}
		return v, nil
	}
	return nil, executor.NewError(executor.CodeInternal, "no resolver bound to %s", key)
}

// BatchResolveAsync groups tasks by (objectType, field) and runs every task
// concurrently, bounded by MaxConcurrency. Results keep task order.
func (r *Runtime) BatchResolveAsync(ctx context.Context, tasks []executor.AsyncResolveTask) []executor.AsyncResolveResult {
	results := make([]executor.AsyncResolveResult, len(tasks))
	if len(tasks) == 0 {
		return results
	}

	var g errgroup.Group
	g.SetLimit(r.opts.MaxConcurrency)
	for _, grp := range groupTasks(tasks) {
		resolve, ok := relationships[grp.key]
		for _, i := range grp.idxs {
			if !ok {
				results[i].Error = executor.NewError(executor.CodeInternal, "no resolver bound to %s", grp.key)
				continue
			}
			task := tasks[i]
			g.Go(func() error {
				v, err := r.guard(ctx, task.ObjectType, task.Field, func() (any, error) {
					return resolve(r, ctx, task.Source, task.Args)
				})
				results[i] = executor.AsyncResolveResult{Value: v, Error: err}
				return nil
			})
		}
	}
	_ = g.Wait()
	return results
}

type taskGroup struct {
	key  string
	idxs []int
}

func groupTasks(tasks []executor.AsyncResolveTask) []taskGroup {
	var groups []taskGroup
	byKey := map[string]int{}
	for i, t := range tasks {
		key := t.ObjectType + "." + t.Field
		gi, ok := byKey[key]
		if !ok {
			gi = len(groups)
			byKey[key] = gi
			groups = append(groups, taskGroup{key: key})
		}
		groups[gi].idxs = append(groups[gi].idxs, i)
	}
	return groups
}

// ResolveType is never needed: the type graph has no interfaces or unions.
func (r *Runtime) ResolveType(ctx context.Context, abstractType string, value any) (string, error) {
	return "", executor.NewError(executor.CodeInternal, "no abstract type %q", abstractType)
}

func (r *Runtime) ParseLeafValue(ctx context.Context, typeName string, value any) (any, error) {
	return parseLeaf(typeName, value)
}

func (r *Runtime) SerializeLeafValue(ctx context.Context, typeName string, value any) (any, error) {
	return serializeLeaf(typeName, value)
}

// guard recovers a panicking resolver, publishes ResolverPanic and turns it
// into an internal field error.
func (r *Runtime) guard(ctx context.Context, objectType, field string, fn func() (any, error)) (v any, err error) {
	defer func() {
		if p := recover(); p != nil {
			eventbus.Publish(ctx, events.ResolverPanic{
				ObjectType: objectType,
				Field:      field,
				Value:      p,
				Stack:      debug.Stack(),
			})
			v, err = nil, executor.NewError(executor.CodeInternal, "internal error resolving %s.%s", objectType, field)
		}
	}()
	return fn()
}

// storeError marks a gateway failure so it surfaces as STORE_OPERATION_FAILED.
func storeError(err error) error {
	if err == nil {
		return nil
	}
	if executor.CodeOf(err) != "" {
		return err
	}
	return executor.WrapError(executor.CodeStoreFailed, err)
}

func stringArg(args map[string]any, name string) string {
	s, _ := store.Normalize(args[name]).(string)
	return s
}

func floatArg(args map[string]any, name string) float64 {
	switch n := store.Normalize(args[name]).(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return 0
}

func intArg(args map[string]any, name string) int {
	switch n := store.Normalize(args[name]).(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}

// boolArg reports false for ok when the argument is absent or null.
func boolArg(args map[string]any, name string) (v bool, ok bool) {
	v, ok = args[name].(bool)
	return v, ok
}
