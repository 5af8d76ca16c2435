// Package store defines the Data Store Gateway consumed by the resolver
// layer: typed, per-entity CRUD and lookup operations keyed by logical field
// names. Backends live in the memstore and sqlstore subpackages.
//
// Every call is atomic on its own and reads its own writes; there are no
// cross-call transactions.
package store

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/hanpama/memberql/internal/model"
)

var (
	// ErrNotFound is returned by Update and Delete when the filter matches nothing.
	ErrNotFound = errors.New("store: not found")
	// ErrConstraint marks unique and foreign key violations.
	ErrConstraint = errors.New("store: constraint violation")
	// ErrUnknownField is returned when a filter or patch names a field the
	// table does not have.
	ErrUnknownField = errors.New("store: unknown field")
)

// ConstraintError describes a rejected write.
type ConstraintError struct {
	Table  string
	Detail string
	Err    error
}

func (e *ConstraintError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("store: %s: %s: %v", e.Table, e.Detail, e.Err)
	}
	return fmt.Sprintf("store: %s: %s", e.Table, e.Detail)
}

func (e *ConstraintError) Is(target error) bool { return target == ErrConstraint }

func (e *ConstraintError) Unwrap() error { return e.Err }

// Collection is the per-entity gateway surface.
//
// FindUnique returns (nil, nil) when nothing matches. Update and Delete
// operate on the first row matching the filter and return ErrNotFound when
// there is none; the filter is expected to identify a single row.
type Collection[T any] interface {
	FindMany(ctx context.Context, filter Filter) ([]*T, error)
	FindUnique(ctx context.Context, filter Filter) (*T, error)
	Create(ctx context.Context, v T) (*T, error)
	Update(ctx context.Context, filter Filter, patch Patch) (*T, error)
	Delete(ctx context.Context, filter Filter) error
	DeleteMany(ctx context.Context, filter Filter) (int64, error)
}

// Gateway groups the collections of the domain model.
type Gateway interface {
	Users() Collection[model.User]
	Posts() Collection[model.Post]
	Profiles() Collection[model.Profile]
	MemberTypes() Collection[model.MemberType]
	Subscriptions() Collection[model.Subscription]
}

// Pinger is implemented by gateways that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Patch maps logical field names to new values.
type Patch map[string]any

// SeedMemberTypes inserts the reference member types that are missing.
func SeedMemberTypes(ctx context.Context, gw Gateway) error {
	for _, mt := range model.DefaultMemberTypes() {
		existing, err := gw.MemberTypes().FindUnique(ctx, Where(Eq("id", mt.ID)))
		if err != nil {
			return errors.Wrapf(err, "looking up member type %q failed", mt.ID)
		}
		if existing != nil {
			continue
		}
		if _, err := gw.MemberTypes().Create(ctx, mt); err != nil {
			return errors.Wrapf(err, "seeding member type %q failed", mt.ID)
		}
	}
	return nil
}
