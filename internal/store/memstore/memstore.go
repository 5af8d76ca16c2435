// Package memstore is an in-process Data Store Gateway. It enforces the
// unique sets and foreign keys declared in store.TableMeta, including
// cascading deletes, and keeps rows in insertion order.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/hanpama/memberql/internal/model"
	"github.com/hanpama/memberql/internal/store"
)

type table struct {
	meta *store.TableMeta
	rows []store.Record
}

// Store implements store.Gateway.
type Store struct {
	mu     sync.RWMutex
	tables map[string]*table
	order  []*table

	users         *collection[model.User]
	posts         *collection[model.Post]
	profiles      *collection[model.Profile]
	memberTypes   *collection[model.MemberType]
	subscriptions *collection[model.Subscription]
}

type Option func(*options)

type options struct {
	seed bool
}

// WithoutSeed leaves the member_types table empty.
func WithoutSeed() Option { return func(o *options) { o.seed = false } }

// New returns an empty store. Member types are seeded unless WithoutSeed is given.
func New(opts ...Option) *Store {
	o := options{seed: true}
	for _, opt := range opts {
		opt(&o)
	}
	s := &Store{tables: make(map[string]*table)}
	for _, meta := range store.Tables() {
		t := &table{meta: meta}
		s.tables[meta.Name] = t
		s.order = append(s.order, t)
	}
	s.users = &collection[model.User]{s: s, def: store.UserTable}
	s.posts = &collection[model.Post]{s: s, def: store.PostTable}
	s.profiles = &collection[model.Profile]{s: s, def: store.ProfileTable}
	s.memberTypes = &collection[model.MemberType]{s: s, def: store.MemberTypeTable}
	s.subscriptions = &collection[model.Subscription]{s: s, def: store.SubscriptionTable}
	if o.seed {
		for _, mt := range model.DefaultMemberTypes() {
			t := s.tables[store.MemberTypeTable.Meta.Name]
			t.rows = append(t.rows, store.MemberTypeTable.Record(&mt))
		}
	}
	return s
}

func (s *Store) Users() store.Collection[model.User]                 { return s.users }
func (s *Store) Posts() store.Collection[model.Post]                 { return s.posts }
func (s *Store) Profiles() store.Collection[model.Profile]           { return s.profiles }
func (s *Store) MemberTypes() store.Collection[model.MemberType]     { return s.memberTypes }
func (s *Store) Subscriptions() store.Collection[model.Subscription] { return s.subscriptions }

// Len returns the number of rows in the named table.
func (s *Store) Len(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tables[name]; ok {
		return len(t.rows)
	}
	return 0
}

func (s *Store) checkUnique(t *table, rec store.Record, skip int) error {
	for _, set := range t.meta.UniqueSets() {
		for i, row := range t.rows {
			if i == skip {
				continue
			}
			if sameValues(row, rec, set) {
				return &store.ConstraintError{Table: t.meta.Name, Detail: fmt.Sprintf("duplicate value for %v", set)}
			}
		}
	}
	return nil
}

func (s *Store) checkForeignKeys(t *table, rec store.Record, fields map[string]bool) error {
	for _, fk := range t.meta.ForeignKeys {
		if fields != nil && !fields[fk.Field] {
			continue
		}
		ref := s.tables[fk.Table]
		found := false
		for _, row := range ref.rows {
			if row[fk.RefField] == rec[fk.Field] {
				found = true
				break
			}
		}
		if !found {
			return &store.ConstraintError{
				Table:  t.meta.Name,
				Detail: fmt.Sprintf("%s %v has no matching %s.%s", fk.Field, rec[fk.Field], fk.Table, fk.RefField),
			}
		}
	}
	return nil
}

// remove deletes the rows at idx from t along with every row that
// references them through a cascading foreign key.
func (s *Store) remove(t *table, idx []int) error {
	if len(idx) == 0 {
		return nil
	}
	drop := make(map[int]bool, len(idx))
	for _, i := range idx {
		drop[i] = true
	}
	removed := make([]store.Record, 0, len(idx))
	kept := t.rows[:0:0]
	for i, row := range t.rows {
		if drop[i] {
			removed = append(removed, row)
			continue
		}
		kept = append(kept, row)
	}

	for _, other := range s.order {
		for _, fk := range other.meta.ForeignKeys {
			if fk.Table != t.meta.Name {
				continue
			}
			var dependents []int
			for i, row := range other.rows {
				for _, gone := range removed {
					if row[fk.Field] == gone[fk.RefField] {
						dependents = append(dependents, i)
						break
					}
				}
			}
			if len(dependents) == 0 {
				continue
			}
			if !fk.Cascade {
				return &store.ConstraintError{Table: other.meta.Name, Detail: fmt.Sprintf("%s still referenced", t.meta.Name)}
			}
			if other == t {
				continue
			}
			if err := s.remove(other, dependents); err != nil {
				return err
			}
		}
	}
	t.rows = kept
	return nil
}

func sameValues(a, b store.Record, fields []string) bool {
	for _, f := range fields {
		if a[f] != b[f] {
			return false
		}
	}
	return true
}

type collection[T any] struct {
	s   *Store
	def *store.Table[T]
}

func (c *collection[T]) table() *table { return c.s.tables[c.def.Meta.Name] }

func (c *collection[T]) match(filter store.Filter) ([]int, error) {
	if err := filter.Validate(&c.def.Meta); err != nil {
		return nil, err
	}
	var idx []int
	for i, row := range c.table().rows {
		if filter.Match(row) {
			idx = append(idx, i)
		}
	}
	return idx, nil
}

func (c *collection[T]) FindMany(ctx context.Context, filter store.Filter) ([]*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	idx, err := c.match(filter)
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(idx))
	rows := c.table().rows
	for _, i := range idx {
		v, err := c.def.Decode(rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *collection[T]) FindUnique(ctx context.Context, filter store.Filter) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	idx, err := c.match(filter)
	if err != nil || len(idx) == 0 {
		return nil, err
	}
	return c.def.Decode(c.table().rows[idx[0]])
}

func (c *collection[T]) Create(ctx context.Context, v T) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec := c.def.Record(&v)
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	t := c.table()
	if err := c.s.checkUnique(t, rec, -1); err != nil {
		return nil, err
	}
	if err := c.s.checkForeignKeys(t, rec, nil); err != nil {
		return nil, err
	}
	t.rows = append(t.rows, rec)
	return c.def.Decode(rec)
}

func (c *collection[T]) Update(ctx context.Context, filter store.Filter, patch store.Patch) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	patch, err := c.def.CheckPatch(patch)
	if err != nil {
		return nil, err
	}
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	idx, err := c.match(filter)
	if err != nil {
		return nil, err
	}
	if len(idx) == 0 {
		return nil, errors.WithStack(store.ErrNotFound)
	}
	t := c.table()
	rec := t.rows[idx[0]].Clone()
	touched := make(map[string]bool, len(patch))
	for field, value := range patch {
		rec[field] = value
		touched[field] = true
	}
	updated, err := c.def.Decode(rec)
	if err != nil {
		return nil, err
	}
	// Re-encode so numeric kinds match what Create stores.
	rec = c.def.Record(updated)
	if err := c.s.checkUnique(t, rec, idx[0]); err != nil {
		return nil, err
	}
	if err := c.s.checkForeignKeys(t, rec, touched); err != nil {
		return nil, err
	}
	t.rows[idx[0]] = rec
	return updated, nil
}

func (c *collection[T]) Delete(ctx context.Context, filter store.Filter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	idx, err := c.match(filter)
	if err != nil {
		return err
	}
	if len(idx) == 0 {
		return errors.WithStack(store.ErrNotFound)
	}
	return c.s.remove(c.table(), idx[:1])
}

func (c *collection[T]) DeleteMany(ctx context.Context, filter store.Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	idx, err := c.match(filter)
	if err != nil {
		return 0, err
	}
	if err := c.s.remove(c.table(), idx); err != nil {
		return 0, err
	}
	return int64(len(idx)), nil
}
