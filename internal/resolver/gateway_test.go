package resolver

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hanpama/memberql/internal/model"
	"github.com/hanpama/memberql/internal/store"
)

// countingGateway counts gateway calls and injects delays, failures and
// panics keyed by "collection.op", e.g. "posts.findMany".
type countingGateway struct {
	store.Gateway

	calls       atomic.Int64
	inflight    atomic.Int64
	maxInflight atomic.Int64

	delay map[string]time.Duration
	fail  map[string]error
	panic map[string]bool
}

func (g *countingGateway) Users() store.Collection[model.User] {
	return &hookedCollection[model.User]{Collection: g.Gateway.Users(), g: g, name: "users"}
}

func (g *countingGateway) Posts() store.Collection[model.Post] {
	return &hookedCollection[model.Post]{Collection: g.Gateway.Posts(), g: g, name: "posts"}
}

func (g *countingGateway) Profiles() store.Collection[model.Profile] {
	return &hookedCollection[model.Profile]{Collection: g.Gateway.Profiles(), g: g, name: "profiles"}
}

func (g *countingGateway) MemberTypes() store.Collection[model.MemberType] {
	return &hookedCollection[model.MemberType]{Collection: g.Gateway.MemberTypes(), g: g, name: "member_types"}
}

func (g *countingGateway) Subscriptions() store.Collection[model.Subscription] {
	return &hookedCollection[model.Subscription]{Collection: g.Gateway.Subscriptions(), g: g, name: "subscriptions"}
}

type hookedCollection[T any] struct {
	store.Collection[T]
	g    *countingGateway
	name string
}

func (c *hookedCollection[T]) hook(op string) error {
	g := c.g
	g.calls.Add(1)
	cur := g.inflight.Add(1)
	defer g.inflight.Add(-1)
	for {
		peak := g.maxInflight.Load()
		if cur <= peak || g.maxInflight.CompareAndSwap(peak, cur) {
			break
		}
	}

	key := c.name + "." + op
	if d := g.delay[key]; d > 0 {
		time.Sleep(d)
	}
	if g.panic[key] {
		panic("boom: " + key)
	}
	return g.fail[key]
}

func (c *hookedCollection[T]) FindMany(ctx context.Context, filter store.Filter) ([]*T, error) {
	if err := c.hook("findMany"); err != nil {
		return nil, err
	}
	return c.Collection.FindMany(ctx, filter)
}

func (c *hookedCollection[T]) FindUnique(ctx context.Context, filter store.Filter) (*T, error) {
	if err := c.hook("findUnique"); err != nil {
		return nil, err
	}
	return c.Collection.FindUnique(ctx, filter)
}

func (c *hookedCollection[T]) Create(ctx context.Context, v T) (*T, error) {
	if err := c.hook("create"); err != nil {
		return nil, err
	}
	return c.Collection.Create(ctx, v)
}

func (c *hookedCollection[T]) Update(ctx context.Context, filter store.Filter, patch store.Patch) (*T, error) {
	if err := c.hook("update"); err != nil {
		return nil, err
	}
	return c.Collection.Update(ctx, filter, patch)
}

func (c *hookedCollection[T]) Delete(ctx context.Context, filter store.Filter) error {
	if err := c.hook("delete"); err != nil {
		return err
	}
	return c.Collection.Delete(ctx, filter)
}

func (c *hookedCollection[T]) DeleteMany(ctx context.Context, filter store.Filter) (int64, error) {
	if err := c.hook("deleteMany"); err != nil {
		return 0, err
	}
	return c.Collection.DeleteMany(ctx, filter)
}
