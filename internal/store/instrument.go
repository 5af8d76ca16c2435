package store

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hanpama/memberql/internal/eventbus"
	"github.com/hanpama/memberql/internal/events"
	"github.com/hanpama/memberql/internal/model"
)

var callSeq atomic.Uint64

// Instrument wraps gw so every call publishes StoreCallStart and
// StoreCallFinish on the global event bus.
func Instrument(gw Gateway) Gateway {
	return &instrumented{
		inner:         gw,
		users:         instrument[model.User](UserTable.Meta.Name, gw.Users()),
		posts:         instrument[model.Post](PostTable.Meta.Name, gw.Posts()),
		profiles:      instrument[model.Profile](ProfileTable.Meta.Name, gw.Profiles()),
		memberTypes:   instrument[model.MemberType](MemberTypeTable.Meta.Name, gw.MemberTypes()),
		subscriptions: instrument[model.Subscription](SubscriptionTable.Meta.Name, gw.Subscriptions()),
	}
}

type instrumented struct {
	inner         Gateway
	users         Collection[model.User]
	posts         Collection[model.Post]
	profiles      Collection[model.Profile]
	memberTypes   Collection[model.MemberType]
	subscriptions Collection[model.Subscription]
}

func (g *instrumented) Users() Collection[model.User]                 { return g.users }
func (g *instrumented) Posts() Collection[model.Post]                 { return g.posts }
func (g *instrumented) Profiles() Collection[model.Profile]           { return g.profiles }
func (g *instrumented) MemberTypes() Collection[model.MemberType]     { return g.memberTypes }
func (g *instrumented) Subscriptions() Collection[model.Subscription] { return g.subscriptions }

func (g *instrumented) Ping(ctx context.Context) error {
	if p, ok := g.inner.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

type instrumentedCollection[T any] struct {
	name  string
	inner Collection[T]
}

func instrument[T any](name string, c Collection[T]) Collection[T] {
	return &instrumentedCollection[T]{name: name, inner: c}
}

func (c *instrumentedCollection[T]) observe(ctx context.Context, op string) func(error) {
	id := callSeq.Add(1)
	eventbus.Publish(ctx, events.StoreCallStart{CallID: id, Collection: c.name, Op: op})
	start := time.Now()
	return func(err error) {
		eventbus.Publish(ctx, events.StoreCallFinish{
			CallID:     id,
			Collection: c.name,
			Op:         op,
			Err:        err,
			Duration:   time.Since(start),
		})
	}
}

func (c *instrumentedCollection[T]) FindMany(ctx context.Context, filter Filter) ([]*T, error) {
	done := c.observe(ctx, "findMany")
	out, err := c.inner.FindMany(ctx, filter)
	done(err)
	return out, err
}

func (c *instrumentedCollection[T]) FindUnique(ctx context.Context, filter Filter) (*T, error) {
	done := c.observe(ctx, "findUnique")
	out, err := c.inner.FindUnique(ctx, filter)
	done(err)
	return out, err
}

func (c *instrumentedCollection[T]) Create(ctx context.Context, v T) (*T, error) {
	done := c.observe(ctx, "create")
	out, err := c.inner.Create(ctx, v)
	done(err)
	return out, err
}

func (c *instrumentedCollection[T]) Update(ctx context.Context, filter Filter, patch Patch) (*T, error) {
	done := c.observe(ctx, "update")
	out, err := c.inner.Update(ctx, filter, patch)
	done(err)
	return out, err
}

func (c *instrumentedCollection[T]) Delete(ctx context.Context, filter Filter) error {
	done := c.observe(ctx, "delete")
	err := c.inner.Delete(ctx, filter)
	done(err)
	return err
}

func (c *instrumentedCollection[T]) DeleteMany(ctx context.Context, filter Filter) (int64, error) {
	done := c.observe(ctx, "deleteMany")
	n, err := c.inner.DeleteMany(ctx, filter)
	done(err)
	return n, err
}
