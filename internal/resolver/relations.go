package resolver

import (
	"context"

	"github.com/hanpama/memberql/internal/model"
	"github.com/hanpama/memberql/internal/store"
)

func byID(id any) store.Filter { return store.Where(store.Eq("id", id)) }

func (r *Runtime) userProfile(ctx context.Context, parent any, _ map[string]any) (any, error) {
	return r.profileOfUser(ctx, parent.(*model.User).ID)
}

func (r *Runtime) userPosts(ctx context.Context, parent any, _ map[string]any) (any, error) {
	u := parent.(*model.User)
	if r.opts.Posts == PostsLegacy {
		p, err := r.gw.Posts().FindUnique(ctx, byID(u.ID))
		if err != nil {
			return nil, storeError(err)
		}
		if p == nil {
			return []*model.Post{}, nil
		}
		return []*model.Post{p}, nil
	}
	return r.postsOfAuthor(ctx, u.ID)
}

func (r *Runtime) userSubscribedTo(ctx context.Context, parent any, _ map[string]any) (any, error) {
	return r.authorsOf(ctx, parent.(*model.User).ID)
}

func (r *Runtime) subscribedToUser(ctx context.Context, parent any, _ map[string]any) (any, error) {
	return r.subscribersOf(ctx, parent.(*model.User).ID)
}

func (r *Runtime) profileMemberType(ctx context.Context, parent any, _ map[string]any) (any, error) {
	return found(r.gw.MemberTypes().FindUnique(ctx, byID(parent.(*model.Profile).MemberTypeID)))
}

func (r *Runtime) queryUsers(ctx context.Context, _ any, _ map[string]any) (any, error) {
	return many(r.gw.Users().FindMany(ctx, store.Where()))
}

func (r *Runtime) queryUser(ctx context.Context, _ any, args map[string]any) (any, error) {
	return found(r.gw.Users().FindUnique(ctx, byID(stringArg(args, "id"))))
}

func (r *Runtime) queryPosts(ctx context.Context, _ any, _ map[string]any) (any, error) {
	return many(r.gw.Posts().FindMany(ctx, store.Where()))
}

func (r *Runtime) queryPost(ctx context.Context, _ any, args map[string]any) (any, error) {
	return found(r.gw.Posts().FindUnique(ctx, byID(stringArg(args, "id"))))
}

func (r *Runtime) queryProfiles(ctx context.Context, _ any, _ map[string]any) (any, error) {
	return many(r.gw.Profiles().FindMany(ctx, store.Where()))
}

func (r *Runtime) queryProfile(ctx context.Context, _ any, args map[string]any) (any, error) {
	return found(r.gw.Profiles().FindUnique(ctx, byID(stringArg(args, "id"))))
}

func (r *Runtime) queryProfileByUserID(ctx context.Context, _ any, args map[string]any) (any, error) {
	return r.profileOfUser(ctx, stringArg(args, "userId"))
}

func (r *Runtime) queryMemberTypes(ctx context.Context, _ any, _ map[string]any) (any, error) {
	return many(r.gw.MemberTypes().FindMany(ctx, store.Where()))
}

func (r *Runtime) queryMemberType(ctx context.Context, _ any, args map[string]any) (any, error) {
	return found(r.gw.MemberTypes().FindUnique(ctx, byID(stringArg(args, "id"))))
}

func (r *Runtime) queryPostsByUserID(ctx context.Context, _ any, args map[string]any) (any, error) {
	return r.postsOfAuthor(ctx, stringArg(args, "userId"))
}

func (r *Runtime) queryUserSubscribedTo(ctx context.Context, _ any, args map[string]any) (any, error) {
	return r.authorsOf(ctx, stringArg(args, "id"))
}

func (r *Runtime) querySubscribedToUser(ctx context.Context, _ any, args map[string]any) (any, error) {
	return r.subscribersOf(ctx, stringArg(args, "id"))
}

func (r *Runtime) profileOfUser(ctx context.Context, userID string) (any, error) {
	return found(r.gw.Profiles().FindUnique(ctx, store.Where(store.Eq("userId", userID))))
}

func (r *Runtime) postsOfAuthor(ctx context.Context, userID string) (any, error) {
	return many(r.gw.Posts().FindMany(ctx, store.Where(store.Eq("authorId", userID))))
}

// authorsOf lists the users userID subscribes to, or null when there are none.
func (r *Runtime) authorsOf(ctx context.Context, userID string) (any, error) {
	edges, err := r.gw.Subscriptions().FindMany(ctx, store.Where(store.Eq("subscriberId", userID)))
	if err != nil {
		return nil, storeError(err)
	}
	if len(edges) == 0 {
		return nil, nil
	}
	ids := make([]string, len(edges))
	for i, e := range edges {
		ids[i] = e.AuthorID
	}
	return many(r.gw.Users().FindMany(ctx, store.Where(store.In("id", ids))))
}

// subscribersOf lists the users subscribed to userID, or null when there are none.
func (r *Runtime) subscribersOf(ctx context.Context, userID string) (any, error) {
	edges, err := r.gw.Subscriptions().FindMany(ctx, store.Where(store.Eq("authorId", userID)))
	if err != nil {
		return nil, storeError(err)
	}
	if len(edges) == 0 {
		return nil, nil
	}
	ids := make([]string, len(edges))
	for i, e := range edges {
		ids[i] = e.SubscriberID
	}
	return many(r.gw.Users().FindMany(ctx, store.Where(store.In("id", ids))))
}

// found turns a FindUnique result into a field value; absence is null.
func found[T any](v *T, err error) (any, error) {
	if err != nil {
		return nil, storeError(err)
	}
	if v == nil {
		return nil, nil
	}
	return v, nil
}

// many turns a FindMany result into a list value that is never null.
func many[T any](vs []*T, err error) (any, error) {
	if err != nil {
		return nil, storeError(err)
	}
	if vs == nil {
		vs = []*T{}
	}
	return vs, nil
}
