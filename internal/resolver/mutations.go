package resolver

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/hanpama/memberql/internal/executor"
	"github.com/hanpama/memberql/internal/model"
	"github.com/hanpama/memberql/internal/store"
)

func (r *Runtime) createUser(ctx context.Context, _ any, args map[string]any) (any, error) {
	return found(r.gw.Users().Create(ctx, model.User{
		ID:      uuid.NewString(),
		Name:    stringArg(args, "name"),
		Balance: floatArg(args, "balance"),
	}))
}

func (r *Runtime) updateUser(ctx context.Context, _ any, args map[string]any) (any, error) {
	id := stringArg(args, "userId")
	u, err := r.gw.Users().Update(ctx, byID(id), store.Patch{
		"name":    stringArg(args, "name"),
		"balance": floatArg(args, "balance"),
	})
	return r.updated("user", id, u, err)
}

func (r *Runtime) deleteUser(ctx context.Context, _ any, args map[string]any) (any, error) {
	id := stringArg(args, "userId")
	return deleteByID(ctx, r, r.gw.Users(), "user", id)
}

func (r *Runtime) createPost(ctx context.Context, _ any, args map[string]any) (any, error) {
	return found(r.gw.Posts().Create(ctx, model.Post{
		ID:       uuid.NewString(),
		Title:    stringArg(args, "title"),
		Content:  stringArg(args, "content"),
		AuthorID: stringArg(args, "authorId"),
	}))
}

func (r *Runtime) updatePost(ctx context.Context, _ any, args map[string]any) (any, error) {
	id := stringArg(args, "postId")
	p, err := r.gw.Posts().Update(ctx, byID(id), store.Patch{
		"title":   stringArg(args, "title"),
		"content": stringArg(args, "content"),
	})
	return r.updated("post", id, p, err)
}

func (r *Runtime) deletePost(ctx context.Context, _ any, args map[string]any) (any, error) {
	return deleteByID(ctx, r, r.gw.Posts(), "post", stringArg(args, "postId"))
}

func (r *Runtime) createProfile(ctx context.Context, _ any, args map[string]any) (any, error) {
	isMale, _ := boolArg(args, "isMale")
	return found(r.gw.Profiles().Create(ctx, model.Profile{
		ID:           uuid.NewString(),
		IsMale:       isMale,
		YearOfBirth:  intArg(args, "yearOfBirth"),
		UserID:       stringArg(args, "userId"),
		MemberTypeID: stringArg(args, "memberTypeId"),
	}))
}

// updateProfile leaves isMale untouched when the argument is omitted or null.
func (r *Runtime) updateProfile(ctx context.Context, _ any, args map[string]any) (any, error) {
	id := stringArg(args, "profileId")
	patch := store.Patch{
		"memberTypeId": stringArg(args, "memberTypeId"),
		"yearOfBirth":  intArg(args, "yearOfBirth"),
	}
	if isMale, ok := boolArg(args, "isMale"); ok {
		patch["isMale"] = isMale
	}
	p, err := r.gw.Profiles().Update(ctx, byID(id), patch)
	return r.updated("profile", id, p, err)
}

func (r *Runtime) deleteProfile(ctx context.Context, _ any, args map[string]any) (any, error) {
	return deleteByID(ctx, r, r.gw.Profiles(), "profile", stringArg(args, "profileId"))
}

// subscribeTo makes userId follow authorId and returns the author.
func (r *Runtime) subscribeTo(ctx context.Context, _ any, args map[string]any) (any, error) {
	userID, authorID := stringArg(args, "userId"), stringArg(args, "authorId")

	subscriber, err := r.gw.Users().FindUnique(ctx, byID(userID))
	if err != nil {
		return nil, storeError(err)
	}
	if subscriber == nil {
		return r.missing("user", userID)
	}
	author, err := r.gw.Users().FindUnique(ctx, byID(authorID))
	if err != nil {
		return nil, storeError(err)
	}
	if author == nil {
		return r.missing("user", authorID)
	}

	edge := store.Where(store.Eq("authorId", authorID), store.Eq("subscriberId", userID))
	if r.opts.Subscriptions == SubscriptionsUnique {
		existing, err := r.gw.Subscriptions().FindUnique(ctx, edge)
		if err != nil {
			return nil, storeError(err)
		}
		if existing != nil {
			return author, nil
		}
	}
	if _, err := r.gw.Subscriptions().Create(ctx, model.Subscription{AuthorID: authorID, SubscriberID: userID}); err != nil {
		return nil, storeError(err)
	}
	return author, nil
}

// deleteSubscription removes the edge if present and always resolves null.
func (r *Runtime) deleteSubscription(ctx context.Context, _ any, args map[string]any) (any, error) {
	edge := store.Where(
		store.Eq("subscriberId", stringArg(args, "userId")),
		store.Eq("authorId", stringArg(args, "authorId")),
	)
	if _, err := r.gw.Subscriptions().DeleteMany(ctx, edge); err != nil {
		return nil, storeError(err)
	}
	return nil, nil
}

func (r *Runtime) updated(entity, id string, v any, err error) (any, error) {
	if errors.Is(err, store.ErrNotFound) {
		return r.missing(entity, id)
	}
	if err != nil {
		return nil, storeError(err)
	}
	return v, nil
}

// deleteByID resolves null once the entity is gone. A missing entity is
// reported per MissingTarget.
func deleteByID[T any](ctx context.Context, r *Runtime, c store.Collection[T], entity, id string) (any, error) {
	v, err := c.FindUnique(ctx, byID(id))
	if err != nil {
		return nil, storeError(err)
	}
	if v == nil {
		return r.missing(entity, id)
	}
	if err := c.Delete(ctx, byID(id)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return r.missing(entity, id)
		}
		return nil, storeError(err)
	}
	return nil, nil
}

func (r *Runtime) missing(entity, id string) (any, error) {
	if r.opts.MissingTarget == MissingTargetNull {
		return nil, nil
	}
	return nil, executor.NewError(executor.CodeNotFound, "%s %q not found", entity, id)
}
