package resolver

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/hanpama/memberql/internal/model"
	"github.com/hanpama/memberql/internal/schema"
)

// binding resolves one field against the store.
type binding func(r *Runtime, ctx context.Context, parent any, args map[string]any) (any, error)

// projection reads a scalar field from a store record. It reports false
// when source is not the record type it was declared for.
type projection func(source any) (any, bool)

func prop[T any](get func(*T) any) projection {
	return func(source any) (any, bool) {
		v, ok := source.(*T)
		if !ok || v == nil {
			return nil, false
		}
		return get(v), true
	}
}

var projections = map[string]projection{
	"User.id":      prop(func(u *model.User) any { return u.ID }),
	"User.name":    prop(func(u *model.User) any { return u.Name }),
	"User.balance": prop(func(u *model.User) any { return u.Balance }),

	"Post.id":       prop(func(p *model.Post) any { return p.ID }),
	"Post.title":    prop(func(p *model.Post) any { return p.Title }),
	"Post.content":  prop(func(p *model.Post) any { return p.Content }),
	"Post.authorId": prop(func(p *model.Post) any { return p.AuthorID }),

	"Profile.id":           prop(func(p *model.Profile) any { return p.ID }),
	"Profile.isMale":       prop(func(p *model.Profile) any { return p.IsMale }),
	"Profile.yearOfBirth":  prop(func(p *model.Profile) any { return p.YearOfBirth }),
	"Profile.userId":       prop(func(p *model.Profile) any { return p.UserID }),
	"Profile.memberTypeId": prop(func(p *model.Profile) any { return p.MemberTypeID }),

	"MemberType.id":                 prop(func(m *model.MemberType) any { return m.ID }),
	"MemberType.discount":           prop(func(m *model.MemberType) any { return m.Discount }),
	"MemberType.postsLimitPerMonth": prop(func(m *model.MemberType) any { return m.PostsLimitPerMonth }),

	"Subscription.authorId":     prop(func(s *model.Subscription) any { return s.AuthorID }),
	"Subscription.subscriberId": prop(func(s *model.Subscription) any { return s.SubscriberID }),
}

// relationships are store-backed reads, resolved in batches.
var relationships = map[string]binding{
	"User.profile":          (*Runtime).userProfile,
	"User.posts":            (*Runtime).userPosts,
	"User.userSubscribedTo": (*Runtime).userSubscribedTo,
	"User.subscribedToUser": (*Runtime).subscribedToUser,
	"Profile.memberType":    (*Runtime).profileMemberType,

	"Query.users":              (*Runtime).queryUsers,
	"Query.user":               (*Runtime).queryUser,
	"Query.posts":              (*Runtime).queryPosts,
	"Query.post":               (*Runtime).queryPost,
	"Query.profiles":           (*Runtime).queryProfiles,
	"Query.profile":            (*Runtime).queryProfile,
	"Query.getProfileByUserId": (*Runtime).queryProfileByUserID,
	"Query.memberTypes":        (*Runtime).queryMemberTypes,
	"Query.memberType":         (*Runtime).queryMemberType,
	"Query.getPostByUserId":    (*Runtime).queryPostsByUserID,
	"Query.userSubscribedTo":   (*Runtime).queryUserSubscribedTo,
	"Query.subscribedToUser":   (*Runtime).querySubscribedToUser,
}

// mutations run inline and one at a time, in document order.
var mutations = map[string]binding{
	"Mutation.createUser":         (*Runtime).createUser,
	"Mutation.updateUser":         (*Runtime).updateUser,
	"Mutation.deleteUserById":     (*Runtime).deleteUser,
	"Mutation.createPost":         (*Runtime).createPost,
	"Mutation.updatePostById":     (*Runtime).updatePost,
	"Mutation.deletePostById":     (*Runtime).deletePost,
	"Mutation.createProfile":      (*Runtime).createProfile,
	"Mutation.updateProfileById":  (*Runtime).updateProfile,
	"Mutation.deleteProfileById":  (*Runtime).deleteProfile,
	"Mutation.subscribeTo":        (*Runtime).subscribeTo,
	"Mutation.deleteSubscription": (*Runtime).deleteSubscription,
}

// IsAsync reports whether a field is store-backed and must be batched.
// It is the classification handed to graph.New.
func IsAsync(typeName, fieldName string) bool {
	_, ok := relationships[typeName+"."+fieldName]
	return ok
}

// Check verifies that every object field of s can be resolved: async
// fields need a relationship binding and sync fields a projection or a
// mutation binding.
func Check(s *schema.Schema) error {
	var problems []string
	for name, t := range s.Types {
		if t.Kind != schema.TypeKindObject || strings.HasPrefix(name, "__") {
			continue
		}
		for _, f := range t.Fields {
			if strings.HasPrefix(f.Name, "__") {
				continue
			}
			key := name + "." + f.Name
			_, rel := relationships[key]
			_, proj := projections[key]
			_, mut := mutations[key]
			switch {
			case f.Async && !rel:
				problems = append(problems, key+" is async but has no relationship binding")
			case !f.Async && rel:
				problems = append(problems, key+" has a relationship binding but is not async")
			case !f.Async && !proj && !mut:
				problems = append(problems, key+" has no binding")
			}
		}
	}
	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return errors.Errorf("resolver: %s", strings.Join(problems, "; "))
}
