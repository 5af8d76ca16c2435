package resolver

import (
	"github.com/pkg/errors"
)

// PostsPolicy selects how User.posts is resolved.
type PostsPolicy string

const (
	// PostsByAuthor lists every post whose authorId is the user.
	PostsByAuthor PostsPolicy = "author"
	// PostsLegacy looks up the single post whose id equals the user's id
	// and returns it as a zero or one element list.
	PostsLegacy PostsPolicy = "legacy"
)

// SubscriptionPolicy decides whether subscribeTo may duplicate an edge.
type SubscriptionPolicy string

const (
	SubscriptionsUnique          SubscriptionPolicy = "unique"
	SubscriptionsAllowDuplicates SubscriptionPolicy = "allow-duplicates"
)

// MissingTargetPolicy decides what a mutation reports when the entity it
// addresses does not exist.
type MissingTargetPolicy string

const (
	// MissingTargetError resolves null and adds a NOT_FOUND field error.
	MissingTargetError MissingTargetPolicy = "error"
	// MissingTargetNull resolves null silently.
	MissingTargetNull MissingTargetPolicy = "null"
)

const defaultMaxConcurrency = 8

// Options configures a Runtime. Zero fields take their defaults.
type Options struct {
	Posts          PostsPolicy
	Subscriptions  SubscriptionPolicy
	MissingTarget  MissingTargetPolicy
	MaxConcurrency int
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Posts:          PostsByAuthor,
		Subscriptions:  SubscriptionsUnique,
		MissingTarget:  MissingTargetError,
		MaxConcurrency: defaultMaxConcurrency,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Posts == "" {
		o.Posts = d.Posts
	}
	if o.Subscriptions == "" {
		o.Subscriptions = d.Subscriptions
	}
	if o.MissingTarget == "" {
		o.MissingTarget = d.MissingTarget
	}
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = d.MaxConcurrency
	}
	return o
}

// Validate rejects unknown policy names.
func (o Options) Validate() error {
	o = o.withDefaults()
	switch o.Posts {
	case PostsByAuthor, PostsLegacy:
	default:
		return errors.Errorf("unknown posts policy %q (want %q or %q)", o.Posts, PostsByAuthor, PostsLegacy)
	}
	switch o.Subscriptions {
	case SubscriptionsUnique, SubscriptionsAllowDuplicates:
	default:
		return errors.Errorf("unknown subscriptions policy %q (want %q or %q)", o.Subscriptions, SubscriptionsUnique, SubscriptionsAllowDuplicates)
	}
	switch o.MissingTarget {
	case MissingTargetError, MissingTargetNull:
	default:
		return errors.Errorf("unknown missing_target policy %q (want %q or %q)", o.MissingTarget, MissingTargetError, MissingTargetNull)
	}
	return nil
}
