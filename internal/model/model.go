// Package model holds the entities served by the GraphQL API. Values are
// plain records as read from the store; relationships are resolved by id.
package model

// MemberTypeID identifies one of the fixed member tiers.
type MemberTypeID string

const (
	MemberTypeBasic    MemberTypeID = "basic"
	MemberTypeBusiness MemberTypeID = "business"
)

// MemberTypeIDs lists the closed set of tiers in declaration order.
var MemberTypeIDs = []MemberTypeID{MemberTypeBasic, MemberTypeBusiness}

// Valid reports whether id belongs to the closed set of tiers.
func (id MemberTypeID) Valid() bool {
	for _, v := range MemberTypeIDs {
		if v == id {
			return true
		}
	}
	return false
}

type User struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Balance float64 `json:"balance"`
}

type Post struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	AuthorID string `json:"authorId"`
}

type Profile struct {
	ID           string `json:"id"`
	IsMale       bool   `json:"isMale"`
	YearOfBirth  int    `json:"yearOfBirth"`
	UserID       string `json:"userId"`
	MemberTypeID string `json:"memberTypeId"`
}

type MemberType struct {
	ID                 MemberTypeID `json:"id"`
	Discount           float64      `json:"discount"`
	PostsLimitPerMonth int          `json:"postsLimitPerMonth"`
}

// Subscription is a directed edge: SubscriberID follows AuthorID.
// It has no identity beyond the pair.
type Subscription struct {
	AuthorID     string `json:"authorId"`
	SubscriberID string `json:"subscriberId"`
}

// DefaultMemberTypes is the reference set every store is seeded with.
func DefaultMemberTypes() []MemberType {
	return []MemberType{
		{ID: MemberTypeBasic, Discount: 2.3, PostsLimitPerMonth: 20},
		{ID: MemberTypeBusiness, Discount: 7.7, PostsLimitPerMonth: 100},
	}
}
