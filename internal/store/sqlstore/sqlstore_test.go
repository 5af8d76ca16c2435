package sqlstore

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/memberql/internal/model"
	"github.com/hanpama/memberql/internal/store"
)

func openSQLite(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s, err := Open(ctx, SQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, store.SeedMemberTypes(ctx, s))
	return s
}

func createUser(t *testing.T, s *Store) *model.User {
	t.Helper()
	u, err := s.Users().Create(context.Background(), model.User{ID: uuid.NewString(), Name: gofakeit.Name(), Balance: 12.5})
	require.NoError(t, err)
	return u
}

func TestSchemaStatements(t *testing.T) {
	stmts := Postgres.Schema()
	require.Len(t, stmts, 5)
	require.True(t, strings.HasPrefix(stmts[0], "CREATE TABLE IF NOT EXISTS member_types"))

	var profiles string
	for _, s := range stmts {
		if strings.Contains(s, "EXISTS profiles") {
			profiles = s
		}
	}
	require.Contains(t, profiles, "year_of_birth INTEGER NOT NULL")
	require.Contains(t, profiles, "UNIQUE (user_id)")
	require.Contains(t, profiles, "FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE")
	require.NotContains(t, profiles, "REFERENCES member_types")
	require.Contains(t, SQLite.Schema()[1], "balance REAL NOT NULL")
}

func TestDialectFor(t *testing.T) {
	d, err := DialectFor("postgresql")
	require.NoError(t, err)
	require.Equal(t, "pgx", d.Driver)
	_, err = DialectFor("oracle")
	require.Error(t, err)
}

func TestWhereBuilder(t *testing.T) {
	c := &collection[model.Post]{s: &Store{dialect: Postgres}, def: store.PostTable}
	b := &builder{d: Postgres}
	require.NoError(t, c.where(b, store.Where(store.Eq("authorId", "a"), store.In("id", []string{"x", "y"}), store.In("title", []string{}))))
	require.Equal(t, " WHERE author_id = $1 AND id IN ($2, $3) AND 1 = 0", b.String())
	require.Equal(t, []any{"a", "x", "y"}, b.args)

	require.True(t, errors.Is(c.where(&builder{d: Postgres}, store.Where(store.Eq("nope", 1))), store.ErrUnknownField))
}

func TestSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)
	require.NoError(t, store.SeedMemberTypes(ctx, s))
	got, err := s.MemberTypes().FindMany(ctx, nil)
	require.NoError(t, err)
	require.ElementsMatch(t, []*model.MemberType{
		{ID: model.MemberTypeBasic, Discount: 2.3, PostsLimitPerMonth: 20},
		{ID: model.MemberTypeBusiness, Discount: 7.7, PostsLimitPerMonth: 100},
	}, got)
}

func TestCRUD(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)
	u := createUser(t, s)

	got, err := s.Users().FindUnique(ctx, store.Where(store.Eq("id", u.ID)))
	require.NoError(t, err)
	require.Equal(t, u, got)

	missing, err := s.Users().FindUnique(ctx, store.Where(store.Eq("id", uuid.NewString())))
	require.NoError(t, err)
	require.Nil(t, missing)

	updated, err := s.Users().Update(ctx, store.Where(store.Eq("id", u.ID)), store.Patch{"balance": 99.0})
	require.NoError(t, err)
	require.Equal(t, 99.0, updated.Balance)
	require.Equal(t, u.Name, updated.Name)

	_, err = s.Users().Update(ctx, store.Where(store.Eq("id", uuid.NewString())), store.Patch{"name": "x"})
	require.True(t, errors.Is(err, store.ErrNotFound))

	require.NoError(t, s.Users().Delete(ctx, store.Where(store.Eq("id", u.ID))))
	require.True(t, errors.Is(s.Users().Delete(ctx, store.Where(store.Eq("id", u.ID))), store.ErrNotFound))
}

func TestProfileRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)
	u := createUser(t, s)
	p := model.Profile{ID: uuid.NewString(), IsMale: true, YearOfBirth: 1987, UserID: u.ID, MemberTypeID: "business"}
	created, err := s.Profiles().Create(ctx, p)
	require.NoError(t, err)
	require.Equal(t, &p, created)

	p2 := p
	p2.ID = uuid.NewString()
	_, err = s.Profiles().Create(ctx, p2)
	require.True(t, errors.Is(err, store.ErrConstraint), "got %v", err)
}

func TestForeignKeysCascade(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)
	a, b := createUser(t, s), createUser(t, s)

	_, err := s.Posts().Create(ctx, model.Post{ID: uuid.NewString(), Title: "t", Content: "c", AuthorID: uuid.NewString()})
	require.True(t, errors.Is(err, store.ErrConstraint), "got %v", err)

	_, err = s.Posts().Create(ctx, model.Post{ID: uuid.NewString(), Title: gofakeit.BookTitle(), Content: gofakeit.Sentence(5), AuthorID: a.ID})
	require.NoError(t, err)
	_, err = s.Subscriptions().Create(ctx, model.Subscription{AuthorID: a.ID, SubscriberID: b.ID})
	require.NoError(t, err)

	require.NoError(t, s.Users().Delete(ctx, store.Where(store.Eq("id", a.ID))))
	posts, err := s.Posts().FindMany(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, posts)
	edges, err := s.Subscriptions().FindMany(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, edges)
}

func TestForeignKeysOnEveryConnection(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)
	// a second pooled connection must enforce them too
	s.DB().SetMaxOpenConns(2)
	conns := make([]*sql.Conn, 2)
	for i := range conns {
		c, err := s.DB().Conn(ctx)
		require.NoError(t, err)
		defer c.Close()
		conns[i] = c
	}
	for _, c := range conns {
		var on int
		require.NoError(t, c.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&on))
		require.Equal(t, 1, on)
	}
}

func TestFindManyInAndDeleteMany(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)
	a, b, c := createUser(t, s), createUser(t, s), createUser(t, s)

	got, err := s.Users().FindMany(ctx, store.Where(store.In("id", []string{a.ID, c.ID})))
	require.NoError(t, err)
	require.ElementsMatch(t, []*model.User{a, c}, got)

	none, err := s.Users().FindMany(ctx, store.Where(store.In("id", []string{})))
	require.NoError(t, err)
	require.NotNil(t, none)
	require.Empty(t, none)

	for _, sub := range []*model.User{b, c} {
		_, err := s.Subscriptions().Create(ctx, model.Subscription{AuthorID: a.ID, SubscriberID: sub.ID})
		require.NoError(t, err)
	}
	n, err := s.Subscriptions().DeleteMany(ctx, store.Where(store.Eq("authorId", a.ID), store.Eq("subscriberId", b.ID)))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	n, err = s.Subscriptions().DeleteMany(ctx, store.Where(store.Eq("authorId", a.ID), store.Eq("subscriberId", b.ID)))
	require.NoError(t, err)
	require.Zero(t, n)
}
