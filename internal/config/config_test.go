package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/memberql/internal/resolver"
)

func TestDefaults(t *testing.T) {
	c, err := Load(New())
	require.NoError(t, err)

	require.Equal(t, ":8080", c.Server.Addr)
	require.Equal(t, 10*time.Second, c.Server.Timeout)
	require.Equal(t, int64(1048576), c.Server.MaxBodyBytes)
	require.Empty(t, c.Server.CORSOrigins)
	require.Equal(t, Store{Driver: DriverMemory, Seed: true}, c.Store)
	require.Equal(t, resolver.DefaultOptions(), c.Resolver)
	require.True(t, c.GraphQL.Introspection)
	require.Equal(t, Log{Level: "info", Format: "json"}, c.Log)
	require.Equal(t, OTel{Service: "memberql"}, c.OTel)
	require.True(t, c.Metrics.Enabled)
}

func TestEnvironment(t *testing.T) {
	t.Setenv("MEMBERQL_SERVER_ADDR", ":9090")
	t.Setenv("MEMBERQL_SERVER_TIMEOUT", "3s")
	t.Setenv("MEMBERQL_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("MEMBERQL_RESOLVER_POSTS", "legacy")
	t.Setenv("MEMBERQL_RESOLVER_MAX_CONCURRENCY", "2")
	t.Setenv("MEMBERQL_GRAPHQL_INTROSPECTION", "false")

	c, err := Load(New())
	require.NoError(t, err)
	require.Equal(t, ":9090", c.Server.Addr)
	require.Equal(t, 3*time.Second, c.Server.Timeout)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, c.Server.CORSOrigins)
	require.Equal(t, resolver.PostsLegacy, c.Resolver.Posts)
	require.Equal(t, 2, c.Resolver.MaxConcurrency)
	require.False(t, c.GraphQL.Introspection)
}

func TestFileAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memberql.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":7000"
  pretty: true
store:
  driver: sqlite
  dsn: "file:test.db"
resolver:
  missing_target: "null"
`), 0o644))

	v := New()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, BindFlags(v, fs))
	require.NoError(t, fs.Parse([]string{"--server.addr=:7001", "--log.format=console"}))
	require.NoError(t, ReadFile(v, path))

	c, err := Load(v)
	require.NoError(t, err)
	require.Equal(t, ":7001", c.Server.Addr)
	require.True(t, c.Server.Pretty)
	require.Equal(t, Store{Driver: DriverSQLite, DSN: "file:test.db", Seed: true}, c.Store)
	require.Equal(t, resolver.MissingTargetNull, c.Resolver.MissingTarget)
	require.Equal(t, "console", c.Log.Format)
	// unset flags do not shadow defaults
	require.Equal(t, 10*time.Second, c.Server.Timeout)
}

func TestReadFileErrors(t *testing.T) {
	require.NoError(t, ReadFile(New(), ""))
	require.Error(t, ReadFile(New(), filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestValidation(t *testing.T) {
	cases := map[string]map[string]any{
		"unknown driver":        {"store.driver": "mongo"},
		"postgres without dsn":  {"store.driver": "postgres"},
		"unknown posts policy":  {"resolver.posts": "all"},
		"unknown subscriptions": {"resolver.subscriptions": "maybe"},
		"unknown missing":       {"resolver.missing_target": "ignore"},
		"unknown log format":    {"log.format": "xml"},
		"negative timeout":      {"server.timeout": "-1s"},
		"empty addr":            {"server.addr": ""},
	}
	for name, settings := range cases {
		t.Run(name, func(t *testing.T) {
			v := New()
			for k, val := range settings {
				v.Set(k, val)
			}
			_, err := Load(v)
			require.Error(t, err)
		})
	}
}
