// Package config resolves settings from defaults, an optional config file,
// MEMBERQL_* environment variables and command-line flags.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/hanpama/memberql/internal/resolver"
)

const EnvPrefix = "MEMBERQL"

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Server   Server
	Store    Store
	Resolver resolver.Options
	GraphQL  GraphQL
	Log      Log
	OTel     OTel
	Metrics  Metrics
}

type Server struct {
	Addr         string
	Timeout      time.Duration
	MaxBodyBytes int64
	Pretty       bool
	CORSOrigins  []string
}

type Store struct {
	Driver string
	DSN    string
	Seed   bool
}

type GraphQL struct {
	Introspection bool
}

type Log struct {
	Level  string
	Format string
}

type OTel struct {
	Endpoint string
	Service  string
}

type Metrics struct {
	Enabled bool
}

var defaults = map[string]any{
	"server.addr":              ":8080",
	"server.timeout":           10 * time.Second,
	"server.max_body_bytes":    int64(1 << 20),
	"server.pretty":            false,
	"server.cors_origins":      []string{},
	"store.driver":             DriverMemory,
	"store.dsn":                "",
	"store.seed":               true,
	"resolver.posts":           string(resolver.PostsByAuthor),
	"resolver.subscriptions":   string(resolver.SubscriptionsUnique),
	"resolver.missing_target":  string(resolver.MissingTargetError),
	"resolver.max_concurrency": 8,
	"graphql.introspection":    true,
	"log.level":                "info",
	"log.format":               "json",
	"otel.endpoint":            "",
	"otel.service":             "memberql",
	"metrics.enabled":          true,
}

// New returns a viper instance with defaults and environment binding set up.
// MEMBERQL_SERVER_ADDR overrides server.addr.
func New() *viper.Viper {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// BindFlags registers one flag per setting on fs and binds it to v. Flags
// only take effect when set explicitly.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	fs.String("server.addr", ":8080", "HTTP listen address")
	fs.Duration("server.timeout", 10*time.Second, "Default per-request timeout")
	fs.Int64("server.max_body_bytes", 1<<20, "Maximum request body size")
	fs.Bool("server.pretty", false, "Pretty-print JSON responses")
	fs.StringSlice("server.cors_origins", nil, "Allowed CORS origins. Repeatable")
	fs.String("store.driver", DriverMemory, "Data store: memory, postgres or sqlite")
	fs.String("store.dsn", "", "Data source name for postgres or sqlite")
	fs.Bool("store.seed", true, "Insert the reference member types on start")
	fs.String("resolver.posts", string(resolver.PostsByAuthor), "User.posts policy: author or legacy")
	fs.String("resolver.subscriptions", string(resolver.SubscriptionsUnique), "subscribeTo policy: unique or allow-duplicates")
	fs.String("resolver.missing_target", string(resolver.MissingTargetError), "Missing mutation target: error or null")
	fs.Int("resolver.max_concurrency", 8, "Concurrent store calls per batch")
	fs.Bool("graphql.introspection", true, "Enable GraphQL introspection")
	fs.String("log.level", "info", "Log level")
	fs.String("log.format", "json", "Log format: json or console")
	fs.String("otel.endpoint", "", "OTLP collector endpoint")
	fs.String("otel.service", "memberql", "OpenTelemetry service name")
	fs.Bool("metrics.enabled", true, "Serve Prometheus metrics on /metrics")
	return v.BindPFlags(fs)
}

// ReadFile merges the config file at path into v. An empty path is a no-op.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	return errors.Wrapf(v.ReadInConfig(), "reading config %s", path)
}

// Load resolves and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	c := &Config{
		Server: Server{
			Addr:         v.GetString("server.addr"),
			Timeout:      v.GetDuration("server.timeout"),
			MaxBodyBytes: v.GetInt64("server.max_body_bytes"),
			Pretty:       v.GetBool("server.pretty"),
			CORSOrigins:  splitList(v.GetStringSlice("server.cors_origins")),
		},
		Store: Store{
			Driver: strings.ToLower(v.GetString("store.driver")),
			DSN:    v.GetString("store.dsn"),
			Seed:   v.GetBool("store.seed"),
		},
		Resolver: resolver.Options{
			Posts:          resolver.PostsPolicy(v.GetString("resolver.posts")),
			Subscriptions:  resolver.SubscriptionPolicy(v.GetString("resolver.subscriptions")),
			MissingTarget:  resolver.MissingTargetPolicy(v.GetString("resolver.missing_target")),
			MaxConcurrency: v.GetInt("resolver.max_concurrency"),
		},
		GraphQL: GraphQL{Introspection: v.GetBool("graphql.introspection")},
		Log:     Log{Level: v.GetString("log.level"), Format: strings.ToLower(v.GetString("log.format"))},
		OTel:    OTel{Endpoint: v.GetString("otel.endpoint"), Service: v.GetString("otel.service")},
		Metrics: Metrics{Enabled: v.GetBool("metrics.enabled")},
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr must not be empty")
	}
	if c.Server.Timeout < 0 {
		return errors.Errorf("server.timeout must not be negative, got %s", c.Server.Timeout)
	}
	if c.Server.MaxBodyBytes < 0 {
		return errors.Errorf("server.max_body_bytes must not be negative, got %d", c.Server.MaxBodyBytes)
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres, DriverSQLite:
		if c.Store.DSN == "" {
			return errors.Errorf("store.dsn is required for the %s driver", c.Store.Driver)
		}
	default:
		return errors.Errorf("unknown store.driver %q (want memory, postgres or sqlite)", c.Store.Driver)
	}
	if err := c.Resolver.Validate(); err != nil {
		return errors.Wrap(err, "resolver")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return errors.Errorf("unknown log.format %q (want json or console)", c.Log.Format)
	}
	return nil
}

// splitList accepts both repeated values and comma separated ones, the form
// environment variables use.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
