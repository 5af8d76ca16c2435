// Package logging builds the process logger and turns bus events into log
// entries.
package logging

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	eventbus "github.com/hanpama/memberql/internal/eventbus"
	events "github.com/hanpama/memberql/internal/events"
	reqid "github.com/hanpama/memberql/internal/reqid"
)

// New returns a zap logger writing to stderr. format is "json" or "console".
func New(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "log level %q", level)
	}

	var cfg zap.Config
	switch strings.ToLower(format) {
	case "", "json":
		cfg = zap.NewProductionConfig()
	case "console":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, errors.Errorf("unknown log format %q (want json or console)", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	return cfg.Build()
}

func withRequest(ctx context.Context, fields ...zap.Field) []zap.Field {
	rid, _ := reqid.FromContext(ctx)
	return append(fields, zap.String("request_id", rid))
}

// Attach logs HTTP requests, GraphQL operations, store calls and resolver
// panics published on the global bus.
func Attach(logger *zap.Logger) (detach func()) {
	unsubs := []func(){
		eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
			logger.Info("http request", withRequest(ctx,
				zap.String("method", e.Request.Method),
				zap.String("path", e.Request.URL.Path),
				zap.Int("status", e.Status),
				zap.Int("bytes", e.Bytes),
				zap.Duration("duration", e.Duration),
			)...)
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.GraphQLFinish) {
			fields := []zap.Field{
				zap.String("operation_name", e.OperationName),
				zap.String("operation_type", e.OperationType),
				zap.Int("error_count", len(e.Errors)),
				zap.Duration("duration", e.Duration),
			}
			if len(e.Errors) > 0 {
				fields = append(fields, zap.Errors("errors", e.Errors))
			}
			logger.Info("graphql operation", withRequest(ctx, fields...)...)
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.StoreCallFinish) {
			fields := withRequest(ctx,
				zap.Uint64("call_id", e.CallID),
				zap.String("collection", e.Collection),
				zap.String("op", e.Op),
				zap.Duration("duration", e.Duration),
			)
			if e.Err != nil {
				logger.Warn("store call failed", append(fields, zap.Error(e.Err))...)
				return
			}
			logger.Debug("store call", fields...)
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.ResolverPanic) {
			logger.Error("resolver panic", withRequest(ctx,
				zap.String("object_type", e.ObjectType),
				zap.String("field", e.Field),
				zap.Any("panic", e.Value),
				zap.ByteString("stack", e.Stack),
			)...)
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
