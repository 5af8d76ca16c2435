// Package graph declares the domain type graph served by memberql.
package graph

import (
	_ "embed"

	"github.com/hanpama/memberql/internal/schema"
)

// SDL is the schema source.
//
//go:embed schema.graphql
var SDL string

// New builds the executable schema. async reports which fields are
// store-backed; nil makes every field sync.
func New(async func(typeName, fieldName string) bool) (*schema.Schema, error) {
	var opts []schema.BuildOption
	if async != nil {
		opts = append(opts, schema.WithAsync(async))
	}
	return schema.BuildFromSDL("schema.graphql", SDL, opts...)
}
