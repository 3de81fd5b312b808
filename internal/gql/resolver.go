package gql

import (
	_ "embed"
	"time"

	"github.com/graph-gophers/graphql-go"
	"github.com/savaki/campus-portal/internal/services"
	"go.uber.org/dig"
)

//go:embed schema.graphqls
var schemaString string

type Config struct {
	dig.In

	AppConfig *services.Config
}

// Resolver is the root GraphQL resolver
type Resolver struct {
	appConfig *services.Config
	now       func() time.Time
}

// NewResolver creates a new root resolver with the required dependencies
func NewResolver(config Config) *Resolver {
	return &Resolver{
		appConfig: config.AppConfig,
		now:       time.Now,
	}
}

// NewSchema creates a new GraphQL schema with the root resolver
func NewSchema(resolver *Resolver) (*graphql.Schema, error) {
	schema, err := graphql.ParseSchema(schemaString, resolver)
	if err != nil {
		return nil, err
	}
	return schema, nil
}

// Ok returns "ok" for health checks
func (r *Resolver) Ok() string {
	return "ok"
}

// ServerTime returns the current server time
func (r *Resolver) ServerTime() DateTime {
	return NewDateTime(r.now().UTC())
}
