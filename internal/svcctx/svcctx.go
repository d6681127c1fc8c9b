// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/jackzampolin/foliate/internal/events"
	"github.com/jackzampolin/foliate/internal/home"
	"github.com/jackzampolin/foliate/internal/jobs"
	"github.com/jackzampolin/foliate/internal/pipeline"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Jobs     *jobs.Registry
	Events   *events.Registry
	Pipeline *pipeline.Pipeline
	Config   jobs.ConfigSource
	Home     *home.Dir
	Logger   *slog.Logger
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// JobsFrom extracts the job registry from context.
func JobsFrom(ctx context.Context) *jobs.Registry {
	if s := ServicesFrom(ctx); s != nil {
		return s.Jobs
	}
	return nil
}

// EventsFrom extracts the event emitter registry from context.
func EventsFrom(ctx context.Context) *events.Registry {
	if s := ServicesFrom(ctx); s != nil {
		return s.Events
	}
	return nil
}

// PipelineFrom extracts the conversion pipeline from context.
func PipelineFrom(ctx context.Context) *pipeline.Pipeline {
	if s := ServicesFrom(ctx); s != nil {
		return s.Pipeline
	}
	return nil
}

// ConfigFrom extracts the config source from context.
func ConfigFrom(ctx context.Context) jobs.ConfigSource {
	if s := ServicesFrom(ctx); s != nil {
		return s.Config
	}
	return nil
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}
