package endpoints

import (
	"github.com/jackzampolin/foliate/internal/api"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	SwaggerSpecPath string
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		// Health endpoint
		&HealthEndpoint{},

		// Job endpoints
		&CreateJobEndpoint{},
		&ListJobsEndpoint{},
		&GetJobEndpoint{},
		&JobEventsEndpoint{},
		&JobResultEndpoint{},
		&RetryJobEndpoint{},

		// Swagger/OpenAPI endpoint
		&SwaggerEndpoint{SpecPath: cfg.SwaggerSpecPath},
	}
}
