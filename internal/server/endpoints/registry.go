package endpoints

import (
	"time"

	"github.com/seedlab/sprout/internal/api"
	"github.com/seedlab/sprout/internal/docstore"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	// CouchManager is nil when the CouchDB container is unmanaged.
	CouchManager *docstore.DockerManager

	// StreamKeepAlive overrides the SSE keep-alive interval. Zero
	// keeps the default.
	StreamKeepAlive time.Duration
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{CouchManager: cfg.CouchManager},

		// Plant workflow endpoints
		&SubmitPlantEndpoint{},
		&StreamEventsEndpoint{KeepAlive: cfg.StreamKeepAlive},

		// Job record endpoints
		&GetJobEndpoint{},

		// Diary endpoints
		&CreateDiaryEndpoint{},
	}
}
