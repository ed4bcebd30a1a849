// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/seedlab/sprout/internal/config"
	"github.com/seedlab/sprout/internal/docstore"
	"github.com/seedlab/sprout/internal/genai"
	"github.com/seedlab/sprout/internal/home"
	"github.com/seedlab/sprout/internal/jobs"
	"github.com/seedlab/sprout/internal/objstore"
	"github.com/seedlab/sprout/internal/orchestrator"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Docstore     docstore.Store
	Objstore     objstore.Store
	JobManager   *jobs.Manager
	Progress     *jobs.Registry
	Supervisor   *jobs.Supervisor
	EncodePool   *jobs.EncodePool
	Orchestrator *orchestrator.Orchestrator
	GenAI        *genai.Client
	Config       *config.Manager
	Logger       *slog.Logger
	Home         *home.Dir
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

// DocstoreFrom extracts the document store from context.
func DocstoreFrom(ctx context.Context) docstore.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Docstore
	}
	return nil
}

// ObjstoreFrom extracts the object store from context.
func ObjstoreFrom(ctx context.Context) objstore.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Objstore
	}
	return nil
}

// JobManagerFrom extracts the job manager from context.
func JobManagerFrom(ctx context.Context) *jobs.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.JobManager
	}
	return nil
}

// ProgressFrom extracts the progress channel registry from context.
func ProgressFrom(ctx context.Context) *jobs.Registry {
	if s := ServicesFrom(ctx); s != nil {
		return s.Progress
	}
	return nil
}

// SupervisorFrom extracts the background task supervisor from context.
func SupervisorFrom(ctx context.Context) *jobs.Supervisor {
	if s := ServicesFrom(ctx); s != nil {
		return s.Supervisor
	}
	return nil
}

// EncodePoolFrom extracts the base64 encode pool from context.
func EncodePoolFrom(ctx context.Context) *jobs.EncodePool {
	if s := ServicesFrom(ctx); s != nil {
		return s.EncodePool
	}
	return nil
}

// OrchestratorFrom extracts the plant workflow orchestrator from context.
func OrchestratorFrom(ctx context.Context) *orchestrator.Orchestrator {
	if s := ServicesFrom(ctx); s != nil {
		return s.Orchestrator
	}
	return nil
}

// GenAIFrom extracts the generation client from context.
func GenAIFrom(ctx context.Context) *genai.Client {
	if s := ServicesFrom(ctx); s != nil {
		return s.GenAI
	}
	return nil
}

// ConfigFrom extracts the config manager from context.
func ConfigFrom(ctx context.Context) *config.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.Config
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

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}
