package endpoints

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/seedlab/sprout/internal/api"
	"github.com/seedlab/sprout/internal/docstore"
	"github.com/seedlab/sprout/internal/svcctx"
)

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status string `json:"status"`
	Couch  string `json:"couch,omitempty"`
}

// HealthEndpoint handles GET /health.
type HealthEndpoint struct{}

func (e *HealthEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/health", e.handler
}

func (e *HealthEndpoint) RequiresInit() bool { return false }

func (e *HealthEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (e *HealthEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/health", &resp); err != nil {
				return err
			}
			fmt.Printf("Status: %s\n", resp.Status)
			return nil
		},
	}
}

// healthChecker is the slice of the docstore client readiness needs.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ReadyEndpoint handles GET /ready.
type ReadyEndpoint struct{}

func (e *ReadyEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/ready", e.handler
}

func (e *ReadyEndpoint) RequiresInit() bool { return false }

func (e *ReadyEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Couch: "ok"}

	store := svcctx.DocstoreFrom(r.Context())
	if store == nil {
		resp.Status = "degraded"
		resp.Couch = "not_initialized"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	if hc, ok := store.(healthChecker); ok {
		if err := hc.HealthCheck(r.Context()); err != nil {
			resp.Status = "degraded"
			resp.Couch = "unhealthy"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *ReadyEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "ready",
		Short: "Check server readiness (includes CouchDB)",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/ready", &resp); err != nil {
				return err
			}
			fmt.Printf("Status: %s\n", resp.Status)
			if resp.Couch != "" {
				fmt.Printf("Couch:  %s\n", resp.Couch)
			}
			return nil
		},
	}
}

// StatusResponse is the detailed status response.
type StatusResponse struct {
	Server string      `json:"server"`
	Couch  CouchStatus `json:"couch"`
}

// CouchStatus shows CouchDB container and health status.
type CouchStatus struct {
	Container string `json:"container"`
	Health    string `json:"health"`
	URL       string `json:"url,omitempty"`
}

// StatusEndpoint handles GET /status.
type StatusEndpoint struct {
	// CouchManager is set by the server; nil when the CouchDB
	// container is not managed by sprout.
	CouchManager *docstore.DockerManager
}

func (e *StatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/status", e.handler
}

func (e *StatusEndpoint) RequiresInit() bool { return false }

func (e *StatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{Server: "running"}

	if e.CouchManager != nil {
		status, err := e.CouchManager.Status(r.Context())
		if err != nil {
			resp.Couch.Container = "error"
		} else {
			resp.Couch.Container = string(status)
		}
		resp.Couch.URL = e.CouchManager.URL()
	} else {
		resp.Couch.Container = "unmanaged"
	}

	store := svcctx.DocstoreFrom(r.Context())
	if hc, ok := store.(healthChecker); ok {
		if err := hc.HealthCheck(r.Context()); err != nil {
			resp.Couch.Health = "unhealthy"
		} else {
			resp.Couch.Health = "healthy"
		}
	} else {
		resp.Couch.Health = "not_initialized"
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *StatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get detailed server status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp StatusResponse
			if err := client.Get(cmd.Context(), "/status", &resp); err != nil {
				return err
			}
			fmt.Printf("Server: %s\n", resp.Server)
			fmt.Printf("Couch:\n")
			fmt.Printf("  Container: %s\n", resp.Couch.Container)
			fmt.Printf("  Health:    %s\n", resp.Couch.Health)
			if resp.Couch.URL != "" {
				fmt.Printf("  URL:       %s\n", resp.Couch.URL)
			}
			return nil
		},
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
