package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seedlab/sprout/internal/api"
	"github.com/seedlab/sprout/internal/jobs"
	"github.com/seedlab/sprout/internal/svcctx"
)

// CreateDiaryRequest is the body of POST /api/diary.
type CreateDiaryRequest struct {
	PlantName string `json:"plant_name"`
}

// CreateDiaryEndpoint handles POST /api/diary.
type CreateDiaryEndpoint struct{}

var _ api.Endpoint = (*CreateDiaryEndpoint)(nil)

func (e *CreateDiaryEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/diary", e.handler
}

func (e *CreateDiaryEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Create a diary entry
//	@Description	Start generation of a first-person diary entry for a plant
//	@Tags			diary
//	@Accept			json
//	@Produce		json
//	@Param			request	body		CreateDiaryRequest	true	"Plant name"
//	@Success		202		{object}	jobs.Record
//	@Failure		400		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/diary [post]
func (e *CreateDiaryEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req CreateDiaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if strings.TrimSpace(req.PlantName) == "" {
		writeError(w, http.StatusBadRequest, "plant_name is required")
		return
	}

	orch := svcctx.OrchestratorFrom(r.Context())
	if orch == nil {
		writeError(w, http.StatusServiceUnavailable, "orchestrator not initialized")
		return
	}

	record, err := orch.CreateDiaryEntry(r.Context(), req.PlantName)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("diary creation failed: %v", err))
		return
	}

	writeJSON(w, http.StatusAccepted, record)
}

func (e *CreateDiaryEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "diary <plant-name>",
		Short: "Create a diary entry for a plant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp jobs.Record
			if err := client.Post(cmd.Context(), "/api/diary", CreateDiaryRequest{PlantName: args[0]}, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
