package endpoints

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/seedlab/sprout/internal/api"
	"github.com/seedlab/sprout/internal/docstore"
	"github.com/seedlab/sprout/internal/jobs"
	"github.com/seedlab/sprout/internal/svcctx"
)

// GetJobResponse is the job record plus, for unified records, the live
// statuses of the sibling jobs. Siblings are read fresh on every poll
// rather than denormalized into the unified document.
type GetJobResponse struct {
	*jobs.Record

	Siblings map[string]jobs.Status `json:"siblings,omitempty"`
}

// GetJobEndpoint handles GET /api/jobs/{id}.
type GetJobEndpoint struct{}

var _ api.Endpoint = (*GetJobEndpoint)(nil)

func (e *GetJobEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/jobs/{id}", e.handler
}

func (e *GetJobEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get job by ID
//	@Description	Get a job record; unified records include sibling statuses
//	@Tags			jobs
//	@Produce		json
//	@Param			id	path		string	true	"Job ID"
//	@Success		200	{object}	GetJobResponse
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/jobs/{id} [get]
func (e *GetJobEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "job id is required")
		return
	}

	jm := svcctx.JobManagerFrom(r.Context())
	if jm == nil {
		writeError(w, http.StatusServiceUnavailable, "job manager not initialized")
		return
	}

	record, err := jm.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := GetJobResponse{Record: record}

	if record.Kind == jobs.KindUnified && record.Result != nil && record.Result.Unified != nil {
		links := record.Result.Unified
		resp.Siblings = make(map[string]jobs.Status, 3)
		for name, siblingID := range map[string]string{
			"research":  links.ResearchJobID,
			"guide":     links.GuideJobID,
			"character": links.CharacterJobID,
		} {
			sibling, err := jm.Get(r.Context(), siblingID)
			if err != nil {
				// A missing sibling is reported, not fatal for the poll.
				resp.Siblings[name] = "unknown"
				continue
			}
			resp.Siblings[name] = sibling.Status
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *GetJobEndpoint) Command(getServerURL func() string) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Job record operations",
	}

	jobsCmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Get a job by ID",
		Long: `Get a job record.

For unified records this also includes the current status of the
research, guide, and character jobs the submission created.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp GetJobResponse
			if err := client.Get(cmd.Context(), "/api/jobs/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	})

	return jobsCmd
}
