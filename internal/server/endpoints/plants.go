package endpoints

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seedlab/sprout/internal/api"
	"github.com/seedlab/sprout/internal/orchestrator"
	"github.com/seedlab/sprout/internal/svcctx"
)

// SubmitPlantRequest is the body of POST /api/plants. Image is the
// base64-encoded seed packet; a data URL is also accepted, in which
// case the MIME type is taken from the URL itself.
type SubmitPlantRequest struct {
	Image string `json:"image"`
	MIME  string `json:"mime,omitempty"`
}

// SubmitPlantEndpoint handles POST /api/plants.
type SubmitPlantEndpoint struct{}

var _ api.Endpoint = (*SubmitPlantEndpoint)(nil)

func (e *SubmitPlantEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/plants", e.handler
}

func (e *SubmitPlantEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Submit a seed packet
//	@Description	Upload a seed-packet image and start artifact generation
//	@Tags			plants
//	@Accept			json
//	@Produce		json
//	@Param			request	body		SubmitPlantRequest	true	"Base64-encoded packet image"
//	@Success		202		{object}	orchestrator.Submission
//	@Failure		400		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/plants [post]
func (e *SubmitPlantEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req SubmitPlantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Image == "" {
		writeError(w, http.StatusBadRequest, "image is required")
		return
	}

	payload := req.Image
	if strings.HasPrefix(payload, "data:") {
		mime, rest, err := splitDataURL(payload)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		payload = rest
		if req.MIME == "" {
			req.MIME = mime
		}
	}

	pool := svcctx.EncodePoolFrom(r.Context())
	if pool == nil {
		writeError(w, http.StatusServiceUnavailable, "encode pool not initialized")
		return
	}
	imageData, err := pool.Decode(r.Context(), payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid base64 image: %v", err))
		return
	}

	orch := svcctx.OrchestratorFrom(r.Context())
	if orch == nil {
		writeError(w, http.StatusServiceUnavailable, "orchestrator not initialized")
		return
	}

	sub, err := orch.Submit(r.Context(), imageData, req.MIME)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("submission failed: %v", err))
		return
	}

	writeJSON(w, http.StatusAccepted, sub)
}

func (e *SubmitPlantEndpoint) Command(getServerURL func() string) *cobra.Command {
	plantsCmd := &cobra.Command{
		Use:   "plants",
		Short: "Plant submission operations",
	}

	plantsCmd.AddCommand(&cobra.Command{
		Use:   "submit <image-file>",
		Short: "Submit a seed-packet image for generation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read image: %w", err)
			}

			req := SubmitPlantRequest{
				Image: base64.StdEncoding.EncodeToString(data),
				MIME:  mimeForFile(args[0]),
			}

			client := api.NewClient(getServerURL())
			var resp orchestrator.Submission
			if err := client.Post(cmd.Context(), "/api/plants", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	})

	return plantsCmd
}

// splitDataURL splits "data:<mime>;base64,<payload>" into its parts.
func splitDataURL(s string) (mime, payload string, err error) {
	rest := strings.TrimPrefix(s, "data:")
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return "", "", fmt.Errorf("malformed data URL")
	}
	return strings.TrimSuffix(meta, ";base64"), payload, nil
}

func mimeForFile(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	default:
		return "image/png"
	}
}
