package endpoints

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/seedlab/sprout/internal/api"
	"github.com/seedlab/sprout/internal/docstore"
	"github.com/seedlab/sprout/internal/jobs"
	"github.com/seedlab/sprout/internal/svcctx"
)

// defaultKeepAliveInterval is how often an SSE comment is written when
// no progress events arrive, so proxies do not drop the idle connection.
const defaultKeepAliveInterval = 15 * time.Second

// StreamEventsEndpoint handles GET /api/plants/{id}/events as a
// server-sent event stream of progress updates for one submission.
type StreamEventsEndpoint struct {
	// KeepAlive overrides the keep-alive comment interval. Zero means
	// defaultKeepAliveInterval.
	KeepAlive time.Duration
}

var _ api.Endpoint = (*StreamEventsEndpoint)(nil)

func (e *StreamEventsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/plants/{id}/events", e.handler
}

func (e *StreamEventsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Stream submission progress
//	@Description	Server-sent events for one plant submission; the stream ends after the final event
//	@Tags			plants
//	@Produce		text/event-stream
//	@Param			id	path		string	true	"Unified job ID"
//	@Success		200	{string}	string	"event stream"
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/plants/{id}/events [get]
func (e *StreamEventsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	registry := svcctx.ProgressFrom(r.Context())
	if registry == nil {
		writeError(w, http.StatusServiceUnavailable, "progress registry not initialized")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	channel, live := registry.Lookup(id)
	if !live {
		// The run may have already finished; replay a single final
		// event from the persisted record so late subscribers still
		// get closure.
		final, err := e.finalEvent(r, id)
		if err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				writeError(w, http.StatusNotFound, "submission not found")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		e.startStream(w)
		writeEvent(w, *final)
		flusher.Flush()
		return
	}

	e.startStream(w)
	flusher.Flush()

	interval := e.KeepAlive
	if interval <= 0 {
		interval = defaultKeepAliveInterval
	}
	events := channel.Subscribe(r.Context())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case event, ok := <-events:
			if !ok {
				return
			}
			writeEvent(w, event)
			flusher.Flush()
		}
	}
}

func (e *StreamEventsEndpoint) startStream(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
}

// finalEvent builds the closing event for a run whose channel is gone.
func (e *StreamEventsEndpoint) finalEvent(r *http.Request, id string) (*jobs.Event, error) {
	jm := svcctx.JobManagerFrom(r.Context())
	if jm == nil {
		return nil, fmt.Errorf("job manager not initialized")
	}
	record, err := jm.Get(r.Context(), id)
	if err != nil {
		return nil, err
	}
	return &jobs.Event{
		Stage:   "done",
		Message: record.Message,
		Status:  record.Status,
		Final:   true,
	}, nil
}

func writeEvent(w http.ResponseWriter, event jobs.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}

func (e *StreamEventsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "events <unified-id>",
		Short: "Stream progress events for a submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := getServerURL() + "/api/plants/" + args[0] + "/events"
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("server returned %d", resp.StatusCode)
			}

			scanner := bufio.NewScanner(resp.Body)
			for scanner.Scan() {
				line := scanner.Text()
				if payload, ok := strings.CutPrefix(line, "data: "); ok {
					fmt.Println(payload)
				}
			}
			return scanner.Err()
		},
	}
}
