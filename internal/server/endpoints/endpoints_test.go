package endpoints

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/seedlab/sprout/internal/api"
	"github.com/seedlab/sprout/internal/docstore"
	"github.com/seedlab/sprout/internal/genai"
	"github.com/seedlab/sprout/internal/invoke"
	"github.com/seedlab/sprout/internal/jobs"
	"github.com/seedlab/sprout/internal/objstore"
	"github.com/seedlab/sprout/internal/orchestrator"
	"github.com/seedlab/sprout/internal/svcctx"
)

// stubAI fails every generation call. Endpoint tests only care about
// the synchronous surface; background steps settle their records on
// their own.
type stubAI struct{}

func (stubAI) Generate(ctx context.Context, inv *invoke.Invoker, req genai.GenerateRequest) (*genai.GenerateResult, error) {
	return nil, errors.New("generation unavailable")
}

func (stubAI) StartResearch(ctx context.Context, inv *invoke.Invoker, prompt string) (string, error) {
	return "", errors.New("research unavailable")
}

func (stubAI) PollResearch(ctx context.Context, operationID string, interval, timeout time.Duration) (string, error) {
	return "", errors.New("research unavailable")
}

func (stubAI) TextModel() string          { return "text-model" }
func (stubAI) ImageModel() string         { return "image-model" }
func (stubAI) ImageFallbackModel() string { return "image-fallback-model" }

type testEnv struct {
	manager    *jobs.Manager
	supervisor *jobs.Supervisor
	services   *svcctx.Services
	server     *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, Config{})
}

func newTestEnvWith(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := docstore.NewMemory()
	objects := objstore.NewMemory()
	manager := jobs.NewManager(store, logger)
	progress := jobs.NewRegistry()
	supervisor := jobs.NewSupervisor(logger)
	pool := jobs.NewEncodePool(1, logger)
	t.Cleanup(pool.Close)

	orch := orchestrator.New(manager, objects, stubAI{}, progress, supervisor, orchestrator.Config{
		PollInterval: time.Millisecond,
		PollTimeout:  5 * time.Millisecond,
	}, logger)

	env := &testEnv{
		manager:    manager,
		supervisor: supervisor,
		services: &svcctx.Services{
			Docstore:     store,
			Objstore:     objects,
			JobManager:   manager,
			Progress:     progress,
			Supervisor:   supervisor,
			EncodePool:   pool,
			Orchestrator: orch,
			Logger:       logger,
		},
	}

	registry := api.NewRegistry()
	for _, ep := range All(cfg) {
		registry.Register(ep)
	}
	mux := http.NewServeMux()
	registry.RegisterRoutes(mux, func(h http.HandlerFunc) http.HandlerFunc { return h })

	env.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.ServeHTTP(w, r.WithContext(svcctx.WithServices(r.Context(), env.services)))
	}))
	t.Cleanup(env.server.Close)
	t.Cleanup(supervisor.Wait)

	return env
}

func (env *testEnv) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	resp, err := http.Post(env.server.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Post(%s) error = %v", path, err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/health")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody[HealthResponse](t, resp)
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
}

func TestReady(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/ready")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSubmitPlant(t *testing.T) {
	env := newTestEnv(t)

	image := base64.StdEncoding.EncodeToString([]byte("fake-packet-image"))
	resp := env.postJSON(t, "/api/plants", SubmitPlantRequest{Image: image, MIME: "image/png"})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	sub := decodeBody[orchestrator.Submission](t, resp)
	if sub.UnifiedID == "" || sub.ResearchID == "" || sub.GuideID == "" || sub.CharacterID == "" {
		t.Fatalf("submission has empty ids: %+v", sub)
	}

	// Every id must already resolve to a record.
	for _, id := range []string{sub.UnifiedID, sub.ResearchID, sub.GuideID, sub.CharacterID} {
		getResp, err := http.Get(env.server.URL + "/api/jobs/" + id)
		if err != nil {
			t.Fatalf("Get job error = %v", err)
		}
		if getResp.StatusCode != http.StatusOK {
			t.Errorf("job %s status = %d, want 200", id, getResp.StatusCode)
		}
		getResp.Body.Close()
	}
}

func TestSubmitPlant_DataURL(t *testing.T) {
	env := newTestEnv(t)

	image := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("jpeg-bytes"))
	resp := env.postJSON(t, "/api/plants", SubmitPlantRequest{Image: image})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSubmitPlant_BadRequests(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body any
	}{
		{"missing image", SubmitPlantRequest{}},
		{"invalid base64", SubmitPlantRequest{Image: "not-base64!!!"}},
		{"malformed data url", SubmitPlantRequest{Image: "data:image/png,oops"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.postJSON(t, "/api/plants", tt.body)
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestGetJob_UnifiedIncludesSiblings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	research, _ := env.manager.Create(ctx, jobs.KindResearch)
	guide, _ := env.manager.Create(ctx, jobs.KindGuide)
	character, _ := env.manager.Create(ctx, jobs.KindCharacter)
	unified, err := env.manager.CreateUnified(ctx, jobs.UnifiedResult{
		ResearchJobID:  research.ID,
		GuideJobID:     guide.ID,
		CharacterJobID: character.ID,
		ImageURL:       "memory://plants/img.png",
	})
	if err != nil {
		t.Fatalf("CreateUnified() error = %v", err)
	}
	if err := env.manager.Complete(ctx, guide.ID, "done"); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	resp, err := http.Get(env.server.URL + "/api/jobs/" + unified.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody[GetJobResponse](t, resp)
	if body.Siblings["guide"] != jobs.StatusCompleted {
		t.Errorf("guide sibling = %q, want completed", body.Siblings["guide"])
	}
	if body.Siblings["research"] != jobs.StatusPending {
		t.Errorf("research sibling = %q, want pending", body.Siblings["research"])
	}
}

func TestGetJob_NonUnifiedHasNoSiblings(t *testing.T) {
	env := newTestEnv(t)

	record, err := env.manager.Create(context.Background(), jobs.KindDiary)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	resp, err := http.Get(env.server.URL + "/api/jobs/" + record.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	body := decodeBody[GetJobResponse](t, resp)
	if body.Siblings != nil {
		t.Errorf("siblings = %v, want none", body.Siblings)
	}
}

func TestGetJob_NotFound(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/api/jobs/no-such-id")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestCreateDiary(t *testing.T) {
	env := newTestEnv(t)

	resp := env.postJSON(t, "/api/diary", CreateDiaryRequest{PlantName: "Sweet Basil"})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	record := decodeBody[jobs.Record](t, resp)
	if record.Kind != jobs.KindDiary {
		t.Errorf("kind = %q, want diary", record.Kind)
	}
	if record.Status != jobs.StatusPending {
		t.Errorf("status = %q, want pending", record.Status)
	}
}

func TestCreateDiary_BlankName(t *testing.T) {
	env := newTestEnv(t)

	resp := env.postJSON(t, "/api/diary", CreateDiaryRequest{PlantName: "   "})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestStreamEvents_ReplaysFinalForFinishedRun(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	record, err := env.manager.Create(ctx, jobs.KindUnified)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := env.manager.Complete(ctx, record.ID, "generation finished"); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	resp, err := http.Get(env.server.URL + "/api/plants/" + record.ID + "/events")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	payload, ok := strings.CutPrefix(strings.TrimSpace(string(body)), "data: ")
	if !ok {
		t.Fatalf("body is not an SSE event: %q", body)
	}
	var event jobs.Event
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !event.Final || event.Status != jobs.StatusCompleted {
		t.Errorf("final event = %+v", event)
	}
}

func TestStreamEvents_UnknownSubmission(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/api/plants/no-such-id/events")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestStreamEvents_KeepAliveWhileQuiet(t *testing.T) {
	env := newTestEnvWith(t, Config{StreamKeepAlive: 20 * time.Millisecond})

	// The channel stays silent long enough for several keep-alive
	// intervals to elapse before the final event closes the stream.
	channel := env.services.Progress.Register("quiet-run")
	go func() {
		time.Sleep(150 * time.Millisecond)
		channel.Done(jobs.Event{Stage: "done", Message: "generation finished", Status: jobs.StatusCompleted})
		env.services.Progress.Remove("quiet-run")
	}()

	resp, err := http.Get(env.server.URL + "/api/plants/quiet-run/events")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	text := string(body)
	keepAlive := strings.Index(text, ": keep-alive")
	final := strings.Index(text, `"final":true`)
	if keepAlive < 0 {
		t.Fatalf("stream has no keep-alive comment: %q", text)
	}
	if final < 0 {
		t.Fatalf("stream missing final event: %q", text)
	}
	if keepAlive > final {
		t.Errorf("keep-alive arrived after the final event: %q", text)
	}
}

func TestStreamEvents_LiveRunDeliversEvents(t *testing.T) {
	env := newTestEnv(t)

	channel := env.services.Progress.Register("live-run")
	go func() {
		channel.Publish(jobs.Event{Stage: "identify", Message: "identified as Sweet Basil"})
		channel.Done(jobs.Event{Stage: "done", Message: "generation finished", Status: jobs.StatusCompleted})
		env.services.Progress.Remove("live-run")
	}()

	resp, err := http.Get(env.server.URL + "/api/plants/live-run/events")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	text := string(body)
	if !strings.Contains(text, "identified as Sweet Basil") {
		t.Errorf("stream missing progress event: %q", text)
	}
	if !strings.Contains(text, `"final":true`) {
		t.Errorf("stream missing final event: %q", text)
	}
}
