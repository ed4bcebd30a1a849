package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeCouch is a minimal CouchDB stand-in covering the paths the client uses.
type fakeCouch struct {
	mu   sync.Mutex
	docs map[string]map[string]any // "db/id" -> doc (including _rev)
	revs map[string]int
}

func newFakeCouch() *fakeCouch {
	return &fakeCouch{
		docs: make(map[string]map[string]any),
		revs: make(map[string]int),
	}
}

func (f *fakeCouch) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if user, pass, ok := r.BasicAuth(); !ok || user != "admin" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path == "/_up" {
			fmt.Fprint(w, `{"status":"ok"}`)
			return
		}

		parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)
		f.mu.Lock()
		defer f.mu.Unlock()

		if len(parts) == 1 {
			// Database-level PUT.
			w.WriteHeader(http.StatusCreated)
			return
		}

		key := parts[0] + "/" + parts[1]
		switch r.Method {
		case http.MethodGet:
			doc, ok := f.docs[key]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			json.NewEncoder(w).Encode(doc)
		case http.MethodHead:
			if _, ok := f.docs[key]; !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("ETag", fmt.Sprintf("%q", f.docs[key]["_rev"]))
		case http.MethodPut:
			var doc map[string]any
			if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			existing, exists := f.docs[key]
			if exists && doc["_rev"] != existing["_rev"] {
				w.WriteHeader(http.StatusConflict)
				return
			}
			f.revs[key]++
			doc["_rev"] = fmt.Sprintf("%d-abc", f.revs[key])
			doc["_id"] = parts[1]
			f.docs[key] = doc
			w.WriteHeader(http.StatusCreated)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}
}

func newTestClient(t *testing.T) (*Client, *fakeCouch) {
	t.Helper()
	fake := newFakeCouch()
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	client := NewClient(ClientConfig{
		URL:      server.URL,
		Username: "admin",
		Password: "secret",
	})
	return client, fake
}

func TestClient_PutGet(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	doc := map[string]any{"kind": "research", "status": "pending"}
	if err := client.Put(ctx, "jobs", "job-1", doc); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := client.Get(ctx, "jobs", "job-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got["kind"] != "research" || got["status"] != "pending" {
		t.Errorf("Get() = %v", got)
	}
	if _, ok := got["_rev"]; ok {
		t.Error("Get() leaked _rev bookkeeping field")
	}
}

func TestClient_GetNotFound(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.Get(context.Background(), "jobs", "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestClient_PutReplacesOnConflict(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	if err := client.Put(ctx, "jobs", "job-1", map[string]any{"status": "pending"}); err != nil {
		t.Fatalf("first Put() error = %v", err)
	}
	// Second Put has no _rev and conflicts; the client must replay with
	// the current revision.
	if err := client.Put(ctx, "jobs", "job-1", map[string]any{"status": "processing"}); err != nil {
		t.Fatalf("second Put() error = %v", err)
	}

	got, err := client.Get(ctx, "jobs", "job-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got["status"] != "processing" {
		t.Errorf("status = %v, want processing", got["status"])
	}
}

func TestClient_MergePreservesFields(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	if err := client.Put(ctx, "jobs", "job-1", map[string]any{"kind": "guide", "status": "pending"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := client.Merge(ctx, "jobs", "job-1", map[string]any{"status": "processing", "message": "working"}); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	got, err := client.Get(ctx, "jobs", "job-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got["kind"] != "guide" {
		t.Errorf("kind = %v, merge dropped untouched field", got["kind"])
	}
	if got["status"] != "processing" || got["message"] != "working" {
		t.Errorf("merged doc = %v", got)
	}
}

func TestClient_HealthCheck(t *testing.T) {
	client, _ := newTestClient(t)
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestMemory_MatchesClientSemantics(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	if _, err := mem.Get(ctx, "jobs", "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}

	if err := mem.Put(ctx, "jobs", "a", map[string]any{"x": 1, "y": 2}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := mem.Merge(ctx, "jobs", "a", map[string]any{"y": 3}); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	got, err := mem.Get(ctx, "jobs", "a")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got["x"] != 1 || got["y"] != 3 {
		t.Errorf("doc = %v", got)
	}

	if err := mem.Merge(ctx, "jobs", "nope", map[string]any{"y": 3}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Merge() on missing doc error = %v, want ErrNotFound", err)
	}
}
