package genai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/seedlab/sprout/internal/invoke"
)

func testPolicy() invoke.Policy {
	return invoke.Policy{
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Growth:      2.0,
		MaxAttempts: 4,
		Budget:      time.Minute,
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestGenerate_Text(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		fmt.Fprint(w, `{"id":"gen-1","model":"m","choices":[{"message":{"role":"assistant","content":"Basil is an annual herb."},"finish_reason":"stop"}]}`)
	})

	result, err := client.Generate(context.Background(), invoke.New(testPolicy(), nil), GenerateRequest{
		Prompt: "describe basil",
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.Text != "Basil is an annual herb." {
		t.Errorf("Text = %q", result.Text)
	}
	if result.ImageData != nil {
		t.Error("unexpected image data")
	}
}

func TestGenerate_InputImageSentAsDataURL(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "data:image/jpeg;base64,") {
			t.Errorf("request body missing image data URL: %s", body)
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"a tomato seed packet"}}]}`)
	})

	_, err := client.Generate(context.Background(), invoke.New(testPolicy(), nil), GenerateRequest{
		Prompt:    "identify this plant",
		ImageData: []byte("jpeg-bytes"),
		ImageMIME: "image/jpeg",
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
}

func TestGenerate_ImageOutput(t *testing.T) {
	png := []byte("fake-png")
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"choices":[{"message":{"content":"","images":[{"type":"image_url","image_url":{"url":%q}}]}}]}`, dataURL)
	})

	result, err := client.Generate(context.Background(), invoke.New(testPolicy(), nil), GenerateRequest{
		Prompt:    "draw a mascot",
		WantImage: true,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if string(result.ImageData) != "fake-png" {
		t.Errorf("ImageData = %q", result.ImageData)
	}
}

func TestGenerate_WantImageButNone(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"content":"sorry, text only"}}]}`)
	})

	_, err := client.Generate(context.Background(), invoke.New(testPolicy(), nil), GenerateRequest{
		Prompt:    "draw a mascot",
		WantImage: true,
	})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Generate() error = %v, want ErrEmptyResponse", err)
	}
}

func TestGenerate_RetriesOn429(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	})

	result, err := client.Generate(context.Background(), invoke.New(testPolicy(), nil), GenerateRequest{
		Prompt: "p",
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if result.Text != "ok" {
		t.Errorf("Text = %q", result.Text)
	}
}

func TestGenerate_SchemaConforming(t *testing.T) {
	schema := json.RawMessage(`{"type":"object","required":["name"],"properties":{"name":{"type":"string"}}}`)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"content":"{\"name\":\"Basil\"}"}}]}`)
	})

	result, err := client.Generate(context.Background(), invoke.New(testPolicy(), nil), GenerateRequest{
		Prompt: "p",
		Schema: schema,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	var parsed struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(result.ParsedJSON, &parsed); err != nil {
		t.Fatalf("ParsedJSON invalid: %v", err)
	}
	if parsed.Name != "Basil" {
		t.Errorf("name = %q", parsed.Name)
	}
}

func TestGenerate_SchemaMismatchKeepsText(t *testing.T) {
	schema := json.RawMessage(`{"type":"object","required":["name"],"properties":{"name":{"type":"string"}}}`)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"content":"I think it is basil."}}]}`)
	})

	result, err := client.Generate(context.Background(), invoke.New(testPolicy(), nil), GenerateRequest{
		Prompt: "p",
		Schema: schema,
	})
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("Generate() error = %v, want ErrSchemaMismatch", err)
	}
	if result == nil || result.Text != "I think it is basil." {
		t.Errorf("result = %+v, want raw text preserved", result)
	}
}

func TestGenerate_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":{"message":"content filtered","code":"content_filter"}}`)
	})

	_, err := client.Generate(context.Background(), invoke.New(testPolicy(), nil), GenerateRequest{Prompt: "p"})
	if err == nil || !strings.Contains(err.Error(), "content filtered") {
		t.Errorf("Generate() error = %v, want API error surfaced", err)
	}
}

func TestResearch_StartAndPoll(t *testing.T) {
	polls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/research":
			fmt.Fprint(w, `{"id":"op-7","status":"running"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/v1/research/op-7":
			polls++
			if polls < 3 {
				fmt.Fprint(w, `{"id":"op-7","status":"running"}`)
				return
			}
			fmt.Fprint(w, `{"id":"op-7","status":"completed","output":"full cultivation report"}`)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	ctx := context.Background()
	opID, err := client.StartResearch(ctx, invoke.New(testPolicy(), nil), "research basil")
	if err != nil {
		t.Fatalf("StartResearch() error = %v", err)
	}
	if opID != "op-7" {
		t.Errorf("operation id = %q", opID)
	}

	output, err := client.PollResearch(ctx, opID, time.Millisecond, time.Second)
	if err != nil {
		t.Fatalf("PollResearch() error = %v", err)
	}
	if output != "full cultivation report" {
		t.Errorf("output = %q", output)
	}
	if polls != 3 {
		t.Errorf("polls = %d, want 3", polls)
	}
}

func TestResearch_PollFailedIsUnrecoverable(t *testing.T) {
	polls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		polls++
		fmt.Fprint(w, `{"id":"op-8","status":"failed","error":{"message":"model unavailable"}}`)
	})

	_, err := client.PollResearch(context.Background(), "op-8", time.Millisecond, time.Second)
	if !errors.Is(err, ErrResearchFailed) {
		t.Errorf("PollResearch() error = %v, want ErrResearchFailed", err)
	}
	if polls != 1 {
		t.Errorf("polls = %d, want 1 (failed must not be retried)", polls)
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", 0},
		{"7", 7 * time.Second},
		{"-3", 0},
		{"not-a-number-or-date", 0},
	}
	for _, tt := range tests {
		if got := parseRetryAfter(tt.value); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}
