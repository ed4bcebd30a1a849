// Package genai is the client for the upstream generative AI service.
// Every network attempt goes through an invoke.Invoker supplied by the
// caller, so retry policy is owned by the call site (fast budget for
// fallback-chain primaries, patient budget where no fallback exists).
package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/seedlab/sprout/internal/invoke"
)

// Default model names, overridable via config.
const (
	DefaultTextModel          = "gemini-2.5-flash"
	DefaultImageModel         = "gemini-2.5-flash-image"
	DefaultImageFallbackModel = "imagen-3-fast"
	DefaultResearchModel      = "deep-research-1"
)

// ErrEmptyResponse is returned when the service replies 200 with no
// usable content.
var ErrEmptyResponse = errors.New("empty model response")

// Config holds connection settings for the generation service.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration

	TextModel          string
	ImageModel         string
	ImageFallbackModel string
	ResearchModel      string
}

// Client talks to the generation service over HTTP.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	textModel          string
	imageModel         string
	imageFallbackModel string
	researchModel      string
}

// New creates a generation client.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.TextModel == "" {
		cfg.TextModel = DefaultTextModel
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = DefaultImageModel
	}
	if cfg.ImageFallbackModel == "" {
		cfg.ImageFallbackModel = DefaultImageFallbackModel
	}
	if cfg.ResearchModel == "" {
		cfg.ResearchModel = DefaultResearchModel
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger:             logger,
		textModel:          cfg.TextModel,
		imageModel:         cfg.ImageModel,
		imageFallbackModel: cfg.ImageFallbackModel,
		researchModel:      cfg.ResearchModel,
	}
}

// TextModel returns the configured text model name.
func (c *Client) TextModel() string { return c.textModel }

// ImageModel returns the configured primary image model name.
func (c *Client) ImageModel() string { return c.imageModel }

// ImageFallbackModel returns the configured fallback image model name.
func (c *Client) ImageFallbackModel() string { return c.imageFallbackModel }

// Generate performs one generation call through the given invoker.
// When req.Schema is set and the output does not conform, the result is
// still returned (Text populated) alongside ErrSchemaMismatch so the
// caller can degrade instead of failing.
func (c *Client) Generate(ctx context.Context, inv *invoke.Invoker, req GenerateRequest) (*GenerateResult, error) {
	if req.Model == "" {
		req.Model = c.textModel
	}

	body, err := json.Marshal(c.buildChatRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal generate request: %w", err)
	}

	resp, err := inv.Do(ctx, func(ctx context.Context) (*invoke.Response, error) {
		return c.post(ctx, "/v1/chat/completions", body)
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("generate rejected (model=%s, status %d): %s", req.Model, resp.StatusCode, resp.Body)
	}

	var chat chatResponse
	if err := json.Unmarshal(resp.Body, &chat); err != nil {
		return nil, fmt.Errorf("failed to decode generate response: %w", err)
	}
	if chat.Error != nil {
		return nil, fmt.Errorf("model error (model=%s): %s", req.Model, chat.Error.Message)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("%w (model=%s, id=%s)", ErrEmptyResponse, chat.Model, chat.ID)
	}

	msg := chat.Choices[0].Message
	result := &GenerateResult{Text: msg.Content}

	if len(msg.Images) > 0 {
		img, err := decodeDataURL(msg.Images[0].ImageURL.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to decode model image: %w", err)
		}
		result.ImageData = img
	}
	if req.WantImage && result.ImageData == nil {
		return nil, fmt.Errorf("%w: no image in response (model=%s)", ErrEmptyResponse, chat.Model)
	}

	if len(req.Schema) > 0 {
		parsed, err := ParseStructured(msg.Content, req.Schema)
		if err != nil {
			c.logger.Warn("structured output did not conform",
				"model", req.Model,
				"error", err)
			return result, err
		}
		result.ParsedJSON = parsed
	}

	return result, nil
}

func (c *Client) buildChatRequest(req GenerateRequest) *chatRequest {
	out := &chatRequest{Model: req.Model}

	if len(req.ImageData) > 0 {
		mime := req.ImageMIME
		if mime == "" {
			mime = "image/png"
		}
		out.Messages = []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: req.Prompt},
				{Type: "image_url", ImageURL: &imageRef{URL: encodeDataURL(mime, req.ImageData)}},
			},
		}}
	} else {
		out.Messages = []chatMessage{{Role: "user", Content: req.Prompt}}
	}

	if req.WantImage {
		out.Modalities = []string{"image", "text"}
	}
	if len(req.Schema) > 0 {
		out.ResponseFormat = &responseFormat{
			Type:       "json_schema",
			JSONSchema: req.Schema,
		}
	}
	return out
}

// post performs one HTTP attempt and maps it to an invoke.Response so
// the invoker can classify it. Only transport errors are returned as
// errors; HTTP-level failures are carried in the response.
func (c *Client) post(ctx context.Context, path string, body []byte) (*invoke.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &invoke.Response{
		StatusCode: resp.StatusCode,
		Body:       respBody,
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}, nil
}

func (c *Client) get(ctx context.Context, path string) (*invoke.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &invoke.Response{
		StatusCode: resp.StatusCode,
		Body:       respBody,
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}, nil
}

// parseRetryAfter handles both delta-seconds and HTTP-date forms.
// Unparseable values yield zero, meaning no hint.
func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func encodeDataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func decodeDataURL(url string) ([]byte, error) {
	idx := strings.Index(url, ";base64,")
	if idx < 0 {
		return nil, fmt.Errorf("not a base64 data URL")
	}
	return base64.StdEncoding.DecodeString(url[idx+len(";base64,"):])
}
