package genai

import "encoding/json"

// GenerateRequest describes a single generation call.
type GenerateRequest struct {
	Model     string
	Prompt    string
	ImageData []byte          // Optional input image (raw bytes, sent as a data URL).
	ImageMIME string          // MIME type of ImageData; defaults to image/png.
	WantImage bool            // Ask the model for an image in the response.
	Schema    json.RawMessage // Optional JSON schema the text output must conform to.
}

// GenerateResult is the decoded output of a generation call. Text is
// always populated when the model returned any content; ParsedJSON is
// set only when a schema was requested and the output conformed.
type GenerateResult struct {
	Text       string
	ParsedJSON json.RawMessage
	ImageData  []byte
}

// Wire types for the generation API.

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Modalities     []string        `json:"modalities,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []contentPart
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageRef `json:"image_url,omitempty"`
}

type imageRef struct {
	URL string `json:"url"`
}

type responseFormat struct {
	Type       string          `json:"type"`
	JSONSchema json.RawMessage `json:"json_schema,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
			Images  []struct {
				Type     string   `json:"type"`
				ImageURL imageRef `json:"image_url"`
			} `json:"images,omitempty"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Code    any    `json:"code,omitempty"` // string or int depending on backend
}

// Research operation wire types.

type researchStartRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type researchOperation struct {
	ID     string    `json:"id"`
	Status string    `json:"status"` // running | completed | failed
	Output string    `json:"output,omitempty"`
	Error  *apiError `json:"error,omitempty"`
}
