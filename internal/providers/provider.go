package providers

import (
	"context"
	"encoding/json"
	"time"
)

// VisionClient sends multimodal chat requests to a vision-capable model.
type VisionClient interface {
	// Chat sends a chat completion request.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error)

	// Name returns the client identifier (e.g., "openai").
	Name() string

	// Close releases idle connections held by the client.
	Close() error
}

// Image is an encoded image attached to a message.
type Image struct {
	Base64   string
	MIMEType string // defaults to image/jpeg
}

// DataURL returns the image as a data: URL.
func (i Image) DataURL() string {
	mime := i.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + i.Base64
}

// Message represents a chat message.
type Message struct {
	Role    string  `json:"role"` // "system", "user", "assistant"
	Content string  `json:"content"`
	Images  []Image `json:"-"` // sent as image parts after the text
}

// ResponseFormat values.
const (
	ResponseFormatJSONObject = "json_object"
	ResponseFormatText       = "text"
)

// ResponseFormat specifies structured output format.
type ResponseFormat struct {
	Type string `json:"type"` // "json_object"
}

// ChatRequest is a request to a vision model.
type ChatRequest struct {
	// Required
	Messages []Message `json:"messages"`

	// Model selection (uses client default if empty)
	Model string `json:"model,omitempty"`

	// Generation parameters
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`

	// Structured output
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`

	// Request tracking
	RequestID string `json:"-"`
}

// ChatResult is the complete response from a model call.
type ChatResult struct {
	// Response content
	Content    string          `json:"content"`
	ParsedJSON json.RawMessage `json:"parsed_json,omitempty"` // set when a JSON response format was requested

	// Token counts, verbatim from the provider
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	ExecutionTime time.Duration `json:"execution_time"`

	// Provider info
	Provider  string `json:"provider"`
	ModelUsed string `json:"model_used"`

	RequestID string `json:"request_id"`

	// Success/error
	Success      bool   `json:"success"`
	ErrorType    string `json:"error_type,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}
