package providers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const MockClientName = "mock"

// MockClient is a VisionClient for testing.
type MockClient struct {
	// Configurable behavior
	Latency      time.Duration
	ShouldFail   bool
	FailAfter    int // Fail after N requests (0 = never)
	ResponseText string

	// Responses are returned in order, one per call; the last one repeats.
	// Errors[i], when non-nil, fails call i instead.
	Responses []string
	Errors    []error

	PromptTokens     int
	CompletionTokens int

	// State
	requestCount atomic.Int64
	closeCount   atomic.Int64

	mu       sync.Mutex
	requests []*ChatRequest
}

// NewMockClient creates a new mock client with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{
		ResponseText:     `{"pages": []}`,
		PromptTokens:     100,
		CompletionTokens: 50,
	}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// Close records that the client was released.
func (c *MockClient) Close() error {
	c.closeCount.Add(1)
	return nil
}

// Chat sends a mock chat request.
func (c *MockClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()
	count := c.requestCount.Add(1)
	idx := int(count) - 1

	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	result := &ChatResult{
		RequestID: fmt.Sprintf("mock-%d", count),
		Provider:  MockClientName,
		ModelUsed: req.Model,
	}
	fail := func(errType string, err error) (*ChatResult, error) {
		result.Success = false
		result.ErrorType = errType
		result.ErrorMessage = err.Error()
		result.ExecutionTime = time.Since(start)
		return result, err
	}

	if c.ShouldFail {
		return fail("mock_failure", fmt.Errorf("mock client configured to fail"))
	}
	if c.FailAfter > 0 && int(count) > c.FailAfter {
		return fail("mock_failure", fmt.Errorf("mock client failed after %d requests", c.FailAfter))
	}
	if idx < len(c.Errors) && c.Errors[idx] != nil {
		return fail("mock_failure", c.Errors[idx])
	}

	if c.Latency > 0 {
		select {
		case <-time.After(c.Latency):
		case <-ctx.Done():
			return fail("context_cancelled", ctx.Err())
		}
	} else if err := ctx.Err(); err != nil {
		return fail("context_cancelled", err)
	}

	content := c.ResponseText
	if len(c.Responses) > 0 {
		content = c.Responses[min(idx, len(c.Responses)-1)]
	}

	result.Success = true
	result.Content = content
	result.PromptTokens = c.PromptTokens
	result.CompletionTokens = c.CompletionTokens
	result.TotalTokens = c.PromptTokens + c.CompletionTokens
	result.ExecutionTime = time.Since(start)

	if req.ResponseFormat != nil && req.ResponseFormat.Type == ResponseFormatJSONObject {
		if parsed, err := ParseStructuredJSON(content); err == nil {
			result.ParsedJSON = parsed
		}
	}

	return result, nil
}

// RequestCount returns the number of requests made.
func (c *MockClient) RequestCount() int64 {
	return c.requestCount.Load()
}

// CloseCount returns how many times Close was called.
func (c *MockClient) CloseCount() int64 {
	return c.closeCount.Load()
}

// Requests returns the requests received so far.
func (c *MockClient) Requests() []*ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*ChatRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

// Reset resets the request counter and history.
func (c *MockClient) Reset() {
	c.requestCount.Store(0)
	c.closeCount.Store(0)
	c.mu.Lock()
	c.requests = nil
	c.mu.Unlock()
}

// Verify interface
var _ VisionClient = (*MockClient)(nil)
