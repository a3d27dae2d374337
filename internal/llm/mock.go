package llm

import (
	"context"
)

// MockClient is a configurable LLM client for testing.
// Set the response fields to control what DecideBehavior returns.
type MockClient struct {
	DecideResponse string
	DecideError    error

	// Call tracking for assertions
	DecideCalls []string
}

func NewMockClient() *MockClient {
	return &MockClient{
		DecideResponse: `{"action":"wander","reason":"nothing pressing"}`,
	}
}

func (c *MockClient) DecideBehavior(ctx context.Context, prompt string) (string, error) {
	c.DecideCalls = append(c.DecideCalls, prompt)
	if c.DecideError != nil {
		return "", c.DecideError
	}
	return c.DecideResponse, nil
}
