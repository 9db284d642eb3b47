package completion

import (
	"context"
	"fmt"
	"strings"
)

// MockClient provides deterministic local replies when no completion
// provider is configured. Answers ending with an exclamation mark are
// treated as confident and rewarded with the scoring phrase.
type MockClient struct{}

func NewMockClient() *MockClient { return &MockClient{} }

func (c *MockClient) Complete(ctx context.Context, req Request) (Response, error) {
	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	default:
	}

	last := ""
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			last = strings.TrimSpace(req.Messages[i].Content)
			break
		}
	}
	if last == "" {
		return Response{Content: "Let's begin. What is your strongest language?"}, nil
	}
	if strings.HasSuffix(last, "!") {
		return Response{Content: fmt.Sprintf("Plus one point. Next question: tell me more about %q.", last)}, nil
	}
	return Response{Content: fmt.Sprintf("Noted. Next question: can you elaborate on %q?", last)}, nil
}
