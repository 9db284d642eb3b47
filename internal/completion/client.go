package completion

import "context"

// Message is one {role, content} turn in the request payload.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the normalized completion request.
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float32   `json:"temperature"`
}

// Response carries the first returned choice's text.
type Response struct {
	Content string `json:"content"`
}

// Client produces one assistant reply for a transcript.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}
