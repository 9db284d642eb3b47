package interview

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matelabs/mateview/internal/completion"
	"github.com/matelabs/mateview/internal/topics"
)

type scriptedClient struct {
	reply    string
	err      error
	requests []completion.Request
}

func (c *scriptedClient) Complete(_ context.Context, req completion.Request) (completion.Response, error) {
	c.requests = append(c.requests, req)
	if c.err != nil {
		return completion.Response{}, c.err
	}
	return completion.Response{Content: c.reply}, nil
}

func fixedClock(sec int64) func() time.Time {
	return func() time.Time { return time.Unix(sec, 0) }
}

func TestAppendExchangeExtendsByTwo(t *testing.T) {
	client := &scriptedClient{reply: "Correct, plus one point. Next question."}
	g := NewGateway(client, "gpt-3.5-turbo", 0.7)
	g.now = fixedClock(1700000000)

	topic, _ := topics.Find("javascript")
	base := Assemble("5", topic, nil)

	got, err := g.AppendExchange(context.Background(), "5", base, "What is a closure?")
	if err != nil {
		t.Fatalf("AppendExchange() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3 (system, user, assistant)", len(got))
	}

	user, assistant := got[1], got[2]
	if user.Role != RoleUser || user.Content != "What is a closure?" || user.Saved {
		t.Fatalf("user message = %+v", user)
	}
	if user.ID != "5_1700000000" {
		t.Fatalf("user id = %q", user.ID)
	}
	if assistant.Role != RoleAssistant || assistant.Saved {
		t.Fatalf("assistant message = %+v", assistant)
	}
	if assistant.Points != 1 {
		t.Fatalf("assistant points = %d, want 1", assistant.Points)
	}

	// The request payload includes the system persona and the new user turn.
	if len(client.requests) != 1 {
		t.Fatalf("requests = %d, want 1", len(client.requests))
	}
	req := client.requests[0]
	if req.Model != "gpt-3.5-turbo" || req.Temperature != 0.7 {
		t.Fatalf("request = %+v", req)
	}
	if len(req.Messages) != 2 {
		t.Fatalf("payload length = %d, want 2", len(req.Messages))
	}
	if req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
		t.Fatalf("payload roles = %v, %v", req.Messages[0].Role, req.Messages[1].Role)
	}
}

func TestAppendExchangeFailureLeavesNoTrace(t *testing.T) {
	client := &scriptedClient{err: errors.New("upstream down")}
	g := NewGateway(client, "gpt-3.5-turbo", 0.7)

	topic, _ := topics.Find("javascript")
	base := Assemble("5", topic, nil)

	got, err := g.AppendExchange(context.Background(), "5", base, "hello")
	if got != nil {
		t.Fatalf("result should be nil on failure, got %v", got)
	}
	var ce *CompletionError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %T, want *CompletionError", err)
	}
	if len(base) != 1 {
		t.Fatalf("input mutated on failure: %v", base)
	}
}

func TestAppendExchangePreconditions(t *testing.T) {
	g := NewGateway(&scriptedClient{reply: "ok"}, "gpt-3.5-turbo", 0.7)

	var pe *PreconditionError
	if _, err := g.AppendExchange(context.Background(), "5", nil, "hello"); !errors.As(err, &pe) {
		t.Fatalf("nil transcript: error = %v, want *PreconditionError", err)
	}
	if _, err := g.AppendExchange(context.Background(), "5", []Message{}, "hello"); !errors.As(err, &pe) {
		t.Fatalf("empty transcript: error = %v, want *PreconditionError", err)
	}
	topic, _ := topics.Find("javascript")
	base := Assemble("5", topic, nil)
	if _, err := g.AppendExchange(context.Background(), "5", base, "   "); !errors.As(err, &pe) {
		t.Fatalf("blank text: error = %v, want *PreconditionError", err)
	}
}

func TestScoreMarkerMatching(t *testing.T) {
	cases := []struct {
		reply string
		want  int
	}{
		{"Plus One Point. Well done.", 1},
		{"that is right, PLUS ONE POINT", 1},
		{"plus one point", 1},
		{"Good answer, you get a point.", 0},
		{"", 0},
	}
	for _, tc := range cases {
		if got := Score(tc.reply); got != tc.want {
			t.Fatalf("Score(%q) = %d, want %d", tc.reply, got, tc.want)
		}
	}
}
