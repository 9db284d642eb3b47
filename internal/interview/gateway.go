package interview

import (
	"context"
	"strings"
	"time"

	"github.com/matelabs/mateview/internal/completion"
)

// ScoreMarker is the phrase the interviewer persona is instructed to emit
// when an answer is right. Matching is literal free-text matching against
// the model output; paraphrases do not score. Known limitation, kept on
// purpose.
const ScoreMarker = "plus one point"

// Score awards one point when the reply contains the marker phrase,
// case-insensitively.
func Score(reply string) int {
	if strings.Contains(strings.ToLower(reply), ScoreMarker) {
		return 1
	}
	return 0
}

// Gateway extends a transcript with one user turn and one resulting
// assistant turn through the external completion API.
type Gateway struct {
	client      completion.Client
	model       string
	temperature float32
	now         func() time.Time
}

func NewGateway(client completion.Client, model string, temperature float32) *Gateway {
	return &Gateway{
		client:      client,
		model:       model,
		temperature: temperature,
		now:         time.Now,
	}
}

// AppendExchange returns messages extended by exactly two turns, user then
// assistant, or fails leaving no trace in the input. The synthetic system
// message is part of the request payload; it establishes the interviewer
// persona.
func (g *Gateway) AppendExchange(ctx context.Context, interviewID string, messages []Message, userText string) ([]Message, error) {
	if messages == nil {
		return nil, &PreconditionError{Reason: "transcript is not loaded"}
	}
	if len(messages) == 0 {
		return nil, &PreconditionError{Reason: "transcript is empty"}
	}
	if strings.TrimSpace(userText) == "" {
		return nil, &PreconditionError{Reason: "message text is empty"}
	}

	userTimestamp := g.now().Unix()
	userMessage := Message{
		ID:        MessageID(interviewID, userTimestamp),
		Interview: interviewID,
		Timestamp: userTimestamp,
		Role:      RoleUser,
		Content:   userText,
		Points:    0,
		Saved:     false,
	}

	payload := make([]completion.Message, 0, len(messages)+1)
	for _, m := range messages {
		payload = append(payload, completion.Message{Role: string(m.Role), Content: m.Content})
	}
	payload = append(payload, completion.Message{Role: string(RoleUser), Content: userText})

	resp, err := g.client.Complete(ctx, completion.Request{
		Model:       g.model,
		Messages:    payload,
		Temperature: g.temperature,
	})
	if err != nil {
		return nil, &CompletionError{Err: err}
	}

	assistantTimestamp := g.now().Unix()
	assistantMessage := Message{
		ID:        MessageID(interviewID, assistantTimestamp),
		Interview: interviewID,
		Timestamp: assistantTimestamp,
		Role:      RoleAssistant,
		Content:   resp.Content,
		Points:    Score(resp.Content),
		Saved:     false,
	}

	out := cloneMessages(messages)
	return append(out, userMessage, assistantMessage), nil
}
