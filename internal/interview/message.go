package interview

import "fmt"

// Role identifies who produced a transcript turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
)

// Valid reports whether the role is one of the three known values.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleAssistant, RoleUser:
		return true
	default:
		return false
	}
}

// Message is one transcript turn. Timestamp zero is reserved for the
// synthetic system message; points are awarded only to assistant turns.
// Once Saved flips to true the message is immutable.
type Message struct {
	ID        string `json:"id"`
	Interview string `json:"interview"`
	Timestamp int64  `json:"timestamp"`
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Points    int    `json:"points"`
	Saved     bool   `json:"isSaved"`
}

// MessageID derives the message id unique within an interview.
func MessageID(interviewID string, timestamp int64) string {
	return fmt.Sprintf("%s_%d", interviewID, timestamp)
}

// SumPoints totals the points across messages.
func SumPoints(messages []Message) int {
	sum := 0
	for _, m := range messages {
		sum += m.Points
	}
	return sum
}

// Unsaved returns the messages not yet persisted, in order.
func Unsaved(messages []Message) []Message {
	var out []Message
	for _, m := range messages {
		if !m.Saved {
			out = append(out, m)
		}
	}
	return out
}

func cloneMessages(messages []Message) []Message {
	out := make([]Message, len(messages))
	copy(out, messages)
	return out
}
