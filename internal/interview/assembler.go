package interview

import "github.com/matelabs/mateview/internal/topics"

// Assemble builds the ordered transcript for an interview: one synthetic
// system message seeded with the topic prompt, followed by the persisted
// messages in their stored order. Pure; repeated calls with identical input
// yield an identical sequence.
func Assemble(interviewID string, topic topics.Topic, persisted []Message) []Message {
	out := make([]Message, 0, len(persisted)+1)
	out = append(out, Message{
		ID:        MessageID(interviewID, 0),
		Interview: interviewID,
		Timestamp: 0,
		Role:      RoleSystem,
		Content:   topic.Prompt,
		Points:    0,
		Saved:     true,
	})
	out = append(out, persisted...)
	return out
}
