package archive

import (
	"context"
	"time"

	"github.com/matelabs/mateview/internal/interview"
)

// TranscriptRecord is one archived snapshot of an interview transcript,
// written after the persistence layer confirms a save.
type TranscriptRecord struct {
	ID          string              `json:"id"`
	InterviewID string              `json:"interview_id"`
	Owner       string              `json:"owner"`
	TopicID     string              `json:"topic_id"`
	Points      int                 `json:"points"`
	Messages    []interview.Message `json:"messages"`
	SavedAt     time.Time           `json:"saved_at"`
}

// Store keeps a queryable mirror of confirmed transcript saves.
type Store interface {
	PutTranscript(ctx context.Context, record TranscriptRecord) error
	GetTranscript(ctx context.Context, interviewID string) (TranscriptRecord, error)
	ListByOwner(ctx context.Context, owner string, limit int) ([]TranscriptRecord, error)
	Close() error
}
