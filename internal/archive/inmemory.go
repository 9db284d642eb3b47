package archive

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matelabs/mateview/internal/interview"
)

var ErrNotFound = errors.New("transcript not found")

// InMemoryStore is a simple in-process archive for local/dev use.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]TranscriptRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]TranscriptRecord)}
}

func (s *InMemoryStore) PutTranscript(_ context.Context, record TranscriptRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.SavedAt.IsZero() {
		record.SavedAt = time.Now().UTC()
	}
	record.Messages = append([]interview.Message(nil), record.Messages...)
	s.records[record.InterviewID] = record
	return nil
}

func (s *InMemoryStore) GetTranscript(_ context.Context, interviewID string) (TranscriptRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[interviewID]
	if !ok {
		return TranscriptRecord{}, ErrNotFound
	}
	record.Messages = append([]interview.Message(nil), record.Messages...)
	return record, nil
}

func (s *InMemoryStore) ListByOwner(_ context.Context, owner string, limit int) ([]TranscriptRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []TranscriptRecord
	for _, record := range s.records {
		if record.Owner != owner {
			continue
		}
		record.Messages = append([]interview.Message(nil), record.Messages...)
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SavedAt.After(out[j].SavedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }
