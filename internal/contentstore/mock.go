package contentstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MockStore keeps pinned documents in memory. URIs are deterministic within
// one instance.
type MockStore struct {
	mu      sync.Mutex
	next    int
	docs    map[string][]byte
	uploads int
}

func NewMockStore() *MockStore {
	return &MockStore{docs: make(map[string][]byte)}
}

// Uploads reports how many documents were pinned.
func (s *MockStore) Uploads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploads
}

func (s *MockStore) UploadJSON(_ context.Context, doc any) (string, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.uploads++
	uri := fmt.Sprintf("ipfs://mock-%04d", s.next)
	s.docs[uri] = payload
	return uri, nil
}

func (s *MockStore) FetchJSON(_ context.Context, uri string, out any) error {
	s.mu.Lock()
	payload, ok := s.docs[uri]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("document %q not pinned", uri)
	}
	return json.Unmarshal(payload, out)
}
