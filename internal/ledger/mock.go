package ledger

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

// MockLedger is an in-memory ledger for local development and tests. Writes
// are mined instantly.
type MockLedger struct {
	mu          sync.Mutex
	nextID      int
	nextTx      int
	owners      map[string]string
	params      map[string]*Params
	byOwner     map[string]string // owner|topic -> id
	profileURIs map[string]string

	batchWrites      int
	transcriptWrites int
}

func NewMockLedger() *MockLedger {
	return &MockLedger{
		nextID:      1,
		owners:      make(map[string]string),
		params:      make(map[string]*Params),
		byOwner:     make(map[string]string),
		profileURIs: make(map[string]string),
	}
}

// SetProfileURI seeds a profile document pointer for an address.
func (l *MockLedger) SetProfileURI(address, uri string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.profileURIs[address] = uri
}

// BatchWrites reports how many inline message batches were submitted.
func (l *MockLedger) BatchWrites() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.batchWrites
}

// TranscriptWrites reports how many blob-pointer writes were submitted.
func (l *MockLedger) TranscriptWrites() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transcriptWrites
}

func (l *MockLedger) OwnerOf(_ context.Context, id string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	owner, ok := l.owners[id]
	if !ok {
		return "", ErrNotFound
	}
	return owner, nil
}

func (l *MockLedger) GetTopic(_ context.Context, id string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.params[id]
	if !ok {
		return "", ErrNotFound
	}
	return p.Topic, nil
}

func (l *MockLedger) GetParams(_ context.Context, id string) (Params, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.params[id]
	if !ok {
		return Params{}, ErrNotFound
	}
	return *p, nil
}

func (l *MockLedger) Find(_ context.Context, owner, topicID string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.byOwner[owner+"|"+topicID]
	if !ok {
		return "", ErrNotFound
	}
	return id, nil
}

func (l *MockLedger) ProfileURI(_ context.Context, address string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	uri, ok := l.profileURIs[address]
	if !ok {
		return "", ErrNotFound
	}
	return uri, nil
}

func (l *MockLedger) Start(_ context.Context, owner, topicID string) (Tx, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := strconv.Itoa(l.nextID)
	l.nextID++
	l.owners[id] = owner
	l.params[id] = &Params{Topic: topicID}
	l.byOwner[owner+"|"+topicID] = id
	return l.tx(), nil
}

func (l *MockLedger) SaveMessageBatch(_ context.Context, id string, timestamps []int64, roles, contents []string, points []int) (Tx, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.params[id]
	if !ok {
		return Tx{}, ErrNotFound
	}
	if len(timestamps) != len(roles) || len(roles) != len(contents) || len(contents) != len(points) {
		return Tx{}, fmt.Errorf("saveMessages arrays must have equal length")
	}
	for _, pts := range points {
		p.Points += pts
	}
	l.batchWrites++
	return l.tx(), nil
}

func (l *MockLedger) SaveTranscript(_ context.Context, id string, aggregatePoints int, messagesURI string) (Tx, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.params[id]
	if !ok {
		return Tx{}, ErrNotFound
	}
	p.Points = aggregatePoints
	p.MessagesURI = messagesURI
	l.transcriptWrites++
	return l.tx(), nil
}

func (l *MockLedger) WaitMined(ctx context.Context, tx Tx) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func (l *MockLedger) tx() Tx {
	l.nextTx++
	return Tx{Hash: fmt.Sprintf("0xmock%04d", l.nextTx)}
}
