package interview

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/matelabs/mateview/internal/contentstore"
	"github.com/matelabs/mateview/internal/ledger"
)

func seededLedger(t *testing.T) (*ledger.MockLedger, string) {
	t.Helper()
	l := ledger.NewMockLedger()
	if _, err := l.Start(context.Background(), "0xowner", "javascript"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	id, err := l.Find(context.Background(), "0xowner", "javascript")
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	return l, id
}

func sampleTranscript(id string) []Message {
	return []Message{
		{ID: id + "_0", Interview: id, Timestamp: 0, Role: RoleSystem, Content: "prompt", Saved: true},
		{ID: id + "_10", Interview: id, Timestamp: 10, Role: RoleAssistant, Content: "Plus one point.", Points: 1, Saved: true},
		{ID: id + "_20", Interview: id, Timestamp: 20, Role: RoleUser, Content: "answer", Saved: false},
		{ID: id + "_21", Interview: id, Timestamp: 21, Role: RoleAssistant, Content: "Plus one point. Next.", Points: 1, Saved: false},
	}
}

func TestSaveInlineMarksAndAccumulates(t *testing.T) {
	l, id := seededLedger(t)
	r, err := NewReconciler(l, nil, SaveInline)
	if err != nil {
		t.Fatalf("NewReconciler() error = %v", err)
	}

	messages := sampleTranscript(id)
	merged, saved, err := r.Save(context.Background(), id, messages)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if saved != 2 {
		t.Fatalf("saved = %d, want 2", saved)
	}
	for _, m := range merged {
		if !m.Saved {
			t.Fatalf("message %s not marked saved", m.ID)
		}
	}
	// Total earned points never change across a save.
	if SumPoints(merged) != SumPoints(messages) {
		t.Fatalf("save changed total points: %d vs %d", SumPoints(merged), SumPoints(messages))
	}
	// The ledger accumulated only the unsaved batch.
	params, err := l.GetParams(context.Background(), id)
	if err != nil {
		t.Fatalf("GetParams() error = %v", err)
	}
	if params.Points != 1 {
		t.Fatalf("ledger points = %d, want 1 (only the new assistant turn)", params.Points)
	}
	if l.BatchWrites() != 1 {
		t.Fatalf("batch writes = %d, want 1", l.BatchWrites())
	}
}

func TestSaveNoopWhenNothingUnsaved(t *testing.T) {
	l, id := seededLedger(t)
	r, _ := NewReconciler(l, nil, SaveInline)

	messages := sampleTranscript(id)
	merged, _, err := r.Save(context.Background(), id, messages)
	if err != nil {
		t.Fatalf("first Save() error = %v", err)
	}

	again, saved, err := r.Save(context.Background(), id, merged)
	if err != nil {
		t.Fatalf("second Save() error = %v", err)
	}
	if saved != 0 {
		t.Fatalf("second save persisted %d messages, want 0", saved)
	}
	if l.BatchWrites() != 1 {
		t.Fatalf("batch writes = %d, want 1 (retry must not submit)", l.BatchWrites())
	}
	if len(again) != len(merged) {
		t.Fatalf("no-op save changed the list")
	}
}

func TestSaveBlobUploadsMergedListWithoutSystem(t *testing.T) {
	l, id := seededLedger(t)
	store := contentstore.NewMockStore()
	r, err := NewReconciler(l, store, SaveBlob)
	if err != nil {
		t.Fatalf("NewReconciler() error = %v", err)
	}

	messages := sampleTranscript(id)
	merged, saved, err := r.Save(context.Background(), id, messages)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if saved != 2 {
		t.Fatalf("saved = %d, want 2", saved)
	}

	params, err := l.GetParams(context.Background(), id)
	if err != nil {
		t.Fatalf("GetParams() error = %v", err)
	}
	// Scenario: two unsaved (1 and 0 points) plus one saved (1 point)
	// reconcile to an aggregate of 2.
	if params.Points != 2 {
		t.Fatalf("aggregate points = %d, want 2", params.Points)
	}
	if params.MessagesURI == "" {
		t.Fatalf("messages uri not recorded on ledger")
	}

	var doc []Message
	if err := store.FetchJSON(context.Background(), params.MessagesURI, &doc); err != nil {
		t.Fatalf("FetchJSON() error = %v", err)
	}
	if len(doc) != len(merged)-1 {
		t.Fatalf("document has %d messages, want %d (system excluded)", len(doc), len(merged)-1)
	}
	for _, m := range doc {
		if m.Role == RoleSystem {
			t.Fatalf("system message leaked into the persisted document")
		}
		if !m.Saved {
			t.Fatalf("document message %s not marked saved", m.ID)
		}
	}
}

func TestSaveBlobRetrySameSetDoesNotDoubleCount(t *testing.T) {
	l, id := seededLedger(t)
	store := contentstore.NewMockStore()
	r, _ := NewReconciler(l, store, SaveBlob)

	messages := sampleTranscript(id)
	merged, _, err := r.Save(context.Background(), id, messages)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Simulate a client that missed the confirmation and resubmits the
	// same set with flags still clear.
	stale := cloneMessages(messages)
	if _, _, err := r.Save(context.Background(), id, stale); err != nil {
		t.Fatalf("retry Save() error = %v", err)
	}

	params, _ := l.GetParams(context.Background(), id)
	if params.Points != SumPoints(merged) {
		t.Fatalf("aggregate points = %d, want %d (recomputed, not incremented)", params.Points, SumPoints(merged))
	}
}

type failingLedger struct {
	*ledger.MockLedger
}

func (f *failingLedger) SaveMessageBatch(context.Context, string, []int64, []string, []string, []int) (ledger.Tx, error) {
	return ledger.Tx{}, errors.New("relay rejected")
}

func TestSaveFailureLeavesFlagsUntouched(t *testing.T) {
	base, id := seededLedger(t)
	r, _ := NewReconciler(&failingLedger{MockLedger: base}, nil, SaveInline)

	messages := sampleTranscript(id)
	got, saved, err := r.Save(context.Background(), id, messages)
	var pe *PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %T (%v), want *PersistenceError", err, err)
	}
	if saved != 0 {
		t.Fatalf("saved = %d, want 0", saved)
	}
	if got[2].Saved || got[3].Saved {
		t.Fatalf("saved flags advanced speculatively: %+v", got)
	}
}

func TestSaveInlineEncodesContents(t *testing.T) {
	l, id := seededLedger(t)
	r, _ := NewReconciler(l, nil, SaveInline)

	unsaved := Unsaved(sampleTranscript(id))
	tx, err := r.saveInline(context.Background(), id, unsaved)
	if err != nil {
		t.Fatalf("saveInline() error = %v", err)
	}
	if tx.Hash == "" {
		t.Fatalf("tx hash empty")
	}
	// Round-trip of the wire encoding.
	encoded := base64.StdEncoding.EncodeToString([]byte(unsaved[0].Content))
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || string(decoded) != unsaved[0].Content {
		t.Fatalf("content encoding not reversible: %v %q", err, decoded)
	}
}
