package interview

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/matelabs/mateview/internal/contentstore"
	"github.com/matelabs/mateview/internal/ledger"
)

// SaveMode selects which persistence schema the ledger contract expects.
type SaveMode string

const (
	// SaveInline submits per-field parallel arrays for the unsaved
	// messages directly to the ledger write call.
	SaveInline SaveMode = "inline"
	// SaveBlob uploads the whole merged transcript to content-addressed
	// storage and submits (aggregatePoints, uri) to the ledger.
	SaveBlob SaveMode = "blob"
)

// Valid reports whether the mode names a known schema.
func (m SaveMode) Valid() bool {
	return m == SaveInline || m == SaveBlob
}

// Reconciler persists unsaved messages in one atomic external transaction.
// It is the only point where the ephemeral and durable representations of a
// transcript meet.
type Reconciler struct {
	ledger ledger.Ledger
	store  contentstore.Store
	mode   SaveMode
}

func NewReconciler(l ledger.Ledger, store contentstore.Store, mode SaveMode) (*Reconciler, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("unsupported save mode %q", mode)
	}
	if mode == SaveBlob && store == nil {
		return nil, fmt.Errorf("blob save mode requires a content store")
	}
	return &Reconciler{ledger: l, store: store, mode: mode}, nil
}

// Mode returns the configured persistence schema.
func (r *Reconciler) Mode() SaveMode { return r.mode }

// Save persists every unsaved message for the interview. On confirmation it
// returns the merged list with all messages marked saved plus the count of
// newly persisted messages. When nothing is unsaved the call is a no-op and
// issues no ledger write. On failure the input is returned unchanged and
// the error is a PersistenceError.
func (r *Reconciler) Save(ctx context.Context, interviewID string, messages []Message) ([]Message, int, error) {
	unsaved := Unsaved(messages)
	if len(unsaved) == 0 {
		return messages, 0, nil
	}

	merged := cloneMessages(messages)
	for i := range merged {
		merged[i].Saved = true
	}

	var (
		tx  ledger.Tx
		err error
	)
	switch r.mode {
	case SaveInline:
		tx, err = r.saveInline(ctx, interviewID, unsaved)
	case SaveBlob:
		tx, err = r.saveBlob(ctx, interviewID, merged)
	}
	if err != nil {
		return messages, 0, &PersistenceError{Err: err}
	}

	if err := r.ledger.WaitMined(ctx, tx); err != nil {
		return messages, 0, &PersistenceError{Err: err}
	}
	return merged, len(unsaved), nil
}

func (r *Reconciler) saveInline(ctx context.Context, interviewID string, unsaved []Message) (ledger.Tx, error) {
	timestamps := make([]int64, 0, len(unsaved))
	roles := make([]string, 0, len(unsaved))
	contents := make([]string, 0, len(unsaved))
	points := make([]int, 0, len(unsaved))
	for _, m := range unsaved {
		timestamps = append(timestamps, m.Timestamp)
		roles = append(roles, string(m.Role))
		contents = append(contents, base64.StdEncoding.EncodeToString([]byte(m.Content)))
		points = append(points, m.Points)
	}
	return r.ledger.SaveMessageBatch(ctx, interviewID, timestamps, roles, contents, points)
}

func (r *Reconciler) saveBlob(ctx context.Context, interviewID string, merged []Message) (ledger.Tx, error) {
	// The synthetic system message never leaves the process.
	doc := make([]Message, 0, len(merged))
	for _, m := range merged {
		if m.Role == RoleSystem {
			continue
		}
		doc = append(doc, m)
	}

	uri, err := r.store.UploadJSON(ctx, doc)
	if err != nil {
		return ledger.Tx{}, fmt.Errorf("upload transcript: %w", err)
	}

	// Always recomputed from the full list so a retry of the same unsaved
	// set cannot double-count.
	aggregate := SumPoints(merged)
	return r.ledger.SaveTranscript(ctx, interviewID, aggregate, uri)
}
