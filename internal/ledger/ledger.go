package ledger

import (
	"context"
	"errors"
)

// ErrNotFound reports that the ledger has no entry for the requested key.
var ErrNotFound = errors.New("ledger entry not found")

// Params is the per-interview state stored on the ledger.
type Params struct {
	Topic       string `json:"topic"`
	Points      int    `json:"points"`
	MessagesURI string `json:"messagesURI"`
}

// Tx is a handle for a submitted write. Confirmation is observed separately
// through WaitMined.
type Tx struct {
	Hash string `json:"hash"`
}

// Ledger is the contract read/write surface. Transaction ordering, nonce
// management and signing are the relay's concern, not ours.
type Ledger interface {
	OwnerOf(ctx context.Context, id string) (string, error)
	GetTopic(ctx context.Context, id string) (string, error)
	GetParams(ctx context.Context, id string) (Params, error)
	Find(ctx context.Context, owner, topicID string) (string, error)
	ProfileURI(ctx context.Context, address string) (string, error)

	Start(ctx context.Context, owner, topicID string) (Tx, error)
	SaveMessageBatch(ctx context.Context, id string, timestamps []int64, roles, contents []string, points []int) (Tx, error)
	SaveTranscript(ctx context.Context, id string, aggregatePoints int, messagesURI string) (Tx, error)

	WaitMined(ctx context.Context, tx Tx) error
}
