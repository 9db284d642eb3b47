package profile

import (
	"context"
	"testing"

	"github.com/matelabs/mateview/internal/contentstore"
	"github.com/matelabs/mateview/internal/ledger"
)

func TestResolverMatchesAttributesByName(t *testing.T) {
	store := contentstore.NewMockStore()
	uri, err := store.UploadJSON(context.Background(), map[string]any{
		"name":  "Ada",
		"image": "ipfs://avatar",
		"attributes": []map[string]any{
			// Deliberately shuffled and mixed-case: matching is by trait name.
			{"trait_type": "Website", "value": "https://ada.dev"},
			{"trait_type": "about", "value": "Backend engineer"},
			{"trait_type": "years", "value": 7},
			{"trait_type": "email", "value": "ada@ada.dev"},
			{"trait_type": "Twitter", "value": "adadev"},
			{"trait_type": "telegram", "value": "ada_dev"},
		},
	})
	if err != nil {
		t.Fatalf("UploadJSON() error = %v", err)
	}

	l := ledger.NewMockLedger()
	l.SetProfileURI("0xabc", uri)

	r := NewResolver(l, store)
	p, err := r.Resolve(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if p.Name != "Ada" || p.About != "Backend engineer" || p.Image != "ipfs://avatar" {
		t.Fatalf("unexpected profile: %+v", p)
	}
	if p.Email != "ada@ada.dev" || p.Website != "https://ada.dev" {
		t.Fatalf("unexpected contact fields: %+v", p)
	}
	if p.Twitter != "adadev" || p.Telegram != "ada_dev" || p.Instagram != "" {
		t.Fatalf("unexpected social fields: %+v", p)
	}
	if p.Address != "0xabc" {
		t.Fatalf("Address = %q, want %q", p.Address, "0xabc")
	}
}

func TestResolverUnknownAddress(t *testing.T) {
	r := NewResolver(ledger.NewMockLedger(), contentstore.NewMockStore())
	if _, err := r.Resolve(context.Background(), "0xnobody"); err == nil {
		t.Fatalf("expected error for unknown address")
	}
}

func TestResolverEmptyAddress(t *testing.T) {
	r := NewResolver(ledger.NewMockLedger(), contentstore.NewMockStore())
	if _, err := r.Resolve(context.Background(), "  "); err == nil {
		t.Fatalf("expected error for empty address")
	}
}
