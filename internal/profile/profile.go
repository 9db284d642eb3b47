package profile

import (
	"context"
	"fmt"
	"strings"

	"github.com/matelabs/mateview/internal/contentstore"
	"github.com/matelabs/mateview/internal/ledger"
)

// Profile is the decoded candidate document referenced from the ledger.
// Attributes are matched by trait name, never by position.
type Profile struct {
	Address   string `json:"address"`
	Name      string `json:"name"`
	Image     string `json:"image"`
	About     string `json:"about"`
	Email     string `json:"email"`
	Website   string `json:"website"`
	Twitter   string `json:"twitter"`
	Telegram  string `json:"telegram"`
	Instagram string `json:"instagram"`
}

type document struct {
	Name       string      `json:"name"`
	Image      string      `json:"image"`
	Attributes []attribute `json:"attributes"`
}

type attribute struct {
	TraitType string `json:"trait_type"`
	Value     any    `json:"value"`
}

// Resolver fetches and decodes profile documents.
type Resolver struct {
	ledger ledger.Ledger
	store  contentstore.Store
}

func NewResolver(l ledger.Ledger, store contentstore.Store) *Resolver {
	return &Resolver{ledger: l, store: store}
}

// Resolve looks up the profile document URI for an address and decodes it.
func (r *Resolver) Resolve(ctx context.Context, address string) (Profile, error) {
	if strings.TrimSpace(address) == "" {
		return Profile{}, fmt.Errorf("empty address")
	}

	uri, err := r.ledger.ProfileURI(ctx, address)
	if err != nil {
		return Profile{}, fmt.Errorf("profile uri for %s: %w", address, err)
	}

	var doc document
	if err := r.store.FetchJSON(ctx, uri, &doc); err != nil {
		return Profile{}, fmt.Errorf("fetch profile %s: %w", uri, err)
	}

	p := Profile{
		Address: address,
		Name:    doc.Name,
		Image:   doc.Image,
	}
	for _, attr := range doc.Attributes {
		value, ok := attr.Value.(string)
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(attr.TraitType)) {
		case "name":
			if p.Name == "" {
				p.Name = value
			}
		case "about":
			p.About = value
		case "email":
			p.Email = value
		case "website":
			p.Website = value
		case "twitter":
			p.Twitter = value
		case "telegram":
			p.Telegram = value
		case "instagram":
			p.Instagram = value
		}
	}
	return p, nil
}
