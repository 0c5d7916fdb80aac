package extraction

import (
	"context"

	"github.com/provenhq/expertrank/internal/attribute"
)

// Resolver resolves a free-text fragment into ordered candidate attributes
// of one type. It is the capability the completion service's search tool is
// backed by; keeping it an interface makes the tool loop reproducible in
// tests without a live store.
type Resolver interface {
	Resolve(ctx context.Context, query, attrType string, limit int) ([]attribute.Attribute, error)
}

// StoreResolver resolves fragments against the attribute catalog in the
// store's relevance order.
type StoreResolver struct {
	repo attribute.Repository
}

// NewStoreResolver creates a Resolver backed by an attribute repository.
func NewStoreResolver(repo attribute.Repository) *StoreResolver {
	return &StoreResolver{repo: repo}
}

// Resolve looks the fragment up in the catalog, restricted to attrType.
func (r *StoreResolver) Resolve(ctx context.Context, query, attrType string, limit int) ([]attribute.Attribute, error) {
	found, err := r.repo.Lookup(ctx, attrType, query, limit)
	if err != nil {
		return nil, err
	}
	attrs := make([]attribute.Attribute, 0, len(found))
	for _, a := range found {
		attrs = append(attrs, *a)
	}
	return attrs, nil
}
