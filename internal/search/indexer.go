// Package search mirrors contacts into an external full-text index. All calls
// are best-effort: the primary write never fails because the index is down.
package search

import (
	"context"

	"mak3-crm/internal/models"
)

type Indexer interface {
	IndexContact(ctx context.Context, contact *models.Contact) error
	DeleteContact(ctx context.Context, id uint) error
	// SearchContacts returns ids of contacts matching the query, best first.
	SearchContacts(ctx context.Context, query string, limit int) ([]uint, error)
}

// NoopIndexer is used when no search backend is configured.
type NoopIndexer struct{}

func (NoopIndexer) IndexContact(context.Context, *models.Contact) error { return nil }
func (NoopIndexer) DeleteContact(context.Context, uint) error           { return nil }
func (NoopIndexer) SearchContacts(context.Context, string, int) ([]uint, error) {
	return nil, nil
}
