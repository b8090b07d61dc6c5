package search

import (
	"context"

	"bookscout/internal/record"
)

// Provider returns up to size records whose summary matches the query term,
// best match first. The search backend is an external collaborator; the
// enrichment pipeline only depends on this interface.
type Provider interface {
	Search(ctx context.Context, term string, size int) ([]*record.Record, error)
}
