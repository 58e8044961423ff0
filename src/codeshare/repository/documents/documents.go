// Package documents is the in-memory store of diff baselines for every
// tracked document.
package documents

import (
	"context"
	"sync"

	tally "github.com/uber-go/tally"

	"github.com/codeshare/codeshare/src/codeshare/entity"
	"github.com/codeshare/codeshare/src/codeshare/internal/errors"
)

// Repository maps a document identifier to its last-broadcast state.
// The stored content is only ever a value that was actually handed to the
// broadcast hub, never an uncommitted edit inside the debounce window.
type Repository interface {
	// Get returns the tracked document for the given id.
	Get(ctx context.Context, id entity.DocumentID) (*entity.Document, error)
	// Baseline returns the last-broadcast content for the given id, or the
	// empty string if the document has never been seen. A never-seen
	// document diffs as if it were previously empty.
	Baseline(ctx context.Context, id entity.DocumentID) string
	// Set replaces the stored state for the document's id.
	Set(ctx context.Context, doc *entity.Document) error
	// Delete stops tracking the given id. Deleting an untracked id is a no-op.
	Delete(ctx context.Context, id entity.DocumentID) error
	// All returns every tracked document, for full-state resync.
	All(ctx context.Context) ([]*entity.Document, error)
	// Count returns the number of tracked documents.
	Count(ctx context.Context) (int, error)
}

type repository struct {
	mu       sync.Mutex
	memstore map[entity.DocumentID]*entity.Document
	stats    tally.Scope
}

// New returns a Repository backed by an in-process map.
func New(stats tally.Scope) Repository {
	return &repository{
		memstore: make(map[entity.DocumentID]*entity.Document),
		stats:    stats,
	}
}

func (r *repository) Get(ctx context.Context, id entity.DocumentID) (*entity.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.memstore[id]
	if !ok {
		return nil, &errors.DocumentNotFoundError{ID: id}
	}
	copied := *doc
	return &copied, nil
}

func (r *repository) Baseline(ctx context.Context, id entity.DocumentID) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if doc, ok := r.memstore[id]; ok {
		return doc.Content
	}
	return ""
}

func (r *repository) Set(ctx context.Context, doc *entity.Document) error {
	if doc == nil {
		return errors.New("can't store nil document")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *doc
	r.memstore[doc.ID] = &copied
	r.updateGauges()
	return nil
}

func (r *repository) Delete(ctx context.Context, id entity.DocumentID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.memstore, id)
	r.updateGauges()
	return nil
}

func (r *repository) All(ctx context.Context) ([]*entity.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	docs := make([]*entity.Document, 0, len(r.memstore))
	for _, doc := range r.memstore {
		copied := *doc
		docs = append(docs, &copied)
	}
	return docs, nil
}

func (r *repository) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.memstore), nil
}

// updateGauges must be called with the lock held.
func (r *repository) updateGauges() {
	openBytes := 0
	for _, doc := range r.memstore {
		openBytes += len(doc.Content)
	}
	r.stats.Gauge("open_docs").Update(float64(len(r.memstore)))
	r.stats.Gauge("open_bytes").Update(float64(openBytes))
}
