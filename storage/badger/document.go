package badger

import (
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/enrichit/core"
	"github.com/poiesic/enrichit/storage"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
type DocumentRepository struct {
	backend *Backend
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) (*DocumentRepository, error) {
	return &DocumentRepository{backend: backend}, nil
}

// Close releases repository resources.
func (r *DocumentRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *DocumentRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddDocuments adds one or more documents to storage.
func (r *DocumentRepository) AddDocuments(ctx context.Context, docs ...*core.Document) ([]*core.Document, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, doc := range docs {
			if err := core.ValidateDocument(doc); err != nil {
				return err
			}

			if doc.Id == 0 {
				doc.Id = core.IDFromContent(doc.Contents)
			}

			doc.InsertedAt = time.Now().UTC()
			doc.UpdatedAt = doc.InsertedAt
			if doc.PublishedAt.IsZero() {
				doc.PublishedAt = doc.InsertedAt
			}

			key := makeDocumentKey(doc.Id)
			if err := tx.Set(key, storage.MarshalDocument(doc)); err != nil {
				return err
			}

			pubKey := makeDocumentPubKey(doc.PublishedAt.UnixMicro(), doc.Id)
			if err := tx.Set(pubKey, storage.MarshalID(doc.Id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return docs, err
}

// GetDocument retrieves a single document by ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, id core.ID) (*core.Document, error) {
	var result *core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = r.readDocument(tx, makeDocumentKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetDocuments retrieves multiple documents by their IDs.
func (r *DocumentRepository) GetDocuments(ctx context.Context, ids ...core.ID) ([]*core.Document, error) {
	var result []*core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			doc, err := r.readDocument(tx, makeDocumentKey(id))
			if err != nil {
				return err
			}
			if doc != nil {
				result = append(result, doc)
			}
		}
		return nil
	}, false)
	return result, err
}

// ListNeedingEnrichment returns documents lacking the target enrichment,
// newest first by published date. The selection predicate matches the
// builder's contract: missing enrichment, or enrichment produced by a
// different model.
func (r *DocumentRepository) ListNeedingEnrichment(ctx context.Context, kind core.Kind, model string, limit int) ([]*core.Document, error) {
	if !kind.Valid() {
		return nil, storage.ErrInvalidQuery
	}

	var results []*core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		prefix := []byte(documentPubPrefix + ":")
		// Seek past the last possible index key, then walk backwards.
		startKey := makeDocumentPubKey(time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC).UnixMicro(), core.ID(^uint64(0)))

		for iter.Seek(startKey); iter.Valid(); iter.Next() {
			key := iter.Item().Key()
			if len(key) < len(prefix) || slices.Compare(key[:len(prefix)], prefix) != 0 {
				break
			}

			var docID core.ID
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				docID, err = storage.UnmarshalID(val)
				return err
			}); err != nil {
				return err
			}

			doc, err := r.readDocument(tx, makeDocumentKey(docID))
			if err != nil {
				return err
			}
			if doc == nil || doc.Enriched(kind, model) {
				continue
			}

			results = append(results, doc)
			if limit > 0 && len(results) >= limit {
				break
			}
		}
		return nil
	}, false)

	return results, err
}

// ApplyEnrichment upserts an enrichment outcome, keyed by (document, kind).
// Re-applying an identical enrichment is a no-op and returns false.
func (r *DocumentRepository) ApplyEnrichment(ctx context.Context, e *core.Enrichment) (bool, error) {
	if e == nil || !e.Kind.Valid() {
		return false, storage.ErrInvalidQuery
	}

	applied := false
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeDocumentKey(e.DocumentID)
		doc, err := r.readDocument(tx, key)
		if err != nil {
			return err
		}
		if doc == nil {
			return storage.ErrNotFound
		}

		switch e.Kind {
		case core.KindSummary:
			if doc.Summary == e.Summary && doc.SummaryModel == e.Model && doc.SummaryError == "" {
				return nil // already applied
			}
			doc.Summary = e.Summary
			doc.SummaryModel = e.Model
			doc.SummarizedAt = time.Now().UTC()
			doc.SummaryError = ""
		case core.KindEmbedding:
			if slices.Equal(doc.Vector, e.Vector) && doc.EmbeddingModel == e.Model && doc.EmbeddingError == "" {
				return nil // already applied
			}
			doc.Vector = e.Vector
			doc.EmbeddingModel = e.Model
			doc.EmbeddedAt = time.Now().UTC()
			doc.EmbeddingError = ""
		}

		doc.UpdatedAt = time.Now().UTC()
		if err := tx.Set(key, storage.MarshalDocument(doc)); err != nil {
			return err
		}

		applied = true
		return tx.Commit()
	}, true)

	return applied, err
}

// MarkEnrichmentFailed records a per-record vendor failure on the document.
func (r *DocumentRepository) MarkEnrichmentFailed(ctx context.Context, id core.ID, kind core.Kind, detail string) error {
	if !kind.Valid() {
		return storage.ErrInvalidQuery
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeDocumentKey(id)
		doc, err := r.readDocument(tx, key)
		if err != nil {
			return err
		}
		if doc == nil {
			return storage.ErrNotFound
		}

		switch kind {
		case core.KindSummary:
			doc.SummaryError = detail
		case core.KindEmbedding:
			doc.EmbeddingError = detail
		}
		doc.UpdatedAt = time.Now().UTC()

		if err := tx.Set(key, storage.MarshalDocument(doc)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// CountDocuments returns the total number of stored documents.
func (r *DocumentRepository) CountDocuments(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(documentPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// readDocument reads and unmarshals a document, returning nil if absent.
func (r *DocumentRepository) readDocument(tx *badger.Txn, key []byte) (*core.Document, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var doc *core.Document
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		doc, unmarshalErr = storage.UnmarshalDocument(val)
		return unmarshalErr
	})
	return doc, err
}
