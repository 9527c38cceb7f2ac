package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
)

// VectorDBManager wraps one persistent chromem-go database holding a single
// passage collection.
type VectorDBManager struct {
	db            *chromem.DB
	collection    *chromem.Collection
	dbPath        string
	compress      bool
	encryptionKey string
}

var errCollectionMissing = errors.New("collection not found")

// OpenVectorDBManager opens the database at dbPath. With create unset, a
// missing directory or collection is an error and nothing is written to disk.
func OpenVectorDBManager(dbPath, collectionName string, embed chromem.EmbeddingFunc, compress, create bool, encryptionKey string) (*VectorDBManager, error) {
	if !create {
		if _, err := os.Stat(dbPath); err != nil {
			return nil, err
		}
	}

	db, err := chromem.NewPersistentDB(dbPath, compress)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	var c *chromem.Collection
	if create {
		c, err = db.GetOrCreateCollection(collectionName, nil, embed)
		if err != nil {
			return nil, fmt.Errorf("failed to create/get collection: %w", err)
		}
	} else {
		c = db.GetCollection(collectionName, embed)
		if c == nil {
			return nil, fmt.Errorf("%w: %s", errCollectionMissing, collectionName)
		}
	}

	return &VectorDBManager{
		db:            db,
		collection:    c,
		dbPath:        dbPath,
		compress:      compress,
		encryptionKey: encryptionKey,
	}, nil
}

// NewInMemoryVectorDBManager is used for dry runs and tests.
func NewInMemoryVectorDBManager(collectionName string, embed chromem.EmbeddingFunc) (*VectorDBManager, error) {
	db := chromem.NewDB()
	c, err := db.GetOrCreateCollection(collectionName, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	return &VectorDBManager{db: db, collection: c}, nil
}

// Count returns the number of documents in the collection.
func (m *VectorDBManager) Count() int {
	return m.collection.Count()
}

// CreateDocs adds multiple documents
func (m *VectorDBManager) CreateDocs(ctx context.Context, documents []chromem.Document) error {
	if err := m.collection.AddDocuments(ctx, documents, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// Search runs a similarity search, clamping nResults to the collection size.
// An empty collection yields no results.
func (m *VectorDBManager) Search(ctx context.Context, query string, nResults int) ([]chromem.Result, error) {
	if query == "" {
		return nil, errors.New("query must be provided")
	}
	if nResults <= 0 {
		return nil, fmt.Errorf("invalid result count %d", nResults)
	}
	count := m.collection.Count()
	if count == 0 {
		return nil, nil
	}
	nResults = min(nResults, count)

	results, err := m.collection.Query(ctx, query, nResults, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}
	return results, nil
}

// DeleteCollection drops the collection from the database.
func (m *VectorDBManager) DeleteCollection() error {
	if err := m.db.DeleteCollection(m.collection.Name); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}

// Export writes the collection to filePath.
func (m *VectorDBManager) Export(filePath string) error {
	if m.collection == nil {
		return errors.New("collection is required")
	}
	if filePath == "" {
		return errors.New("file path is required")
	}

	log.Debug().Str("collection", m.collection.Name).Str("file", filePath).Bool("compress", m.compress).Bool("encrypted", m.encryptionKey != "").Msg("Exporting collection")
	if err := m.db.ExportToFile(filePath, m.compress, m.encryptionKey, m.collection.Name); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// Import replaces this database's copy of the collection with the one in
// filePath. Imported collections are only in memory; use Documents to copy
// them into a persistent manager.
func (m *VectorDBManager) Import(filePath string, embed chromem.EmbeddingFunc) error {
	name := m.collection.Name
	if err := m.db.ImportFromFile(filePath, m.encryptionKey, name); err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	c := m.db.GetCollection(name, embed)
	if c == nil {
		return fmt.Errorf("%w: %s not present in %s", errCollectionMissing, name, filepath.Base(filePath))
	}
	m.collection = c
	return nil
}

// Documents returns every stored document with its embedding. seed is
// embedded once to drive a full-size similarity query.
func (m *VectorDBManager) Documents(ctx context.Context, seed string) ([]chromem.Document, error) {
	count := m.collection.Count()
	if count == 0 {
		return nil, nil
	}
	results, err := m.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryText: seed,
		NResults:  count,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	docs := make([]chromem.Document, 0, len(results))
	for _, r := range results {
		docs = append(docs, chromem.Document{
			ID:        r.ID,
			Metadata:  r.Metadata,
			Embedding: r.Embedding,
			Content:   r.Content,
		})
	}
	return docs, nil
}
