package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"labourlaw-rag/internal/config"
	"labourlaw-rag/internal/jurisdiction"
	"labourlaw-rag/internal/models"
)

// Metadata keys stored with every passage.
const (
	MetaSource       = "source"
	MetaPage         = "page"
	MetaChunkID      = "chunk_id"
	MetaJurisdiction = "jurisdiction"
	MetaChapter      = "chapter"
	MetaSection      = "section"
)

// ErrIndexLoad is matched by every *IndexLoadError.
var ErrIndexLoad = errors.New("index load failed")

// IndexLoadError reports a jurisdiction index that is missing or unreadable.
type IndexLoadError struct {
	Jurisdiction jurisdiction.Jurisdiction
	Path         string
	Err          error
}

func (e *IndexLoadError) Error() string {
	return fmt.Sprintf("failed to load %s index at %s: %v", e.Jurisdiction, e.Path, e.Err)
}

func (e *IndexLoadError) Unwrap() error { return e.Err }

func (e *IndexLoadError) Is(target error) bool { return target == ErrIndexLoad }

// Store serves passages from one persistent index per jurisdiction. Index
// handles are loaded at most once per process and shared by all requests.
type Store struct {
	dir           string
	collection    string
	compress      bool
	encryptionKey string
	timeout       time.Duration
	embed         chromem.EmbeddingFunc

	mu      sync.RWMutex
	handles map[jurisdiction.Jurisdiction]*VectorDBManager
	group   singleflight.Group
	loads   atomic.Int32
}

// NewStore creates a store rooted at cfg.IndexDir. embed turns query text
// into vectors and must match the model the indexes were built with.
func NewStore(cfg *config.RAGConfig, embed chromem.EmbeddingFunc) *Store {
	return &Store{
		dir:           cfg.IndexDir,
		collection:    cfg.Collection,
		compress:      cfg.Compress,
		encryptionKey: cfg.EncryptionKey,
		timeout:       cfg.RetrievalTimeout,
		embed:         embed,
		handles:       make(map[jurisdiction.Jurisdiction]*VectorDBManager),
	}
}

// IndexPath is the directory holding the index for j.
func (s *Store) IndexPath(j jurisdiction.Jurisdiction) string {
	return filepath.Join(s.dir, j.IndexName())
}

// Retrieve returns up to k passages from j's index, most similar first.
func (s *Store) Retrieve(ctx context.Context, j jurisdiction.Jurisdiction, query string, k int) ([]models.Passage, error) {
	m, err := s.index(j)
	if err != nil {
		return nil, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	results, err := m.Search(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("retrieval from %s failed: %w", j.IndexName(), err)
	}

	passages := make([]models.Passage, 0, len(results))
	for _, r := range results {
		passages = append(passages, models.Passage{
			Source:       r.Metadata[MetaSource],
			Page:         r.Metadata[MetaPage],
			Text:         r.Content,
			Jurisdiction: j.String(),
			Score:        r.Similarity,
		})
	}

	log.Debug().Str("index", j.IndexName()).Int("k", k).Int("returned", len(passages)).Dur("elapsed", time.Since(start)).Msg("Retrieved passages")
	return passages, nil
}

func (s *Store) index(j jurisdiction.Jurisdiction) (*VectorDBManager, error) {
	if !j.Valid() {
		return nil, fmt.Errorf("%w: %v", jurisdiction.ErrUnknown, j)
	}

	s.mu.RLock()
	m, ok := s.handles[j]
	s.mu.RUnlock()
	if ok {
		return m, nil
	}

	v, err, _ := s.group.Do(j.IndexName(), func() (interface{}, error) {
		s.mu.RLock()
		m, ok := s.handles[j]
		s.mu.RUnlock()
		if ok {
			return m, nil
		}

		s.loads.Add(1)
		path := s.IndexPath(j)
		m, err := OpenVectorDBManager(path, s.collection, s.embed, s.compress, false, s.encryptionKey)
		if err != nil {
			return nil, &IndexLoadError{Jurisdiction: j, Path: path, Err: err}
		}
		log.Info().Str("index", j.IndexName()).Int("documents", m.Count()).Msg("Loaded index")

		s.mu.Lock()
		s.handles[j] = m
		s.mu.Unlock()
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*VectorDBManager), nil
}

// writable opens j's index for writing, creating it if needed, and makes the
// handle visible to readers.
func (s *Store) writable(j jurisdiction.Jurisdiction) (*VectorDBManager, error) {
	if !j.Valid() {
		return nil, fmt.Errorf("%w: %v", jurisdiction.ErrUnknown, j)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.handles[j]; ok {
		return m, nil
	}
	m, err := OpenVectorDBManager(s.IndexPath(j), s.collection, s.embed, s.compress, true, s.encryptionKey)
	if err != nil {
		return nil, err
	}
	s.handles[j] = m
	return m, nil
}

// DocumentID is stable for a given chunk so re-ingesting a file overwrites
// its earlier passages.
func DocumentID(j jurisdiction.Jurisdiction, ce models.ChunkEmbedding) string {
	source := strings.ReplaceAll(filepath.Base(ce.SourceFilename), " ", "_")
	return fmt.Sprintf("%s-%s-%d-%d", j.IndexName(), source, ce.PageNumber, ce.ChunkID)
}

// AddPassages writes embedded chunks to j's index.
func (s *Store) AddPassages(ctx context.Context, j jurisdiction.Jurisdiction, chunks []models.ChunkEmbedding) error {
	if len(chunks) == 0 {
		return nil
	}
	m, err := s.writable(j)
	if err != nil {
		return err
	}

	docs := make([]chromem.Document, 0, len(chunks))
	for _, ce := range chunks {
		meta := map[string]string{
			MetaSource:       filepath.Base(ce.SourceFilename),
			MetaPage:         strconv.Itoa(ce.PageNumber),
			MetaChunkID:      strconv.Itoa(ce.ChunkID),
			MetaJurisdiction: j.String(),
		}
		if ce.Chapter != "" {
			meta[MetaChapter] = ce.Chapter
		}
		if ce.Section != "" {
			meta[MetaSection] = ce.Section
		}
		docs = append(docs, chromem.Document{
			ID:        DocumentID(j, ce),
			Content:   ce.Content,
			Metadata:  meta,
			Embedding: ce.Embedding,
		})
	}

	if err := m.CreateDocs(ctx, docs); err != nil {
		return err
	}
	log.Info().Str("index", j.IndexName()).Int("added", len(docs)).Int("total", m.Count()).Msg("Stored passages")
	return nil
}

// Export snapshots j's index to filePath.
func (s *Store) Export(j jurisdiction.Jurisdiction, filePath string) error {
	m, err := s.index(j)
	if err != nil {
		return err
	}
	return m.Export(filePath)
}

// Import loads a snapshot written by Export into j's index.
func (s *Store) Import(ctx context.Context, j jurisdiction.Jurisdiction, filePath string) (int, error) {
	src, err := NewInMemoryVectorDBManager(s.collection, s.embed)
	if err != nil {
		return 0, err
	}
	src.encryptionKey = s.encryptionKey
	if err := src.Import(filePath, s.embed); err != nil {
		return 0, err
	}
	docs, err := src.Documents(ctx, j.String()+" labour law")
	if err != nil {
		return 0, err
	}

	dst, err := s.writable(j)
	if err != nil {
		return 0, err
	}
	if len(docs) > 0 {
		if err := dst.CreateDocs(ctx, docs); err != nil {
			return 0, err
		}
	}
	log.Info().Str("index", j.IndexName()).Str("file", filePath).Int("imported", len(docs)).Msg("Imported snapshot")
	return len(docs), nil
}
