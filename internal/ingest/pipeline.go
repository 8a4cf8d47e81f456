package ingest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"golang.org/x/time/rate"

	"github.com/crepilot/crepilot/internal/document"
	"github.com/crepilot/crepilot/internal/log"
	"github.com/crepilot/crepilot/internal/vectorstore"
)

// ErrIndexWrite indicates the vector index rejected a batch write.
var ErrIndexWrite = errors.New("index write failed")

// Documents is the document lifecycle storage the pipeline needs.
type Documents interface {
	Get(ctx context.Context, id string) (document.Document, error)
	Delete(ctx context.Context, id string) error
	SetProcessing(ctx context.Context, id string) error
	SetCompleted(ctx context.Context, id string, vectorCount int) error
	SetFailed(ctx context.Context, id string, errMsg string) error
}

// Index is the vector index surface the pipeline needs.
type Index interface {
	Upsert(ctx context.Context, records []vectorstore.Record) error
	DeleteByDocument(ctx context.Context, documentID string) error
}

// Config wires a Pipeline.
type Config struct {
	Documents  Documents
	Index      Index
	Embedder   ai.Embedder
	Extractors *Extractors

	ChunkSize    int
	ChunkOverlap int

	// EmbedRatePerSecond caps embedding API calls. Zero means unlimited.
	EmbedRatePerSecond float64

	Logger log.Logger
}

func (c Config) validate() error {
	if c.Documents == nil {
		return errors.New("ingest: Documents is required")
	}
	if c.Index == nil {
		return errors.New("ingest: Index is required")
	}
	if c.Embedder == nil {
		return errors.New("ingest: Embedder is required")
	}
	if c.ChunkSize <= 0 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("ingest: bad chunking parameters size=%d overlap=%d", c.ChunkSize, c.ChunkOverlap)
	}
	return nil
}

// Pipeline runs document ingestion: extract, chunk, embed, upsert. Work on
// the same document id is serialized; different documents proceed
// concurrently.
type Pipeline struct {
	docs       Documents
	index      Index
	embedder   ai.Embedder
	extractors *Extractors

	chunkSize    int
	chunkOverlap int
	limiter      *rate.Limiter

	locks  keyedMutex
	logger log.Logger
}

// New creates a Pipeline from the config.
func New(cfg Config) (*Pipeline, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Extractors == nil {
		cfg.Extractors = NewExtractors()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}

	limit := rate.Inf
	if cfg.EmbedRatePerSecond > 0 {
		limit = rate.Limit(cfg.EmbedRatePerSecond)
	}

	return &Pipeline{
		docs:         cfg.Documents,
		index:        cfg.Index,
		embedder:     cfg.Embedder,
		extractors:   cfg.Extractors,
		chunkSize:    cfg.ChunkSize,
		chunkOverlap: cfg.ChunkOverlap,
		limiter:      rate.NewLimiter(limit, 1),
		logger:       cfg.Logger,
	}, nil
}

// Supported reports whether the filename can be ingested.
func (p *Pipeline) Supported(filename string) bool {
	return p.extractors.Supported(filename)
}

// Ingest processes one uploaded document. On success the document is marked
// completed with its vector count. On any failure the document's vectors are
// removed and the document is marked failed; the index never keeps a partial
// write.
func (p *Pipeline) Ingest(ctx context.Context, docID, filename string, data []byte) error {
	unlock := p.locks.lock(docID)
	defer unlock()

	if err := p.docs.SetProcessing(ctx, docID); err != nil {
		return fmt.Errorf("marking document processing: %w", err)
	}

	// Reject unsupported formats before any extraction or embedding work.
	if !p.extractors.Supported(filename) {
		return p.fail(ctx, docID, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filename))
	}

	text, err := p.extractors.Extract(filename, data)
	if err != nil {
		return p.fail(ctx, docID, err)
	}

	segments, err := Chunk(text, p.chunkSize, p.chunkOverlap)
	if err != nil {
		return p.fail(ctx, docID, err)
	}

	records := make([]vectorstore.Record, 0, len(segments))
	for _, seg := range segments {
		if err := p.limiter.Wait(ctx); err != nil {
			return p.fail(ctx, docID, fmt.Errorf("rate limiter: %w", err))
		}
		embedding, err := p.embed(ctx, seg.Text)
		if err != nil {
			return p.fail(ctx, docID, fmt.Errorf("embedding chunk %d: %w", seg.Index, err))
		}
		records = append(records, vectorstore.Record{
			ID:      docID + "_chunk_" + strconv.Itoa(seg.Index),
			Content: seg.Text,
			Metadata: map[string]string{
				"document_id": docID,
				"filename":    filename,
				"chunk_index": strconv.Itoa(seg.Index),
			},
			Embedding: embedding,
		})
	}

	if len(records) > 0 {
		if err := p.index.Upsert(ctx, records); err != nil {
			return p.fail(ctx, docID, fmt.Errorf("%w: %v", ErrIndexWrite, err))
		}
	}

	if err := p.docs.SetCompleted(ctx, docID, len(records)); err != nil {
		return fmt.Errorf("marking document completed: %w", err)
	}
	p.logger.Info("document ingested", "id", docID, "filename", filename, "vectors", len(records))
	return nil
}

// Remove deletes a document's vectors and then its record, in that order,
// so a failure can never leave vectors without a document.
func (p *Pipeline) Remove(ctx context.Context, docID string) error {
	unlock := p.locks.lock(docID)
	defer unlock()

	if _, err := p.docs.Get(ctx, docID); err != nil {
		return err
	}
	if err := p.index.DeleteByDocument(ctx, docID); err != nil {
		return fmt.Errorf("removing vectors for %s: %w", docID, err)
	}
	if err := p.docs.Delete(ctx, docID); err != nil {
		return err
	}
	p.logger.Info("document removed", "id", docID)
	return nil
}

// fail rolls back any vectors written for the document and records the error.
func (p *Pipeline) fail(ctx context.Context, docID string, cause error) error {
	if err := p.index.DeleteByDocument(ctx, docID); err != nil {
		p.logger.Error("rollback failed", "id", docID, "error", err)
	}
	if err := p.docs.SetFailed(ctx, docID, cause.Error()); err != nil {
		p.logger.Error("failed to mark document failed", "id", docID, "error", err)
	}
	p.logger.Warn("ingestion failed", "id", docID, "error", cause)
	return cause
}

func (p *Pipeline) embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(text, nil)},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, errors.New("empty embedding returned")
	}
	return resp.Embeddings[0].Embedding, nil
}

// keyedMutex serializes work per key. The zero value is ready to use.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*entry)
	}
	e, ok := k.locks[key]
	if !ok {
		e = &entry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
