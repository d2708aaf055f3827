package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vikram-desai/retrieva/internal/indexer/tokenizer"
	"github.com/vikram-desai/retrieva/internal/retrieval/backend"
	"github.com/vikram-desai/retrieva/internal/retrieval/backend/memory"
	"github.com/vikram-desai/retrieva/internal/retrieval/backend/segment"
	"github.com/vikram-desai/retrieva/internal/retrieval/docstore"
	"github.com/vikram-desai/retrieva/pkg/config"
)

// titleKey is the docstore.Document key holding a document's title, the
// only per-key field this engine currently stores alongside the body blob.
const titleKey = 0

// Engine owns one hot, writable backend.Backend (memory) plus the
// immutable segment.Backend files it has flushed to disk, and presents
// them as one backend.Backend via mergedBackend. It also assigns every
// document an engine-wide uint64 id shared across the hot store and every
// segment it is later flushed into, so a document's id never changes —
// unlike shard.Router's per-shard engines, this single engine's subs share
// one id space and so are combined by flat union rather than multidb's
// remap (see DESIGN.md).
type Engine struct {
	hot      *memory.Backend
	store    *docstore.Store
	mu       sync.RWMutex
	segments []*segment.Backend
	cfg      config.IndexerConfig
	logger   *slog.Logger

	idMu   sync.Mutex
	nextID uint64
	toID   map[string]uint64
	toExt  map[uint64]string
}

// NewEngine builds an Engine rooted at cfg.DataDir, loading any segment
// files already flushed there. store is optional durable backup for
// document blobs/fields; nil disables it.
func NewEngine(cfg config.IndexerConfig, store *docstore.Store) (*Engine, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating index data directory: %w", err)
	}
	e := &Engine{
		hot:    memory.New(),
		store:  store,
		cfg:    cfg,
		logger: slog.Default().With("component", "indexer"),
		toID:   make(map[string]uint64),
		toExt:  make(map[uint64]string),
	}
	if err := e.loadExistingSegments(); err != nil {
		return nil, fmt.Errorf("loading existing segments: %w", err)
	}
	return e, nil
}

// localID assigns (or recalls) the uint64 id this engine uses internally
// for an external, caller-facing document id.
func (e *Engine) localID(docID string) uint64 {
	e.idMu.Lock()
	defer e.idMu.Unlock()
	if id, ok := e.toID[docID]; ok {
		return id
	}
	e.nextID++
	id := e.nextID
	e.toID[docID] = id
	e.toExt[id] = docID
	return id
}

// Store returns the engine's optional docstore backing, or nil if none was
// configured. Its document ids are this engine's own local ids, the same
// space IndexDocument assigns from — not the multidb-remapped ids a
// shard.Router's combined backend exposes.
func (e *Engine) Store() *docstore.Store {
	return e.store
}

// ExternalID resolves one of this engine's internal doc-ids back to the
// caller-facing string id it was indexed under.
func (e *Engine) ExternalID(localID uint64) (string, bool) {
	e.idMu.Lock()
	defer e.idMu.Unlock()
	docID, ok := e.toExt[localID]
	return docID, ok
}

// IndexDocument tokenizes title+body, indexes the resulting terms, and
// stores the document's blob and title field. Triggers a Flush once the
// hot store reaches cfg.SegmentMaxSize documents.
func (e *Engine) IndexDocument(docID string, title string, body string) error {
	ctx := context.Background()
	fullText := title + " " + body
	tokens := tokenizer.Tokenize(fullText)

	terms := make(map[string][]uint32, len(tokens))
	for _, t := range tokens {
		terms[t.Term] = append(terms[t.Term], uint32(t.Position))
	}

	id := e.localID(docID)
	doc := backend.Document{
		ID:     id,
		Length: uint32(len(tokens)),
		Data:   []byte(body),
		Keys:   map[int][]byte{titleKey: []byte(title)},
	}

	if err := e.hot.BeginSession(ctx); err != nil {
		return fmt.Errorf("opening write session: %w", err)
	}
	if err := e.hot.AddDocument(ctx, doc, terms); err != nil {
		e.hot.EndSession(ctx)
		return fmt.Errorf("indexing document %s: %w", docID, err)
	}
	if err := e.hot.EndSession(ctx); err != nil {
		return fmt.Errorf("closing write session: %w", err)
	}

	if e.store != nil {
		if err := e.store.Put(ctx, doc); err != nil {
			e.logger.Error("docstore put failed", "doc_id", docID, "error", err)
		}
	}

	e.logger.Debug("document indexed in memory",
		"doc_id", docID,
		"token_count", len(tokens),
		"mem_size", e.hot.Size(),
	)
	if e.hot.Size() >= e.cfg.SegmentMaxSize {
		e.logger.Info("memory index reached max size, flushing to disk",
			"size", e.hot.Size(),
			"threshold", e.cfg.SegmentMaxSize,
		)
		if err := e.Flush(); err != nil {
			return fmt.Errorf("flushing memory index: %w", err)
		}
	}
	return nil
}

// Flush writes the hot store's contents into a new segment file, opens it
// for reading, and resets the hot store to empty.
func (e *Engine) Flush() error {
	terms, docs, avgLen := e.hot.Snapshot()
	if len(terms) == 0 {
		return nil
	}
	segTerms := make([]segment.TermPostings, len(terms))
	for i, t := range terms {
		segTerms[i] = segment.TermPostings{Term: t.Term, Postings: t.Postings}
	}
	writer := segment.NewWriter(e.cfg.DataDir)
	name, err := writer.Write(segTerms, docs, avgLen)
	if err != nil {
		return fmt.Errorf("writing segment: %w", err)
	}

	segPath := filepath.Join(e.cfg.DataDir, name)
	reader, err := segment.Open(segPath)
	if err != nil {
		return fmt.Errorf("opening new segment for reading: %w", err)
	}
	e.mu.Lock()
	e.segments = append(e.segments, reader)
	e.mu.Unlock()
	e.hot.Reset()
	e.logger.Info("segment flushed",
		"segment", name,
		"terms", len(terms),
		"docs", len(docs),
		"active_segments", e.segmentCount(),
	)
	return nil
}

func (e *Engine) segmentCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.segments)
}

// Backend presents the hot store and every flushed segment as one
// backend.Backend, merged by a flat doc-id union: ids never collide
// across subs since they were assigned from this Engine's single id
// counter before ever reaching a sub.
func (e *Engine) Backend() backend.Backend {
	e.mu.RLock()
	defer e.mu.RUnlock()
	subs := make([]backend.Backend, 0, 1+len(e.segments))
	subs = append(subs, e.hot)
	for _, s := range e.segments {
		subs = append(subs, s)
	}
	return newMergedBackend(subs)
}

// GetDocLength returns a document's token count by its external id.
func (e *Engine) GetDocLength(docID string) int {
	id, ok := e.existingLocalID(docID)
	if !ok {
		return 0
	}
	length, err := e.Backend().DocLength(context.Background(), id)
	if err != nil {
		return 0
	}
	return int(length)
}

func (e *Engine) existingLocalID(docID string) (uint64, bool) {
	e.idMu.Lock()
	defer e.idMu.Unlock()
	id, ok := e.toID[docID]
	return id, ok
}

// GetAvgDocLength reports the collection-wide average document length.
func (e *Engine) GetAvgDocLength() float64 {
	avg, err := e.Backend().AvgLength(context.Background())
	if err != nil {
		return 0
	}
	return avg
}

// GetTotalDocs reports the collection-wide document count.
func (e *Engine) GetTotalDocs() int64 {
	n, err := e.Backend().DocCount(context.Background())
	if err != nil {
		return 0
	}
	return n
}

// StartFlushLoop periodically flushes the hot store on cfg.FlushInterval,
// and performs one final flush when ctx is cancelled.
func (e *Engine) StartFlushLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.FlushInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				e.logger.Info("flush loop stopping, performing final flush")
				if err := e.Flush(); err != nil {
					e.logger.Error("final flush failed", "error", err)
				}
				return
			case <-ticker.C:
				if e.hot.Size() > 0 {
					if err := e.Flush(); err != nil {
						e.logger.Error("periodic flush failed", "error", err)
					}
				}
			}
		}
	}()
}

// Close flushes any pending writes and closes every segment reader.
func (e *Engine) Close() error {
	if err := e.Flush(); err != nil {
		e.logger.Error("final flush on close failed", "error", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range e.segments {
		if err := s.Close(); err != nil {
			e.logger.Error("closing segment reader", "error", err)
		}
	}
	e.segments = nil
	return e.hot.Close()
}

// ReloadSegments re-scans cfg.DataDir for segment files this Engine has
// not yet loaded (e.g. written by another process sharing the data
// directory) and returns how many new segments were picked up.
func (e *Engine) ReloadSegments() int {
	entries, err := os.ReadDir(e.cfg.DataDir)
	if err != nil {
		return 0
	}
	e.mu.RLock()
	known := make(map[string]struct{}, len(e.segments))
	for _, s := range e.segments {
		known[s.Path()] = struct{}{}
	}
	e.mu.RUnlock()

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".spdx") {
			continue
		}
		path := filepath.Join(e.cfg.DataDir, entry.Name())
		if _, ok := known[path]; ok {
			continue
		}
		reader, err := segment.Open(path)
		if err != nil {
			e.logger.Error("failed to open segment during reload, skipping", "segment", entry.Name(), "error", err)
			continue
		}
		e.mu.Lock()
		e.segments = append(e.segments, reader)
		e.mu.Unlock()
		loaded++
	}
	return loaded
}

func (e *Engine) loadExistingSegments() error {
	entries, err := os.ReadDir(e.cfg.DataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading data directory: %w", err)
	}
	segFiles := make([]string, 0)
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".spdx") {
			segFiles = append(segFiles, entry.Name())
		}
	}
	sort.Strings(segFiles)

	for _, name := range segFiles {
		path := filepath.Join(e.cfg.DataDir, name)
		reader, err := segment.Open(path)
		if err != nil {
			e.logger.Error("failed to open segment, skipping", "segment", name, "error", err)
			continue
		}
		e.segments = append(e.segments, reader)
		e.logger.Info("loaded existing segment", "segment", name)
	}
	e.logger.Info("segment recovery complete", "segments_loaded", len(e.segments))
	return nil
}
