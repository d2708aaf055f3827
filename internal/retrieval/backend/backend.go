// Package backend defines the storage contract every retrieval backend
// implements: document counts, average length, per-term statistics, posting
// and term iteration, and document fetch. Concrete backends live in
// sibling packages (memory, segment, remote); this package only holds the
// contract and the process-wide registry that resolves a config string to
// a constructor.
package backend

import (
	"context"
	"fmt"
	"sort"
	"sync"

	rerr "github.com/vikram-desai/retrieva/pkg/errors"
)

// Posting is one term's occurrence in one document, as owned by a backend.
type Posting struct {
	DocID     uint64
	WDF       uint32
	Positions []uint32
}

// Document is a retrievable unit: its opaque blob and its per-key fields.
type Document struct {
	ID     uint64
	Length uint32
	Data   []byte
	Keys   map[int][]byte
}

// PostingIterator walks a term's postings in ascending doc-id order.
// Backends are doc-id-ordered, not weight-ordered: there is no min-weight
// parameter here, see DESIGN.md's "backend-level min_weight pushdown" note.
type PostingIterator interface {
	// Next advances to the next posting. Returns false once exhausted.
	Next() bool
	// SkipTo advances to the first posting with DocID >= target. A target
	// at or before the current position is a no-op and returns true.
	SkipTo(target uint64) bool
	// Posting returns the current posting. Valid only after Next/SkipTo
	// returned true.
	Posting() Posting
	// TermFreq is the number of documents containing this term.
	TermFreq() int64
	// Close releases any resources held by the iterator.
	Close() error
}

// TermIteratorEntry is one term occurring in the document a TermIterator
// was opened against.
type TermIteratorEntry struct {
	Term string
	WDF  uint32
}

// TermIterator walks the distinct terms of one document.
type TermIterator interface {
	Next() bool
	Entry() TermIteratorEntry
	Close() error
}

// Backend is the read-only contract every retrieval backend satisfies.
type Backend interface {
	// DocCount is the number of documents in the collection.
	DocCount(ctx context.Context) (int64, error)
	// AvgLength is the mean document length across the collection.
	AvgLength(ctx context.Context) (float64, error)
	// TermFreq returns the number of documents containing term, and
	// whether the term exists at all.
	TermFreq(ctx context.Context, term string) (int64, bool, error)
	// DocLength returns a single document's length.
	DocLength(ctx context.Context, docID uint64) (uint32, error)
	// PostingList opens an iterator over a term's postings. withPositions
	// requests positional data; a backend that cannot supply positions
	// returns postings with a nil Positions slice and callers needing
	// phrase/proximity matching must treat that as "no positions."
	PostingList(ctx context.Context, term string, withPositions bool) (PostingIterator, error)
	// TermList opens an iterator over the distinct terms of a document.
	TermList(ctx context.Context, docID uint64) (TermIterator, error)
	// Document fetches a document's blob and key fields.
	Document(ctx context.Context, docID uint64) (Document, error)
	// Close releases backend resources. Safe to call more than once.
	Close() error
}

// Writable extends Backend with document ingestion. A session must always
// be ended, even if the caller forgets to call EndSession explicitly — see
// the finalizer backstop each concrete writable backend installs around
// BeginSession.
type Writable interface {
	Backend
	// BeginSession opens an exclusive write session.
	BeginSession(ctx context.Context) error
	// AddDocument indexes a document's tokenized terms under the current
	// session. terms maps a term to the positions at which it occurs.
	AddDocument(ctx context.Context, doc Document, terms map[string][]uint32) error
	// EndSession flushes and releases the write session.
	EndSession(ctx context.Context) error
}

// Config is the resolved, typed form of the backend factory's string->string
// map (§6 of the spec): one struct per opened handle instead of loose keys
// threaded through the hot path.
type Config struct {
	Kind      string
	Path      string
	ReadOnly  bool
	Host      string
	Port      int
	TimeoutMS int
}

// Constructor builds a Backend from a resolved Config.
type Constructor func(ctx context.Context, cfg Config) (Backend, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{}
)

// Register installs a constructor under one or more backend-kind aliases.
// Intended to be called from each concrete backend package's init().
func Register(ctor Constructor, aliases ...string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	for _, alias := range aliases {
		registry[alias] = ctor
	}
}

// unavailable is returned for recognized-but-unbuilt backend kinds.
func unavailable(ctx context.Context, cfg Config) (Backend, error) {
	return nil, rerr.Newf(rerr.ErrFeatureUnavailable, 501, "backend %q was not compiled into this build", cfg.Kind)
}

func init() {
	// sleepycat is a recognized key the reference implementation also
	// could not always link in; keep the same user-facing behavior.
	Register(unavailable, "sleepycat")
}

// Open resolves cfg.Kind to a registered constructor and opens the backend.
func Open(ctx context.Context, cfg Config) (Backend, error) {
	registryMu.RLock()
	ctor, ok := registry[cfg.Kind]
	registryMu.RUnlock()
	if !ok {
		return nil, rerr.Newf(rerr.ErrInvalidArgument, 400, "unknown backend %q", cfg.Kind)
	}
	b, err := ctor(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// SortedUint64 sorts doc ids in place; helper shared by backend
// implementations that assemble postings from unordered maps.
func SortedUint64(ids []uint64) []uint64 {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ErrClosed is returned by operations attempted on a closed backend handle.
var ErrClosed = fmt.Errorf("backend: handle is closed")
